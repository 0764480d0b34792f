package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/shared"
	_ "modernc.org/sqlite"
)

// maxAlternatives bounds how many alternative times a slot check suggests.
const maxAlternatives = 5

// SQLiteStore implements Schedule using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed schedule store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS slots (
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		doctor_name TEXT NOT NULL,
		specialization TEXT NOT NULL,
		is_available INTEGER NOT NULL DEFAULT 1,
		patient_id TEXT,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (date, time, doctor_name)
	);
	CREATE INDEX IF NOT EXISTS idx_slots_spec ON slots(date, specialization) WHERE is_available = 1;

	CREATE TABLE IF NOT EXISTS conversations (
		patient_id TEXT PRIMARY KEY,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Availability returns the free times for a doctor on a date.
func (s *SQLiteStore) Availability(ctx context.Context, date, doctorName string) ([]string, error) {
	query := `
		SELECT time FROM slots
		WHERE date = ? AND doctor_name = ? AND is_available = 1
		ORDER BY time`

	rows, err := s.db.QueryContext(ctx, query, date, doctorName)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer closeRows(rows, "availability")

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability: %w", err)
	}
	return times, nil
}

// AvailabilityBySpecialization returns free times per doctor for a
// specialization on a date.
func (s *SQLiteStore) AvailabilityBySpecialization(ctx context.Context, date, specialization string) (map[string][]string, error) {
	query := `
		SELECT doctor_name, time FROM slots
		WHERE date = ? AND specialization = ? AND is_available = 1
		ORDER BY doctor_name, time`

	rows, err := s.db.QueryContext(ctx, query, date, specialization)
	if err != nil {
		return nil, fmt.Errorf("query availability by specialization: %w", err)
	}
	defer closeRows(rows, "availability by specialization")

	byDoctor := make(map[string][]string)
	for rows.Next() {
		var doctor, t string
		if err := rows.Scan(&doctor, &t); err != nil {
			return nil, fmt.Errorf("scan specialization row: %w", err)
		}
		byDoctor[doctor] = append(byDoctor[doctor], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specialization availability: %w", err)
	}
	return byDoctor, nil
}

// CheckSlot checks a specific date+time for a doctor or specialization and
// gathers nearby alternatives when the slot is not free.
func (s *SQLiteStore) CheckSlot(ctx context.Context, date, timeOfDay, doctorName, specialization string) (domain.SlotStatus, error) {
	var status domain.SlotStatus

	switch {
	case doctorName != "":
		var available bool
		err := s.db.QueryRowContext(ctx,
			`SELECT is_available FROM slots WHERE date = ? AND time = ? AND doctor_name = ?`,
			date, timeOfDay, doctorName,
		).Scan(&available)
		if err != nil && err != sql.ErrNoRows {
			return status, fmt.Errorf("check slot: %w", err)
		}
		if err == nil && available {
			status.Available = true
			status.Doctors = []string{doctorName}
			return status, nil
		}

		times, err := s.Availability(ctx, date, doctorName)
		if err != nil {
			return status, err
		}
		if len(times) > 0 {
			if len(times) > maxAlternatives {
				times = times[:maxAlternatives]
			}
			status.Alternatives = map[string][]string{doctorName: times}
		}
		return status, nil

	case specialization != "":
		rows, err := s.db.QueryContext(ctx,
			`SELECT doctor_name FROM slots
			 WHERE date = ? AND time = ? AND specialization = ? AND is_available = 1
			 ORDER BY doctor_name`,
			date, timeOfDay, specialization,
		)
		if err != nil {
			return status, fmt.Errorf("check specialization slot: %w", err)
		}
		defer closeRows(rows, "check specialization slot")

		for rows.Next() {
			var doctor string
			if err := rows.Scan(&doctor); err != nil {
				return status, fmt.Errorf("scan slot doctor: %w", err)
			}
			status.Doctors = append(status.Doctors, doctor)
		}
		if err := rows.Err(); err != nil {
			return status, fmt.Errorf("iterate slot doctors: %w", err)
		}
		if len(status.Doctors) > 0 {
			status.Available = true
			return status, nil
		}

		byDoctor, err := s.AvailabilityBySpecialization(ctx, date, specialization)
		if err != nil {
			return status, err
		}
		if len(byDoctor) > 0 {
			status.Alternatives = make(map[string][]string, len(byDoctor))
			for doctor, times := range byDoctor {
				if len(times) > maxAlternatives {
					times = times[:maxAlternatives]
				}
				status.Alternatives[doctor] = times
			}
		}
		return status, nil

	default:
		return status, fmt.Errorf("check slot: doctor name or specialization required")
	}
}

// Book marks a slot unavailable for the patient. The availability predicate
// lives in the UPDATE itself so two concurrent bookings of the same slot
// cannot both succeed; retried on transient SQLite lock contention.
func (s *SQLiteStore) Book(ctx context.Context, date, timeOfDay, doctorName, patientID string) error {
	return s.withBusyRetry(ctx, "book slot", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE slots SET is_available = 0, patient_id = ?, updated_at = ?
			 WHERE date = ? AND time = ? AND doctor_name = ? AND is_available = 1`,
			patientID, time.Now().Unix(), date, timeOfDay, doctorName,
		)
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("book slot rows affected: %w", err)
		}
		if rows == 0 {
			return ErrSlotUnavailable
		}
		return nil
	})
}

// Cancel frees a slot booked by the patient.
func (s *SQLiteStore) Cancel(ctx context.Context, date, timeOfDay, doctorName, patientID string) error {
	return s.withBusyRetry(ctx, "cancel slot", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE slots SET is_available = 1, patient_id = NULL, updated_at = ?
			 WHERE date = ? AND time = ? AND doctor_name = ? AND patient_id = ? AND is_available = 0`,
			time.Now().Unix(), date, timeOfDay, doctorName, patientID,
		)
		if err != nil {
			return fmt.Errorf("cancel slot: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("cancel slot rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNoSuchAppointment
		}
		return nil
	})
}

// Reschedule moves a booking to a new slot in one transaction. The new slot
// is taken first; if that fails the old booking is untouched.
func (s *SQLiteStore) Reschedule(ctx context.Context, oldDate, oldTime, newDate, newTime, doctorName, patientID string) error {
	return s.withBusyRetry(ctx, "reschedule slot", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reschedule: %w", err)
		}
		defer func() {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				slog.Warn("reschedule rollback failed", "error", rollbackErr)
			}
		}()

		now := time.Now().Unix()

		result, err := tx.ExecContext(ctx,
			`UPDATE slots SET is_available = 0, patient_id = ?, updated_at = ?
			 WHERE date = ? AND time = ? AND doctor_name = ? AND is_available = 1`,
			patientID, now, newDate, newTime, doctorName,
		)
		if err != nil {
			return fmt.Errorf("reschedule take new slot: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("reschedule new slot rows affected: %w", err)
		} else if rows == 0 {
			return ErrSlotUnavailable
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE slots SET is_available = 1, patient_id = NULL, updated_at = ?
			 WHERE date = ? AND time = ? AND doctor_name = ? AND patient_id = ? AND is_available = 0`,
			now, oldDate, oldTime, doctorName, patientID,
		)
		if err != nil {
			return fmt.Errorf("reschedule release old slot: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("reschedule old slot rows affected: %w", err)
		} else if rows == 0 {
			return ErrNoSuchAppointment
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit reschedule: %w", err)
		}
		return nil
	})
}

// Seed inserts open half-hour slots from 08:00 to 17:30 for every doctor on
// the given dates. Existing rows win over the seed.
func (s *SQLiteStore) Seed(ctx context.Context, dates []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("seed rollback failed", "error", rollbackErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO slots (date, time, doctor_name, specialization, is_available, patient_id, updated_at)
		 VALUES (?, ?, ?, ?, 1, NULL, ?)
		 ON CONFLICT(date, time, doctor_name) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare seed: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			slog.Warn("failed to close seed statement", "error", closeErr)
		}
	}()

	now := time.Now().Unix()
	for _, date := range dates {
		for _, doctor := range domain.Doctors {
			spec := domain.DoctorSpecializations[doctor]
			for hour := 8; hour < 18; hour++ {
				for _, min := range []string{"00", "30"} {
					slot := fmt.Sprintf("%02d:%s", hour, min)
					if _, err := stmt.ExecContext(ctx, date, slot, doctor, spec, now); err != nil {
						return fmt.Errorf("seed slot %s %s %s: %w", date, slot, doctor, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// GetConversation returns the persisted turn log for a patient, or nil when
// none exists.
func (s *SQLiteStore) GetConversation(ctx context.Context, patientID string) ([]domain.StoredMessage, error) {
	var messagesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM conversations WHERE patient_id = ?`, patientID,
	).Scan(&messagesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	var msgs []domain.StoredMessage
	if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return msgs, nil
}

// SaveConversation replaces the persisted turn log for a patient.
func (s *SQLiteStore) SaveConversation(ctx context.Context, patientID string, log []domain.StoredMessage) error {
	messagesJSON, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (patient_id, messages_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(patient_id) DO UPDATE SET
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`,
		patientID, string(messagesJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// withBusyRetry retries op on SQLITE_BUSY / database-is-locked errors with
// exponential backoff: 100ms, 200ms, 400ms.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, label string, op func() error) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("sqlite busy, retrying", "op", label, "attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", label, maxRetries, err)
}

func closeRows(rows *sql.Rows, label string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "op", label, "error", err)
	}
}
