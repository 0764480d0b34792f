// Package identity resolves the patient principal for each request.
package identity

import (
	"context"
	"net/http"
	"regexp"
)

// PatientHeaderName carries the patient identification number on API calls.
const PatientHeaderName = "X-Patient-ID"

type contextKey int

const patientIDKey contextKey = iota

// Patient IDs are opaque numeric identifiers issued by the clinic system.
var patientIDPattern = regexp.MustCompile(`^[0-9]{1,16}$`)

// Valid reports whether id is a well-formed patient identifier.
func Valid(id string) bool {
	return patientIDPattern.MatchString(id)
}

// PatientIDFromContext extracts the patient ID from the request context.
func PatientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(patientIDKey).(string); ok {
		return v
	}
	return ""
}

// WithPatientID returns a context carrying the patient ID.
func WithPatientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, patientIDKey, id)
}

func patientIDFromRequest(r *http.Request) string {
	id := r.Header.Get(PatientHeaderName)
	if id == "" {
		id = r.URL.Query().Get("patient_id")
	}
	return id
}

// Middleware injects the validated patient identity into the request
// context. Requests without a well-formed identity pass through with an
// empty ID; handlers that require identity reject those themselves, since a
// missing identity makes the session malformed rather than unauthorized.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := patientIDFromRequest(r)
			if id != "" && !Valid(id) {
				http.Error(w, `{"error":"invalid patient id"}`, http.StatusBadRequest)
				return
			}
			if id != "" {
				r = r.WithContext(WithPatientID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
