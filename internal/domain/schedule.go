package domain

// Slot is one bookable appointment slot in the schedule.
type Slot struct {
	Date           string `json:"date"`      // DD-MM-YYYY
	Time           string `json:"time"`      // HH:MM, 24-hour
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization"`
	Available      bool   `json:"available"`
	PatientID      string `json:"patient_id,omitempty"`
}

// SlotStatus is the result of checking one specific slot.
type SlotStatus struct {
	Available bool
	// Doctors lists who is free at the requested time when the check was made
	// by specialization.
	Doctors []string
	// Alternatives lists other free times on the same day (at most five),
	// keyed by doctor name.
	Alternatives map[string][]string
}

// Doctors is the clinic roster. Names are stored lowercase.
var Doctors = []string{
	"kevin anderson", "robert martinez", "susan davis", "daniel miller",
	"sarah wilson", "michael green", "lisa brown", "jane smith",
	"emily johnson", "john doe",
}

// Specializations lists the recognized dental specializations.
var Specializations = []string{
	"general_dentist", "cosmetic_dentist", "prosthodontist",
	"pediatric_dentist", "emergency_dentist",
	"oral_surgeon", "orthodontist",
}

// DoctorSpecializations maps each doctor on the roster to their
// specialization, used when seeding a demo schedule.
var DoctorSpecializations = map[string]string{
	"kevin anderson":  "general_dentist",
	"robert martinez": "cosmetic_dentist",
	"susan davis":     "prosthodontist",
	"daniel miller":   "pediatric_dentist",
	"sarah wilson":    "emergency_dentist",
	"michael green":   "oral_surgeon",
	"lisa brown":      "orthodontist",
	"jane smith":      "general_dentist",
	"emily johnson":   "cosmetic_dentist",
	"john doe":        "general_dentist",
}

// KnownDoctor reports whether name (lowercase) is on the roster.
func KnownDoctor(name string) bool {
	for _, d := range Doctors {
		if d == name {
			return true
		}
	}
	return false
}

// KnownSpecialization reports whether s is a recognized specialization.
func KnownSpecialization(s string) bool {
	for _, k := range Specializations {
		if k == s {
			return true
		}
	}
	return false
}
