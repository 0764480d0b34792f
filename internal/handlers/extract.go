package handlers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// Extractor pulls appointment entities (date, time, doctor, specialization)
// out of conversation text. It stands in for the natural-language
// understanding collaborator, so it lives behind its own type and can be
// swapped for a model-backed implementation.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor using the wall clock for year inference.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// Entities is what the extractor found in a piece of text.
type Entities struct {
	Date           string // DD-MM-YYYY
	SecondDate     string // set when two dates are mentioned (reschedule)
	Time           string // HH:MM, 24-hour
	SecondTime     string
	DoctorName     string
	Specialization string
}

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	wordDateRe    = regexp.MustCompile(`(?i)\b(?:(\d{1,2})(?:st|nd|rd|th)?\s+of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)\s*(\d{1,2})?(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?`)
	clockTimeRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	time24Re      = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

var monthNumbers = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// Extract scans one piece of text for appointment entities.
func (e *Extractor) Extract(text string) Entities {
	lower := strings.ToLower(text)

	var out Entities
	out.Date, out.SecondDate = e.extractDates(lower)
	out.Time, out.SecondTime = extractTimes(lower)
	out.DoctorName = extractDoctor(lower)
	out.Specialization = extractSpecialization(lower)
	return out
}

// ExtractFromLog scans the conversation newest-first and keeps the most
// recent mention of each entity. Booking confirmations ("yes") carry no
// entities themselves, so earlier turns fill the gaps.
func (e *Extractor) ExtractFromLog(log []domain.Turn) Entities {
	var out Entities
	for i := len(log) - 1; i >= 0; i-- {
		got := e.Extract(log[i].Text)
		if out.Date == "" {
			out.Date, out.SecondDate = got.Date, got.SecondDate
		}
		if out.Time == "" {
			out.Time, out.SecondTime = got.Time, got.SecondTime
		}
		if out.DoctorName == "" {
			out.DoctorName = got.DoctorName
		}
		if out.Specialization == "" {
			out.Specialization = got.Specialization
		}
	}
	return out
}

func (e *Extractor) extractDates(lower string) (first, second string) {
	var dates []string
	for _, m := range numericDateRe.FindAllStringSubmatch(lower, 2) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			dates = append(dates, fmt.Sprintf("%02d-%02d-%04d", day, month, year))
		}
	}
	if len(dates) < 2 {
		for _, m := range wordDateRe.FindAllStringSubmatch(lower, 2) {
			day := m[1]
			if day == "" {
				day = m[3]
			}
			if day == "" {
				continue
			}
			d, _ := strconv.Atoi(day)
			if d < 1 || d > 31 {
				continue
			}
			year := e.now().Year()
			if m[4] != "" {
				year, _ = strconv.Atoi(m[4])
			}
			dates = append(dates, fmt.Sprintf("%02d-%02d-%04d", d, monthNumbers[m[2]], year))
		}
	}

	switch len(dates) {
	case 0:
		return "", ""
	case 1:
		return dates[0], ""
	default:
		return dates[0], dates[1]
	}
}

func extractTimes(lower string) (first, second string) {
	var times []string
	consumed := make(map[string]bool)

	for _, m := range clockTimeRe.FindAllStringSubmatch(lower, 2) {
		hour, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || min > 59 {
			continue
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		t := fmt.Sprintf("%02d:%02d", hour, min)
		times = append(times, t)
		consumed[fmt.Sprintf("%s:%02d", m[1], min)] = true
	}

	if len(times) < 2 {
		for _, m := range time24Re.FindAllStringSubmatch(lower, 4) {
			hour, _ := strconv.Atoi(m[1])
			min, _ := strconv.Atoi(m[2])
			if hour > 23 || min > 59 {
				continue
			}
			// Skip matches already captured with an am/pm suffix.
			if consumed[fmt.Sprintf("%d:%02d", hour, min)] || consumed[fmt.Sprintf("%d:%02d", hour-12, min)] {
				continue
			}
			times = append(times, fmt.Sprintf("%02d:%02d", hour, min))
			if len(times) >= 2 {
				break
			}
		}
	}

	switch len(times) {
	case 0:
		return "", ""
	case 1:
		return times[0], ""
	default:
		return times[0], times[1]
	}
}

func extractDoctor(lower string) string {
	for _, doctor := range domain.Doctors {
		if strings.Contains(lower, doctor) {
			return doctor
		}
		// "Dr. Doe" style: match on the family name alone.
		parts := strings.Fields(doctor)
		surname := parts[len(parts)-1]
		if strings.Contains(lower, "dr. "+surname) || strings.Contains(lower, "dr "+surname) {
			return doctor
		}
	}
	return ""
}

func extractSpecialization(lower string) string {
	for _, spec := range domain.Specializations {
		if strings.Contains(lower, spec) || strings.Contains(lower, strings.ReplaceAll(spec, "_", " ")) {
			return spec
		}
	}
	return ""
}

// isConfirmation reports whether the user text is a bare go-ahead rather
// than a message carrying new details.
func isConfirmation(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!")
	switch t {
	case "yes", "yes please", "yep", "yeah", "ok", "okay", "sure", "confirm", "go ahead", "book it", "please do", "sounds good":
		return true
	}
	return false
}
