package handlers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reply text follows the receptionist register of the clinic's chat UI:
// plain text, casual, times in 12-hour form.

// formatAMPM renders "08:00" as "8 AM" and "10:30" as "10:30 AM".
func formatAMPM(t string) string {
	parts := strings.SplitN(t, ":", 2)
	if len(parts) != 2 {
		return t
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return t
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil {
		return t
	}

	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	hour = hour % 12
	if hour == 0 {
		hour = 12
	}
	if min == 0 {
		return fmt.Sprintf("%d %s", hour, period)
	}
	return fmt.Sprintf("%d:%02d %s", hour, min, period)
}

// joinTimes renders a natural list: "8 AM, 8:30 AM, or 10 AM".
func joinTimes(times []string) string {
	display := make([]string, 0, len(times))
	for _, t := range times {
		display = append(display, formatAMPM(t))
	}
	switch len(display) {
	case 0:
		return ""
	case 1:
		return display[0]
	default:
		return strings.Join(display[:len(display)-1], ", ") + ", or " + display[len(display)-1]
	}
}

// doctorTitle renders "john doe" as "John Doe".
func doctorTitle(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sortedDoctors returns map keys in a stable order for reply rendering.
func sortedDoctors(byDoctor map[string][]string) []string {
	doctors := make([]string, 0, len(byDoctor))
	for d := range byDoctor {
		doctors = append(doctors, d)
	}
	sort.Strings(doctors)
	return doctors
}

// formatDoctorSlots renders per-doctor availability, one clause per doctor.
func formatDoctorSlots(byDoctor map[string][]string) string {
	var clauses []string
	for _, doctor := range sortedDoctors(byDoctor) {
		clauses = append(clauses, fmt.Sprintf("Dr. %s has %s", doctorTitle(doctor), joinTimes(byDoctor[doctor])))
	}
	return strings.Join(clauses, ". ")
}
