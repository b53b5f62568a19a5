// Package policy decides which profile fields still need an answer and
// computes derivable fields.
package policy

import (
	"time"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

// MissingFields returns, in schema declaration order, the fields that still
// need an answer: fields already present in profile or explicitly skipped are
// dropped, age is dropped while date_of_birth is known (derivable), and
// date_of_birth is dropped while age is known (do not press for the more
// sensitive field).
func MissingFields(profile map[string]any, skipped map[string]bool) []string {
	_, hasAge := profile["age"]
	_, hasDOB := profile["date_of_birth"]

	var missing []string
	for _, f := range schema.Fields() {
		if _, ok := profile[f.Name]; ok {
			continue
		}
		if skipped[f.Name] {
			continue
		}
		if f.Name == "age" && hasDOB {
			continue
		}
		if f.Name == "date_of_birth" && hasAge {
			continue
		}
		missing = append(missing, f.Name)
	}
	return missing
}

// NextTarget returns the first missing field, or "" when the checklist is
// complete.
func NextTarget(profile map[string]any, skipped map[string]bool) string {
	missing := MissingFields(profile, skipped)
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

// ApplyDerived fills computable fields in place. Currently: age in whole
// years from date_of_birth, when age is absent. Malformed stored data leaves
// the field unset; ApplyDerived never fails and is idempotent.
func ApplyDerived(profile map[string]any, now time.Time) {
	if _, ok := profile["age"]; ok {
		return
	}
	dob, ok := profile["date_of_birth"].(string)
	if !ok {
		return
	}
	if age, ok := ageAt(dob, now); ok {
		profile["age"] = age
	}
}

// ageAt computes whole years between a YYYY-MM-DD birth date and now,
// decremented by one if the birthday has not yet occurred this year.
func ageAt(dob string, now time.Time) (int, bool) {
	birth, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
