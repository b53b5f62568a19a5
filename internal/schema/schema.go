// Package schema declares the onboarding profile fields and performs strict
// validation and type coercion of candidate values at the model boundary.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FieldType tags the value type a profile field accepts.
type FieldType string

const (
	TypeInt   FieldType = "integer"
	TypeFloat FieldType = "float"
	TypeDate  FieldType = "date"    // canonical form YYYY-MM-DD
	TypeTime  FieldType = "time"    // canonical form HH:MM, 24-hour
	TypeBool  FieldType = "boolean"
	TypeText  FieldType = "text"
)

// FieldSpec describes one collectable profile field.
type FieldSpec struct {
	Name string
	Type FieldType
	Hint string
}

// fields is the fixed field set. Declaration order is the question order.
var fields = []FieldSpec{
	{Name: "age", Type: TypeInt, Hint: "age in years"},
	{Name: "date_of_birth", Type: TypeDate, Hint: "date of birth, YYYY-MM-DD"},
	{Name: "gender_or_sex", Type: TypeText, Hint: "gender or sex"},
	{Name: "height_cm", Type: TypeFloat, Hint: "height in centimeters"},
	{Name: "weight_kg", Type: TypeFloat, Hint: "weight in kilograms"},
	{Name: "sleep_bedtime", Type: TypeTime, Hint: "usual bedtime, e.g. 22:30"},
	{Name: "sleep_wake_time", Type: TypeTime, Hint: "usual wake time, e.g. 06:45"},
	{Name: "workout_type", Type: TypeText, Hint: "preferred workout type"},
	{Name: "workout_days_per_week", Type: TypeInt, Hint: "workout days per week, 0-7"},
	{Name: "physical_activity_profile", Type: TypeText, Hint: "e.g. mostly seated, on-feet, manual labor"},
	{Name: "substance_alcohol_per_week", Type: TypeFloat, Hint: "alcoholic drinks per week"},
	{Name: "substance_tobacco_per_day", Type: TypeFloat, Hint: "tobacco units per day"},
	{Name: "substance_caffeine_mg_per_day", Type: TypeFloat, Hint: "caffeine in mg per day"},
	{Name: "coping_strategies", Type: TypeText, Hint: "e.g. mindfulness, journaling, socializing"},
	{Name: "preferred_checkin_time", Type: TypeTime, Hint: "preferred daily check-in time"},
	{Name: "notification_style", Type: TypeText, Hint: "e.g. push, SMS, email"},
	{Name: "married_status", Type: TypeText, Hint: "marital status (optional)"},
	{Name: "social_support", Type: TypeBool, Hint: "has social support, yes or no"},
	{Name: "target_sleep_hours", Type: TypeFloat, Hint: "target hours of sleep per night"},
	{Name: "voice_or_chat_preference", Type: TypeText, Hint: "voice or chat preference"},
}

var fieldsByName = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// Fields returns the field specs in declaration order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fields))
	copy(out, fields)
	return out
}

// FieldNames returns the field names in declaration order.
func FieldNames() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the spec for a field name.
func Lookup(name string) (FieldSpec, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// ValidationError reports a candidate value that cannot be coerced to its
// field's declared type, or a key outside the declared field set.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile field %q: %s (value %v)", e.Field, e.Reason, e.Value)
}

// ValidateAndCoerce builds a coerced profile from a possibly partial candidate
// mapping. Unknown keys are rejected, nil values are dropped, and every
// present value is coerced to its field's declared type. The merge is
// all-or-nothing: any failure returns an error and no partial result.
func ValidateAndCoerce(candidate map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(candidate))
	for name, value := range candidate {
		spec, ok := fieldsByName[name]
		if !ok {
			return nil, &ValidationError{Field: name, Value: value, Reason: "unknown field"}
		}
		if value == nil {
			continue
		}
		coerced, err := coerce(spec.Type, value)
		if err != nil {
			return nil, &ValidationError{Field: name, Value: value, Reason: err.Error()}
		}
		out[name] = coerced
	}
	return out, nil
}

// Snapshot returns a complete schema-shaped view of the profile: every field
// is present, carrying its coerced value or an explicit nil.
func Snapshot(profile map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := profile[f.Name]; ok {
			out[f.Name] = v
		} else {
			out[f.Name] = nil
		}
	}
	return out
}

func coerce(t FieldType, value any) (any, error) {
	switch t {
	case TypeInt:
		return coerceInt(value)
	case TypeFloat:
		return coerceFloat(value)
	case TypeDate:
		return coerceDate(value)
	case TypeTime:
		return coerceTime(value)
	case TypeBool:
		return coerceBool(value)
	case TypeText:
		return coerceText(value)
	}
	return nil, fmt.Errorf("unsupported type %q", t)
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not a whole number")
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return n, nil
	}
	return 0, fmt.Errorf("not an integer")
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number")
}

func coerceDate(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("not a date string")
	}
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("not a YYYY-MM-DD date")
	}
	return t.Format("2006-01-02"), nil
}

func coerceTime(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("not a time string")
	}
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("not an HH:MM time")
	}
	return t.Format("15:04"), nil
}

var truthy = map[string]bool{"yes": true, "y": true, "true": true, "1": true}
var falsy = map[string]bool{"no": true, "n": true, "false": true, "0": true}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
	}
	return false, fmt.Errorf("not a yes/no value")
}

func coerceText(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("not a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty string")
	}
	return s, nil
}
