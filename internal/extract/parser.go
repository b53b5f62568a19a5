package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

// labelSynonyms maps uppercase-normalized line labels to schema field names.
var labelSynonyms = map[string]string{
	"AGE": "age",

	"DOB":           "date_of_birth",
	"DATE OF BIRTH": "date_of_birth",
	"BIRTH DATE":    "date_of_birth",
	"BIRTHDAY":      "date_of_birth",

	"GENDER":        "gender_or_sex",
	"SEX":           "gender_or_sex",
	"GENDER OR SEX": "gender_or_sex",

	"HEIGHT":      "height_cm",
	"HEIGHT CM":   "height_cm",
	"HEIGHT (CM)": "height_cm",

	"WEIGHT":      "weight_kg",
	"WEIGHT KG":   "weight_kg",
	"WEIGHT (KG)": "weight_kg",

	"BEDTIME":       "sleep_bedtime",
	"USUAL BEDTIME": "sleep_bedtime",
	"SLEEP BEDTIME": "sleep_bedtime",

	"WAKE TIME":       "sleep_wake_time",
	"USUAL WAKE TIME": "sleep_wake_time",
	"WAKE-UP TIME":    "sleep_wake_time",
	"SLEEP WAKE TIME": "sleep_wake_time",

	"WORKOUT":      "workout_type",
	"WORKOUT TYPE": "workout_type",

	"WORKOUT DAYS":          "workout_days_per_week",
	"WORKOUT DAYS PER WEEK": "workout_days_per_week",
	"DAYS PER WEEK":         "workout_days_per_week",

	"ACTIVITY":                  "physical_activity_profile",
	"PHYSICAL ACTIVITY":         "physical_activity_profile",
	"ACTIVITY PROFILE":          "physical_activity_profile",
	"PHYSICAL ACTIVITY PROFILE": "physical_activity_profile",

	"ALCOHOL":          "substance_alcohol_per_week",
	"ALCOHOL PER WEEK": "substance_alcohol_per_week",
	"DRINKS PER WEEK":  "substance_alcohol_per_week",

	"TOBACCO":         "substance_tobacco_per_day",
	"TOBACCO PER DAY": "substance_tobacco_per_day",

	"CAFFEINE":            "substance_caffeine_mg_per_day",
	"CAFFEINE MG PER DAY": "substance_caffeine_mg_per_day",

	"COPING":            "coping_strategies",
	"COPING STRATEGIES": "coping_strategies",

	"CHECK-IN TIME":           "preferred_checkin_time",
	"CHECKIN TIME":            "preferred_checkin_time",
	"PREFERRED CHECK-IN TIME": "preferred_checkin_time",
	"PREFERRED CHECKIN TIME":  "preferred_checkin_time",

	"NOTIFICATION":       "notification_style",
	"NOTIFICATIONS":      "notification_style",
	"NOTIFICATION STYLE": "notification_style",

	"MARRIED":        "married_status",
	"MARRIED STATUS": "married_status",
	"MARITAL STATUS": "married_status",

	"SOCIAL SUPPORT": "social_support",

	"TARGET SLEEP":       "target_sleep_hours",
	"TARGET SLEEP HOURS": "target_sleep_hours",
	"SLEEP TARGET":       "target_sleep_hours",

	"VOICE OR CHAT":            "voice_or_chat_preference",
	"VOICE OR CHAT PREFERENCE": "voice_or_chat_preference",
	"CHAT PREFERENCE":          "voice_or_chat_preference",
}

var (
	intRe   = regexp.MustCompile(`[-+]?\d+`)
	floatRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	timeRe  = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	dateRe  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	spaceRe = regexp.MustCompile(`\s+`)
)

var boolTokens = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true,
	"no": false, "n": false, "false": false, "0": false,
}

// ParseLabeledLines deterministically extracts field values from
// "Label: value" formatted lines. Lines whose label has no synonym mapping,
// or whose value fails its field's parser, contribute nothing.
func ParseLabeledLines(utterance string) map[string]any {
	out := make(map[string]any)
	for line := range strings.Lines(utterance) {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		label := normalizeLabel(line[:idx])
		field, ok := labelSynonyms[label]
		if !ok {
			continue
		}
		spec, ok := schema.Lookup(field)
		if !ok {
			continue
		}
		if value, ok := parseValue(spec.Type, line[idx+1:]); ok {
			out[field] = value
		}
	}
	return out
}

func normalizeLabel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return spaceRe.ReplaceAllString(s, " ")
}

func parseValue(t schema.FieldType, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	switch t {
	case schema.TypeInt:
		tok := intRe.FindString(raw)
		if tok == "" {
			return nil, false
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, false
		}
		return n, true
	case schema.TypeFloat:
		tok := floatRe.FindString(raw)
		if tok == "" {
			return nil, false
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case schema.TypeTime:
		tok := timeRe.FindString(raw)
		if tok == "" {
			return nil, false
		}
		return tok, true
	case schema.TypeDate:
		tok := dateRe.FindString(raw)
		if tok == "" {
			return nil, false
		}
		return tok, true
	case schema.TypeBool:
		v, ok := boolTokens[strings.ToLower(raw)]
		if !ok {
			return nil, false
		}
		return v, true
	case schema.TypeText:
		if raw == "" {
			return nil, false
		}
		return strings.ToLower(raw), true
	}
	return nil, false
}
