// Package composer renders the per-turn system prompt for the onboarding
// assistant. The prompt is regenerated fresh each turn from the current
// profile and skip state; nothing is cached or diffed.
package composer

import (
	"fmt"
	"strings"
	"time"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/policy"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

const header = `You are a very friendly digital-twin onboarding assistant. Be concise, warm, and supportive.`

const rules = `RULES
- Collect ONLY information the user explicitly provides. Never infer or fabricate a value.
- If unsure what the user meant, ask one short clarifying question.
- The user may answer "skip" or "unknown" to any question; accept it and move on without pressing.
- If date of birth is known, do not ask for age: it is derivable.
- If age is known, do not ask for date of birth: prefer the less sensitive field.`

const inputStyles = `INPUT STYLES - accept any of these shapes:
- free text ("I usually go to bed around 10:30pm")
- labeled lines ("Bedtime: 22:30")
- structured blocks (JSON-like objects with field names)`

const plausibility = `PLAUSIBILITY - sanity-check values against these ranges and query anything outside them:
- age: 0-120 years
- height_cm: 50-250
- weight_kg: 20-400
- workout_days_per_week: 0-7
- substance_caffeine_mg_per_day: 0-2000
- target_sleep_hours: 0-14
- times in 24-hour HH:MM, dates as YYYY-MM-DD`

// BuildPrompt deterministically renders the system instruction block for one
// turn: persona, wall-clock grounding, behavioral rules, accepted input
// shapes, plausibility ranges, the full checklist, and either a single-field
// question instruction or a summarize-and-confirm instruction.
func BuildPrompt(profile map[string]any, skipped map[string]bool, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(header)
	fmt.Fprintf(&sb, "\nCurrent date and time: %s.\n\n", now.Format("Monday, January 02, 2006 3:04 PM MST"))

	sb.WriteString(rules)
	sb.WriteString("\n\n")
	sb.WriteString(inputStyles)
	sb.WriteString("\n\n")
	sb.WriteString(plausibility)
	sb.WriteString("\n\n")

	sb.WriteString("CHECKLIST - all fields, in order:\n")
	for _, f := range schema.Fields() {
		switch {
		case skipped[f.Name]:
			fmt.Fprintf(&sb, "- [skipped] %s: %s\n", f.Name, f.Hint)
		case profile[f.Name] != nil:
			fmt.Fprintf(&sb, "- [collected: %v] %s: %s\n", profile[f.Name], f.Name, f.Hint)
		default:
			fmt.Fprintf(&sb, "- [ ] %s: %s\n", f.Name, f.Hint)
		}
	}
	sb.WriteString("\n")

	if target := policy.NextTarget(profile, skipped); target != "" {
		spec, _ := schema.Lookup(target)
		fmt.Fprintf(&sb, "NEXT STEP - ask exactly one short question to collect %q (%s). Do not ask about any other field this turn.", target, spec.Hint)
	} else {
		sb.WriteString("NEXT STEP - every field is collected or skipped. Read back a short bullet summary of the collected values and ask the user to confirm before the profile is considered final.")
	}

	return sb.String()
}
