package recognition

import "strings"

// Outcome is the closed set of results a recognition can report.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeMarked
	OutcomeAlreadyMarked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMarked:
		return "marked"
	case OutcomeAlreadyMarked:
		return "already_marked"
	default:
		return "none"
	}
}

// Level is the notification level shown for the outcome.
func (o Outcome) Level() string {
	switch o {
	case OutcomeMarked:
		return "success"
	case OutcomeAlreadyMarked:
		return "info"
	default:
		return ""
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name. Unknown names decode as none.
func (o *Outcome) UnmarshalText(b []byte) error {
	*o, _ = ParseOutcome(string(b))
	return nil
}

// ParseOutcome maps a structured outcome value. ok is false for unknown values.
func ParseOutcome(s string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "marked":
		return OutcomeMarked, true
	case "already_marked", "already-marked", "already":
		return OutcomeAlreadyMarked, true
	case "none":
		return OutcomeNone, true
	}
	return OutcomeNone, false
}

// Classify decides the outcome of a recognition. A structured outcome wins;
// otherwise the status text is inspected. "already" is checked first since
// "Already marked" also contains "marked".
func Classify(r Recognized) Outcome {
	if r.Outcome != "" {
		if o, ok := ParseOutcome(r.Outcome); ok {
			return o
		}
	}
	status := strings.ToLower(r.Status)
	switch {
	case strings.Contains(status, "already"):
		return OutcomeAlreadyMarked
	case strings.Contains(status, "marked"):
		return OutcomeMarked
	}
	return OutcomeNone
}
