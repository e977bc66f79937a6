package participant

import "fmt"

// MissingFieldError reports a required field absent from a participant
// document.
type MissingFieldError struct {
	UUID  string
	Field string
}

func (e *MissingFieldError) Error() string {
	if e == nil {
		return ""
	}
	if e.UUID == "" {
		return fmt.Sprintf("participant document missing required field %q", e.Field)
	}
	return fmt.Sprintf("participant %s: missing required field %q", e.UUID, e.Field)
}
