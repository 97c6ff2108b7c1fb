package model

import "fmt"

// InputShapeError reports misaligned, missing or malformed input series.
// It is fatal at load time.
type InputShapeError struct {
	Field  string
	Want   int
	Got    int
	Slot   int
	Reason string
}

func (e *InputShapeError) Error() string {
	if e.Want != e.Got {
		return fmt.Sprintf("input shape: %s has %d values, want %d: %s", e.Field, e.Got, e.Want, e.Reason)
	}
	return fmt.Sprintf("input shape: %s slot %d: %s", e.Field, e.Slot, e.Reason)
}
