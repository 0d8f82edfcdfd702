package pipeline

import (
	"fmt"
	"strings"
)

// NoItemsError reports that every acquisition strategy came up empty.
// Causes holds the per-state errors in the order they occurred.
type NoItemsError struct {
	Reason string
	Causes []error
}

func (e *NoItemsError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("no items: %s", e.Reason)
	}
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("no items: %s (%s)", e.Reason, strings.Join(msgs, "; "))
}

func (e *NoItemsError) Unwrap() []error {
	return e.Causes
}
