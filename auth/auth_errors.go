package auth

import (
	"strings"

	"github.com/jrsteele09/go-calendar-sync/users"
)

// ValidationError carries every field problem found in a request.
type ValidationError struct {
	Issues []users.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, i.Message)
	}
	return strings.Join(msgs, "; ")
}
