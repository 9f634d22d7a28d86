package events

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jrsteele09/go-calendar-sync/users"
)

const (
	MaxTitleLength = 200
	MaxNotesLength = 1000
	DefaultColor   = "#3b82f6"
)

type Event struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Notes     string    `json:"notes"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type FieldError = users.FieldError

// CreateRequest is the body of POST /api/events. Times stay strings until
// validated so malformed values can be reported per field.
type CreateRequest struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Notes string `json:"notes"`
}

// UpdateRequest is the body of PUT /api/events/{id}. Absent fields are left
// untouched.
type UpdateRequest struct {
	Title *string `json:"title"`
	Start *string `json:"start"`
	End   *string `json:"end"`
	Notes *string `json:"notes"`
}

// Validate checks a create request and returns the parsed times.
func (r CreateRequest) Validate() (start, end time.Time, issues []FieldError) {
	title := strings.TrimSpace(r.Title)
	switch {
	case title == "":
		issues = append(issues, FieldError{Field: "title", Message: "Title is required"})
	case utf8.RuneCountInString(title) > MaxTitleLength:
		issues = append(issues, FieldError{Field: "title", Message: "Title cannot exceed 200 characters"})
	}
	start, startErr := ParseTime(r.Start)
	if startErr != nil {
		issues = append(issues, FieldError{Field: "start", Message: "Valid start date is required"})
	}
	end, endErr := ParseTime(r.End)
	switch {
	case endErr != nil:
		issues = append(issues, FieldError{Field: "end", Message: "Valid end date is required"})
	case startErr == nil && !end.After(start):
		issues = append(issues, FieldError{Field: "end", Message: "End date must be after start date"})
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Notes)) > MaxNotesLength {
		issues = append(issues, FieldError{Field: "notes", Message: "Notes cannot exceed 1000 characters"})
	}
	return start, end, issues
}

// Apply validates the update field by field and merges it into e. The merged
// ordering of start and end is checked by the caller.
func (r UpdateRequest) Apply(e *Event) []FieldError {
	var issues []FieldError
	next := *e
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		switch {
		case title == "":
			issues = append(issues, FieldError{Field: "title", Message: "Title cannot be empty"})
		case utf8.RuneCountInString(title) > MaxTitleLength:
			issues = append(issues, FieldError{Field: "title", Message: "Title cannot exceed 200 characters"})
		}
		next.Title = title
	}
	if r.Start != nil {
		t, err := ParseTime(*r.Start)
		if err != nil {
			issues = append(issues, FieldError{Field: "start", Message: "Valid start date is required"})
		}
		next.Start = t
	}
	if r.End != nil {
		t, err := ParseTime(*r.End)
		if err != nil {
			issues = append(issues, FieldError{Field: "end", Message: "Valid end date is required"})
		}
		next.End = t
	}
	if r.Notes != nil {
		notes := strings.TrimSpace(*r.Notes)
		if utf8.RuneCountInString(notes) > MaxNotesLength {
			issues = append(issues, FieldError{Field: "notes", Message: "Notes cannot exceed 1000 characters"})
		}
		next.Notes = notes
	}
	if len(issues) == 0 {
		*e = next
	}
	return issues
}

// ParseTime accepts RFC 3339 with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
