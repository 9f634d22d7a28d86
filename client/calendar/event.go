// Package calendar keeps the local view of the signed in user's events in
// step with the calendar service. The collection only ever holds records the
// service confirmed; nothing is applied optimistically.
package calendar

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jrsteele09/go-calendar-sync/client/apierr"
)

const (
	MaxTitleLength = 200
	MaxNotesLength = 1000

	// DefaultColor is used when neither the event nor the identity has one.
	DefaultColor = "#3b82f6"
)

// Event is a confirmed calendar record.
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
	Notes string
	Color string
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Draft is a new event as entered by the user.
type Draft struct {
	Title string
	Start time.Time
	End   time.Time
	Notes string
}

// Validate applies the same rules as the service.
func (d Draft) Validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if d.Start.IsZero() {
		return apierr.Validation("start", "Valid start date is required")
	}
	if d.End.IsZero() {
		return apierr.Validation("end", "Valid end date is required")
	}
	if !d.End.After(d.Start) {
		return apierr.Validation("end", "End date must be after start date")
	}
	return validateNotes(d.Notes)
}

// Patch carries the fields of an update; nil fields are not sent. A blank
// title or a zero time counts as not provided. Notes are sent whenever set,
// so an empty string clears them.
type Patch struct {
	Title *string
	Start *time.Time
	End   *time.Time
	Notes *string
}

// Normalize drops the fields that count as not provided.
func (p Patch) Normalize() Patch {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		p.Title = nil
	}
	if p.Start != nil && p.Start.IsZero() {
		p.Start = nil
	}
	if p.End != nil && p.End.IsZero() {
		p.End = nil
	}
	return p
}

// Empty reports whether no field is provided.
func (p Patch) Empty() bool {
	p = p.Normalize()
	return p.Title == nil && p.Start == nil && p.End == nil && p.Notes == nil
}

// Validate checks the provided fields. When current is non nil the merged
// record must still end after it starts.
func (p Patch) Validate(current *Event) error {
	p = p.Normalize()
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Notes != nil {
		if err := validateNotes(*p.Notes); err != nil {
			return err
		}
	}

	var start, end time.Time
	if current != nil {
		start, end = current.Start, current.End
	}
	if p.Start != nil {
		start = *p.Start
	}
	if p.End != nil {
		end = *p.End
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return apierr.Validation("end", "End date must be after start date")
	}
	return nil
}

// Apply returns e with the patch applied; used only for local checks.
func (p Patch) Apply(e Event) Event {
	p = p.Normalize()
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	return e
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return apierr.Validation("title", "Title is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return apierr.Validation("title", "Title cannot exceed 200 characters")
	}
	return nil
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(strings.TrimSpace(notes)) > MaxNotesLength {
		return apierr.Validation("notes", "Notes cannot exceed 1000 characters")
	}
	return nil
}

// ResolveColor picks the display color: the event's own, then the owner's
// accent color, then DefaultColor.
func ResolveColor(eventColor, accentColor string) string {
	if eventColor != "" {
		return eventColor
	}
	if accentColor != "" {
		return accentColor
	}
	return DefaultColor
}
