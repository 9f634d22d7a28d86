package calendar

import (
	"strings"
	"time"
)

// isoLayout is the ISO-8601 form the service expects, always in UTC.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

type wireEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Notes string    `json:"notes"`
	Color string    `json:"color"`
}

type listResponse struct {
	Events []wireEvent `json:"events"`
}

type eventResponse struct {
	Event *wireEvent `json:"event"`
}

type createRequest struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Notes string `json:"notes"`
}

type updateRequest struct {
	Title *string `json:"title,omitempty"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

func newCreateRequest(d Draft) createRequest {
	return createRequest{
		Title: strings.TrimSpace(d.Title),
		Start: formatTime(d.Start),
		End:   formatTime(d.End),
		Notes: strings.TrimSpace(d.Notes),
	}
}

func newUpdateRequest(p Patch) updateRequest {
	p = p.Normalize()
	var req updateRequest
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		req.Title = &title
	}
	if p.Start != nil {
		start := formatTime(*p.Start)
		req.Start = &start
	}
	if p.End != nil {
		end := formatTime(*p.End)
		req.End = &end
	}
	if p.Notes != nil {
		notes := strings.TrimSpace(*p.Notes)
		req.Notes = &notes
	}
	return req
}

func (w wireEvent) toEvent(accentColor string) Event {
	return Event{
		ID:    w.ID,
		Title: w.Title,
		Start: w.Start,
		End:   w.End,
		Notes: w.Notes,
		Color: ResolveColor(w.Color, accentColor),
	}
}
