package calendar

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//go-calendar-sync//calendar client//EN"

// ExportICS writes events as an iCalendar feed.
func ExportICS(w io.Writer, events []Event, now time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if e.Color != "" {
			ve.SetColor(e.Color)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
