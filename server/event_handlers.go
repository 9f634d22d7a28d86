package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-calendar-sync/events"
	apperrors "github.com/jrsteele09/go-calendar-sync/internal/errors"
	"github.com/jrsteele09/go-calendar-sync/users"
	"github.com/rs/zerolog/log"
)

type eventsResponse struct {
	Events []*events.Event `json:"events"`
}

type eventResponse struct {
	Event *events.Event `json:"event"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// withColor fills in the owner's accent colour for events stored without one.
func withColor(e *events.Event, owner *users.User) *events.Event {
	if e.Color == "" {
		e.Color = owner.Color
	}
	if e.Color == "" {
		e.Color = events.DefaultColor
	}
	return e
}

func (s *Server) ListEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		list, err := s.repos.Events.ListByOwner(user.ID)
		if err != nil {
			log.Error().Err(err).Str("user", user.ID).Msg("list events failed")
			writeMessage(w, http.StatusInternalServerError, "Server error fetching events")
			return
		}
		for _, e := range list {
			withColor(e, user)
		}
		writeJSON(w, http.StatusOK, eventsResponse{Events: list})
	}
}

func (s *Server) CreateEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		var req events.CreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		start, end, issues := req.Validate()
		if len(issues) > 0 {
			writeFieldErrors(w, issues)
			return
		}

		event := &events.Event{
			OwnerID: user.ID,
			Title:   strings.TrimSpace(req.Title),
			Start:   start,
			End:     end,
			Notes:   strings.TrimSpace(req.Notes),
			Color:   user.Color,
		}
		if err := s.repos.Events.Insert(event); err != nil {
			log.Error().Err(err).Str("user", user.ID).Msg("create event failed")
			writeMessage(w, http.StatusInternalServerError, "Server error creating event")
			return
		}
		writeJSON(w, http.StatusCreated, eventResponse{Event: withColor(event, user)})
	}
}

func (s *Server) UpdateEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		var req events.UpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		event, err := s.repos.Events.Get(user.ID, r.PathValue("id"))
		if apperrors.Is(err, apperrors.ErrEventNotFound) {
			writeMessage(w, http.StatusNotFound, "Event not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("load event failed")
			writeMessage(w, http.StatusInternalServerError, "Server error updating event")
			return
		}

		if issues := req.Apply(event); len(issues) > 0 {
			writeFieldErrors(w, issues)
			return
		}
		if !event.End.After(event.Start) {
			writeMessage(w, http.StatusBadRequest, "End date must be after start date")
			return
		}

		err = s.repos.Events.Update(event)
		if apperrors.Is(err, apperrors.ErrEventNotFound) {
			// Deleted while the update was being validated.
			writeMessage(w, http.StatusNotFound, "Event not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("update event failed")
			writeMessage(w, http.StatusInternalServerError, "Server error updating event")
			return
		}
		writeJSON(w, http.StatusOK, eventResponse{Event: withColor(event, user)})
	}
}

func (s *Server) DeleteEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		err := s.repos.Events.Delete(user.ID, r.PathValue("id"))
		switch {
		case apperrors.Is(err, apperrors.ErrEventNotFound):
			writeMessage(w, http.StatusNotFound, "Event not found")
		case err != nil:
			log.Error().Err(err).Msg("delete event failed")
			writeMessage(w, http.StatusInternalServerError, "Server error deleting event")
		default:
			writeMessage(w, http.StatusOK, "Event deleted successfully")
		}
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "OK",
			Timestamp: s.nowTime().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	}
}
