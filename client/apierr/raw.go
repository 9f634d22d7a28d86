package apierr

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// Raw is the tagged union of failure shapes seen at the transport boundary.
type Raw interface {
	isRaw()
}

// NoResponse means the request never produced an HTTP response.
type NoResponse struct {
	Err error
}

// FieldIssues is a response carrying a list of field level validation issues.
type FieldIssues struct {
	Status int
	Issues []Issue
}

// Issue is one field level validation problem.
type Issue struct {
	Field   string
	Message string
}

// ServerMessage is a response carrying at most a single message.
type ServerMessage struct {
	Status  int
	Message string
}

// Rejected is a 401 or 403: the credential was refused or missing.
type Rejected struct {
	Status  int
	Message string
}

func (NoResponse) isRaw()    {}
func (FieldIssues) isRaw()   {}
func (ServerMessage) isRaw() {}
func (Rejected) isRaw()      {}

// IsAuthStatus reports whether status means the credential was rejected.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// errorBody is the union of the JSON error payloads the service emits:
// {"message": "..."} or {"errors": [{"msg": "...", "param": "title"}]}.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

type issueBody struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Param   string `json:"param"`
	Path    string `json:"path"`
	Field   string `json:"field"`
}

// Classify decodes a non-2xx response into its raw shape.
func Classify(status int, body []byte) Raw {
	var payload errorBody
	_ = json.Unmarshal(body, &payload)

	message := firstNonEmpty(payload.Message, payload.Error)

	if IsAuthStatus(status) {
		return Rejected{Status: status, Message: message}
	}

	if issues, text, ok := decodeIssues(payload.Errors); ok {
		if len(issues) > 0 && message == "" {
			return FieldIssues{Status: status, Issues: issues}
		}
		if message == "" {
			message = text
		}
	}

	if message == "" && len(body) > 0 && !json.Valid(body) {
		message = strings.TrimSpace(string(body))
	}
	return ServerMessage{Status: status, Message: message}
}

// decodeIssues accepts either an array of issue objects or a bare string.
func decodeIssues(raw json.RawMessage) ([]Issue, string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, "", false
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		issues := make([]Issue, 0, len(list))
		for _, item := range list {
			var ib issueBody
			if err := json.Unmarshal(item, &ib); err != nil {
				var s string
				if json.Unmarshal(item, &s) == nil {
					issues = append(issues, Issue{Message: s})
				} else {
					issues = append(issues, Issue{Message: string(item)})
				}
				continue
			}
			msg := firstNonEmpty(ib.Msg, ib.Message)
			if msg == "" {
				msg = string(item)
			}
			issues = append(issues, Issue{
				Field:   firstNonEmpty(ib.Path, ib.Param, ib.Field),
				Message: msg,
			})
		}
		return issues, "", true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return nil, text, true
	}
	return nil, "", false
}

// Normalize collapses a raw failure into an *Error.
func Normalize(raw Raw) *Error {
	switch r := raw.(type) {
	case NoResponse:
		e := New(NetworkFailure, networkMessage(r.Err))
		e.cause = r.Err
		return e

	case FieldIssues:
		messages := make([]string, 0, len(r.Issues))
		fields := make([]string, 0, len(r.Issues))
		seen := make(map[string]struct{})
		for _, is := range r.Issues {
			if is.Message != "" {
				messages = append(messages, is.Message)
			}
			if is.Field == "" {
				continue
			}
			if _, dup := seen[is.Field]; dup {
				continue
			}
			seen[is.Field] = struct{}{}
			fields = append(fields, is.Field)
		}
		e := New(ValidationFailure, strings.Join(messages, "; "), fields...)
		e.Status = r.Status
		return e

	case Rejected:
		e := New(AuthFailure, r.Message)
		e.Status = r.Status
		return e

	case ServerMessage:
		e := New(kindForStatus(r.Status), r.Message)
		e.Status = r.Status
		return e

	case nil:
		return New(ServerFailure, "")

	default:
		return New(ServerFailure, fmt.Sprintf("unrecognised failure %T", raw))
	}
}

func kindForStatus(status int) Kind {
	switch {
	case IsAuthStatus(status):
		return AuthFailure
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return ValidationFailure
	default:
		return ServerFailure
	}
}

func networkMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "Calendar service is not running or refused the connection"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network error: the calendar service did not respond in time"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network error: the calendar service did not respond in time"
	}
	return "Network error: " + err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
