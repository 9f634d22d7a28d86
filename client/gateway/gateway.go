// Package gateway is the single path every request to the calendar service
// takes. It attaches the stored bearer credential, and when the service
// rejects a credential it clears the durable session and broadcasts the
// invalidation before handing the response back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-calendar-sync/client/apierr"
	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Response is a received HTTP response, successful or not.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Failure normalises a non-2xx response. It returns nil for 2xx.
func (r *Response) Failure() *apierr.Error {
	if r.OK() {
		return nil
	}
	return apierr.Normalize(apierr.Classify(r.Status, r.Body))
}

// Sender is what the session machine and the synchronizer depend on.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) (*Response, error)
	Do(ctx context.Context, method, path string, in, out any) error
}

var _ Sender = (*Gateway)(nil)

// Gateway sends requests to the calendar service.
type Gateway struct {
	baseURL string
	client  *http.Client
	store   storage.Store
	hub     *broadcast.Hub
	log     zerolog.Logger
	nowTime func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.client = c
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.client = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// New creates a Gateway for baseURL (e.g. "http://localhost:5000/api").
func New(baseURL string, store storage.Store, hub *broadcast.Hub, options ...Option) (*Gateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[gateway.New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[gateway.New] store is required")
	}
	if hub == nil {
		return nil, errors.New("[gateway.New] invalidation hub is required")
	}

	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		store:   store,
		hub:     hub,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// BaseURL returns the normalised service root.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Send issues one request. Any HTTP response, error statuses included, is
// returned as a *Response; the error is non-nil only when no response was
// received, and is then an *apierr.Error of kind NetworkFailure.
func (g *Gateway) Send(ctx context.Context, method, path string, body any) (*Response, error) {
	req, token, err := g.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	started := g.nowTime()
	httpResp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request produced no response")
		return nil, apierr.Normalize(apierr.NoResponse{Err: err})
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, apierr.Normalize(apierr.NoResponse{Err: fmt.Errorf("reading response body: %w", err)})
	}

	resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}

	g.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.Status).
		Dur("took", g.nowTime().Sub(started)).
		Msg("request")

	if apierr.IsAuthStatus(resp.Status) {
		g.invalidate(method, path, resp.Status, token)
	}
	return resp, nil
}

// Do sends in as JSON and decodes a 2xx body into out (when out is non nil).
// Every failure is returned as an *apierr.Error.
func (g *Gateway) Do(ctx context.Context, method, path string, in, out any) error {
	resp, err := g.Send(ctx, method, path, in)
	if err != nil {
		return err
	}
	if failure := resp.Failure(); failure != nil {
		return failure
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apierr.Wrap(err, apierr.ServerFailure, "Unexpected response from %s %s", method, path)
	}
	return nil
}

// newRequest builds the request and returns the credential it carries.
func (g *Gateway) newRequest(ctx context.Context, method, path string, body any) (*http.Request, string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", apierr.Wrap(err, apierr.ValidationFailure, "Request body could not be encoded")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, "", apierr.Wrap(err, apierr.NetworkFailure, "Invalid request %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := storage.Lookup(g.store, storage.KeyToken)
	if err != nil {
		g.log.Warn().Err(err).Msg("reading stored credential failed, sending unauthenticated")
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}
	return req, token, nil
}

// invalidate clears the durable session and tells every subscriber. A
// session stored after the rejected request was built (a newer sign-in) is
// left alone.
func (g *Gateway) invalidate(method, path string, status int, sent string) {
	g.log.Warn().Str("method", method).Str("path", path).Int("status", status).Msg("credential rejected, invalidating session")

	current, err := storage.Lookup(g.store, storage.KeyToken)
	if err != nil {
		g.log.Error().Err(err).Msg("reading stored credential failed")
	}
	if current == sent || current == "" {
		if err := g.store.Clear(storage.SessionKeys...); err != nil {
			g.log.Error().Err(err).Msg("clearing stored session failed")
		}
	}

	g.hub.Broadcast(broadcast.Invalidation{
		Reason: broadcast.ReasonRejected,
		Status: status,
		Token:  sent,
		At:     g.nowTime(),
	})
}
