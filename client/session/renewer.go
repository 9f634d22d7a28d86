package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const defaultRenewTimeout = 15 * time.Second

// Renewer periodically renews an authenticated session on a cron schedule
// (e.g. "@every 30m"). Ticks while anonymous are skipped.
type Renewer struct {
	machine *Machine
	cron    *cron.Cron
	timeout time.Duration
	log     zerolog.Logger
}

// NewRenewer validates schedule and prepares, but does not start, the renewer.
func NewRenewer(m *Machine, schedule string, timeout time.Duration) (*Renewer, error) {
	if m == nil {
		return nil, errors.New("[session.NewRenewer] machine is required")
	}
	if timeout <= 0 {
		timeout = defaultRenewTimeout
	}

	r := &Renewer{
		machine: m,
		cron:    cron.New(),
		timeout: timeout,
		log:     m.log.With().Str("component", "renewer").Logger(),
	}
	if _, err := r.cron.AddFunc(schedule, r.Tick); err != nil {
		return nil, err
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *Renewer) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running renewal to finish.
func (r *Renewer) Stop() {
	<-r.cron.Stop().Done()
}

// Tick performs one renewal if a session is held.
func (r *Renewer) Tick() {
	if !r.machine.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.machine.Renew(ctx); err != nil {
		r.log.Warn().Err(err).Msg("scheduled renewal failed")
	}
}
