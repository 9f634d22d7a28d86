// Package client assembles the calendar client: one durable store, one
// invalidation hub, and the gateway, session machine and event synchronizer
// that share them.
package client

import (
	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/calendar"
	"github.com/jrsteele09/go-calendar-sync/client/gateway"
	"github.com/jrsteele09/go-calendar-sync/client/preferences"
	"github.com/jrsteele09/go-calendar-sync/client/session"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/jrsteele09/go-calendar-sync/client/storage/filestore"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// App is a wired client. Close it to detach the components from the hub and
// stop background renewal.
type App struct {
	Store       storage.Store
	Hub         *broadcast.Hub
	Gateway     *gateway.Gateway
	Session     *session.Machine
	Calendar    *calendar.Synchronizer
	Preferences *preferences.Preferences

	renewer *session.Renewer
}

type options struct {
	store    storage.Store
	log      zerolog.Logger
	gwOpts   []gateway.Option
	schedule string
}

type Option func(*options)

// WithStore replaces the file store named by the configuration.
func WithStore(s storage.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithGatewayOptions passes options through to the gateway.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) {
		o.gwOpts = append(o.gwOpts, opts...)
	}
}

// WithoutRenewal disables the background renewal schedule.
func WithoutRenewal() Option {
	return func(o *options) {
		o.schedule = ""
	}
}

// New builds an App from cfg. Background renewal is prepared but only runs
// after StartRenewal.
func New(cfg config.ClientConfig, opts ...Option) (*App, error) {
	o := &options{
		log:      zerolog.Nop(),
		schedule: cfg.GetRenewSchedule(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		fs, err := filestore.Open(cfg.GetStateFile())
		if err != nil {
			return nil, errors.Wrap(err, "[client.New] open state file")
		}
		o.store = fs
	}

	app := &App{
		Store:       o.store,
		Hub:         broadcast.NewHub(broadcast.WithLogger(o.log.With().Str("component", "broadcast").Logger())),
		Preferences: preferences.New(o.store),
	}

	gwOpts := append([]gateway.Option{
		gateway.WithTimeout(cfg.GetHTTPTimeout()),
		gateway.WithLogger(o.log.With().Str("component", "gateway").Logger()),
	}, o.gwOpts...)
	gw, err := gateway.New(cfg.GetAPIURL(), o.store, app.Hub, gwOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] gateway")
	}
	app.Gateway = gw

	app.Session, err = session.New(gw, o.store, app.Hub,
		session.WithLogger(o.log.With().Str("component", "session").Logger()))
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] session")
	}

	app.Calendar, err = calendar.New(gw, app.Session, app.Hub,
		calendar.WithLogger(o.log.With().Str("component", "calendar").Logger()))
	if err != nil {
		app.Session.Close()
		return nil, errors.Wrap(err, "[client.New] calendar")
	}

	if o.schedule != "" {
		app.renewer, err = session.NewRenewer(app.Session, o.schedule, cfg.GetHTTPTimeout())
		if err != nil {
			app.Close()
			return nil, errors.Wrapf(err, "[client.New] renew schedule %q", o.schedule)
		}
	}
	return app, nil
}

// StartRenewal begins renewing the session on the configured schedule.
func (a *App) StartRenewal() {
	if a.renewer != nil {
		a.renewer.Start()
	}
}

// Close stops renewal and detaches every component from the hub.
func (a *App) Close() {
	if a.renewer != nil {
		a.renewer.Stop()
	}
	a.Calendar.Close()
	a.Session.Close()
}

// ParseLevel maps a configured level name onto zerolog, defaulting to warn.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.WarnLevel
	}
	return level
}
