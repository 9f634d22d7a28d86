package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-calendar-sync/client"
	"github.com/jrsteele09/go-calendar-sync/client/calendar"
	"github.com/jrsteele09/go-calendar-sync/client/preferences"
	"github.com/jrsteele09/go-calendar-sync/client/session"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/jrsteele09/go-calendar-sync/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const usage = `usage: calendar <command> [flags]

commands:
  register  -name -email [-password]
  login     -email [-password]
  logout
  renew
  whoami
  list
  create    -title -start -end [-notes]
  update    -id [-title] [-start] [-end] [-notes]
  delete    -id
  export    [-o file.ics]
  prefs     [-locale tag] [-theme light|dark|system] [-toggle-theme]
  watch     keep the session renewed until interrupted

times are RFC 3339, e.g. 2024-05-01T09:00:00Z`

type command func(ctx context.Context, app *client.App, args []string, out io.Writer) error

var commands = map[string]command{
	"register": runRegister,
	"login":    runLogin,
	"logout":   runLogout,
	"renew":    runRenew,
	"whoami":   runWhoami,
	"list":     runList,
	"create":   runCreate,
	"update":   runUpdate,
	"delete":   runDelete,
	"export":   runExport,
	"prefs":    runPrefs,
	"watch":    runWatch,
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprintln(out, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}

	cfg := config.NewClient()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(client.ParseLevel(cfg.GetLogLevel())).
		With().Timestamp().Logger()

	app, err := client.New(cfg, client.WithLogger(logger))
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, app, args[1:], out)
}

func readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("CALENDAR_PASSWORD"); env != "" {
		return env, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: use -password or CALENDAR_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return string(raw), err
}

func runRegister(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := readPassword(*password)
	if err != nil {
		return err
	}
	if err := app.Session.Register(ctx, session.Profile{Name: *name, Email: *email, Password: pw}); err != nil {
		return err
	}
	return runWhoami(ctx, app, nil, out)
}

func runLogin(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := readPassword(*password)
	if err != nil {
		return err
	}
	if err := app.Session.Login(ctx, session.Credentials{Email: *email, Password: pw}); err != nil {
		return err
	}
	return runWhoami(ctx, app, nil, out)
}

func runLogout(_ context.Context, app *client.App, _ []string, out io.Writer) error {
	app.Session.Logout()
	fmt.Fprintln(out, "signed out")
	return nil
}

func runRenew(ctx context.Context, app *client.App, _ []string, out io.Writer) error {
	if err := app.Session.Renew(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "session renewed")
	return nil
}

func runWhoami(_ context.Context, app *client.App, _ []string, out io.Writer) error {
	id := app.Session.Identity()
	if id == nil {
		fmt.Fprintln(out, "not signed in")
		return nil
	}
	fmt.Fprintf(out, "%s <%s> %s\n", id.DisplayName, id.Email, id.AccentColor)
	return nil
}

func runList(ctx context.Context, app *client.App, _ []string, out io.Writer) error {
	events, err := app.Calendar.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tTITLE\tCOLOR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Start.Local().Format(time.DateTime), e.End.Local().Format(time.DateTime), e.Title, e.Color)
	}
	return tw.Flush()
}

func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: %w", name, err)
	}
	return t, nil
}

func runCreate(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	title := fs.String("title", "", "event title")
	start := fs.String("start", "", "start time")
	end := fs.String("end", "", "end time")
	notes := fs.String("notes", "", "notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	startAt, err := parseTime("start", *start)
	if err != nil {
		return err
	}
	endAt, err := parseTime("end", *end)
	if err != nil {
		return err
	}
	e, err := app.Calendar.Create(ctx, calendar.Draft{Title: *title, Start: startAt, End: endAt, Notes: *notes})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s\n", e.ID)
	return nil
}

func runUpdate(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	id, patch, err := parseUpdateFlags(args)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return errors.New("nothing to update")
	}

	// Load the current record so the merged times can be checked locally.
	if _, err := app.Calendar.FetchAll(ctx); err != nil {
		return err
	}
	e, err := app.Calendar.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %s\n", e.ID)
	return nil
}

// parseUpdateFlags builds the patch for update. Notes are sent whenever
// -notes is given, so -notes "" clears them.
func parseUpdateFlags(args []string) (string, calendar.Patch, error) {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	title := fs.String("title", "", "new title")
	start := fs.String("start", "", "new start time")
	end := fs.String("end", "", "new end time")
	notes := fs.String("notes", "", "new notes, empty to clear")
	if err := fs.Parse(args); err != nil {
		return "", calendar.Patch{}, err
	}
	startAt, err := parseTime("start", *start)
	if err != nil {
		return "", calendar.Patch{}, err
	}
	endAt, err := parseTime("end", *end)
	if err != nil {
		return "", calendar.Patch{}, err
	}

	patch := calendar.Patch{
		Title: utils.NonEmpty(*title),
		Start: utils.NonZeroTime(startAt),
		End:   utils.NonZeroTime(endAt),
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "notes" {
			patch.Notes = utils.Ptr(*notes)
		}
	})
	return *id, patch, nil
}

func runDelete(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := app.Calendar.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", *id)
	return nil
}

func runExport(ctx context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("o", "", "write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	events, err := app.Calendar.FetchAll(ctx)
	if err != nil {
		return err
	}
	if *path == "" {
		return calendar.ExportICS(out, events, time.Now())
	}
	f, err := os.Create(*path)
	if err != nil {
		return err
	}
	if err := calendar.ExportICS(f, events, time.Now()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d events to %s\n", len(events), *path)
	return nil
}

func runPrefs(_ context.Context, app *client.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	locale := fs.String("locale", "", "preferred locale (en, es, pt, fr, it)")
	theme := fs.String("theme", "", "light, dark or system")
	toggle := fs.Bool("toggle-theme", false, "switch between light and dark")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prefs := app.Preferences
	if *locale != "" {
		if _, err := prefs.SetLocale(*locale); err != nil {
			return err
		}
	}
	if *theme != "" {
		if err := prefs.SetTheme(preferences.Theme(strings.ToLower(*theme))); err != nil {
			return err
		}
	}
	if *toggle {
		if _, err := prefs.ToggleTheme(); err != nil {
			return err
		}
	}

	tag, err := prefs.Locale()
	if err != nil {
		return err
	}
	current, err := prefs.Theme()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "locale: %s\ntheme:  %s\n", tag, current)
	return nil
}

func runWatch(ctx context.Context, app *client.App, _ []string, out io.Writer) error {
	if !app.Session.IsAuthenticated() {
		return errors.New("not signed in")
	}
	unsubscribe := app.Session.Subscribe(func(s session.State) {
		fmt.Fprintf(out, "session %s\n", s.Status)
	})
	defer unsubscribe()

	app.StartRenewal()
	fmt.Fprintln(out, "renewing session in the background, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
