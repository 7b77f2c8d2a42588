package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/royals-league/rally/internal/errors"
	"github.com/royals-league/rally/pkg/commit"
	"github.com/royals-league/rally/pkg/league"
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
)

// backend holds the flags shared by the one-shot commands.
type backend struct {
	cookies []string
	token   string
	timeout time.Duration
}

func (b *backend) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&b.cookies, "cookie", nil, "Session cookie as name=value (repeatable)")
	cmd.Flags().StringVar(&b.token, "csrf-token", "", "CSRF token (default: the csrf cookie)")
	cmd.Flags().DurationVar(&b.timeout, "timeout", 0, "Request timeout (default from rally.json)")
}

// client returns an HTTP client whose jar carries the --cookie values for
// the page's origin.
func (b *backend) client(page *url.URL) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	var cookies []*http.Cookie
	for _, raw := range b.cookies {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, errors.New("R301").WithDetail("Cookie " + raw + " is not name=value")
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(page, cookies)
	return &http.Client{Jar: jar}, nil
}

// install loads the league page and wires a controller to it the same way a
// live session does, with warnings printed instead of toasts.
func (b *backend) install(ctx context.Context) (*optimistic.Controller, *league.Installation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	lc := cfg.Live()
	if b.timeout > 0 {
		lc.CommitTimeout = b.timeout
	}

	pageURL, _ := url.Parse(lc.PageURL)
	client, err := b.client(pageURL)
	if err != nil {
		return nil, nil, err
	}

	page, err := pageconfig.Fetch(ctx, client, lc.PageURL, league.PageMatcher())
	if err != nil {
		return nil, nil, errors.New("R201").
			WithDetail("Could not load " + lc.PageURL).
			WithSuggestion("Pass your session cookie with --cookie sessionid=...").
			Wrap(err)
	}

	logger := slog.Default()
	ctl := optimistic.NewController(
		optimistic.WithLogger(logger),
		optimistic.WithPolicy(lc.Policy),
		optimistic.WithTimeout(lc.CommitTimeout),
		optimistic.WithNotifier(optimistic.NotifierFunc(func(_ optimistic.ToggleAction, message string, _ error) {
			warn("%s", message)
		})),
	)

	deps := league.Deps{
		Client:     client,
		Endpoints:  lc.Endpoints,
		CookieName: lc.CookieName,
		HeaderName: lc.HeaderName,
		FormField:  lc.FormField,
		Logger:     logger,
	}
	if b.token != "" {
		deps.Token = commit.FieldToken(b.token)
	}
	inst, err := league.Install(ctl, page, deps)
	if err != nil {
		return nil, nil, err
	}
	return ctl, inst, nil
}

// dispatch runs one click and turns the outcome into a CLI result.
func dispatch(ctx context.Context, ctl *optimistic.Controller, ev optimistic.Event) (optimistic.Outcome, error) {
	out, err := ctl.Dispatch(ctx, ev)
	if err != nil {
		return out, errors.FromCommit(err)
	}
	if out.Result == optimistic.ResultIgnored {
		return out, errors.New("R202").WithDetail(fmt.Sprintf("No %s control matches %v", ev.Selector, ev.Attrs))
	}
	return out, nil
}

func availCmd() *cobra.Command {
	var b backend

	cmd := &cobra.Command{
		Use:   "avail FIXTURE STATUS",
		Short: "Set your availability for a fixture",
		Long: `Set your availability for a fixture.

STATUS is A (available) or N (not available).

Examples:
  rally avail 42 A --cookie sessionid=...
  rally avail 42 N`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, status := args[0], optimistic.State(strings.ToUpper(args[1]))
			if status != league.Available && status != league.NotAvailable {
				return errors.New("R301").WithDetail("STATUS must be A or N, got " + args[1])
			}

			ctl, _, err := b.install(cmd.Context())
			if err != nil {
				return err
			}
			out, err := dispatch(cmd.Context(), ctl, optimistic.Event{
				Selector: league.AvailabilitySelector,
				Attrs:    map[string]string{"data-fixture": fixture, "data-status": string(status)},
			})
			if err != nil {
				return err
			}
			success("Fixture %s: %s", fixture, availabilityLabel(out.Final))
			return nil
		},
	}
	b.register(cmd)
	return cmd
}

func availabilityLabel(s optimistic.State) string {
	switch s {
	case league.Available:
		return "available"
	case league.NotAvailable:
		return "not available"
	}
	return "no answer"
}

func subavailCmd() *cobra.Command {
	var b backend

	cmd := &cobra.Command{
		Use:   "subavail FIXTURE TIMESLOT",
		Short: `Toggle "available to sub" for a timeslot`,
		Long: `Toggle "available to sub" for one timeslot of a fixture.

TIMESLOT is 0830, 1000 or 1130.

Examples:
  rally subavail 42 1000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, slot := args[0], league.Timeslot(args[1])
			if !slot.Valid() {
				return errors.New("R301").WithDetail("TIMESLOT must be one of 0830, 1000, 1130")
			}

			ctl, _, err := b.install(cmd.Context())
			if err != nil {
				return err
			}
			out, err := dispatch(cmd.Context(), ctl, optimistic.Event{
				Selector: league.SubAvailabilitySelector,
				Attrs:    map[string]string{"data-fixture": fixture, "data-timeslot": string(slot)},
			})
			if err != nil {
				return err
			}
			state := "off"
			if out.Final == league.SubOn {
				state = "on"
			}
			success("Fixture %s at %s: available to sub %s", fixture, slot.Label(), state)
			return nil
		},
	}
	b.register(cmd)
	return cmd
}

func subplanCmd() *cobra.Command {
	var (
		b                         backend
		slot, target, team, notes string
	)

	cmd := &cobra.Command{
		Use:   "subplan PLAYER TIMESLOT",
		Short: "Plan a sub for a player",
		Long: `Plan a sub for a player in one timeslot.

--target is "other" (sub for another team) or "against-us" (sub for the
opponent; the team name is the fixture's opponent).

Examples:
  rally subplan 17 0830 --slot=A --target=other --team="Kings"
  rally subplan 17 1130 --slot=B --target=against-us`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetType, ok := map[string]string{
				"other":      league.TargetOtherTeam,
				"against-us": league.TargetAgainstUs,
			}[target]
			if !ok {
				return errors.New("R301").WithDetail(`--target must be "other" or "against-us"`)
			}

			_, inst, err := b.install(cmd.Context())
			if err != nil {
				return err
			}
			form := inst.Form
			form.Open(optimistic.Event{
				Selector: league.PlanSubSelector,
				Attrs:    map[string]string{"data-player": args[0], "data-timeslot": args[1]},
			})
			form.Set(league.FieldSlotCode, slot)
			form.Set(league.FieldTargetType, targetType)
			if team != "" {
				form.Set(league.FieldTeamName, team)
			}
			form.Set(league.FieldNotes, notes)

			switch err := form.Save(cmd.Context()); {
			case err == nil:
			case stderrors.Is(err, league.ErrIncomplete):
				return errors.New("R301").WithDetail(form.Error())
			default:
				return errors.FromCommit(err)
			}

			f := form.Fields()
			success("Planned player %s at %s for %s", f.PlayerID, league.Timeslot(f.Timeslot).Label(), f.TargetTeamName)
			return nil
		},
	}
	b.register(cmd)
	cmd.Flags().StringVar(&slot, "slot", "", "Slot code (required)")
	cmd.Flags().StringVar(&target, "target", "other", "Target: other or against-us")
	cmd.Flags().StringVar(&team, "team", "", "Target team name")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	return cmd
}
