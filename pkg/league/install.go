package league

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/royals-league/rally/pkg/commit"
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
	"github.com/royals-league/rally/pkg/widget"
)

// Endpoints are the backend URLs the league controls post to.
type Endpoints struct {
	Availability    string `json:"availability"`
	SubAvailability string `json:"subAvailability"`
	SubPlanCreate   string `json:"subPlanCreate"`
}

// Merge returns e with empty fields taken from fallback.
func (e Endpoints) Merge(fallback Endpoints) Endpoints {
	if e.Availability == "" {
		e.Availability = fallback.Availability
	}
	if e.SubAvailability == "" {
		e.SubAvailability = fallback.SubAvailability
	}
	if e.SubPlanCreate == "" {
		e.SubPlanCreate = fallback.SubPlanCreate
	}
	return e
}

// PageEndpoints reads the endpoints from the page configuration elements.
func PageEndpoints(page *pageconfig.Page) Endpoints {
	if page == nil {
		return Endpoints{}
	}
	return Endpoints{
		Availability:    page.URL(ScheduleConfigID, AvailabilityURLAttr),
		SubAvailability: page.URL(ScheduleConfigID, SubAvailabilityURLAttr),
		SubPlanCreate:   page.URL(SubPlanConfigID, SubPlanCreateAttr),
	}
}

// PageMatcher keeps the elements Install needs from a parsed page.
func PageMatcher() pageconfig.Matcher {
	return pageconfig.MatchAny(
		pageconfig.MatchClasses(AvailabilitySelector, SubAvailabilitySelector, PlanSubSelector),
		IsMatrixRow,
	)
}

// Deps are the collaborators Install wires into the bindings.
type Deps struct {
	// Client performs backend requests. Its jar supplies the CSRF cookie.
	Client *http.Client

	// Token overrides the CSRF token source of every committer.
	Token commit.TokenSource

	// Endpoints override the page configuration.
	Endpoints Endpoints

	// CSRF naming; zero values use the commit package defaults.
	CookieName string
	HeaderName string
	FormField  string

	// Middleware wraps every committer, outermost first.
	Middleware []commit.Middleware

	Modal   widget.Modal
	Tooltip widget.Tooltip
	Sink    optimistic.Sink
	Logger  *slog.Logger
}

// Installation is what Install wired up.
type Installation struct {
	Endpoints Endpoints
	Form      *SubPlanForm
	Counts    map[Timeslot]int

	// Seeded is the number of controls seeded from the page.
	Seeded int
}

// Install registers the league bindings on ctl and seeds every control
// rendered on page. Missing endpoints are not an error here: the affected
// controls fail each dispatch with a configuration error instead.
func Install(ctl *optimistic.Controller, page *pageconfig.Page, deps Deps) (*Installation, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := deps.Client
	if client == nil {
		client = http.DefaultClient
	}

	endpoints := deps.Endpoints.Merge(PageEndpoints(page))

	var cookie commit.TokenSource = commit.CookieToken{Jar: client.Jar, Name: deps.CookieName}
	jsonToken, formToken := cookie, cookie
	if page != nil && page.CSRFField != "" {
		formToken = commit.FirstToken{commit.FieldToken(page.CSRFField), cookie}
	}
	if deps.Token != nil {
		jsonToken, formToken = deps.Token, deps.Token
	}

	base := []commit.Option{commit.WithClient(client), commit.WithLogger(logger)}
	if deps.HeaderName != "" {
		base = append(base, commit.WithHeader(deps.HeaderName))
	}
	if deps.FormField != "" {
		base = append(base, commit.WithFormField(deps.FormField))
	}
	with := func(extra ...commit.Option) []commit.Option {
		return append(append([]commit.Option(nil), base...), extra...)
	}

	avail := commit.NewHTTP(endpoints.Availability, "availability endpoint",
		with(commit.WithToken(jsonToken), commit.WithJSON(AvailabilityBody))...)
	sub := commit.NewHTTP(endpoints.SubAvailability, "sub availability endpoint",
		with(commit.WithToken(jsonToken), commit.WithJSON(SubAvailabilityBody))...)
	plan := commit.NewHTTP(endpoints.SubPlanCreate, "sub plan endpoint",
		with(commit.WithToken(formToken), commit.WithForm(SubPlanBody))...)

	if err := ctl.Register(AvailabilitySelector, Availability(commit.Chain(avail, deps.Middleware...))); err != nil {
		return nil, fmt.Errorf("register availability: %w", err)
	}
	if err := ctl.Register(SubAvailabilitySelector, SubAvailability(commit.Chain(sub, deps.Middleware...))); err != nil {
		return nil, fmt.Errorf("register sub availability: %w", err)
	}

	inst := &Installation{Endpoints: endpoints}

	opponent := ""
	var nodes []pageconfig.Node
	if page != nil {
		nodes = page.Nodes
		if n, ok := page.ByID(OpponentID); ok {
			opponent = n.Attr(OpponentAttr)
		}
	}
	inst.Form = NewSubPlanForm(commit.Chain(plan, deps.Middleware...),
		WithModal(deps.Modal),
		WithTooltip(deps.Tooltip),
		WithFormSink(deps.Sink),
		WithOpponent(opponent),
		WithFormLogger(logger))

	for fixture, s := range SeedAvailability(nodes) {
		if err := ctl.Seed(AvailabilitySelector, availabilityKey(fixture), s); err != nil {
			return nil, err
		}
		inst.Seeded++
	}
	for k, s := range SeedSubAvailability(nodes) {
		if err := ctl.Seed(SubAvailabilitySelector, subAvailabilityKey(k.Fixture, k.Timeslot), s); err != nil {
			return nil, err
		}
		inst.Seeded++
	}

	inst.Counts = Counts(nodes)
	if deps.Sink != nil {
		deps.Sink.Render("counts", CountElements(inst.Counts))
	}

	logger.Debug("league controls installed",
		"seeded", inst.Seeded,
		"availability", endpoints.Availability,
		"sub_availability", endpoints.SubAvailability,
		"sub_plan", endpoints.SubPlanCreate)
	return inst, nil
}
