package league

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/widget"
)

// Sub-plan targets.
const (
	TargetOtherTeam = "OTHER_TEAM"
	TargetAgainstUs = "AGAINST_US"
)

// Form field names, as posted to the create endpoint.
const (
	FieldPlayerID   = "player_id"
	FieldPlayer     = "player"
	FieldTimeslot   = "timeslot"
	FieldSlotCode   = "slot_code"
	FieldTargetType = "target_type"
	FieldTeamName   = "target_team_name"
	FieldNotes      = "notes"
)

// MsgIncomplete is shown when the required fields are not filled in.
const MsgIncomplete = "Please choose Slot and Target."

// DefaultOpponent prefills the team name when the page names no opponent.
const DefaultOpponent = "Opponent"

// PlannedText replaces a matrix cell once a sub plan is saved.
const PlannedText = "sub ✓"

// PlannedHint is the tooltip on a planned cell.
const PlannedHint = "Sub already planned"

var (
	// ErrIncomplete is returned by Save when required fields are missing.
	ErrIncomplete = errors.New("league: sub plan is incomplete")

	// ErrSaving is returned by Save while a previous save is in flight.
	ErrSaving = errors.New("league: sub plan save already in progress")
)

// Form render keys.
const (
	formKey optimistic.Key = "subplan:form"
)

// SubPlanFields are the values of the sub-plan form.
type SubPlanFields struct {
	PlayerID       string `json:"player_id"`
	Timeslot       string `json:"timeslot"`
	SlotCode       string `json:"slot_code"`
	TargetType     string `json:"target_type"`
	TargetTeamName string `json:"target_team_name"`
	Notes          string `json:"notes"`

	// TeamLocked is set while the target is AGAINST_US: the team name is
	// the fixture opponent and cannot be edited.
	TeamLocked bool `json:"team_locked"`
}

func (f SubPlanFields) complete() bool {
	return f.PlayerID != "" && f.Timeslot != "" && f.SlotCode != "" && f.TargetType != ""
}

// Values encodes the fields as the create endpoint expects them. The player
// id is sent twice, as player_id and player.
func (f SubPlanFields) Values() url.Values {
	v := url.Values{}
	v.Set(FieldPlayerID, f.PlayerID)
	v.Set(FieldPlayer, f.PlayerID)
	v.Set(FieldTimeslot, f.Timeslot)
	v.Set(FieldSlotCode, f.SlotCode)
	v.Set(FieldTargetType, f.TargetType)
	v.Set(FieldTeamName, f.TargetTeamName)
	v.Set(FieldNotes, f.Notes)
	return v
}

// SubPlanBody is the form body of a sub-plan create request.
func SubPlanBody(a optimistic.ToggleAction) url.Values {
	v := url.Values{}
	for _, name := range []string{FieldPlayerID, FieldPlayer, FieldTimeslot, FieldSlotCode, FieldTargetType, FieldTeamName, FieldNotes} {
		v.Set(name, a.Field(name))
	}
	return v
}

type cellKey struct {
	player   string
	timeslot string
}

// SubPlanForm is the "plan a sub" modal of the availability matrix. Unlike
// the toggles it is not optimistic: the matrix cell only changes once the
// server has accepted the plan.
type SubPlanForm struct {
	committer optimistic.Committer
	modal     widget.Modal
	tooltip   widget.Tooltip
	sink      optimistic.Sink
	opponent  string
	logger    *slog.Logger

	mu      sync.Mutex
	fields  SubPlanFields
	saving  bool
	errText string
	planned map[cellKey]bool
}

// SubPlanOption configures a SubPlanForm.
type SubPlanOption func(*SubPlanForm)

// WithModal sets the modal the form lives in.
func WithModal(m widget.Modal) SubPlanOption {
	return func(f *SubPlanForm) { f.modal = m }
}

// WithTooltip sets where the planned-cell hint is shown.
func WithTooltip(t widget.Tooltip) SubPlanOption {
	return func(f *SubPlanForm) { f.tooltip = t }
}

// WithFormSink sets where form and cell projections are rendered.
func WithFormSink(s optimistic.Sink) SubPlanOption {
	return func(f *SubPlanForm) { f.sink = s }
}

// WithOpponent sets the fixture opponent used for AGAINST_US plans.
func WithOpponent(name string) SubPlanOption {
	return func(f *SubPlanForm) { f.opponent = name }
}

// WithFormLogger sets the structured logger.
func WithFormLogger(l *slog.Logger) SubPlanOption {
	return func(f *SubPlanForm) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewSubPlanForm creates a form that saves through c.
func NewSubPlanForm(c optimistic.Committer, opts ...SubPlanOption) *SubPlanForm {
	f := &SubPlanForm{
		committer: c,
		logger:    slog.Default(),
		planned:   make(map[cellKey]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.opponent == "" {
		f.opponent = DefaultOpponent
	}
	return f
}

// Open prefills the form from a plan-sub link and shows the modal. Links
// without a player or timeslot are ignored.
func (f *SubPlanForm) Open(ev optimistic.Event) bool {
	player, timeslot := ev.Attr("data-player"), ev.Attr("data-timeslot")
	if player == "" || timeslot == "" {
		return false
	}

	f.mu.Lock()
	f.fields = SubPlanFields{
		PlayerID:   player,
		Timeslot:   timeslot,
		TargetType: TargetOtherTeam,
	}
	f.errText = ""
	f.applyTarget()
	f.renderForm()
	f.mu.Unlock()

	if f.modal != nil {
		f.modal.Show()
	}
	return true
}

// Set updates one editable field. Edits to a locked team name are ignored.
func (f *SubPlanForm) Set(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldSlotCode:
		f.fields.SlotCode = value
	case FieldTargetType:
		f.fields.TargetType = value
		f.applyTarget()
	case FieldTeamName:
		if !f.fields.TeamLocked {
			f.fields.TargetTeamName = value
		}
	case FieldNotes:
		f.fields.Notes = value
	default:
		return
	}
	f.renderForm()
}

// applyTarget locks the team name to the opponent for AGAINST_US. The caller
// holds f.mu.
func (f *SubPlanForm) applyTarget() {
	if f.fields.TargetType == TargetAgainstUs {
		if f.fields.TargetTeamName == "" {
			f.fields.TargetTeamName = f.opponent
		}
		f.fields.TeamLocked = true
		return
	}
	f.fields.TeamLocked = false
}

// Save validates the form and posts it. The save button stays disabled
// until the request completes; a second Save in the meantime returns
// ErrSaving without sending anything.
func (f *SubPlanForm) Save(ctx context.Context) error {
	f.mu.Lock()
	if f.saving {
		f.mu.Unlock()
		return ErrSaving
	}
	if !f.fields.complete() {
		f.errText = MsgIncomplete
		f.renderForm()
		f.mu.Unlock()
		return ErrIncomplete
	}
	f.saving = true
	f.errText = ""
	fields := f.fields
	f.renderForm()
	f.mu.Unlock()

	values := fields.Values()
	a := optimistic.ToggleAction{
		ID:        uuid.New(),
		Key:       optimistic.Key("subplan:" + fields.PlayerID + ":" + fields.Timeslot),
		Selector:  PlanSubSelector,
		SubjectID: fields.PlayerID,
		Desired:   "planned",
		Fields:    make(map[string]string, len(values)),
		Started:   time.Now(),
	}
	for name := range values {
		a.Fields[name] = values.Get(name)
	}

	err := f.committer.Commit(ctx, a)

	f.mu.Lock()
	f.saving = false
	if err != nil {
		f.errText = subPlanMessage(err)
		f.logger.Warn("sub plan save failed",
			"player", fields.PlayerID,
			"timeslot", fields.Timeslot,
			"action", a.ID,
			"error", err)
		f.renderForm()
		f.mu.Unlock()
		return err
	}
	f.planned[cellKey{fields.PlayerID, fields.Timeslot}] = true
	f.renderForm()
	f.renderCell(fields.PlayerID, fields.Timeslot)
	f.mu.Unlock()

	f.logger.Debug("sub plan saved", "player", fields.PlayerID, "timeslot", fields.Timeslot, "action", a.ID)
	if f.modal != nil {
		f.modal.Hide()
	}
	if f.tooltip != nil {
		f.tooltip.Show(cellTarget(fields.PlayerID, fields.Timeslot), PlannedHint)
	}
	return nil
}

func subPlanMessage(err error) string {
	var rej *optimistic.RejectedError
	switch {
	case errors.As(err, &rej):
		if rej.Message != "" {
			return rej.Message
		}
		return fmt.Sprintf("Failed (%d)", rej.Status)
	case optimistic.Classify(err) == optimistic.KindConfig:
		return err.Error()
	}
	return "Unable to save sub plan"
}

// Fields returns the current form values.
func (f *SubPlanForm) Fields() SubPlanFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Error returns the inline error text, or "".
func (f *SubPlanForm) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errText
}

// Saving reports whether a save is in flight.
func (f *SubPlanForm) Saving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saving
}

// Planned reports whether a sub plan was saved for the cell.
func (f *SubPlanForm) Planned(player, timeslot string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planned[cellKey{player, timeslot}]
}

var errorBoxStyle = optimistic.Style{On: "d-block", Off: "d-none"}

func flag(on bool) string {
	if on {
		return "disabled"
	}
	return ""
}

// renderForm projects the form state. The caller holds f.mu.
func (f *SubPlanForm) renderForm() {
	if f.sink == nil {
		return
	}
	f.sink.Render(formKey, []optimistic.Element{
		{
			Target:  "#ps-error",
			Classes: errorBoxStyle.Classes(f.errText != ""),
			Text:    f.errText,
		},
		{
			Target: "#ps-save",
			Attrs:  map[string]string{"disabled": flag(f.saving)},
		},
		{
			Target: "#ps-target-team",
			Attrs: map[string]string{
				"disabled": flag(f.fields.TeamLocked),
				"value":    f.fields.TargetTeamName,
			},
		},
	})
}

// renderCell replaces the matrix cell with the planned badge. The caller
// holds f.mu.
func (f *SubPlanForm) renderCell(player, timeslot string) {
	if f.sink == nil {
		return
	}
	key := optimistic.Key("subplan:" + player + ":" + timeslot)
	f.sink.Render(key, []optimistic.Element{{
		Target:  cellTarget(player, timeslot),
		Classes: []string{"badge", "bg-primary-subtle", "text-primary"},
		Attrs:   map[string]string{"title": PlannedHint},
		Text:    PlannedText,
	}})
}

func cellTarget(player, timeslot string) string {
	return fmt.Sprintf("tr[data-pid=%q] td[data-timeslot=%q]", player, timeslot)
}
