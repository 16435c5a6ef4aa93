// Package integrity tracks a candidate's behaviour while a mission attempt
// is open and builds the submission that carries it.
//
// The signal is advisory. It is collected on the candidate's machine and a
// motivated candidate can suppress it; the tab-switch count is a hint for a
// human grader, not proctoring evidence.
package integrity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultLanguage is used when neither the drafts nor the editor name one.
const DefaultLanguage = "python"

// warningTTL is how long a clipboard warning stays visible.
const warningTTL = 3 * time.Second

var (
	ErrEmptySubmission  = errors.New("integrity: submission text is empty")
	ErrSubmitInFlight   = errors.New("integrity: a submission is already in flight")
	ErrAlreadySubmitted = errors.New("integrity: attempt already submitted")
	ErrNotActive        = errors.New("integrity: attempt is not active")
	ErrMissingUser      = errors.New("integrity: user id is required")
)

// State is where a Tracker sits in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateWarned
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateWarned:
		return "warned"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Visibility is the page visibility reported by the host.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
)

// ClipboardAction is an editor gesture that the tracker blocks.
type ClipboardAction int

const (
	Copy ClipboardAction = iota
	Paste
	ContextMenu
)

func (a ClipboardAction) message() string {
	switch a {
	case Copy:
		return "Copy is not allowed"
	case Paste:
		return "Paste is not allowed"
	default:
		return "Right-click is disabled"
	}
}

// ClipboardResult tells the editor whether to cancel the default action.
type ClipboardResult struct {
	Prevented bool
	Message   string
}

// Signal is a snapshot of what has been collected so far.
type Signal struct {
	State          State
	TabSwitchCount int
	Code           string
	Language       string
}

// SubmitRequest is the body of POST /api/submissions.
type SubmitRequest struct {
	SubmissionText string `json:"submissionText"`
	Code           string `json:"code"`
	Language       string `json:"language"`
	MissionID      string `json:"missionId"`
	UserID         string `json:"userId"`
	TabSwitchCount int    `json:"tabSwitchCount"`
}

// Receipt identifies the stored submission; the feedback view is keyed by ID.
type Receipt struct {
	ID string `json:"id"`
}

// SubmissionAPI sends a submission to the server.
type SubmissionAPI interface {
	Submit(ctx context.Context, req SubmitRequest) (*Receipt, error)
}

// Cue is called once per counted tab switch. Terminals ring the bell,
// browsers vibrate.
type Cue func()

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now. Tests use it to expire warnings.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithCue sets the tab-switch cue.
func WithCue(cue Cue) Option {
	return func(t *Tracker) { t.cue = cue }
}

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// Tracker is the state machine for one mission attempt:
//
//	Idle --Mount--> Active --hide/show--> Warned --Acknowledge--> Active
//	Active|Warned --Submit ok--> Submitted
//
// Every method is safe for concurrent use; event handlers never block on
// the network.
type Tracker struct {
	missionID string
	drafts    DraftStore
	now       func() time.Time
	cue       Cue
	logger    *slog.Logger

	mu           sync.Mutex
	state        State
	wasVisible   bool
	tabSwitches  int
	code         string
	language     string
	warning      string
	warningUntil time.Time
	submitting   bool
}

func NewTracker(missionID string, drafts DraftStore, opts ...Option) *Tracker {
	t := &Tracker{
		missionID: missionID,
		drafts:    drafts,
		now:       time.Now,
		cue:       func() {},
		logger:    slog.Default(),
		language:  DefaultLanguage,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mount starts the attempt, resuming code and language from the drafts.
func (t *Tracker) Mount(ctx context.Context) error {
	code, hasCode, err := t.drafts.Load(ctx, CodeKey(t.missionID))
	if err != nil {
		return err
	}
	lang, hasLang, err := t.drafts.Load(ctx, LanguageKey(t.missionID))
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle {
		return ErrNotActive
	}
	if hasCode {
		t.code = code
	}
	if hasLang && lang != "" {
		t.language = lang
	}
	t.state = StateActive
	t.wasVisible = true
	t.tabSwitches = 0
	return nil
}

// Visibility feeds a page visibility change. It reports whether the event
// completed a hide/show round trip and was counted.
func (t *Tracker) Visibility(v Visibility) bool {
	t.mu.Lock()
	if !t.collecting() {
		t.mu.Unlock()
		return false
	}
	if v == Hidden {
		t.wasVisible = false
		t.mu.Unlock()
		return false
	}
	if t.wasVisible {
		t.mu.Unlock()
		return false
	}
	t.wasVisible = true
	t.tabSwitches++
	t.state = StateWarned
	cue := t.cue
	t.mu.Unlock()

	cue()
	return true
}

// Acknowledge dismisses the tab-switch warning. The count is kept.
func (t *Tracker) Acknowledge() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateWarned {
		return false
	}
	t.state = StateActive
	return true
}

// Clipboard intercepts copy, paste and the context menu in the editors.
// While collecting, the action is always prevented and a warning is shown.
func (t *Tracker) Clipboard(a ClipboardAction) ClipboardResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.collecting() {
		return ClipboardResult{}
	}
	msg := a.message()
	t.warning = msg
	t.warningUntil = t.now().Add(warningTTL)
	return ClipboardResult{Prevented: true, Message: msg}
}

// Warning returns the clipboard warning while it is still visible.
func (t *Tracker) Warning() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.warning == "" || !t.now().Before(t.warningUntil) {
		return "", false
	}
	return t.warning, true
}

// Edit mirrors the editor contents to memory and the draft store.
func (t *Tracker) Edit(ctx context.Context, code string) error {
	t.mu.Lock()
	if !t.collecting() {
		t.mu.Unlock()
		return nil
	}
	t.code = code
	t.mu.Unlock()
	return t.drafts.Save(ctx, CodeKey(t.missionID), code)
}

// SetLanguage records the chosen language and saves it as a draft.
func (t *Tracker) SetLanguage(ctx context.Context, language string) error {
	t.mu.Lock()
	if !t.collecting() {
		t.mu.Unlock()
		return nil
	}
	t.language = language
	t.mu.Unlock()
	return t.drafts.Save(ctx, LanguageKey(t.missionID), language)
}

// Signal returns a snapshot of the collected state.
func (t *Tracker) Signal() Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Signal{
		State:          t.state,
		TabSwitchCount: t.tabSwitches,
		Code:           t.code,
		Language:       t.language,
	}
}

// Submit sends the attempt once. Code and language are re-read from the
// drafts so that the last persisted edit wins over the in-memory copy.
// A failed call leaves the attempt and the drafts as they were so the
// candidate can retry.
func (t *Tracker) Submit(ctx context.Context, api SubmissionAPI, userID, text string) (*Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptySubmission
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	t.mu.Lock()
	switch {
	case t.state == StateSubmitted:
		t.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case !t.collecting():
		t.mu.Unlock()
		return nil, ErrNotActive
	case t.submitting:
		t.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	t.submitting = true
	req := SubmitRequest{
		SubmissionText: text,
		Code:           t.code,
		Language:       t.language,
		MissionID:      t.missionID,
		UserID:         userID,
		TabSwitchCount: t.tabSwitches,
	}
	t.mu.Unlock()

	t.freshenFromDrafts(ctx, &req)

	receipt, err := api.Submit(ctx, req)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitting = false
	if err != nil {
		return nil, err
	}
	t.state = StateSubmitted
	return receipt, nil
}

func (t *Tracker) freshenFromDrafts(ctx context.Context, req *SubmitRequest) {
	if code, ok, err := t.drafts.Load(ctx, CodeKey(t.missionID)); err != nil {
		t.logger.WarnContext(ctx, "reading code draft failed",
			slog.String("missionID", t.missionID), slog.String("error", err.Error()))
	} else if ok && code != "" {
		req.Code = code
	}
	if lang, ok, err := t.drafts.Load(ctx, LanguageKey(t.missionID)); err != nil {
		t.logger.WarnContext(ctx, "reading language draft failed",
			slog.String("missionID", t.missionID), slog.String("error", err.Error()))
	} else if ok && lang != "" {
		req.Language = lang
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
}

// collecting reports whether events are being observed. Caller holds mu.
func (t *Tracker) collecting() bool {
	return t.state == StateActive || t.state == StateWarned
}
