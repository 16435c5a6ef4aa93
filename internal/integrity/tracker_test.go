package integrity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =========================================================================
// FAKES
// =========================================================================

// recordingAPI captures every request; err is returned when set.
type recordingAPI struct {
	mu       sync.Mutex
	requests []SubmitRequest
	err      error
	release  chan struct{} // when non-nil, Submit blocks until closed
	entered  chan struct{}
}

func (a *recordingAPI) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	if a.release != nil {
		close(a.entered)
		<-a.release
	}
	if a.err != nil {
		return nil, a.err
	}
	return &Receipt{ID: "sub-1"}, nil
}

func (a *recordingAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMountedTracker(t *testing.T, drafts DraftStore, opts ...Option) *Tracker {
	t.Helper()
	tr := NewTracker("m-42", drafts, opts...)
	require.NoError(t, tr.Mount(context.Background()))
	return tr
}

// =========================================================================
// TAB SWITCH TESTS
// =========================================================================

func TestVisibility_CountsCompleteRoundTrips(t *testing.T) {
	var cues atomic.Int32
	tr := newMountedTracker(t, NewMemoryDrafts(), WithCue(func() { cues.Add(1) }))

	events := []Visibility{Visible, Hidden, Visible, Hidden, Visible}
	var counted []bool
	for _, e := range events {
		counted = append(counted, tr.Visibility(e))
	}

	assert.Equal(t, []bool{false, false, true, false, true}, counted)
	assert.Equal(t, 2, tr.Signal().TabSwitchCount)
	assert.Equal(t, int32(2), cues.Load())
}

func TestVisibility_RepeatedHiddenCountsOnce(t *testing.T) {
	tr := newMountedTracker(t, NewMemoryDrafts())

	tr.Visibility(Hidden)
	tr.Visibility(Hidden)
	tr.Visibility(Visible)
	tr.Visibility(Visible)

	assert.Equal(t, 1, tr.Signal().TabSwitchCount)
}

func TestVisibility_WarnAndAcknowledge(t *testing.T) {
	tr := newMountedTracker(t, NewMemoryDrafts())
	assert.False(t, tr.Acknowledge(), "nothing to acknowledge yet")

	tr.Visibility(Hidden)
	tr.Visibility(Visible)
	assert.Equal(t, StateWarned, tr.Signal().State)

	// A second round trip while the warning is still up also counts.
	tr.Visibility(Hidden)
	tr.Visibility(Visible)

	assert.True(t, tr.Acknowledge())
	sig := tr.Signal()
	assert.Equal(t, StateActive, sig.State)
	assert.Equal(t, 2, sig.TabSwitchCount, "acknowledging must not reset the count")
}

func TestVisibility_IgnoredBeforeMount(t *testing.T) {
	tr := NewTracker("m-42", NewMemoryDrafts())

	tr.Visibility(Hidden)
	assert.False(t, tr.Visibility(Visible))
	assert.Equal(t, StateIdle, tr.Signal().State)
	assert.Zero(t, tr.Signal().TabSwitchCount)
}

// =========================================================================
// CLIPBOARD TESTS
// =========================================================================

func TestClipboard_PreventedWithoutCounting(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := newMountedTracker(t, NewMemoryDrafts(), WithClock(clock.Now))

	tests := []struct {
		action ClipboardAction
		msg    string
	}{
		{Paste, "Paste is not allowed"},
		{Copy, "Copy is not allowed"},
		{ContextMenu, "Right-click is disabled"},
	}
	for _, tc := range tests {
		res := tr.Clipboard(tc.action)
		assert.True(t, res.Prevented)
		assert.Equal(t, tc.msg, res.Message)
	}

	sig := tr.Signal()
	assert.Zero(t, sig.TabSwitchCount)
	assert.Equal(t, StateActive, sig.State)
}

func TestClipboard_WarningExpiresAfterThreeSeconds(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := newMountedTracker(t, NewMemoryDrafts(), WithClock(clock.Now))

	_, ok := tr.Warning()
	assert.False(t, ok)

	tr.Clipboard(Paste)
	msg, ok := tr.Warning()
	assert.True(t, ok)
	assert.Equal(t, "Paste is not allowed", msg)

	clock.Advance(2999 * time.Millisecond)
	_, ok = tr.Warning()
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = tr.Warning()
	assert.False(t, ok)
}

func TestClipboard_AllowedAfterSubmit(t *testing.T) {
	tr := newMountedTracker(t, NewMemoryDrafts())
	_, err := tr.Submit(context.Background(), &recordingAPI{}, "u-1", "done")
	require.NoError(t, err)

	assert.False(t, tr.Clipboard(Paste).Prevented)
}

// =========================================================================
// DRAFT TESTS
// =========================================================================

func TestMount_ResumesDrafts(t *testing.T) {
	ctx := context.Background()
	drafts := NewMemoryDrafts()
	require.NoError(t, drafts.Save(ctx, CodeKey("m-42"), "print(2)"))
	require.NoError(t, drafts.Save(ctx, LanguageKey("m-42"), "javascript"))

	tr := newMountedTracker(t, drafts)

	sig := tr.Signal()
	assert.Equal(t, "print(2)", sig.Code)
	assert.Equal(t, "javascript", sig.Language)
	assert.ErrorIs(t, tr.Mount(ctx), ErrNotActive, "second mount of the same attempt")
}

func TestEdit_PersistsToDrafts(t *testing.T) {
	ctx := context.Background()
	drafts := NewMemoryDrafts()
	tr := newMountedTracker(t, drafts)

	require.NoError(t, tr.Edit(ctx, "x = 1"))
	require.NoError(t, tr.SetLanguage(ctx, "javascript"))

	code, ok, _ := drafts.Load(ctx, "interview_m-42_code")
	assert.True(t, ok)
	assert.Equal(t, "x = 1", code)
	lang, _, _ := drafts.Load(ctx, "interview_m-42_language")
	assert.Equal(t, "javascript", lang)
}

func TestSQLiteDrafts_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drafts.db")

	first, err := OpenSQLiteDrafts(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, CodeKey("7"), "v1"))
	require.NoError(t, first.Save(ctx, CodeKey("7"), "v2"))
	require.NoError(t, first.Close())

	second, err := OpenSQLiteDrafts(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Load(ctx, CodeKey("7"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	_, ok, err = second.Load(ctx, LanguageKey("7"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// =========================================================================
// SUBMIT TESTS
// =========================================================================

func TestSubmit_EmptyTextMakesNoCall(t *testing.T) {
	api := &recordingAPI{}
	tr := newMountedTracker(t, NewMemoryDrafts())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := tr.Submit(context.Background(), api, "u-1", text)
		assert.ErrorIs(t, err, ErrEmptySubmission)
	}
	assert.Zero(t, api.calls())
	assert.Equal(t, StateActive, tr.Signal().State)
}

func TestSubmit_ThreeTabSwitchesEndToEnd(t *testing.T) {
	ctx := context.Background()
	api := &recordingAPI{}
	tr := newMountedTracker(t, NewMemoryDrafts())

	for range 3 {
		tr.Visibility(Hidden)
		tr.Visibility(Visible)
		tr.Acknowledge()
	}
	require.NoError(t, tr.SetLanguage(ctx, "python"))
	require.NoError(t, tr.Edit(ctx, "print(0)"))
	require.NoError(t, tr.Edit(ctx, "print(1)"))

	receipt, err := tr.Submit(ctx, api, "u-1", "done")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", receipt.ID)

	require.Equal(t, 1, api.calls())
	assert.Equal(t, SubmitRequest{
		SubmissionText: "done",
		Code:           "print(1)",
		Language:       "python",
		MissionID:      "m-42",
		UserID:         "u-1",
		TabSwitchCount: 3,
	}, api.requests[0])
	assert.Equal(t, StateSubmitted, tr.Signal().State)

	// Nothing is collected after the attempt is submitted.
	tr.Visibility(Hidden)
	tr.Visibility(Visible)
	assert.Equal(t, 3, tr.Signal().TabSwitchCount)
	_, err = tr.Submit(ctx, api, "u-1", "again")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmit_DraftsOverrideMemory(t *testing.T) {
	ctx := context.Background()
	drafts := NewMemoryDrafts()
	api := &recordingAPI{}
	tr := newMountedTracker(t, drafts)
	require.NoError(t, tr.Edit(ctx, "stale"))

	// Another editor window wrote a newer draft.
	require.NoError(t, drafts.Save(ctx, CodeKey("m-42"), "fresh"))

	_, err := tr.Submit(ctx, api, "u-1", "done")
	require.NoError(t, err)
	assert.Equal(t, "fresh", api.requests[0].Code)
	assert.Equal(t, DefaultLanguage, api.requests[0].Language)
}

func TestSubmit_FailureKeepsAttempt(t *testing.T) {
	ctx := context.Background()
	drafts := NewMemoryDrafts()
	api := &recordingAPI{err: errors.New("Mission not found")}
	tr := newMountedTracker(t, drafts)
	require.NoError(t, tr.Edit(ctx, "print(1)"))
	tr.Visibility(Hidden)
	tr.Visibility(Visible)

	_, err := tr.Submit(ctx, api, "u-1", "done")
	require.EqualError(t, err, "Mission not found")

	sig := tr.Signal()
	assert.Equal(t, StateWarned, sig.State)
	assert.Equal(t, 1, sig.TabSwitchCount)
	code, ok, _ := drafts.Load(ctx, CodeKey("m-42"))
	assert.True(t, ok)
	assert.Equal(t, "print(1)", code)

	// Retry succeeds.
	api.err = nil
	_, err = tr.Submit(ctx, api, "u-1", "done")
	assert.NoError(t, err)
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	api := &recordingAPI{release: make(chan struct{}), entered: make(chan struct{})}
	tr := newMountedTracker(t, NewMemoryDrafts())

	done := make(chan error, 1)
	go func() {
		_, err := tr.Submit(context.Background(), api, "u-1", "done")
		done <- err
	}()
	<-api.entered

	_, err := tr.Submit(context.Background(), api, "u-1", "done")
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(api.release)
	assert.NoError(t, <-done)
	assert.Equal(t, 1, api.calls())
}

func TestSubmit_Preconditions(t *testing.T) {
	api := &recordingAPI{}

	idle := NewTracker("m-42", NewMemoryDrafts())
	_, err := idle.Submit(context.Background(), api, "u-1", "done")
	assert.ErrorIs(t, err, ErrNotActive)

	tr := newMountedTracker(t, NewMemoryDrafts())
	_, err = tr.Submit(context.Background(), api, "", "done")
	assert.ErrorIs(t, err, ErrMissingUser)

	assert.Zero(t, api.calls())
}
