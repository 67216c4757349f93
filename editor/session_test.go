package editor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/slip-engine/editor"
	"github.com/warp/slip-engine/slip"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// fakeGateway records call order and delegates to overridable funcs.
type fakeGateway struct {
	calls []string

	searchFn   func(p slip.SearchParams) ([]slip.Header, error)
	headerFn   func(id slip.HeaderID) (*slip.Header, error)
	detailsFn  func(id slip.HeaderID) ([]slip.DetailLine, error)
	headerIDFn func() (slip.HeaderID, error)
	serialFn   func(req slip.SerialRequest) (slip.SerialResult, error)
	saveFn     func(req slip.SaveRequest) error
	deleteFn   func(req slip.SaveRequest) error
	copyFn     func(req slip.SaveRequest) error

	lastSerialReq slip.SerialRequest
	lastSave      slip.SaveRequest
	lastDelete    slip.SaveRequest
	lastCopy      slip.SaveRequest
}

func (g *fakeGateway) SearchHeaders(_ context.Context, p slip.SearchParams) ([]slip.Header, error) {
	g.calls = append(g.calls, "SearchHeaders")
	if g.searchFn != nil {
		return g.searchFn(p)
	}
	return []slip.Header{}, nil
}

func (g *fakeGateway) FetchHeader(_ context.Context, id slip.HeaderID) (*slip.Header, error) {
	g.calls = append(g.calls, "FetchHeader")
	if g.headerFn != nil {
		return g.headerFn(id)
	}
	return &slip.Header{ID: id, SerialNo: 1, Description: "기존 전표"}, nil
}

func (g *fakeGateway) FetchDetails(_ context.Context, id slip.HeaderID) ([]slip.DetailLine, error) {
	g.calls = append(g.calls, "FetchDetails")
	if g.detailsFn != nil {
		return g.detailsFn(id)
	}
	return nil, nil
}

func (g *fakeGateway) CreateHeaderID(_ context.Context) (slip.HeaderID, error) {
	g.calls = append(g.calls, "CreateHeaderID")
	if g.headerIDFn != nil {
		return g.headerIDFn()
	}
	return "hdr-new", nil
}

func (g *fakeGateway) NextSerial(_ context.Context, req slip.SerialRequest) (slip.SerialResult, error) {
	g.calls = append(g.calls, "NextSerial")
	g.lastSerialReq = req
	if g.serialFn != nil {
		return g.serialFn(req)
	}
	return slip.SerialResult{SerialNo: 1, OfficeCode: req.OfficeCode, DeptCode: req.DeptCode, SlipDate: req.SlipDate}, nil
}

func (g *fakeGateway) Save(_ context.Context, req slip.SaveRequest) error {
	g.calls = append(g.calls, "Save")
	g.lastSave = req
	if g.saveFn != nil {
		return g.saveFn(req)
	}
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, req slip.SaveRequest) error {
	g.calls = append(g.calls, "Delete")
	g.lastDelete = req
	if g.deleteFn != nil {
		return g.deleteFn(req)
	}
	return nil
}

func (g *fakeGateway) SaveCopy(_ context.Context, req slip.SaveRequest) error {
	g.calls = append(g.calls, "SaveCopy")
	g.lastCopy = req
	if g.copyFn != nil {
		return g.copyFn(req)
	}
	return nil
}

// recorder captures toasts.
type recorder struct {
	successes []string
	errors    []string
}

func (r *recorder) Success(msg string) { r.successes = append(r.successes, msg) }
func (r *recorder) Error(msg string)   { r.errors = append(r.errors, msg) }

// confirmStub answers every confirm dialog the same way.
type confirmStub struct {
	answer bool
	asked  []string
}

func (c *confirmStub) Confirm(msg string) bool {
	c.asked = append(c.asked, msg)
	return c.answer
}

// userMessageError mimics a transport error carrying a server message.
type userMessageError struct{ msg string }

func (e *userMessageError) Error() string       { return "remote call failed" }
func (e *userMessageError) UserMessage() string { return e.msg }

var testNow = time.Date(2026, time.June, 2, 10, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, gw *fakeGateway) (*editor.Session, *recorder, *confirmStub) {
	t.Helper()
	notify := &recorder{}
	confirm := &confirmStub{answer: true}
	s := editor.NewSession(gw, notify, confirm, "jkim",
		editor.WithClock(func() time.Time { return testNow }))
	return s, notify, confirm
}

func balancedLines() []slip.DetailLine {
	line := func(debit, credit int64) slip.DetailLine {
		l := slip.DetailLine{
			AccountCode:  "11010",
			CurrencyCode: slip.HomeCurrency,
			ExchangeRate: decimal.NewFromInt(1),
			DebitAmount:  decimal.NewFromInt(debit),
			CreditAmount: decimal.NewFromInt(credit),
			DeptCode:     "100100",
			PartnerCode:  "P-001",
		}
		l.ConvertedAmount = l.RawAmount()
		return l
	}
	return []slip.DetailLine{line(100, 0), line(0, 100)}
}

func startNewSlip(s *editor.Session) {
	s.NewSlip()
	s.Header().Description = "신규 전표"
	s.SetDetails(balancedLines())
}

// =============================================================================
// SAVE - NEW SLIP
// =============================================================================

func TestSave_NewSlip_ProvisionsIdentityThenSubmits(t *testing.T) {
	// GIVEN: A balanced new slip with no identity
	gw := &fakeGateway{
		serialFn: func(req slip.SerialRequest) (slip.SerialResult, error) {
			return slip.SerialResult{
				SerialNo:   7,
				OfficeCode: "2000",
				DeptCode:   "300100",
				SlipDate:   time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	s, notify, _ := newTestSession(t, gw)
	startNewSlip(s)

	// WHEN: Saving
	ok := s.Save(context.Background())

	// THEN: Header id, then serial, then submit, then list refresh
	require.True(t, ok)
	assert.Equal(t, []string{"CreateHeaderID", "NextSerial", "Save", "SearchHeaders"}, gw.calls)

	// Backend-corrected identity fields overwrite the in-memory header
	h := s.Header()
	assert.Equal(t, slip.HeaderID("hdr-new"), h.ID)
	assert.Equal(t, 7, h.SerialNo)
	assert.Equal(t, "2000", h.OfficeCode)
	assert.Equal(t, "300100", h.DeptCode)
	assert.Equal(t, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), h.SlipDate)

	// Submitted payload is marked Created throughout
	assert.Equal(t, slip.RowCreated, gw.lastSave.Header.RowStatus)
	for _, l := range gw.lastSave.Details {
		assert.Equal(t, slip.RowCreated, l.RowStatus)
	}

	assert.Equal(t, editor.StateViewing, s.State())
	assert.Equal(t, []string{slip.MsgSaveSuccess}, notify.successes)
}

func TestSave_NewSlip_SerialRequestUsesDefaultsForBlankFields(t *testing.T) {
	// GIVEN: A new slip whose office/department/date were never filled in
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)
	startNewSlip(s)

	require.True(t, s.Save(context.Background()))

	assert.Equal(t, "1000", gw.lastSerialReq.OfficeCode)
	assert.Equal(t, "000000", gw.lastSerialReq.DeptCode)
	assert.Equal(t, testNow.Truncate(24*time.Hour), gw.lastSerialReq.SlipDate)
}

func TestSave_ValidationFailure_NoNetworkCalls(t *testing.T) {
	// GIVEN: An unbalanced new slip
	gw := &fakeGateway{}
	s, notify, _ := newTestSession(t, gw)
	s.NewSlip()
	s.Header().Description = "불균형 전표"
	lines := balancedLines()
	lines[1].CreditAmount = decimal.NewFromInt(50)
	lines[1].ConvertedAmount = decimal.NewFromInt(50)
	s.SetDetails(lines)

	ok := s.Save(context.Background())

	assert.False(t, ok)
	assert.Empty(t, gw.calls, "validation failure must not reach the network")
	assert.Equal(t, []string{slip.MsgBalanceMismatch}, notify.errors)
	assert.Equal(t, editor.StateCreating, s.State(), "user stays in edit")
}

func TestSave_ConfirmDeclined_NothingHappens(t *testing.T) {
	gw := &fakeGateway{}
	s, notify, confirm := newTestSession(t, gw)
	confirm.answer = false
	startNewSlip(s)

	ok := s.Save(context.Background())

	assert.False(t, ok)
	assert.Empty(t, gw.calls)
	assert.Empty(t, notify.errors)
	assert.Equal(t, []string{slip.MsgConfirmSave}, confirm.asked)
}

func TestSave_HeaderIDFailure_AbortsBeforeSerial(t *testing.T) {
	gw := &fakeGateway{
		headerIDFn: func() (slip.HeaderID, error) { return "", errors.New("boom") },
	}
	s, notify, _ := newTestSession(t, gw)
	startNewSlip(s)

	ok := s.Save(context.Background())

	assert.False(t, ok)
	assert.Equal(t, []string{"CreateHeaderID"}, gw.calls, "serial fetch must not run")
	assert.Equal(t, []string{slip.MsgHeaderIDFailed}, notify.errors)
	assert.Equal(t, editor.StateCreating, s.State())
}

func TestSave_SerialFailure_AbortsBeforeSubmit(t *testing.T) {
	gw := &fakeGateway{
		serialFn: func(slip.SerialRequest) (slip.SerialResult, error) {
			return slip.SerialResult{}, errors.New("boom")
		},
	}
	s, notify, _ := newTestSession(t, gw)
	startNewSlip(s)

	ok := s.Save(context.Background())

	assert.False(t, ok)
	assert.Equal(t, []string{"CreateHeaderID", "NextSerial"}, gw.calls)
	assert.Equal(t, []string{slip.MsgSerialFailed}, notify.errors)
	assert.Equal(t, editor.StateCreating, s.State())
	assert.False(t, s.Header().HasIdentity(),
		"a partially provisioned identity must not stick to the aggregate")
}

func TestSave_SerialFailureThenRetry_ReprovisionsInFull(t *testing.T) {
	// GIVEN: A serial fetch that fails once, then recovers
	failures := 1
	gw := &fakeGateway{
		serialFn: func(req slip.SerialRequest) (slip.SerialResult, error) {
			if failures > 0 {
				failures--
				return slip.SerialResult{}, errors.New("boom")
			}
			return slip.SerialResult{SerialNo: 1, OfficeCode: req.OfficeCode,
				DeptCode: req.DeptCode, SlipDate: req.SlipDate}, nil
		},
	}
	s, notify, _ := newTestSession(t, gw)
	startNewSlip(s)

	// WHEN: The first save aborts and the user retries
	require.False(t, s.Save(context.Background()))
	ok := s.Save(context.Background())

	// THEN: Both identity calls run again and the slip gets a real serial
	require.True(t, ok)
	assert.Equal(t, []string{
		"CreateHeaderID", "NextSerial",
		"CreateHeaderID", "NextSerial", "Save", "SearchHeaders",
	}, gw.calls)
	assert.Equal(t, 1, gw.lastSave.Header.SerialNo)
	assert.Equal(t, 1, s.Header().SerialNo)
	assert.Equal(t, []string{slip.MsgSaveSuccess}, notify.successes)
}

func TestSave_RemoteFailure_SurfacesServerMessageAndStaysRetryable(t *testing.T) {
	// GIVEN: The submit itself fails with a server-provided message
	gw := &fakeGateway{
		saveFn: func(slip.SaveRequest) error {
			return &userMessageError{msg: "차변 합계와 대변 합계가 일치하지 않습니다."}
		},
	}
	s, notify, _ := newTestSession(t, gw)
	startNewSlip(s)

	ok := s.Save(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []string{"차변 합계와 대변 합계가 일치하지 않습니다."}, notify.errors)
	assert.Equal(t, editor.StateCreating, s.State())

	// WHEN: The user retries after the transient failure clears
	gw.saveFn = nil
	ok = s.Save(context.Background())

	// THEN: Identity is not provisioned twice, and the slip is still Created
	require.True(t, ok)
	assert.Equal(t, []string{"CreateHeaderID", "NextSerial", "Save", "Save", "SearchHeaders"}, gw.calls)
	assert.Equal(t, slip.RowCreated, gw.lastSave.Header.RowStatus,
		"a never-saved slip stays Created on retry")
}

func TestSave_ReentrantSaveRefused(t *testing.T) {
	// GIVEN: A save whose submit callback tries to save again
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)
	startNewSlip(s)

	var inner bool
	gw.saveFn = func(slip.SaveRequest) error {
		inner = s.Save(context.Background())
		return nil
	}

	require.True(t, s.Save(context.Background()))

	assert.False(t, inner, "a save in flight blocks another")
	assert.Equal(t, []string{"CreateHeaderID", "NextSerial", "Save", "SearchHeaders"}, gw.calls)
}

// =============================================================================
// SAVE - EXISTING SLIP
// =============================================================================

func TestSave_ExistingSlip_SkipsProvisioningAndMarksUpdated(t *testing.T) {
	gw := &fakeGateway{
		headerFn: func(id slip.HeaderID) (*slip.Header, error) {
			return &slip.Header{ID: id, SerialNo: 3, OfficeCode: "1000", DeptCode: "100100", Description: "기존 전표"}, nil
		},
		detailsFn: func(slip.HeaderID) ([]slip.DetailLine, error) {
			return balancedLines(), nil
		},
	}
	s, _, _ := newTestSession(t, gw)
	require.True(t, s.Select(context.Background(), "hdr-3"))
	s.MarkEditing()
	gw.calls = nil

	ok := s.Save(context.Background())

	require.True(t, ok)
	assert.Equal(t, []string{"Save", "SearchHeaders"}, gw.calls)
	assert.Equal(t, slip.RowUpdated, gw.lastSave.Header.RowStatus)
	for _, l := range gw.lastSave.Details {
		assert.Equal(t, slip.RowUpdated, l.RowStatus)
	}
	assert.Equal(t, editor.StateViewing, s.State())
}

// =============================================================================
// DELETE AND COPY
// =============================================================================

func TestDelete_ForcesDeletedStatusAndClearsSelection(t *testing.T) {
	gw := &fakeGateway{
		detailsFn: func(slip.HeaderID) ([]slip.DetailLine, error) { return balancedLines(), nil },
	}
	s, notify, confirm := newTestSession(t, gw)
	require.True(t, s.Select(context.Background(), "hdr-9"))
	gw.calls = nil

	ok := s.Delete(context.Background())

	require.True(t, ok)
	assert.Equal(t, []string{slip.MsgConfirmDelete}, confirm.asked)
	assert.Equal(t, []string{"Delete", "SearchHeaders"}, gw.calls)
	assert.Equal(t, slip.RowDeleted, gw.lastDelete.Header.RowStatus)
	for _, l := range gw.lastDelete.Details {
		assert.Equal(t, slip.RowDeleted, l.RowStatus)
	}
	assert.Nil(t, s.Header())
	assert.Equal(t, editor.StateNoSelection, s.State())
	assert.Equal(t, []string{slip.MsgDeleteSuccess}, notify.successes)
}

func TestDelete_ConfirmDeclined_NoCalls(t *testing.T) {
	gw := &fakeGateway{}
	s, _, confirm := newTestSession(t, gw)
	require.True(t, s.Select(context.Background(), "hdr-9"))
	confirm.answer = false
	gw.calls = nil

	assert.False(t, s.Delete(context.Background()))
	assert.Empty(t, gw.calls)
	assert.NotNil(t, s.Header(), "selection survives a declined delete")
}

func TestDelete_WithoutSelection_Refused(t *testing.T) {
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)

	assert.False(t, s.Delete(context.Background()))
	assert.Empty(t, gw.calls)
}

func TestCopy_ClearsIdentityAndForcesCreated(t *testing.T) {
	gw := &fakeGateway{
		headerFn: func(id slip.HeaderID) (*slip.Header, error) {
			return &slip.Header{ID: id, SerialNo: 5, OfficeCode: "1000", DeptCode: "100100", Description: "원본 전표"}, nil
		},
		detailsFn: func(slip.HeaderID) ([]slip.DetailLine, error) { return balancedLines(), nil },
	}
	s, notify, _ := newTestSession(t, gw)
	require.True(t, s.Select(context.Background(), "hdr-5"))
	gw.calls = nil

	ok := s.Copy(context.Background())

	require.True(t, ok)
	assert.Equal(t, []string{"SaveCopy", "SearchHeaders"}, gw.calls,
		"copy never touches the provisioner")
	assert.Empty(t, gw.lastCopy.Header.ID)
	assert.Zero(t, gw.lastCopy.Header.SerialNo)
	assert.Equal(t, slip.RowCreated, gw.lastCopy.Header.RowStatus)
	for _, l := range gw.lastCopy.Details {
		assert.Equal(t, slip.RowCreated, l.RowStatus)
		assert.Empty(t, l.HeaderID)
	}
	assert.Equal(t, []string{slip.MsgCopySuccess}, notify.successes)

	// Original selection is untouched
	assert.Equal(t, slip.HeaderID("hdr-5"), s.Header().ID)
}

// =============================================================================
// STALE FETCH GUARD
// =============================================================================

func TestSelect_StaleResultDiscardedWhenNewSlipStarted(t *testing.T) {
	// GIVEN: A detail fetch that resolves after the user started a new
	// slip (the gateway callback models the event-loop interleaving)
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)
	gw.detailsFn = func(slip.HeaderID) ([]slip.DetailLine, error) {
		s.NewSlip()
		return balancedLines(), nil
	}

	// WHEN: The older selection resolves
	ok := s.Select(context.Background(), "hdr-old")

	// THEN: The stale result is discarded; the new-slip state survives
	assert.False(t, ok)
	assert.Equal(t, editor.StateCreating, s.State())
	require.NotNil(t, s.Header())
	assert.Empty(t, s.Header().ID, "stale header must not clobber the draft")
	assert.Empty(t, s.Details())
}

func TestSelect_StaleResultDiscardedAfterReselect(t *testing.T) {
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)

	reselected := false
	gw.detailsFn = func(id slip.HeaderID) ([]slip.DetailLine, error) {
		if !reselected {
			reselected = true
			require.True(t, s.Select(context.Background(), "hdr-b"))
		}
		return nil, nil
	}

	assert.False(t, s.Select(context.Background(), "hdr-a"))
	assert.Equal(t, slip.HeaderID("hdr-b"), s.Header().ID)
}

// =============================================================================
// SEARCH AND RESET
// =============================================================================

func TestSearch_RemembersParamsForRefresh(t *testing.T) {
	var seen []slip.SearchParams
	gw := &fakeGateway{
		searchFn: func(p slip.SearchParams) ([]slip.Header, error) {
			seen = append(seen, p)
			return []slip.Header{{ID: "hdr-1"}}, nil
		},
	}
	s, _, _ := newTestSession(t, gw)
	params := slip.SearchParams{OfficeCode: "1000", DeptCode: "100100"}

	require.True(t, s.Search(context.Background(), params))
	require.Len(t, s.List(), 1)

	// A later save refreshes with the same parameters
	startNewSlip(s)
	require.True(t, s.Save(context.Background()))

	require.Len(t, seen, 2)
	assert.Equal(t, params, seen[1])
}

func TestReset_ClearsEverything(t *testing.T) {
	gw := &fakeGateway{}
	s, _, _ := newTestSession(t, gw)
	require.True(t, s.Select(context.Background(), "hdr-1"))

	s.Reset()

	assert.Equal(t, editor.StateNoSelection, s.State())
	assert.Nil(t, s.Header())
	assert.Nil(t, s.Details())
	assert.Nil(t, s.List())
}
