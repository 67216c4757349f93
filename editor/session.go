/*
Package editor implements the slip editing session.

PURPOSE:
  The Session is the client-side state holder for one slip-editing
  screen: the selected header/detail aggregate, the search result list,
  and the editing lifecycle. It orchestrates the save flow end to end:

    UI event -> validate -> (if new) provision identity -> assemble
             -> submit -> refresh list

  A Session is an explicit object with plain construction and Reset -
  not a global singleton. All backend interaction goes through the
  Gateway interface; user feedback goes through Notifier and Confirmer.

LIFECYCLE:
  NoSelection -> Viewing(id) -> Editing(id) -> Saving -> Viewing
  Creating (no id yet)                      -> Saving -> Viewing(newID)

  A failed validation or a failed remote call returns the session to its
  previous state with the aggregate untouched, so the user can retry.

STALE FETCHES:
  The session never cancels an in-flight fetch. Instead, every call that
  changes what is selected bumps a generation counter; a resolving fetch
  applies its result only when its captured generation is still current.

CONCURRENCY:
  Sessions are driven by a single UI event loop. Methods must not be
  called concurrently; re-entrant calls from Gateway callbacks are the
  only interleaving the generation counter defends against.

ERROR HANDLING:
  Nothing escapes to the caller as an error. Every failure is converted
  to a Notifier message, and every method reports plain success/failure.

SEE ALSO:
  - slip/validate.go, slip/assemble.go: the stages this orchestrates
  - apiclient/client.go: the HTTP Gateway implementation
*/
package editor

import (
	"context"
	"errors"
	"time"

	"github.com/warp/slip-engine/slip"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Gateway is the backend boundary. One implementation speaks HTTP to the
// slip server; tests substitute fakes.
type Gateway interface {
	SearchHeaders(ctx context.Context, p slip.SearchParams) ([]slip.Header, error)
	FetchHeader(ctx context.Context, id slip.HeaderID) (*slip.Header, error)
	FetchDetails(ctx context.Context, id slip.HeaderID) ([]slip.DetailLine, error)

	// CreateHeaderID and NextSerial provision identity for a new slip,
	// in that order. NextSerial's result is authoritative for office,
	// department and date.
	CreateHeaderID(ctx context.Context) (slip.HeaderID, error)
	NextSerial(ctx context.Context, req slip.SerialRequest) (slip.SerialResult, error)

	Save(ctx context.Context, req slip.SaveRequest) error
	Delete(ctx context.Context, req slip.SaveRequest) error
	SaveCopy(ctx context.Context, req slip.SaveRequest) error
}

// Notifier surfaces toasts to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Confirmer gates destructive operations behind a dialog.
type Confirmer interface {
	Confirm(msg string) bool
}

// UserMessenger is implemented by errors that carry a server-provided,
// user-facing message. The session surfaces it verbatim when present.
type UserMessenger interface {
	UserMessage() string
}

// =============================================================================
// STATE MACHINE
// =============================================================================

type State int

const (
	StateNoSelection State = iota
	StateViewing
	StateEditing
	StateCreating
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateNoSelection:
		return "no_selection"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateCreating:
		return "creating"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// =============================================================================
// SESSION
// =============================================================================

type Session struct {
	gw      Gateway
	notify  Notifier
	confirm Confirmer

	userID   string
	clock    func() time.Time
	defaults slip.DefaultTable

	state      State
	header     *slip.Header
	details    []slip.DetailLine
	list       []slip.Header
	lastSearch slip.SearchParams

	// isNew stays true until the aggregate's first successful save, even
	// if identity provisioning succeeded on an earlier failed attempt.
	// Row statuses key off this, identity provisioning keys off the
	// header id itself.
	isNew bool

	// generation invalidates in-flight fetches; see package comment.
	generation uint64
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithClock substitutes the time source. Tests pin this.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithDefaults substitutes the field defaulting table.
func WithDefaults(t slip.DefaultTable) Option {
	return func(s *Session) { s.defaults = t }
}

// NewSession creates an empty session for the given user.
func NewSession(gw Gateway, notify Notifier, confirm Confirmer, userID string, opts ...Option) *Session {
	s := &Session{
		gw:       gw,
		notify:   notify,
		confirm:  confirm,
		userID:   userID,
		clock:    time.Now,
		defaults: slip.StandardDefaults,
		state:    StateNoSelection,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accessors. Header returns the live pointer; mutating it is how the UI
// binds form fields, paired with MarkEditing.
func (s *Session) State() State                  { return s.state }
func (s *Session) Header() *slip.Header          { return s.header }
func (s *Session) Details() []slip.DetailLine    { return s.details }
func (s *Session) List() []slip.Header           { return s.list }
func (s *Session) LastSearch() slip.SearchParams { return s.lastSearch }

// Reset discards all session state, as when the user leaves the screen.
func (s *Session) Reset() {
	s.generation++
	s.state = StateNoSelection
	s.header = nil
	s.details = nil
	s.list = nil
	s.lastSearch = slip.SearchParams{}
	s.isNew = false
}

// =============================================================================
// SELECTION AND SEARCH
// =============================================================================

// Search runs a header list query and remembers the parameters; every
// successful save/delete/copy re-runs the same query. The selected
// aggregate is not touched.
func (s *Session) Search(ctx context.Context, p slip.SearchParams) bool {
	s.lastSearch = p
	return s.refreshList(ctx)
}

// Select fetches the header and details of one slip and makes it the
// current selection. A result that resolves after the user has started a
// new slip, re-selected, or reset is discarded.
func (s *Session) Select(ctx context.Context, id slip.HeaderID) bool {
	s.generation++
	gen := s.generation

	h, err := s.gw.FetchHeader(ctx, id)
	if err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgFetchFailed))
		return false
	}
	details, err := s.gw.FetchDetails(ctx, id)
	if err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgFetchFailed))
		return false
	}

	// The fetches above may have yielded to callbacks that changed the
	// selection; apply only if this fetch is still the current one.
	if gen != s.generation {
		return false
	}

	s.header = h
	s.details = details
	s.isNew = false
	s.state = StateViewing
	return true
}

// NewSlip starts a blank aggregate with no identity.
func (s *Session) NewSlip() {
	s.generation++
	s.header = &slip.Header{}
	s.details = nil
	s.isNew = true
	s.state = StateCreating
}

// MarkEditing records that the user modified the selected aggregate.
func (s *Session) MarkEditing() {
	if s.state == StateViewing {
		s.state = StateEditing
	}
}

// SetDetails replaces the detail list, marking the session as editing.
func (s *Session) SetDetails(lines []slip.DetailLine) {
	s.details = lines
	s.MarkEditing()
}

// =============================================================================
// SAVE
// =============================================================================

// Save runs the full save flow: confirm, validate, provision identity if
// needed, assemble, submit, refresh. Returns true only when the slip was
// persisted. On any failure the aggregate and state are left as they
// were, so the user can fix and retry.
func (s *Session) Save(ctx context.Context) bool {
	if s.state == StateSaving {
		return false
	}
	if s.header == nil && s.state == StateNoSelection {
		s.notify.Error(slip.MsgHeaderRequired)
		return false
	}
	if !s.confirm.Confirm(slip.MsgConfirmSave) {
		return false
	}
	if err := slip.Validate(s.header, s.details); err != nil {
		s.notify.Error(err.Error())
		return false
	}

	prev := s.state
	s.state = StateSaving

	if !s.header.HasIdentity() {
		if !s.provisionIdentity(ctx) {
			s.state = prev
			return false
		}
	}

	req := slip.Assemble(slip.AssembleInput{
		Header:   *s.header,
		Details:  s.details,
		IsNew:    s.isNew,
		UserID:   s.userID,
		Now:      s.clock(),
		Defaults: s.defaults,
	})

	if err := s.gw.Save(ctx, req); err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgSaveFailed))
		s.state = prev
		return false
	}

	s.isNew = false
	s.header.RowStatus = slip.RowUpdated
	s.notify.Success(slip.MsgSaveSuccess)
	s.refreshList(ctx)
	s.state = StateViewing
	return true
}

// provisionIdentity performs the two sequential identity calls for a new
// slip: header id first, then the (date, office) serial. The serial
// response's office/department/date are authoritative and overwrite the
// in-memory header. Any failure aborts the save and leaves the header
// identity-free, so the next attempt provisions from scratch.
func (s *Session) provisionIdentity(ctx context.Context) bool {
	id, err := s.gw.CreateHeaderID(ctx)
	if err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgHeaderIDFailed))
		return false
	}

	req := slip.SerialRequest{
		OfficeCode: s.defaults.Coalesce(slip.FieldOfficeCode, s.header.OfficeCode),
		DeptCode:   s.defaults.Coalesce(slip.FieldDeptCode, s.header.DeptCode),
		SlipDate:   s.header.SlipDate,
	}
	if req.SlipDate.IsZero() {
		req.SlipDate = s.clock().UTC().Truncate(24 * time.Hour)
	}

	res, err := s.gw.NextSerial(ctx, req)
	if err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgSerialFailed))
		return false
	}

	// Apply only now: a header mutated after a partial provisioning
	// failure would skip re-provisioning on retry and submit serial 0.
	s.header.ID = id
	s.header.SerialNo = res.SerialNo
	if res.OfficeCode != "" {
		s.header.OfficeCode = res.OfficeCode
	}
	if res.DeptCode != "" {
		s.header.DeptCode = res.DeptCode
	}
	if !res.SlipDate.IsZero() {
		s.header.SlipDate = res.SlipDate
	}
	return true
}

// =============================================================================
// DELETE AND COPY
// =============================================================================

// Delete resubmits the current aggregate with every row forced Deleted,
// then clears the selection and refreshes the list. Gated by a confirm
// dialog.
func (s *Session) Delete(ctx context.Context) bool {
	if s.header == nil || !s.header.HasIdentity() {
		return false
	}
	if !s.confirm.Confirm(slip.MsgConfirmDelete) {
		return false
	}

	req := slip.Assemble(slip.AssembleInput{
		Header:      *s.header,
		Details:     s.details,
		ForceStatus: slip.RowDeleted,
		UserID:      s.userID,
		Now:         s.clock(),
		Defaults:    s.defaults,
	})

	if err := s.gw.Delete(ctx, req); err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgDeleteFailed))
		return false
	}

	s.generation++
	s.header = nil
	s.details = nil
	s.isNew = false
	s.state = StateNoSelection
	s.notify.Success(slip.MsgDeleteSuccess)
	s.refreshList(ctx)
	return true
}

// Copy resubmits the current aggregate with identity cleared and every
// row forced Created. The backend assigns the new identity inside the
// copy endpoint; the provisioner is not involved.
func (s *Session) Copy(ctx context.Context) bool {
	if s.header == nil || !s.header.HasIdentity() {
		return false
	}

	req := slip.Assemble(slip.AssembleInput{
		Header:      *s.header,
		Details:     s.details,
		ForceStatus: slip.RowCreated,
		UserID:      s.userID,
		Now:         s.clock(),
		Defaults:    s.defaults,
	}).ClearIdentity()

	if err := s.gw.SaveCopy(ctx, req); err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgCopyFailed))
		return false
	}

	s.notify.Success(slip.MsgCopySuccess)
	s.refreshList(ctx)
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Session) refreshList(ctx context.Context) bool {
	list, err := s.gw.SearchHeaders(ctx, s.lastSearch)
	if err != nil {
		s.notify.Error(s.userMessage(err, slip.MsgFetchFailed))
		return false
	}
	s.list = list
	return true
}

// userMessage prefers a server-provided user-facing message, falling
// back to the given default.
func (s *Session) userMessage(err error, fallback string) string {
	var um UserMessenger
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return fallback
}
