package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/cotiza/internal/domain"
)

// NoDropTarget passed to EndDrag cancels the gesture.
const NoDropTarget domain.QuoteStatus = ""

// BoardPhase describes what the board is doing.
type BoardPhase int

// PhaseIdle and related constants enumerate board phases.
const (
	PhaseIdle BoardPhase = iota
	PhaseDragging
	PhaseCommitting
)

// String returns the phase name.
func (p BoardPhase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// BoardColumn holds the quotes shown under one status.
type BoardColumn struct {
	Status domain.QuoteStatus
	Label  string
	Quotes []domain.Quote
}

// GroupQuotesByStatus partitions quotes into one column per status in board
// order. Quotes with a status outside the closed set land under Draft; the
// quotes themselves are not modified.
func GroupQuotesByStatus(quotes []domain.Quote) []BoardColumn {
	statuses := domain.QuoteStatuses()
	columns := make([]BoardColumn, len(statuses))
	index := make(map[domain.QuoteStatus]int, len(statuses))
	for i, status := range statuses {
		columns[i] = BoardColumn{Status: status, Label: status.Label(), Quotes: []domain.Quote{}}
		index[status] = i
	}
	for _, q := range quotes {
		i := index[q.Status.BoardStatus()]
		columns[i].Quotes = append(columns[i].Quotes, q)
	}
	return columns
}

// Dispatcher runs a status write. The default runs it on its own goroutine.
type Dispatcher func(func())

// BoardOption configures a BoardReconciler.
type BoardOption func(*BoardReconciler)

// WithDispatcher replaces the goroutine dispatcher.
func WithDispatcher(d Dispatcher) BoardOption {
	return func(r *BoardReconciler) {
		if d != nil {
			r.dispatch = d
		}
	}
}

// WithBoardLogger sets the logger used for write outcomes.
func WithBoardLogger(logger *charmLog.Logger) BoardOption {
	return func(r *BoardReconciler) {
		r.logger = logger
	}
}

// dragState is either idleDrag or activeDrag.
type dragState interface {
	isDragState()
}

type idleDrag struct{}

type activeDrag struct {
	quoteID string
	// origin is the raw stored status at pick-up, restored on cancel.
	origin     domain.QuoteStatus
	hypothesis domain.QuoteStatus
}

func (idleDrag) isDragState()   {}
func (activeDrag) isDragState() {}

// BoardReconciler keeps an in-memory status grouping of one tenant's quotes,
// moves cards optimistically during a drag and persists the final status
// when the gesture ends. Failed writes are replaced by store truth.
type BoardReconciler struct {
	tenantID string
	store    QuoteStatusStore
	notify   Notifier
	dispatch Dispatcher
	logger   *charmLog.Logger

	mu       sync.Mutex
	quotes   []domain.Quote
	drag     dragState
	inflight map[string]struct{}
	pending  sync.WaitGroup
}

// NewBoardReconciler constructs a new value for this package.
func NewBoardReconciler(tenantID string, store QuoteStatusStore, notify Notifier, opts ...BoardOption) *BoardReconciler {
	if notify == nil {
		notify = func(Notice) {}
	}
	r := &BoardReconciler{
		tenantID: strings.TrimSpace(tenantID),
		store:    store,
		notify:   notify,
		dispatch: func(fn func()) { go fn() },
		drag:     idleDrag{},
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// TenantID returns the tenant whose quotes are on the board.
func (r *BoardReconciler) TenantID() string {
	return r.tenantID
}

// Load replaces the board with the stored quotes.
func (r *BoardReconciler) Load(ctx context.Context) error {
	quotes, err := r.store.ListQuotes(ctx, r.tenantID)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	r.mu.Lock()
	r.replaceLocked(quotes)
	r.mu.Unlock()
	return nil
}

// BeginDrag picks up a quote. Unknown ids are ignored.
func (r *BoardReconciler) BeginDrag(quoteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drag.(activeDrag); ok {
		return ErrDragInProgress
	}
	i := r.indexLocked(quoteID)
	if i < 0 {
		return nil
	}
	if _, ok := r.inflight[quoteID]; ok {
		return ErrWriteInFlight
	}
	q := r.quotes[i]
	r.drag = activeDrag{
		quoteID:    q.ID,
		origin:     q.Status,
		hypothesis: q.Status.BoardStatus(),
	}
	return nil
}

// HoverTarget moves the dragged card under status. It is ignored when no
// gesture is active or status is not a board column.
func (r *BoardReconciler) HoverTarget(status domain.QuoteStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drag.(activeDrag)
	if !ok || !status.Valid() {
		return
	}
	d.hypothesis = status
	r.drag = d
	r.placeLocked(d.quoteID, status)
}

// EndDrag releases the dragged card over target. NoDropTarget, or any value
// that is not a board column, cancels the gesture. Releasing on the origin
// column writes nothing. Otherwise a single status write is dispatched and
// the outcome is reported through the notifier.
func (r *BoardReconciler) EndDrag(ctx context.Context, target domain.QuoteStatus) {
	r.mu.Lock()
	d, ok := r.drag.(activeDrag)
	if !ok {
		r.mu.Unlock()
		return
	}
	r.drag = idleDrag{}

	if target == NoDropTarget || !target.Valid() || target == d.origin.BoardStatus() {
		r.restoreLocked(d.quoteID, d.origin)
		r.mu.Unlock()
		return
	}

	i := r.indexLocked(d.quoteID)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	r.quotes[i].Status = target
	number := r.quotes[i].Number
	r.inflight[d.quoteID] = struct{}{}
	r.pending.Add(1)
	r.mu.Unlock()

	// The write is not cancellable once issued.
	writeCtx := context.WithoutCancel(ctx)
	r.dispatch(func() {
		defer r.pending.Done()
		r.commit(writeCtx, d.quoteID, number, d.origin, target)
	})
}

func (r *BoardReconciler) commit(ctx context.Context, quoteID, number string, origin, target domain.QuoteStatus) {
	err := r.store.UpdateQuoteStatus(ctx, r.tenantID, quoteID, target)
	if err == nil {
		r.mu.Lock()
		delete(r.inflight, quoteID)
		r.placeLocked(quoteID, target)
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.Info("quote status updated", "tenant", r.tenantID, "quote", number, "status", target)
		}
		r.notify(Notice{
			Kind:    NoticeSuccess,
			Title:   "Quote moved",
			Message: fmt.Sprintf("%s is now %s", displayName(number, quoteID), target.Label()),
		})
		return
	}

	writeErr := &StatusWriteError{QuoteID: quoteID, Number: number, From: origin.BoardStatus(), To: target, Err: err}
	if r.logger != nil {
		r.logger.Warn("quote status write failed", "tenant", r.tenantID, "quote", number, "err", err)
	}
	fresh, listErr := r.store.ListQuotes(ctx, r.tenantID)

	r.mu.Lock()
	delete(r.inflight, quoteID)
	message := fmt.Sprintf("Could not move %s to %s. The board was refreshed.", displayName(number, quoteID), target.Label())
	if listErr == nil {
		r.replaceLocked(fresh)
	} else {
		r.restoreLocked(quoteID, origin)
		message = fmt.Sprintf("Could not move %s to %s and the board could not be refreshed; it was returned to %s.",
			displayName(number, quoteID), target.Label(), origin.BoardStatus().Label())
		if r.logger != nil {
			r.logger.Warn("board refresh failed", "tenant", r.tenantID, "err", listErr)
		}
	}
	r.mu.Unlock()

	r.notify(Notice{
		Kind:    NoticeError,
		Title:   "Status update failed",
		Message: message,
		Err:     writeErr,
	})
}

// Columns returns the current grouping in board order.
func (r *BoardReconciler) Columns() []BoardColumn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return GroupQuotesByStatus(r.quotes)
}

// Quote returns the in-memory copy of one quote.
func (r *BoardReconciler) Quote(quoteID string) (domain.Quote, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(quoteID)
	if i < 0 {
		return domain.Quote{}, false
	}
	return r.quotes[i], true
}

// Phase reports Dragging while a gesture is active, Committing while writes
// are pending and Idle otherwise.
func (r *BoardReconciler) Phase() BoardPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drag.(activeDrag); ok {
		return PhaseDragging
	}
	if len(r.inflight) > 0 {
		return PhaseCommitting
	}
	return PhaseIdle
}

// Dragging returns the dragged quote id and its hovered column.
func (r *BoardReconciler) Dragging() (string, domain.QuoteStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drag.(activeDrag)
	if !ok {
		return "", "", false
	}
	return d.quoteID, d.hypothesis, true
}

// Pending reports whether quoteID has a status write in flight.
func (r *BoardReconciler) Pending(quoteID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[quoteID]
	return ok
}

// Wait blocks until every dispatched write has settled.
func (r *BoardReconciler) Wait() {
	r.pending.Wait()
}

// replaceLocked swaps in fresh quotes, keeping an active gesture on top of
// them when its quote still exists.
func (r *BoardReconciler) replaceLocked(quotes []domain.Quote) {
	r.quotes = slices.Clone(quotes)
	d, ok := r.drag.(activeDrag)
	if !ok {
		return
	}
	i := r.indexLocked(d.quoteID)
	if i < 0 {
		r.drag = idleDrag{}
		return
	}
	d.origin = r.quotes[i].Status
	r.drag = d
	r.placeLocked(d.quoteID, d.hypothesis)
}

// placeLocked shows quoteID under status unless it is already displayed there.
func (r *BoardReconciler) placeLocked(quoteID string, status domain.QuoteStatus) {
	i := r.indexLocked(quoteID)
	if i < 0 || r.quotes[i].Status.BoardStatus() == status {
		return
	}
	r.quotes[i].Status = status
}

func (r *BoardReconciler) restoreLocked(quoteID string, status domain.QuoteStatus) {
	if i := r.indexLocked(quoteID); i >= 0 {
		r.quotes[i].Status = status
	}
}

func (r *BoardReconciler) indexLocked(quoteID string) int {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return -1
	}
	return slices.IndexFunc(r.quotes, func(q domain.Quote) bool { return q.ID == quoteID })
}

func displayName(number, quoteID string) string {
	if number != "" {
		return number
	}
	return quoteID
}
