// Package review drives the upload review workflow: listing uploads by
// status tab, opening a single upload's detail, and submitting an approve or
// reject decision.
//
// Liveness is an explicit contract: the embedding UI calls Refresh on its
// defined triggers (tab switch, regained visibility, after a submission)
// instead of the workflow listening for environment events. Per-status
// counts only ever reflect that status's most recent successful fetch.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Gimmick12-DYY/ADRD-KG/pkg/apiclient"
)

// How many per-row errors a surfaced failure message carries before
// truncation, and how long after a submission the follow-up recount fires.
// The recount delay papers over eventual consistency in the backend store;
// it is a workaround, not a guarantee.
const (
	maxDisplayedErrors  = 5
	defaultRecountDelay = 2 * time.Second
)

// API is the slice of the backend the workflow needs. *apiclient.Client
// satisfies it.
type API interface {
	ListUploads(ctx context.Context, status apiclient.Status) ([]apiclient.UploadSummary, error)
	GetUploadDetail(ctx context.Context, id int) (*apiclient.UploadDetail, error)
	ApproveUpload(ctx context.Context, id int, notes, reviewer string) (*apiclient.ReviewResult, error)
	RejectUpload(ctx context.Context, id int, notes, reviewer string) (*apiclient.ReviewResult, error)
}

// Workflow holds the review screen's state machine.
type Workflow struct {
	api          API
	recountDelay time.Duration
	after        func(d time.Duration, f func())

	mu      sync.Mutex
	active  apiclient.Status
	lists   map[apiclient.Status][]apiclient.UploadSummary
	counts  map[apiclient.Status]int
	seq     map[apiclient.Status]uint64
	visible []apiclient.UploadSummary
	detail  *apiclient.UploadDetail
	lastErr string
}

// Option adjusts workflow construction.
type Option func(*Workflow)

// WithRecountDelay overrides the post-submission recount delay.
func WithRecountDelay(d time.Duration) Option {
	return func(w *Workflow) { w.recountDelay = d }
}

// WithScheduler replaces the timer used for the delayed recount, letting
// tests fire it synchronously.
func WithScheduler(after func(d time.Duration, f func())) Option {
	return func(w *Workflow) { w.after = after }
}

func NewWorkflow(api API, opts ...Option) *Workflow {
	w := &Workflow{
		api:          api,
		recountDelay: defaultRecountDelay,
		after:        func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		active:       apiclient.StatusPending,
		lists:        make(map[apiclient.Status][]apiclient.UploadSummary),
		counts:       make(map[apiclient.Status]int),
		seq:          make(map[apiclient.Status]uint64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ActiveStatus returns the currently selected tab.
func (w *Workflow) ActiveStatus() apiclient.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// SetStatus switches the active tab and refreshes it.
func (w *Workflow) SetStatus(ctx context.Context, status apiclient.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status filter %q", status)
	}
	w.mu.Lock()
	w.active = status
	// show the last known listing for the tab until the fetch lands
	w.visible = w.lists[status]
	w.mu.Unlock()
	return w.Refresh(ctx)
}

// Refresh re-fetches the active tab. On failure the visible list degrades
// to empty and the error is surfaced via LastError; the previously fetched
// count for the tab is kept. A refresh superseded by a newer one for the
// same status discards its response (last write wins).
func (w *Workflow) Refresh(ctx context.Context) error {
	w.mu.Lock()
	status := w.active
	w.mu.Unlock()
	return w.refreshStatus(ctx, status)
}

// RefreshCounts re-fetches every status tab so the badge counts stay honest
// after out-of-band edits. Individual failures are surfaced but do not stop
// the remaining fetches.
func (w *Workflow) RefreshCounts(ctx context.Context) {
	for _, status := range []apiclient.Status{apiclient.StatusPending, apiclient.StatusApproved, apiclient.StatusRejected} {
		if err := w.refreshStatus(ctx, status); err != nil {
			slog.Warn("count refresh failed", slog.String("status", string(status)), slog.String("error", err.Error()))
		}
	}
}

func (w *Workflow) refreshStatus(ctx context.Context, status apiclient.Status) error {
	w.mu.Lock()
	w.seq[status]++
	ticket := w.seq[status]
	w.mu.Unlock()

	uploads, err := w.api.ListUploads(ctx, status)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ticket != w.seq[status] {
		// a newer fetch for this tab already started; let it win
		return nil
	}
	if err != nil {
		// a background count fetch failing must not surface an error over
		// a healthy active tab
		if status == w.active {
			w.visible = []apiclient.UploadSummary{}
			w.lastErr = err.Error()
		}
		return err
	}
	w.lists[status] = uploads
	w.counts[status] = len(uploads)
	if status == w.active {
		w.visible = uploads
		w.lastErr = ""
	}
	return nil
}

// Uploads returns the listing for the active tab as of the last refresh.
func (w *Workflow) Uploads() []apiclient.UploadSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.visible == nil {
		return []apiclient.UploadSummary{}
	}
	return w.visible
}

// Count returns the most recent successfully fetched size of a status tab.
func (w *Workflow) Count(status apiclient.Status) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[status]
}

// LastError returns the surfaced error message, "" when none.
func (w *Workflow) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// OpenDetail fetches and holds the full record for id. On failure no detail
// is left open and the caller stays on the list.
func (w *Workflow) OpenDetail(ctx context.Context, id int) (*apiclient.UploadDetail, error) {
	detail, err := w.api.GetUploadDetail(ctx, id)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.detail = nil
		w.lastErr = err.Error()
		return nil, err
	}
	w.detail = detail
	w.lastErr = ""
	return detail, nil
}

// Detail returns the open record, nil when none.
func (w *Workflow) Detail() *apiclient.UploadDetail {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detail
}

// CloseDetail drops the open record.
func (w *Workflow) CloseDetail() {
	w.mu.Lock()
	w.detail = nil
	w.mu.Unlock()
}

// SubmitReview sends a decision for id. On success any open detail closes,
// the active tab refreshes immediately, and one delayed recount of all tabs
// is scheduled. An approve the backend accepted but that ingested zero rows
// is promoted to a *ZeroRowsError even though the HTTP call succeeded; the
// record still left pending on the server, so the detail closes and the
// active tab refreshes on that path too.
func (w *Workflow) SubmitReview(ctx context.Context, id int, decision apiclient.Decision, notes, reviewer string) error {
	var res *apiclient.ReviewResult
	var err error
	switch decision {
	case apiclient.DecisionApprove:
		res, err = w.api.ApproveUpload(ctx, id, notes, reviewer)
	case apiclient.DecisionReject:
		res, err = w.api.RejectUpload(ctx, id, notes, reviewer)
	default:
		return fmt.Errorf("invalid review decision %q", decision)
	}
	if err != nil {
		w.mu.Lock()
		w.lastErr = err.Error()
		w.mu.Unlock()
		return err
	}
	if decision == apiclient.DecisionApprove && res.AddedCount == 0 {
		// the backend has already moved the record out of pending, so the
		// listing must refresh even though the caller gets a failure
		zerr := &ZeroRowsError{UploadID: id, Errors: res.Errors}
		w.mu.Lock()
		w.detail = nil
		w.mu.Unlock()
		if rerr := w.Refresh(ctx); rerr != nil {
			slog.Warn("post-review refresh failed", slog.Int("upload_id", id), slog.String("error", rerr.Error()))
		}
		w.mu.Lock()
		w.lastErr = zerr.Error()
		w.mu.Unlock()
		return zerr
	}

	w.mu.Lock()
	w.detail = nil
	w.lastErr = ""
	w.mu.Unlock()

	if rerr := w.Refresh(ctx); rerr != nil {
		slog.Warn("post-review refresh failed", slog.Int("upload_id", id), slog.String("error", rerr.Error()))
	}
	w.after(w.recountDelay, func() {
		w.RefreshCounts(context.Background())
	})
	return nil
}

// ZeroRowsError is an approval the backend accepted without adding a single
// row to the catalog. It must reach the user as a failure, not a success
// toast; Error carries the leading per-row messages.
type ZeroRowsError struct {
	UploadID int
	Errors   []string
}

func (e *ZeroRowsError) Error() string {
	msg := fmt.Sprintf("upload %d was approved but no rows were added to the catalog", e.UploadID)
	if len(e.Errors) == 0 {
		return msg
	}
	shown := e.Errors
	more := 0
	if len(shown) > maxDisplayedErrors {
		more = len(shown) - maxDisplayedErrors
		shown = shown[:maxDisplayedErrors]
	}
	msg += ": " + strings.Join(shown, "; ")
	if more > 0 {
		msg += fmt.Sprintf(" (and %d more)", more)
	}
	return msg
}
