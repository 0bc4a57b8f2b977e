// Package approval implements the human-in-the-loop gate keyed by execution
// id: at most one outstanding request per execution, resolved exactly once
// by resolve, cancel, or timeout. Grounded on the source's ApprovalManager,
// modeled here as a mutex-guarded state machine with a one-shot channel in
// place of asyncio.Future, per spec.md §9's "Future-based approval" note.
package approval

import (
	"sync"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

// DefaultTimeoutSeconds is the timeout reported for a request created
// without an explicit timeout; no timer is armed for such a request.
const DefaultTimeoutSeconds = 300

// Recorder persists one resolved approval row. The coordinator calls it
// synchronously under its own lock release, never while holding the
// coordinator's mutex, so an implementation backed by the document store can
// block without risking a deadlock with Resolve/Cancel.
type Recorder func(core.ApprovalRecord)

type pendingRequest struct {
	message          string
	createdAt        time.Time
	timeoutSeconds   float64
	defaultOnTimeout bool
	resultCh         chan bool
	timer            *time.Timer
	resolved         bool
}

// Coordinator is the approval gate. Zero value is not usable; use New.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	record  Recorder
}

// New returns a Coordinator that calls record for every resolved request
// (record may be nil to discard the log, e.g. in tests).
func New(record Recorder) *Coordinator {
	if record == nil {
		record = func(core.ApprovalRecord) {}
	}
	return &Coordinator{pending: make(map[string]*pendingRequest), record: record}
}

// CreateRequest opens a new approval request for executionID, cancelling any
// prior outstanding request for the same id. It returns a channel that
// receives exactly one value: the resolved approval decision. If timeout > 0
// a timer arms that resolves to defaultOnTimeout when it fires.
func (c *Coordinator) CreateRequest(executionID, message string, timeout time.Duration, defaultOnTimeout bool) <-chan bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.pending[executionID]; ok {
		c.teardownLocked(executionID, prior)
	}

	req := &pendingRequest{
		message:          message,
		createdAt:        time.Now(),
		timeoutSeconds:   timeout.Seconds(),
		defaultOnTimeout: defaultOnTimeout,
		resultCh:         make(chan bool, 1),
	}
	if timeout <= 0 {
		req.timeoutSeconds = DefaultTimeoutSeconds
	}
	c.pending[executionID] = req

	if timeout > 0 {
		req.timer = time.AfterFunc(timeout, func() {
			c.resolveTimeout(executionID)
		})
	}
	return req.resultCh
}

func (c *Coordinator) resolveTimeout(executionID string) {
	c.mu.Lock()
	req, ok := c.pending[executionID]
	if !ok || req.resolved {
		c.mu.Unlock()
		return
	}
	req.resolved = true
	delete(c.pending, executionID)
	c.mu.Unlock()

	c.record(core.ApprovalRecord{
		ExecutionID: executionID,
		Message:     req.message,
		Action:      core.ApprovalTimeout,
		Source:      core.SourceTimeout,
		RespondedAt: time.Now().UTC().Format(time.RFC3339),
		WasTimeout:  true,
	})
	req.resultCh <- req.defaultOnTimeout
}

// Resolve completes the pending request for executionID with approved,
// recording source as the resolver. It returns false if there is no
// unresolved request for executionID. Safe to call from any goroutine;
// exactly one call among racing resolvers succeeds.
func (c *Coordinator) Resolve(executionID string, approved bool, source core.ApprovalSource) bool {
	c.mu.Lock()
	req, ok := c.pending[executionID]
	if !ok || req.resolved {
		c.mu.Unlock()
		return false
	}
	req.resolved = true
	delete(c.pending, executionID)
	if req.timer != nil {
		req.timer.Stop()
	}
	c.mu.Unlock()

	action := core.ApprovalRejected
	if approved {
		action = core.ApprovalApproved
	}
	c.record(core.ApprovalRecord{
		ExecutionID: executionID,
		Message:     req.message,
		Action:      action,
		Source:      source,
		RespondedAt: time.Now().UTC().Format(time.RFC3339),
	})
	req.resultCh <- approved
	return true
}

// Cancel tears down a pending request without recording an approval row.
// The result channel receives false with an implicit source of
// callback-cancel (the orchestrator distinguishes this from a real rejection
// by checking whether its run context was cancelled).
func (c *Coordinator) Cancel(executionID string) {
	c.mu.Lock()
	req, ok := c.pending[executionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, executionID)
	c.mu.Unlock()
	c.teardownLocked(executionID, req)
}

func (c *Coordinator) teardownLocked(executionID string, req *pendingRequest) {
	if req.resolved {
		return
	}
	req.resolved = true
	if req.timer != nil {
		req.timer.Stop()
	}
	req.resultCh <- false
}

// HasPending reports whether executionID has an outstanding request.
func (c *Coordinator) HasPending(executionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[executionID]
	return ok
}

// PendingInfo is the read-only snapshot returned by GetPendingInfo.
type PendingInfo struct {
	Message          string
	CreatedAt        time.Time
	TimeoutSeconds   float64
	RemainingSeconds float64
}

// GetPendingInfo returns the current state of executionID's pending
// request, if any.
func (c *Coordinator) GetPendingInfo(executionID string) (PendingInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[executionID]
	if !ok {
		return PendingInfo{}, false
	}
	elapsed := time.Since(req.createdAt).Seconds()
	remaining := req.timeoutSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return PendingInfo{
		Message:          req.message,
		CreatedAt:        req.createdAt,
		TimeoutSeconds:   req.timeoutSeconds,
		RemainingSeconds: remaining,
	}, true
}
