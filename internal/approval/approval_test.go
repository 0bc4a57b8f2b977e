package approval

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

func TestCoordinator_ResolveDeliversResult(t *testing.T) {
	var recorded []core.ApprovalRecord
	var mu sync.Mutex
	c := New(func(r core.ApprovalRecord) {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, r)
	})

	ch := c.CreateRequest("exec-1", "please review", time.Minute, false)
	if !c.Resolve("exec-1", true, core.SourceCLI) {
		t.Fatalf("expected Resolve to succeed")
	}
	select {
	case v := <-ch:
		if !v {
			t.Fatalf("expected approved=true")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 || recorded[0].Action != core.ApprovalApproved {
		t.Fatalf("got records %+v", recorded)
	}
}

func TestCoordinator_ResolveTwiceOnlySucceedsOnce(t *testing.T) {
	c := New(nil)
	c.CreateRequest("exec-1", "msg", time.Minute, false)
	if !c.Resolve("exec-1", true, core.SourceCLI) {
		t.Fatalf("first resolve should succeed")
	}
	if c.Resolve("exec-1", false, core.SourceWeb) {
		t.Fatalf("second resolve should fail, request already resolved")
	}
}

func TestCoordinator_ConcurrentResolveExactlyOnce(t *testing.T) {
	c := New(nil)
	ch := c.CreateRequest("exec-1", "msg", time.Minute, false)

	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Resolve("exec-1", true, core.SourceCLI) {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful resolve, got %d", successes)
	}
	<-ch
}

func TestCoordinator_TimeoutResolvesDefault(t *testing.T) {
	var recorded core.ApprovalRecord
	c := New(func(r core.ApprovalRecord) { recorded = r })
	ch := c.CreateRequest("exec-1", "msg", 20*time.Millisecond, false)
	select {
	case v := <-ch:
		if v {
			t.Fatalf("expected default_on_timeout=false")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout resolution")
	}
	if recorded.Action != core.ApprovalTimeout || !recorded.WasTimeout {
		t.Fatalf("got record %+v", recorded)
	}
}

func TestCoordinator_CreateRequestCancelsPriorPending(t *testing.T) {
	c := New(nil)
	first := c.CreateRequest("exec-1", "first", time.Minute, false)
	c.CreateRequest("exec-1", "second", time.Minute, false)

	select {
	case v := <-first:
		if v {
			t.Fatalf("expected cancelled prior request to resolve false")
		}
	case <-time.After(time.Second):
		t.Fatal("prior request was never torn down")
	}
	if !c.HasPending("exec-1") {
		t.Fatalf("expected second request to be pending")
	}
}

func TestCoordinator_CancelTearsDownWithoutRecording(t *testing.T) {
	called := false
	c := New(func(core.ApprovalRecord) { called = true })
	ch := c.CreateRequest("exec-1", "msg", time.Minute, false)
	c.Cancel("exec-1")
	select {
	case v := <-ch:
		if v {
			t.Fatalf("expected cancel to resolve false")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not resolve the channel")
	}
	if called {
		t.Fatalf("cancel must not record an approval row")
	}
	if c.HasPending("exec-1") {
		t.Fatalf("expected no pending request after cancel")
	}
}

func TestCoordinator_GetPendingInfo(t *testing.T) {
	c := New(nil)
	c.CreateRequest("exec-1", "hello", 30*time.Second, false)
	info, ok := c.GetPendingInfo("exec-1")
	if !ok {
		t.Fatalf("expected pending info")
	}
	if info.Message != "hello" {
		t.Fatalf("message = %q", info.Message)
	}
	if info.RemainingSeconds <= 0 || info.RemainingSeconds > 30 {
		t.Fatalf("remaining = %v, want (0, 30]", info.RemainingSeconds)
	}
}
