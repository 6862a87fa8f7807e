package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/plot"
)

// fakeClock is a settable time source.
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestStore_CreateGetDelete(t *testing.T) {
	t.Parallel()

	var opened, closed atomic.Int32
	store := NewStore(time.Minute, WithHooks(func() { opened.Add(1) }, func() { closed.Add(1) }))

	a := store.Create()
	b := store.Create()
	if a.ID == b.ID {
		t.Fatal("expected distinct session ids")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}

	got, err := store.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("expected session a, got %v, %v", got, err)
	}

	if !store.Delete(a.ID) {
		t.Error("expected delete to report existing session")
	}
	if store.Delete(a.ID) {
		t.Error("expected second delete to report missing session")
	}
	if _, err := store.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if opened.Load() != 2 || closed.Load() != 1 {
		t.Errorf("unexpected hook counts: opened %d, closed %d", opened.Load(), closed.Load())
	}
}

func TestStore_GetRejectsMalformedIDs(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	for _, id := range []string{"", "abc", "../etc/passwd"} {
		if _, err := store.Get(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()

	t.Run("idle sessions expire on access", func(t *testing.T) {
		t.Parallel()

		clock := newClock()
		store := NewStore(time.Minute, WithClock(clock.Now))
		sess := store.Create()

		clock.Advance(50 * time.Second)
		if _, err := store.Get(sess.ID); err != nil {
			t.Fatalf("expected live session, got %v", err)
		}

		// The Get above refreshed the idle timer.
		clock.Advance(50 * time.Second)
		if _, err := store.Get(sess.ID); err != nil {
			t.Fatalf("expected refreshed session, got %v", err)
		}

		clock.Advance(61 * time.Second)
		if _, err := store.Get(sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("expected expired session removed, got %d", store.Len())
		}
	})

	t.Run("sweep removes expired sessions", func(t *testing.T) {
		t.Parallel()

		clock := newClock()
		store := NewStore(time.Minute, WithClock(clock.Now))
		store.Create()
		store.Create()
		clock.Advance(2 * time.Minute)
		fresh := store.Create()

		if n := store.Sweep(); n != 2 {
			t.Errorf("expected 2 removed, got %d", n)
		}
		if _, err := store.Get(fresh.ID); err != nil {
			t.Errorf("expected fresh session kept, got %v", err)
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		t.Parallel()

		clock := newClock()
		store := NewStore(0, WithClock(clock.Now))
		sess := store.Create()
		clock.Advance(24 * time.Hour)
		if store.Sweep() != 0 {
			t.Error("expected nothing removed")
		}
		if _, err := store.Get(sess.ID); err != nil {
			t.Errorf("expected session kept, got %v", err)
		}
	})
}

func TestStore_Janitor(t *testing.T) {
	t.Parallel()

	clock := newClock()
	store := NewStore(time.Minute, WithClock(clock.Now))
	store.Create()
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		store.Janitor(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not sweep")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestSession_Do(t *testing.T) {
	t.Parallel()

	t.Run("replaces and keeps the run", func(t *testing.T) {
		t.Parallel()

		sess := NewStore(0).Create()
		err := sess.Do(func(run *Run) (*Run, error) {
			if run != nil {
				t.Error("expected no run yet")
			}
			return NewRun("https://example.com/"), nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_ = sess.Do(func(run *Run) (*Run, error) {
			return nil, errors.New("step failed")
		})

		_ = sess.View(func(run *Run) error {
			if run == nil || run.Target != "https://example.com/" {
				t.Errorf("expected run kept, got %+v", run)
			}
			return nil
		})
	})

	t.Run("concurrent Do is rejected", func(t *testing.T) {
		t.Parallel()

		sess := NewStore(0).Create()
		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error)

		go func() {
			done <- sess.Do(func(*Run) (*Run, error) {
				close(started)
				<-release
				return nil, nil
			})
		}()
		<-started

		if err := sess.Do(func(*Run) (*Run, error) { return nil, nil }); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
		if err := sess.View(func(*Run) error { return nil }); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy from View, got %v", err)
		}

		close(release)
		if err := <-done; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := sess.View(func(*Run) error { return nil }); err != nil {
			t.Errorf("expected idle session, got %v", err)
		}
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.com/")
	ok := model.NewPageRecord("https://example.com/", "Home", "text")
	ok.Vector = []float32{1}
	bad := model.NewPageRecord("https://example.com/a", "A", "text")
	bad.Vector = []float32{0}
	bad.Degraded = true
	run.Embedded = []*model.PageRecord{ok, bad}
	run.Figures["umap_2d"] = &plot.Figure{}
	run.Figures["pca_2d"] = &plot.Figure{}

	if run.Degraded() != 1 {
		t.Errorf("expected 1 degraded record, got %d", run.Degraded())
	}
	keys := run.FigureKeys()
	if len(keys) != 2 || keys[0] != "pca_2d" || keys[1] != "umap_2d" {
		t.Errorf("unexpected keys %v", keys)
	}

	cause := errors.New("boom")
	run.AddError("embed", cause)
	if len(run.Errors) != 1 || run.Errors[0].Error() != "embed: boom" || !errors.Is(run.Errors[0], cause) {
		t.Errorf("unexpected errors %v", run.Errors)
	}

	run.ResetEmbeddings()
	if run.Embedded != nil || len(run.Figures) != 0 {
		t.Error("expected derived state cleared")
	}
}
