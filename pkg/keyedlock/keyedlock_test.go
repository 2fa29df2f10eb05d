package keyedlock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"vidgate/pkg/keyedlock"
)

func TestMutualExclusion(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tbl := keyedlock.New()
		ctx := t.Context()

		var holders, overlaps atomic.Int32

		done := make(chan struct{})

		for range 5 {
			go func() {
				defer func() { done <- struct{}{} }()

				h, err := tbl.Acquire(ctx, "key")
				if err != nil {
					t.Errorf("acquire failed: %v", err)

					return
				}

				if holders.Add(1) > 1 {
					overlaps.Add(1)
				}

				time.Sleep(10 * time.Millisecond)

				holders.Add(-1)
				h.Release()
			}()
		}

		for range 5 {
			<-done
		}
		synctest.Wait()

		if overlaps.Load() > 0 {
			t.Error("two goroutines held the same key at once")
		}

		if tbl.Len() != 0 {
			t.Errorf("expected empty table after release, got %d entries", tbl.Len())
		}
	})
}

func TestIndependentKeys(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tbl := keyedlock.New()
		ctx := t.Context()

		ha, err := tbl.Acquire(ctx, "a")
		if err != nil {
			t.Fatalf("acquire a: %v", err)
		}

		// A different key must not block behind "a".
		hb, err := tbl.Acquire(ctx, "b")
		if err != nil {
			t.Fatalf("acquire b: %v", err)
		}

		if tbl.Len() != 2 {
			t.Errorf("expected 2 entries, got %d", tbl.Len())
		}

		hb.Release()
		ha.Release()

		if tbl.Len() != 0 {
			t.Errorf("expected empty table, got %d entries", tbl.Len())
		}
	})
}

func TestAcquireCancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tbl := keyedlock.New()

		h, err := tbl.Acquire(t.Context(), "key")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		_, err = tbl.Acquire(ctx, "key")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}

		// The cancelled waiter must not leave a reference behind.
		h.Release()
		synctest.Wait()

		if tbl.Len() != 0 {
			t.Errorf("expected empty table after cancelled waiter, got %d entries", tbl.Len())
		}
	})
}

func TestDoubleRelease(t *testing.T) {
	tbl := keyedlock.New()

	h, err := tbl.Acquire(t.Context(), "key")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	h.Release()
	h.Release()

	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", tbl.Len())
	}

	// The key must be acquirable again.
	h2, err := tbl.Acquire(t.Context(), "key")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	h2.Release()
}
