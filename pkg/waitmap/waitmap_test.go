package waitmap_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"waitmap.dev/cmd/pkg/errors"
	"waitmap.dev/cmd/pkg/waitmap"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

const unit = 200 * time.Millisecond

func TestGetWaitsForInsert(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int]()

	var g errgroup.Group

	g.Go(func() error {
		time.Sleep(2 * unit)
		return m.Insert(ctx, "key", 7)
	})

	start := time.Now()

	v, err := m.Get(ctx, "key")
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Errorf("want 7, got %v", v)
	}

	elapsed := time.Since(start)
	if elapsed < 2*unit {
		t.Errorf("resolved after %v, before the insert could have run", elapsed)
	}
	if elapsed >= 5*unit/2 {
		t.Errorf("resolved after %v, too long after the insert", elapsed)
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestGetBroadcast(t *testing.T) {
	const n = 16

	ctx := context.Background()
	m := waitmap.New[string, int]()

	var (
		g  errgroup.Group
		wg sync.WaitGroup
	)

	got := make([]int, n)

	for i := range got {
		wg.Add(1)
		g.Go(func() error {
			wg.Done()
			v, err := m.Get(ctx, "key")
			if err != nil {
				return err
			}
			got[i] = v
			return nil
		})
	}

	wg.Wait()

	if err := m.Insert(ctx, "key", 7); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	want := make([]int, n)
	for i := range want {
		want[i] = 7
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values differ (-want +got):\n%s", diff)
	}
}

func TestInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, string]()

	if err := m.Insert(ctx, "key", "first"); err != nil {
		t.Fatal(err)
	}

	err := m.Insert(ctx, "key", "second")
	if !errors.Is(err, waitmap.ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}

	v, ok := m.TryGet("key")
	if !ok || v != "first" {
		t.Errorf("want (first, true), got (%v, %v)", v, ok)
	}
}

func TestTryGet(t *testing.T) {
	m := waitmap.New[string, int]()

	if v, ok := m.TryGet("key"); ok {
		t.Fatalf("unexpected value: %v", v)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("TryGet created an entry: len=%d", n)
	}
	if !m.IsEmpty() {
		t.Error("map is not empty")
	}
}

func TestGetCancel(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int]()

	tctx, cancel := context.WithTimeout(ctx, unit/2)
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := m.Get(tctx, "key")
		first <- err
	}()

	second := make(chan int, 1)
	sErr := make(chan error, 1)
	go func() {
		v, err := m.Get(ctx, "key")
		second <- v
		sErr <- err
	}()

	if err := <-first; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}

	if err := m.Insert(ctx, "key", 7); err != nil {
		t.Fatal(err)
	}

	if v, err := <-second, <-sErr; err != nil || v != 7 {
		t.Errorf("want (7, nil), got (%v, %v)", v, err)
	}
}

func TestCancelFreesCapacity(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int](waitmap.WithCapacity(1))

	tctx, cancel := context.WithTimeout(ctx, unit/4)
	defer cancel()

	if _, err := m.Get(tctx, "k1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}

	// The abandoned pending entry went with its last waiter, so the slot
	// is free again.
	if err := m.TryInsert("k2", 1); err != nil {
		t.Fatalf("want slot freed, got %v", err)
	}
}

func TestClose(t *testing.T) {
	const n = 4

	ctx := context.Background()
	m := waitmap.New[string, int]()

	keys := []string{"k1", "k2", "k3", "k4"}

	var (
		g  errgroup.Group
		wg sync.WaitGroup
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		g.Go(func() error {
			wg.Done()
			if _, err := m.Get(ctx, keys[i]); !errors.Is(err, waitmap.ErrClosed) {
				return errors.New("key %q: want ErrClosed, got %v", keys[i], err)
			}
			return nil
		})
	}

	wg.Wait()
	time.Sleep(unit / 4) // let every Get register

	m.Close()

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, "k5"); !errors.Is(err, waitmap.ErrClosed) {
		t.Errorf("get after close: want ErrClosed, got %v", err)
	}
	if err := m.Insert(ctx, "k5", 1); !errors.Is(err, waitmap.ErrClosed) {
		t.Errorf("insert after close: want ErrClosed, got %v", err)
	}
	if err := m.TryInsert("k5", 1); !errors.Is(err, waitmap.ErrClosed) {
		t.Errorf("try-insert after close: want ErrClosed, got %v", err)
	}
	if _, ok := m.TryGet("k1"); ok {
		t.Error("try-get after close: unexpected value")
	}
	if n := m.Len(); n != 0 {
		t.Errorf("len after close: want 0, got %d", n)
	}

	m.Close() // idempotent
}

func TestCloseUnblocksAdmission(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int](waitmap.WithCapacity(1))

	if err := m.Insert(ctx, "k1", 1); err != nil {
		t.Fatal(err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- m.Insert(ctx, "k2", 2)
	}()

	time.Sleep(unit / 4)
	m.Close()

	if err := <-blocked; !errors.Is(err, waitmap.ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}
}

func TestBoundedBlock(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int](waitmap.WithCapacity(1))

	if err := m.Insert(ctx, "k1", 1); err != nil {
		t.Fatal(err)
	}
	if err := m.TryInsert("k2", 2); !errors.Is(err, waitmap.ErrWouldBlock) {
		t.Fatalf("want ErrWouldBlock, got %v", err)
	}

	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- m.Insert(ctx, "k2", 2)
	}()

	time.Sleep(unit / 2)

	if v, ok := m.Remove("k1"); !ok || v != 1 {
		t.Fatalf("want (1, true), got (%v, %v)", v, ok)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < unit/2 {
		t.Errorf("insert admitted after %v, before the slot was freed", elapsed)
	}

	if v, ok := m.TryGet("k2"); !ok || v != 2 {
		t.Errorf("want (2, true), got (%v, %v)", v, ok)
	}
}

func TestBoundedEvictOldest(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int](
		waitmap.WithCapacity(2),
		waitmap.WithPolicy(waitmap.PolicyEvictOldest),
	)

	for i, key := range []string{"a", "b", "c"} {
		if err := m.Insert(ctx, key, i); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := m.TryGet("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	for i, key := range []string{"b", "c"} {
		if v, ok := m.TryGet(key); !ok || v != i+1 {
			t.Errorf("key %q: want (%d, true), got (%v, %v)", key, i+1, v, ok)
		}
	}
	if n := m.Len(); n != 2 {
		t.Errorf("want len 2, got %d", n)
	}
}

func TestRemovePending(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int]()

	got := make(chan int, 1)
	gErr := make(chan error, 1)
	go func() {
		v, err := m.Get(ctx, "key")
		got <- v
		gErr <- err
	}()

	time.Sleep(unit / 4) // let the Get register

	if _, ok := m.Remove("key"); ok {
		t.Fatal("removed a pending entry")
	}

	if err := m.Insert(ctx, "key", 7); err != nil {
		t.Fatal(err)
	}
	if v, err := <-got, <-gErr; err != nil || v != 7 {
		t.Errorf("want (7, nil), got (%v, %v)", v, err)
	}
}

func TestBoundedGetAdmission(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int](waitmap.WithCapacity(1))

	got := make(chan int, 1)
	gErr := make(chan error, 1)
	go func() {
		v, err := m.Get(ctx, "k1")
		got <- v
		gErr <- err
	}()

	time.Sleep(unit / 4)

	// The pending entry occupies the only slot.
	if err := m.TryInsert("k2", 2); !errors.Is(err, waitmap.ErrWouldBlock) {
		t.Fatalf("want ErrWouldBlock, got %v", err)
	}

	// Resolving an existing key creates no entry and is exempt.
	if err := m.Insert(ctx, "k1", 1); err != nil {
		t.Fatal(err)
	}
	if v, err := <-got, <-gErr; err != nil || v != 1 {
		t.Fatalf("want (1, nil), got (%v, %v)", v, err)
	}

	if _, ok := m.Remove("k1"); !ok {
		t.Fatal("remove failed")
	}
	if err := m.TryInsert("k2", 2); err != nil {
		t.Errorf("want slot freed, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	m := waitmap.New[string, int]()

	if err := m.Insert(ctx, "key", 7); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.Remove("key"); !ok || v != 7 {
		t.Fatalf("want (7, true), got (%v, %v)", v, ok)
	}
	if _, ok := m.Remove("key"); ok {
		t.Error("second remove succeeded")
	}
	if !m.IsEmpty() {
		t.Error("map is not empty")
	}

	// A removed key is writable again.
	if err := m.Insert(ctx, "key", 8); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.TryGet("key"); !ok || v != 8 {
		t.Errorf("want (8, true), got (%v, %v)", v, ok)
	}
}
