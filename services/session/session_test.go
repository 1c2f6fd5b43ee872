package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calbook/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func sampleSession(id string) *models.Session {
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:        id,
		Timezone:  "UTC",
		Phase:     models.PhaseCollecting,
		Request:   models.BookingRequest{FromDate: "2025-03-12", ToDate: "2025-03-12"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrSessionNotFound", err)
	}

	s := sampleSession("abc")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Request.FromDate != "2025-03-12" || got.Phase != models.PhaseCollecting {
		t.Errorf("round trip lost data: %+v", got)
	}

	got.Phase = models.PhaseDone
	again, _ := store.Get(ctx, "abc")
	if again.Phase != models.PhaseCollecting {
		t.Errorf("mutating a loaded copy changed the stored session")
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !Gone(err) {
		t.Errorf("Get after Delete err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore(time.Hour, nil))
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30*time.Minute, nil)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Save(ctx, sampleSession("a"))
	_ = store.Save(ctx, sampleSession("b"))

	now = now.Add(31 * time.Minute)
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if n := store.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, 30*time.Minute, "")
	exerciseStore(t, store)

	ctx := context.Background()
	_ = store.Save(ctx, sampleSession("ttl"))
	if !mr.Exists(DefaultKeyPrefix + "ttl") {
		t.Fatalf("key not written with prefix")
	}
	if ttl := mr.TTL(DefaultKeyPrefix + "ttl"); ttl != 30*time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "ttl"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v after ttl", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestLocker_SerializesPerKey(t *testing.T) {
	t.Parallel()
	l := NewLocker()
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "s1")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if l.Len() != 0 {
		t.Errorf("idle keys not released: %d", l.Len())
	}
}

func TestLocker_IndependentKeysAndCancel(t *testing.T) {
	t.Parallel()
	l := NewLocker()
	unlockA, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	unlockB, err := l.Lock(context.Background(), "b")
	if err != nil {
		t.Fatalf("other key blocked: %v", err)
	}
	unlockB()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}
	if l.Len() != 1 {
		t.Errorf("cancelled waiter leaked, keys = %d", l.Len())
	}
}
