package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReaperStore struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (s *stubReaperStore) ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.n, s.err
}

func TestRunOnceUsesTTLCutoff(t *testing.T) {
	store := &stubReaperStore{n: 2}
	r := NewReaper(store, nil, nil).
		WithTTL(15 * time.Minute).
		WithNow(func() time.Time { return testNow })

	r.RunOnce(context.Background())

	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, testNow.Add(-15*time.Minute), store.cutoffs[0])
}

func TestRunOnceSurvivesStoreError(t *testing.T) {
	store := &stubReaperStore{err: errors.New("db down")}
	r := NewReaper(store, nil, nil)

	r.RunOnce(context.Background())
	require.Len(t, store.cutoffs, 1)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &stubReaperStore{}
	r := NewReaper(store, nil, nil).WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
	assert.NotEmpty(t, store.cutoffs)
}
