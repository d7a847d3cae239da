package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
	limit  int
	result int
	err    error
}

func (f *fakeExpirer) ExpirePending(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxAge, f.limit = maxAge, limit
	return f.result, f.err
}

func (f *fakeExpirer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunOncePassesTTLAndBatch(t *testing.T) {
	expirer := &fakeExpirer{result: 3}
	job := NewOrderExpirationJob(expirer, 15*time.Minute, time.Minute, 200)

	hooked := false
	job.AfterRun(func() { hooked = true })

	assert.Equal(t, 3, job.RunOnce(context.Background()))
	assert.Equal(t, 15*time.Minute, expirer.maxAge)
	assert.Equal(t, 200, expirer.limit)
	assert.True(t, hooked)
}

func TestRunOnceSurvivesErrors(t *testing.T) {
	expirer := &fakeExpirer{result: 1, err: errors.New("db down")}
	job := NewOrderExpirationJob(expirer, time.Minute, time.Minute, 10)

	assert.Equal(t, 1, job.RunOnce(context.Background()))
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	expirer := &fakeExpirer{}
	job := NewOrderExpirationJob(expirer, time.Minute, 10*time.Millisecond, 10)

	job.Start(context.Background())
	require.Eventually(t, func() bool { return expirer.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	job.Stop()
}
