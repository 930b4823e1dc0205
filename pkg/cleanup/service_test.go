package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePurger struct {
	mu    sync.Mutex
	calls int
	rows  int64
	err   error
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, retentionDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rows, f.err
}

func (f *fakePurger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestService_RunsImmediatelyOnStart(t *testing.T) {
	purger := &fakePurger{rows: 3}
	svc := NewService(&Config{RetentionDays: 30, CleanupInterval: time.Hour}, purger)

	svc.Start(context.Background())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return purger.callCount() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestService_RunsOnTicker(t *testing.T) {
	purger := &fakePurger{}
	svc := NewService(&Config{RetentionDays: 30, CleanupInterval: 20 * time.Millisecond}, purger)

	svc.Start(context.Background())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return purger.callCount() >= 3 }, time.Second, 10*time.Millisecond)
}

func TestService_StopIsIdempotent(t *testing.T) {
	svc := NewService(&Config{RetentionDays: 30, CleanupInterval: time.Hour}, &fakePurger{})
	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()
}

func TestService_PurgeErrorDoesNotPanic(t *testing.T) {
	purger := &fakePurger{err: assertErr{}}
	svc := NewService(&Config{RetentionDays: 30, CleanupInterval: time.Hour}, purger)
	svc.Start(context.Background())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return purger.callCount() >= 1 }, time.Second, 10*time.Millisecond)
}

type assertErr struct{}

func (assertErr) Error() string { return "purge failed" }
