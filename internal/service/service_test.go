package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Save lock tests
// ─────────────────────────────────────────────────────────────

func TestSaveLocks_TryAcquire(t *testing.T) {
	var l service.ExportedSaveLocks

	require.True(t, l.TryAcquire("doc-1"), "first TryAcquire should succeed")
	assert.False(t, l.TryAcquire("doc-1"), "second TryAcquire for same document should fail")
	require.True(t, l.TryAcquire("doc-2"))
	l.Release("doc-1")
	l.Release("doc-2")

	require.True(t, l.TryAcquire("doc-1"), "TryAcquire should succeed after release")
	l.Release("doc-1")
}

func TestSaveLocks_AcquireWaits(t *testing.T) {
	var l service.ExportedSaveLocks
	require.True(t, l.TryAcquire("doc-a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx, "doc-a"), context.DeadlineExceeded)

	acquired := make(chan error, 1)
	go func() {
		acquired <- l.Acquire(context.Background(), "doc-a")
	}()
	time.Sleep(20 * time.Millisecond)
	l.Release("doc-a")

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after release")
	}
	l.Release("doc-a")
	l.Forget("doc-a")
}

func TestSaveLocks_Wait(t *testing.T) {
	var l service.ExportedSaveLocks
	require.True(t, l.TryAcquire("doc-a"))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		l.Wait(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release("doc-a")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// Emitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", nil)

	assert.Equal(t, []string{"test:event", "test:event2", "test:event"}, m.Names())
	assert.Equal(t, 2, m.Count("test:event"))
	assert.Equal(t, map[string]string{"foo": "bar"}, m.Events[0].Data)
}

func TestMultiEmitter_FansOut(t *testing.T) {
	a, b := &service.MockEmitter{}, &service.MockEmitter{}
	multi := service.MultiEmitter{a, nil, b, service.LogEmitter{}}
	multi.Emit(context.Background(), "x", 1)

	assert.Equal(t, []string{"x"}, a.Names())
	assert.Equal(t, []string{"x"}, b.Names())
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Landing Page":       "landing-page",
		"  Hello,  World!! ": "hello-world",
		"Café 2024":          "caf-2024",
		"---":                "page",
		"":                   "page",
	}
	for in, want := range tests {
		assert.Equal(t, want, service.Slugify(in), in)
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, service.ValidateSchedule("@every 30s"))
	assert.NoError(t, service.ValidateSchedule("*/5 * * * *"))
	assert.NoError(t, service.ValidateSchedule("0 */5 * * * *"))
	assert.Error(t, service.ValidateSchedule("every now and then"))
}
