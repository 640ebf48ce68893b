package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casekit/lexflow/pkg/schema"
)

// recordingDispatcher collects dispatched envelopes, optionally failing a
// configured set of envelope IDs once.
type recordingDispatcher struct {
	mu       sync.Mutex
	sent     []*schema.Envelope
	failOnce map[string]bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, env *schema.Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOnce[env.ID] {
		delete(d.failOnce, env.ID)
		return errors.New("gateway unavailable")
	}
	d.sent = append(d.sent, env)
	return nil
}

func (d *recordingDispatcher) Sent() []*schema.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]*schema.Envelope, len(d.sent))
	copy(cp, d.sent)
	return cp
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(id string, dispatchAt time.Time) *schema.Envelope {
	return &schema.Envelope{
		ID:         id,
		InstanceID: "wf-1",
		StepID:     "s1",
		Channel:    schema.ChannelEmail,
		Recipients: []string{"a@b.example"},
		DispatchAt: dispatchAt,
	}
}

func TestDispatchQueue_FlushSendsDueOnly(t *testing.T) {
	d := &recordingDispatcher{}
	q := NewDispatchQueue(d, quietLogger(), time.Minute)

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	q.clock = func() time.Time { return now }

	q.Enqueue(
		envelope("late", now.Add(time.Hour)),
		envelope("due", now.Add(-time.Minute)),
		envelope("exact", now),
	)
	require.Equal(t, 3, q.Len())

	sent := q.Flush(context.Background())
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, q.Len())

	ids := make([]string, 0, 2)
	for _, env := range d.Sent() {
		ids = append(ids, env.ID)
	}
	assert.ElementsMatch(t, []string{"due", "exact"}, ids)
}

func TestDispatchQueue_FailedEnvelopeRetained(t *testing.T) {
	d := &recordingDispatcher{failOnce: map[string]bool{"flaky": true}}
	q := NewDispatchQueue(d, quietLogger(), time.Minute)

	now := time.Now()
	q.clock = func() time.Time { return now }
	q.Enqueue(envelope("flaky", now.Add(-time.Second)))

	assert.Equal(t, 0, q.Flush(context.Background()))
	assert.Equal(t, 1, q.Len(), "failed envelope stays queued")

	assert.Equal(t, 1, q.Flush(context.Background()))
	assert.Equal(t, 0, q.Len())
}

func TestDispatchQueue_OrderedByDispatchTime(t *testing.T) {
	d := &recordingDispatcher{}
	q := NewDispatchQueue(d, quietLogger(), time.Minute)

	now := time.Now()
	q.clock = func() time.Time { return now }
	q.Enqueue(envelope("second", now.Add(-time.Minute)))
	q.Enqueue(envelope("first", now.Add(-time.Hour)))

	q.Flush(context.Background())
	sent := d.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].ID)
	assert.Equal(t, "second", sent[1].ID)
}

func TestDispatchQueue_StartStop(t *testing.T) {
	d := &recordingDispatcher{}
	q := NewDispatchQueue(d, quietLogger(), time.Hour)

	now := time.Now()
	q.clock = func() time.Time { return now }
	q.Enqueue(envelope("e1", now.Add(-time.Minute)))

	require.NoError(t, q.Start(context.Background()))
	assert.Error(t, q.Start(context.Background()), "double start rejected")

	// The initial tick runs immediately on start.
	assert.Eventually(t, func() bool { return len(d.Sent()) == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, q.Stop())
	require.NoError(t, q.Stop(), "stop is idempotent")
}

func TestDispatchQueue_DefaultInterval(t *testing.T) {
	q := NewDispatchQueue(&recordingDispatcher{}, quietLogger(), 0)
	assert.Equal(t, time.Minute, q.interval)
}
