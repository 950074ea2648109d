package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/audit"
	auditmemory "civreg/internal/audit/store/memory"
	id "civreg/pkg/domain"
)

type recordingPublisher struct {
	published []string
	failAfter int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, string(key))
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedEvents(t *testing.T, store *auditmemory.Store, n int) {
	t.Helper()
	for range n {
		err := store.Append(context.Background(), audit.Event{
			ID:            uuid.New(),
			ActorID:       id.UserID(uuid.New()),
			CertificateID: id.CertificateID(uuid.New()),
			Action:        string(audit.ActionCertificateCreated),
		})
		require.NoError(t, err)
	}
}

func TestDrainPublishesAndMarks(t *testing.T) {
	store := auditmemory.New()
	seedEvents(t, store, 3)

	pub := &recordingPublisher{failAfter: -1}
	relay := NewRelay(store, pub, discardLogger())

	require.NoError(t, relay.Drain(context.Background()))
	assert.Len(t, pub.published, 3)

	// Nothing left to deliver.
	remaining, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDrainEmptyOutbox(t *testing.T) {
	relay := NewRelay(auditmemory.New(), &recordingPublisher{failAfter: -1}, discardLogger())
	require.NoError(t, relay.Drain(context.Background()))
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	store := auditmemory.New()
	seedEvents(t, store, 3)

	pub := &recordingPublisher{failAfter: 1}
	relay := NewRelay(store, pub, discardLogger())

	require.NoError(t, relay.Drain(context.Background()), "publish failures are retried, not fatal")
	assert.Len(t, pub.published, 1)

	remaining, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "undelivered rows stay queued for the next tick")

	// Broker recovers; the next drain finishes the backlog.
	pub.failAfter = -1
	require.NoError(t, relay.Drain(context.Background()))
	remaining, err = store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDrainRespectsBatchSize(t *testing.T) {
	store := auditmemory.New()
	seedEvents(t, store, 5)

	pub := &recordingPublisher{failAfter: -1}
	relay := NewRelay(store, pub, discardLogger(), WithBatchSize(2))

	require.NoError(t, relay.Drain(context.Background()))
	assert.Len(t, pub.published, 2)
}
