package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu       sync.Mutex
	groupErr error
	batches  [][]redis.XMessage
	pending  []redis.XPendingExt
	claimed  map[string]redis.XMessage
	acked    []string
	groups   int
}

func (f *fakeStream) XGroupCreateMkStream(ctx context.Context, _, _, _ string) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups++
	cmd := redis.NewStatusCmd(ctx)
	if f.groupErr != nil {
		cmd.SetErr(f.groupErr)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (f *fakeStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewXStreamSliceCmd(ctx)
	if len(f.batches) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	cmd.SetVal([]redis.XStream{{Stream: a.Streams[0], Messages: batch}})
	return cmd
}

func (f *fakeStream) XAck(ctx context.Context, _, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeStream) XPendingExt(ctx context.Context, _ *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(f.pending)
	return cmd
}

func (f *fakeStream) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []redis.XMessage
	for _, id := range a.Messages {
		if msg, ok := f.claimed[id]; ok {
			out = append(out, msg)
		}
	}
	cmd := redis.NewXMessageSliceCmd(ctx)
	cmd.SetVal(out)
	return cmd
}

func (f *fakeStream) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ID)
	if h.fail[msg.ID] {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(client StreamClient, h MessageHandler) *Consumer {
	return NewConsumer(client, Options{
		Stream:        "documents:events",
		Group:         "document-workers",
		Consumer:      "worker-test",
		ClaimInterval: time.Minute,
	}, zerolog.Nop(), h)
}

func TestReadAcksOnlyHandledMessages(t *testing.T) {
	stream := &fakeStream{batches: [][]redis.XMessage{{
		{ID: "1-0", Values: map[string]interface{}{"type": "document.created"}},
		{ID: "2-0", Values: map[string]interface{}{"type": "document.stored"}},
	}}}
	handler := &recordingHandler{fail: map[string]bool{"2-0": true}}
	c := newTestConsumer(stream, handler)

	require.NoError(t, c.read(context.Background()))

	assert.Equal(t, []string{"1-0", "2-0"}, handler.seen)
	assert.Equal(t, []string{"1-0"}, stream.ackedIDs())
}

func TestReadTreatsEmptyStreamAsIdle(t *testing.T) {
	stream := &fakeStream{}
	c := newTestConsumer(stream, &recordingHandler{})
	assert.NoError(t, c.read(context.Background()))
}

func TestClaimStalledRetriesIdleMessages(t *testing.T) {
	stream := &fakeStream{
		pending: []redis.XPendingExt{
			{ID: "1-0", Idle: 2 * time.Minute},
			{ID: "2-0", Idle: time.Second},
		},
		claimed: map[string]redis.XMessage{
			"1-0": {ID: "1-0"},
			"2-0": {ID: "2-0"},
		},
	}
	handler := &recordingHandler{}
	c := newTestConsumer(stream, handler)

	require.NoError(t, c.claimStalled(context.Background()))

	assert.Equal(t, []string{"1-0"}, handler.seen)
	assert.Equal(t, []string{"1-0"}, stream.ackedIDs())
}

func TestStartToleratesExistingGroup(t *testing.T) {
	stream := &fakeStream{groupErr: errors.New("BUSYGROUP Consumer Group name already exists")}
	c := newTestConsumer(stream, &recordingHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stream.groups)
}

func TestStartFailsWhenGroupCannotBeCreated(t *testing.T) {
	stream := &fakeStream{groupErr: errors.New("NOPERM")}
	c := newTestConsumer(stream, &recordingHandler{})

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document-workers")
}
