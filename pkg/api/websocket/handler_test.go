package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/synapse/pkg/adapters/events/memory"
	storagememory "github.com/aescanero/synapse/pkg/adapters/storage/memory"
	"github.com/aescanero/synapse/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type streamFixture struct {
	bus     *eventsmemory.InMemoryEventBus
	storage *storagememory.InMemoryRunStorage
	url     string
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &streamFixture{
		bus:     eventsmemory.NewInMemoryEventBus(),
		storage: storagememory.NewInMemoryRunStorage(),
	}

	router := gin.New()
	router.GET("/runs/:id/ws", NewHandler(f.bus, f.storage, zap.NewNop()).HandleRunStream)
	srv := httptest.NewServer(router)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Cleanup(func() {
		srv.Close()
		_ = f.bus.Close()
	})
	return f
}

func (f *streamFixture) save(t *testing.T, record *domain.RunRecord) {
	t.Helper()
	require.NoError(t, f.storage.SaveRun(context.Background(), record))
}

func (f *streamFixture) dial(t *testing.T, runID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"/runs/"+runID+"/ws", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readAll collects events until the server closes the stream.
func readAll(t *testing.T, conn *websocket.Conn) []domain.Event {
	t.Helper()
	var got []domain.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			return got
		}
		var ev domain.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		got = append(got, ev)
	}
}

func TestHandleRunStream(t *testing.T) {
	f := newStreamFixture(t)
	f.save(t, &domain.RunRecord{ID: "run-1", Status: domain.RunStatusRunning, SubmittedAt: time.Now()})
	conn := f.dial(t, "run-1")

	require.Eventually(t, func() bool {
		return f.bus.SubscriberCount(domain.TopicRunEvents) == 1 && f.bus.SubscriberCount(domain.TopicNodeEvents) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	publish := func(topic string, ev domain.Event) {
		ev.Timestamp = time.Now()
		require.NoError(t, f.bus.Publish(ctx, topic, ev))
	}
	publish(domain.TopicRunEvents, domain.Event{ID: "other", Type: domain.EventTypeRunStarted, RunID: "run-2"})
	publish(domain.TopicRunEvents, domain.Event{ID: "e1", Type: domain.EventTypeRunStarted, RunID: "run-1"})
	publish(domain.TopicNodeEvents, domain.Event{ID: "e2", Type: domain.EventTypeNodeSucceeded, RunID: "run-1", NodeID: "n1"})
	publish(domain.TopicRunEvents, domain.Event{ID: "e3", Type: domain.EventTypeRunCompleted, RunID: "run-1"})

	var ids []string
	for _, ev := range readAll(t, conn) {
		assert.Equal(t, "run-1", ev.RunID)
		ids = append(ids, ev.ID)
	}
	assert.ElementsMatch(t, []string{"e1", "e2", "e3"}, ids)
}

func TestHandleRunStreamFinishedRun(t *testing.T) {
	f := newStreamFixture(t)
	completed := time.Now()
	f.save(t, &domain.RunRecord{
		ID:          "done",
		Status:      domain.RunStatusFailed,
		SubmittedAt: completed.Add(-time.Second),
		CompletedAt: &completed,
		Report:      &domain.RunReport{RunID: "done", Success: false, Message: "node x (bogus) failed"},
	})

	events := readAll(t, f.dial(t, "done"))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeRunFailed, events[0].Type)
	assert.Equal(t, "done", events[0].RunID)
	assert.Equal(t, "failed", events[0].Data["status"])
	assert.Equal(t, false, events[0].Data["success"])
	assert.Equal(t, "node x (bogus) failed", events[0].Data["message"])
	assert.Eventually(t, func() bool {
		return f.bus.SubscriberCount(domain.TopicRunEvents) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHandleRunStreamUnknownRun(t *testing.T) {
	f := newStreamFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url+"/runs/missing/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRunStreamUnsubscribesOnDisconnect(t *testing.T) {
	f := newStreamFixture(t)
	f.save(t, &domain.RunRecord{ID: "run-1", Status: domain.RunStatusSubmitted, SubmittedAt: time.Now()})
	conn := f.dial(t, "run-1")

	require.Eventually(t, func() bool {
		return f.bus.SubscriberCount(domain.TopicRunEvents) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return f.bus.SubscriberCount(domain.TopicRunEvents) == 0 && f.bus.SubscriberCount(domain.TopicNodeEvents) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
