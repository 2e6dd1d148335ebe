package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	eventQueue = 64
	// closeGrace keeps forwarding node events that trail the run's terminal
	// event on the other topic.
	closeGrace = 200 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunLookup returns the stored record of a run.
type RunLookup interface {
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	runs     RunLookup
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, runs RunLookup, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		runs:     runs,
		logger:   logger,
	}
}

// HandleRunStream streams the events of one run to the client. Unknown runs
// get a 404 before the upgrade. A run that already finished gets one final
// event built from its record, then a normal close.
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the lookup so a run finishing in between is not missed.
	events := make(chan domain.Event, eventQueue)
	if err := h.subscribe(ctx, runID, events); err != nil {
		h.logger.Error("failed to subscribe to events", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": "subscription failed"}})
		return
	}

	record, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Run not found"}})
			return
		}
		h.logger.Error("failed to look up run", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": err.Error()}})
		return
	}

	// Upgrade connection
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	if record.Status.IsTerminal() {
		final := finalEvent(record)
		if data, err := json.Marshal(final); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(final.Type)),
			time.Now().Add(writeWait))
		return
	}

	// Client messages are ignored; a read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send events to client
	var closing <-chan time.Time
	var closeReason string
	for {
		select {
		case <-ctx.Done():
			return
		case <-closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason),
				time.Now().Add(writeWait))
			return
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}

			if closing == nil && isTerminal(event.Type) {
				closeReason = string(event.Type)
				closing = time.After(closeGrace)
			}
		}
	}
}

// subscribe forwards the run's events from both topics into ch
func (h *Handler) subscribe(ctx context.Context, runID string, ch chan<- domain.Event) error {
	eventHandler := func(ctx context.Context, event domain.Event) error {
		if event.RunID != runID {
			return nil
		}

		// Send to channel (non-blocking)
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("run_id", runID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	for _, topic := range []string{domain.TopicRunEvents, domain.TopicNodeEvents} {
		if err := h.eventBus.Subscribe(ctx, topic, eventHandler); err != nil {
			return err
		}
	}
	return nil
}

// finalEvent replays the terminal event of a finished run from its record.
func finalEvent(record *domain.RunRecord) domain.Event {
	event := domain.Event{
		ID:    record.ID + ":final",
		Type:  domain.EventTypeRunCompleted,
		RunID: record.ID,
		Data:  map[string]interface{}{"status": string(record.Status)},
	}
	switch record.Status {
	case domain.RunStatusFailed:
		event.Type = domain.EventTypeRunFailed
	case domain.RunStatusCancelled:
		event.Type = domain.EventTypeRunCancelled
	}
	if record.CompletedAt != nil {
		event.Timestamp = *record.CompletedAt
	}
	if record.Report != nil {
		event.Data["success"] = record.Report.Success
		event.Data["message"] = record.Report.Message
	} else if record.Error != "" {
		event.Data["error"] = record.Error
	}
	return event
}

func isTerminal(t domain.EventType) bool {
	switch t {
	case domain.EventTypeRunCompleted, domain.EventTypeRunFailed, domain.EventTypeRunCancelled:
		return true
	}
	return false
}
