package http

import (
	"context"
	"encoding/json"
	"net/http"

	"careerprep/internal/app"
	"careerprep/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Answer string `json:"answer"`
}

type resultPayload struct {
	Result    domain.QuizResult        `json:"result"`
	Record    *domain.AssessmentRecord `json:"record,omitempty"`
	SaveError string                   `json:"saveError,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Message:   err.Error(),
		Retryable: app.IsRetryable(err),
	}}
}

// ServeWS upgrades HTTP requests to websockets and drives one user's quiz session.
// Session snapshots (including countdown ticks) are pushed as "state" messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel := h.service.Subscribe(ctx, userID)
	// Deferred calls run last-in first-out: unsubscribe, then leave.
	defer h.service.Leave(context.Background(), userID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("user", userID), zap.Error(err))
				// Unblocks the read loop.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(ctx, userID, inbound); ok {
			if !deliver(send, writerDone, msg) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It reports false once the writer has exited.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// handle applies one client action. State changes reach the client through the
// subscription, so only errors and final results produce a direct reply.
func (h *WSHandler) handle(ctx context.Context, userID string, inbound inboundMessage) (outboundMessage[any], bool) {
	var (
		snap app.Snapshot
		err  error
	)
	switch inbound.Type {
	case "start":
		snap, err = h.service.Start(ctx, userID)
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}, true
		}
		snap, err = h.service.Select(ctx, userID, payload.Answer)
	case "submit":
		snap, err = h.service.Submit(ctx, userID)
	case "toggleExplanation":
		snap, err = h.service.ToggleExplanation(ctx, userID)
	case "next":
		snap, err = h.service.Next(ctx, userID)
	case "skip":
		snap, err = h.service.Skip(ctx, userID)
	case "finish":
		_, err = h.service.Finish(ctx, userID)
		snap, _ = h.service.Snapshot(ctx, userID)
	case "reset":
		snap, err = h.service.Reset(ctx, userID)
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}, true
	}

	if err != nil {
		h.logger.Debug("quiz action failed", zap.String("user", userID), zap.String("type", inbound.Type), zap.Error(err))
		return errorMessage(err), true
	}
	if snap.State == app.StateFinished && snap.Result != nil {
		return outboundMessage[any]{Type: "result", Payload: resultPayload{
			Result:    *snap.Result,
			Record:    snap.Record,
			SaveError: snap.SaveError,
		}}, true
	}
	return outboundMessage[any]{}, false
}
