package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"recruitment-portal/internal/countdown"
	"recruitment-portal/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index  int    `json:"index"`
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message  string          `json:"message"`
	Kind     string          `json:"kind,omitempty"`
	Redirect domain.Redirect `json:"redirect,omitempty"`
}

func wsError(err error) outboundMessage[any] {
	_, body := errorResponse(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: body.Error, Kind: body.Kind, Redirect: body.Redirect}}
}

// ServeAttempt upgrades to a websocket bound to the caller's attempt on the
// domain query parameter. The attempt is started, or resumed if it is live,
// and every status change is pushed until the client disconnects.
func (h *Handler) ServeAttempt(w http.ResponseWriter, r *http.Request) {
	d, ok := domain.ParseDomain(r.URL.Query().Get("domain"))
	if !ok {
		http.Error(w, "missing or unknown domain", http.StatusBadRequest)
		return
	}
	uid := principalFrom(r.Context()).UID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	view, err := h.attempts.Start(r.Context(), uid, d)
	if err != nil {
		_ = conn.WriteJSON(wsError(err))
		return
	}

	updates, cancel, err := h.attempts.Subscribe(r.Context(), uid, d)
	if err != nil {
		_ = conn.WriteJSON(wsError(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.String("uid", uid), zap.Error(err))
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
				case send <- outboundMessage[any]{Type: "status", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "attempt", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if _, err := h.attempts.Answer(r.Context(), uid, d, payload.Index, payload.Answer); err != nil {
				send <- wsError(err)
			}
		case "navigate":
			var payload navigateRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid navigate payload"}}
				continue
			}
			move, err := parseMove(payload)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			if _, err := h.attempts.Navigate(r.Context(), uid, d, move); err != nil {
				send <- wsError(err)
			}
		case "submit":
			resp, err := h.attempts.Submit(r.Context(), uid, d)
			if err != nil {
				send <- wsError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: resp}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unknown message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// ServeCountdown streams snapshots of the timer named by the kind query
// parameter until the countdown reaches a terminal state or the client leaves.
func (h *Handler) ServeCountdown(w http.ResponseWriter, r *http.Request) {
	kind, err := timerKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only watches for the client going away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	engine := h.countdowns.Engine(ctx, kind)
	engine.Run(ctx, h.interval, h.countdowns.Now, func(s countdown.Snapshot) {
		if err := conn.WriteJSON(outboundMessage[countdown.Snapshot]{Type: "countdown", Payload: s}); err != nil {
			cancel()
		}
	})

	if ctx.Err() == nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "countdown finished"), deadline)
		select {
		case <-readerDone:
		case <-time.After(time.Second):
		}
	}
}
