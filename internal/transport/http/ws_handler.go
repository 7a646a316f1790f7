package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/progression"
)

const (
	defaultTickInterval = time.Second
	// defaultAnswerDelay holds the next question back so the answer feedback stays visible.
	defaultAnswerDelay = 300 * time.Millisecond
)

type WSHandler struct {
	service      *app.QuizService
	users        Users
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	tickInterval time.Duration
	answerDelay  time.Duration
}

// WSOption customises a WSHandler.
type WSOption func(*WSHandler)

// WithTickInterval sets how often the countdown is reconciled.
func WithTickInterval(d time.Duration) WSOption {
	return func(h *WSHandler) { h.tickInterval = d }
}

// WithAnswerDelay sets the pause between an accepted answer and the next question.
func WithAnswerDelay(d time.Duration) WSOption {
	return func(h *WSHandler) { h.answerDelay = d }
}

func NewWSHandler(service *app.QuizService, users Users, logger *zap.Logger, opts ...WSOption) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WSHandler{
		service: service,
		users:   users,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tickInterval: defaultTickInterval,
		answerDelay:  defaultAnswerDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Category     string `json:"category"`
	CategoryName string `json:"categoryName"`
	Difficulty   string `json:"difficulty"`
	Amount       int    `json:"amount"`
}

type answerPayload struct {
	Answer string `json:"answer"`
	// Index guards against a repeated click landing on the next question.
	Index *int `json:"index,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type resumedPayload struct {
	Resumed bool         `json:"resumed"`
	State   domain.State `json:"state"`
}

type abandonedPayload struct {
	Penalty *domain.PenaltyResult `json:"penalty,omitempty"`
	State   domain.State          `json:"state"`
}

// ServeWS upgrades HTTP requests to websockets and drives the caller's quiz session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			http.Error(w, "unknown user", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(r.Context())
	defer cancelCtx()
	logger := h.logger.With(zap.String("identity", identity.ID))

	session, resumed, err := h.service.Connect(ctx, identity)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: newErrorPayload(err)})
		return
	}
	defer h.service.Release(identity.ID)

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var workers sync.WaitGroup
	// holdUntil is the unix-nano instant before which state pushes are deferred.
	var holdUntil atomic.Int64

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	// single writer so the connection never sees concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		lastPhase := domain.PhaseIdle
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !h.waitHold(&holdUntil, closeSignals) {
					return
				}
				emit(outboundMessage[any]{Type: "state", Payload: update})
				if update.Phase == domain.PhaseCompleted && lastPhase != domain.PhaseCompleted {
					if summary, ok := session.Results(); ok {
						emit(outboundMessage[any]{Type: "completed", Payload: summary})
					}
				}
				lastPhase = update.Phase
			case <-closeSignals:
				return
			}
		}
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		ticker := time.NewTicker(h.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				session.Tick(ctx)
			case <-closeSignals:
				return
			}
		}
	}()

	emit(outboundMessage[any]{Type: "resumed", Payload: resumedPayload{Resumed: resumed, State: session.State()}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}})
					continue
				}
			}
			prefs := domain.Preferences{
				Category:     payload.Category,
				CategoryName: payload.CategoryName,
				Difficulty:   payload.Difficulty,
				Amount:       payload.Amount,
			}
			// acquisition may take seconds of retries; keep reading meanwhile
			workers.Add(1)
			go func() {
				defer workers.Done()
				if _, err := session.Start(ctx, prefs); err != nil {
					logger.Info("start rejected", zap.Error(err))
					emit(outboundMessage[any]{Type: "error", Payload: newErrorPayload(err)})
				}
			}()
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if h.answerDelay > 0 {
				holdUntil.Store(time.Now().Add(h.answerDelay).UnixNano())
			}
			var res domain.AnswerResult
			if payload.Index != nil {
				res, err = session.SubmitAnswerAt(ctx, *payload.Index, payload.Answer)
			} else {
				res, err = session.SubmitAnswer(ctx, payload.Answer)
			}
			if err != nil || !res.Accepted || res.Completed {
				holdUntil.Store(0)
			}
			if err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: newErrorPayload(err)})
				continue
			}
			emit(outboundMessage[any]{Type: "answerResult", Payload: res})
		case "abandon":
			penalty, err := session.Abandon(ctx)
			if err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: newErrorPayload(err)})
				continue
			}
			emit(outboundMessage[any]{Type: "abandoned", Payload: abandonedPayload{Penalty: penalty, State: session.State()}})
		case "resume":
			ok, err := session.Resume(ctx)
			if err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: newErrorPayload(err)})
				continue
			}
			emit(outboundMessage[any]{Type: "resumed", Payload: resumedPayload{Resumed: ok, State: session.State()}})
		case "state":
			emit(outboundMessage[any]{Type: "state", Payload: session.State()})
		default:
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	cancelCtx()
	workers.Wait()
	close(send)
	<-writerDone
}

// waitHold blocks until the presentation hold has passed. It reports false if the connection
// closed meanwhile.
func (h *WSHandler) waitHold(holdUntil *atomic.Int64, closeSignals <-chan struct{}) bool {
	until := holdUntil.Load()
	if until == 0 {
		return true
	}
	wait := time.Until(time.Unix(0, until))
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-closeSignals:
		return false
	}
}

func (h *WSHandler) identify(r *http.Request) (domain.Identity, error) {
	q := r.URL.Query()
	userID := q.Get("userId")
	name := q.Get("name")
	guest, _ := strconv.ParseBool(q.Get("guest"))

	if guest {
		if userID == "" {
			userID = uuid.NewString()
		}
		if name == "" {
			name = "Guest"
		}
		return domain.Identity{ID: identityKey(userID, true), Name: name, Guest: true}, nil
	}

	if userID == "" {
		return domain.Identity{}, errors.New("missing userId")
	}
	p, err := h.users.Progress(r.Context(), userID)
	if err != nil {
		return domain.Identity{}, err
	}
	if name == "" {
		name = p.Username
	}
	return domain.Identity{ID: p.UserID, Name: name}, nil
}

// identityKey namespaces guest ids so they never collide with registered usernames.
func identityKey(id string, guest bool) string {
	if guest {
		return "guest:" + id
	}
	return progression.UserKey(id)
}
