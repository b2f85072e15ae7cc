// Package sse serves GraphQL subscriptions over Server-Sent Events.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/librarycatalog/catalog-server/internal/graph"
	"github.com/librarycatalog/catalog-server/internal/http/response"
)

// DefaultHeartbeat is the interval between keep-alive comments.
const DefaultHeartbeat = 15 * time.Second

const writeTimeout = 60 * time.Second

// Handler streams the results of one GraphQL operation per connection.
// Subscriptions emit a next event per result; queries and mutations emit a
// single next event. Every stream ends with a complete event unless the
// client goes away first.
type Handler struct {
	schema    *graphql.Schema
	logger    *slog.Logger
	heartbeat atomic.Int64

	active    atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new SSE Handler.
func NewHandler(schema *graphql.Schema, logger *slog.Logger) *Handler {
	h := &Handler{
		schema: schema,
		logger: logger,
		done:   make(chan struct{}),
	}
	h.heartbeat.Store(int64(DefaultHeartbeat))
	return h
}

// SetHeartbeat changes the keep-alive interval for streams opened afterwards.
func (h *Handler) SetHeartbeat(d time.Duration) {
	h.heartbeat.Store(int64(d))
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	return int(h.active.Load())
}

// Close completes every open stream and rejects new ones. It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := graph.ParseRequest(r)
	if err != nil {
		if errors.Is(err, graph.ErrMethodNotAllowed) {
			response.MethodNotAllowed(w, "GET, POST", h.logger)
			return
		}
		response.BadRequest(w, err.Error(), h.logger)
		return
	}

	select {
	case <-h.done:
		response.GraphQLError(w, http.StatusServiceUnavailable, "server is shutting down", "UNAVAILABLE", h.logger)
		return
	default:
	}

	ctx := r.Context()
	results, err := h.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", slog.String("error", err.Error()))
		return
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	log := h.logger.With(slog.String("request_id", middleware.GetReqID(ctx)))
	log.Debug("stream opened", slog.String("operation", req.OperationName))

	heartbeat := time.NewTicker(time.Duration(h.heartbeat.Load()))
	defer heartbeat.Stop()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				h.complete(w, rc, log)
				return
			}
			if err := h.next(w, rc, result); err != nil {
				log.Debug("client disconnected during send", slog.String("error", err.Error()))
				return
			}

		case <-heartbeat.C:
			if err := h.flush(rc, writeComment(w, "heartbeat")); err != nil {
				log.Debug("client disconnected during heartbeat")
				return
			}

		case <-h.done:
			h.complete(w, rc, log)
			return

		case <-ctx.Done():
			log.Debug("stream closed by client")
			return
		}
	}
}

func (h *Handler) next(w http.ResponseWriter, rc *http.ResponseController, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return h.flush(rc, writeEvent(w, EventNext, data))
}

func (h *Handler) complete(w http.ResponseWriter, rc *http.ResponseController, log *slog.Logger) {
	if err := h.flush(rc, writeEvent(w, EventComplete, nil)); err != nil {
		log.Debug("failed to send complete", slog.String("error", err.Error()))
	}
}

// flush pushes buffered output to the client and extends the write deadline.
func (h *Handler) flush(rc *http.ResponseController, writeErr error) error {
	if writeErr != nil {
		return writeErr
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
