package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/librarycatalog/catalog-server/internal/http/response"
)

// maxBodyBytes bounds the size of a GraphQL POST body.
const maxBodyBytes = 1 << 20

// Request is a GraphQL-over-HTTP request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// ParseRequest reads a GraphQL request from the query string of a GET or the
// JSON body of a POST.
func ParseRequest(r *http.Request) (Request, error) {
	var req Request

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return req, fmt.Errorf("variables must be a JSON object: %w", err)
			}
		}
	case http.MethodPost:
		if ct := r.Header.Get("Content-Type"); ct != "" {
			if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
				return req, fmt.Errorf("unsupported content type %q", ct)
			}
		}
		body := io.LimitReader(r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, fmt.Errorf("decode request body: %w", err)
		}
	default:
		return req, ErrMethodNotAllowed
	}

	if req.Query == "" {
		return req, errors.New("missing query")
	}
	return req, nil
}

// ErrMethodNotAllowed is returned by ParseRequest for methods other than GET and POST.
var ErrMethodNotAllowed = errors.New("method not allowed")

// Handler serves queries and mutations over HTTP.
type Handler struct {
	schema *graphql.Schema
	logger *slog.Logger
}

// NewHandler creates the /graphql handler.
func NewHandler(schema *graphql.Schema, logger *slog.Logger) *Handler {
	return &Handler{schema: schema, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		if errors.Is(err, ErrMethodNotAllowed) {
			response.MethodNotAllowed(w, "GET, POST", h.logger)
			return
		}
		response.BadRequest(w, err.Error(), h.logger)
		return
	}

	resp := h.schema.Exec(r.Context(), req.Query, req.OperationName, req.Variables)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("failed to write graphql response", slog.String("error", err.Error()))
	}
}
