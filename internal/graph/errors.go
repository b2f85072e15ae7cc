package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"

	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
)

// surface returns err in the form clients may see. Classified domain errors
// pass through so their extensions reach the response; anything else is
// logged and replaced by a generic INTERNAL error.
func (r *Resolver) surface(ctx context.Context, op string, err error) error {
	var de *domainerrors.Error
	if errors.As(err, &de) && de.Code != domainerrors.CodeInternal {
		return de
	}

	r.logger.ErrorContext(ctx, "resolver failed",
		slog.String("operation", op),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("error", err.Error()))
	return domainerrors.Internal("internal server error")
}
