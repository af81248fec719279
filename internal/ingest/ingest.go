package ingest

import (
	"context"
	"log/slog"

	"loginguard/internal/model"
)

// SendNonBlocking hands a login to the engine channel, dropping it with a
// warning when the buffer is full rather than stalling the source.
func SendNonBlocking(ctx context.Context, out chan<- model.Login, login model.Login, logger *slog.Logger) bool {
	select {
	case out <- login:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("login channel full, dropping event", "user_id", login.UserID)
		}
		return false
	}
}
