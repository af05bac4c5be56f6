package intake

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/carewatch/internal/domain"
)

// ClaimCoordinator turns the messaging platform's idempotent per-message mark
// operation into a cross-instance mutual exclusion primitive: the first
// instance whose mark succeeds owns the right to process the message.
// Ownership is never released; the marker stays on the message.
type ClaimCoordinator struct {
	messenger domain.Messenger
	logger    *slog.Logger
}

// NewClaimCoordinator creates a coordinator backed by the given messenger.
func NewClaimCoordinator(messenger domain.Messenger, logger *slog.Logger) *ClaimCoordinator {
	return &ClaimCoordinator{
		messenger: messenger,
		logger:    logger.With("component", "claim_coordinator"),
	}
}

// TryClaim attempts to mark the message. A clean mark wins the claim; a
// conflict means another instance got there first. Any other failure is
// non-authoritative: the coordinator errs on the side of processing and
// leaves duplicate suppression to the instance-local dedup cache.
func (c *ClaimCoordinator) TryClaim(ctx context.Context, token, channel, ts string) bool {
	err := c.messenger.Mark(ctx, token, channel, ts)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrAlreadyMarked) {
		c.logger.Debug("claim lost to another instance", "channel", channel, "ts", ts)
		return false
	}

	c.logger.Warn("claim mark failed with non-conflict error, proceeding anyway",
		"channel", channel, "ts", ts, "error", err)
	return true
}
