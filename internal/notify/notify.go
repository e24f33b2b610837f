// Package notify carries follower notifications to the delivery system.
// The engine only posts advisories; transport is out of scope, so the
// default implementation records them in the log.
package notify

import (
	"context"
	"log/slog"
)

// LogNotifier logs advisories instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) NotifyFollowers(ctx context.Context, ownerID int64, message string) error {
	n.Logger.Info("follower advisory", "owner", ownerID, "message", message)
	return nil
}
