// Package notify delivers settlement events to the notification channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/mmynk/tripledger/internal/models"
)

// Notifier receives settlement events after they are committed.
// Delivery is fire-and-forget: implementations must not block for long
// and have no way to fail the write that produced the event.
type Notifier interface {
	SettlementChanged(ctx context.Context, event models.SettlementEvent)
}

// LogNotifier writes every event to a structured logger. It is the default
// channel when no push integration is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SettlementChanged(ctx context.Context, event models.SettlementEvent) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "settlement changed",
		"group_id", event.GroupID,
		"expense_id", event.ExpenseID,
		"member_id", event.MemberID,
		"actor_id", event.ActorID,
		"status", event.Status,
	)
}

// Nop drops every event.
type Nop struct{}

func (Nop) SettlementChanged(context.Context, models.SettlementEvent) {}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, event models.SettlementEvent)

func (f Func) SettlementChanged(ctx context.Context, event models.SettlementEvent) { f(ctx, event) }
