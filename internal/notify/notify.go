// Package notify delivers order confirmations. The default implementation
// only logs; a real mail sender can replace it behind the same interface.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
)

// LogNotifier writes confirmations to the request log instead of sending
// mail. Useful for development and as a safe default in production until an
// SMTP sender is configured.
type LogNotifier struct{}

var _ order.Notifier = LogNotifier{}

func (LogNotifier) OrderConfirmation(ctx context.Context, email string, o *order.Order) error {
	zctx.From(ctx).Info("Order confirmation",
		zap.String("order_id", o.ID),
		zap.String("email", email),
		zap.String("total", o.TotalPrice.String()),
	)
	return nil
}
