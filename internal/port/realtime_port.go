package port

import (
	"context"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type ChangeFeed interface {
	Subscribe(ctx context.Context, filter domain.ChangeFilter) (Subscription, error)
}

// Subscription delivers events until Close is called or the channel gives up reconnecting.
// Events is closed in both cases; Err reports why a closed subscription stopped.
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Err() error
	Close() error
}
