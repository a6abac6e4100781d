package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

type StagePublisher interface {
	PublishStageChange(ctx context.Context, event models.StageChangeEvent) error
}

type ListNotifier interface {
	NotifyRefreshed(ctx context.Context, accountID, kind string, items any) error
}

// PaymentGuard serializes first payments for a subscription across replicas.
type PaymentGuard interface {
	Acquire(ctx context.Context, subscriptionID, owner string) (bool, error)
	Release(ctx context.Context, subscriptionID, owner string) error
}
