package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

// PaymentsAPI is the external payments service the console drives.
type PaymentsAPI interface {
	CustomerInfo(ctx context.Context, sc models.SessionContext, phone string) (*models.Customer, error)
	CreateSubscription(ctx context.Context, sc models.SessionContext, req models.CreateSubscriptionRequest) (*models.Subscription, error)
	AuthorizeOTP(ctx context.Context, sc models.SessionContext, subscriptionID, code string) error
	ResendOTP(ctx context.Context, sc models.SessionContext, subscriptionID string) (*models.Subscription, error)
	FirstPayment(ctx context.Context, sc models.SessionContext, req models.FirstPaymentRequest) (*models.PaymentResult, error)
	SubscriptionStatus(ctx context.Context, sc models.SessionContext, subscriptionID string) (*models.SubscriptionStatus, error)
	ListPayments(ctx context.Context, sc models.SessionContext) ([]models.Payment, error)
	ListSubscriptions(ctx context.Context, sc models.SessionContext) ([]models.Subscription, error)
}
