package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

// WizardJournal defines the contract for recording wizard stage history
type WizardJournal interface {
	InsertSession(ctx context.Context, sessionID, accountID string, stage models.Stage) error
	TransitionStage(ctx context.Context, sessionID string, from, to models.Stage) (int64, error)
	RecordReferences(ctx context.Context, sessionID, subscriptionID, paymentID string) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.WizardRecord, error)
}
