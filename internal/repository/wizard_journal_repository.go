package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

type WizardJournalRepository struct {
	db *sql.DB
}

func NewWizardJournalRepository(db *sql.DB) *WizardJournalRepository {
	return &WizardJournalRepository{db: db}
}

func (r *WizardJournalRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS mandate_wizard_sessions (
			session_id VARCHAR(64) PRIMARY KEY,
			account_id VARCHAR(255) NOT NULL,
			stage VARCHAR(50) NOT NULL,
			previous_stage VARCHAR(50),
			subscription_id VARCHAR(255),
			payment_id VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mandate_wizard_sessions_stage ON mandate_wizard_sessions(stage)`,
		`CREATE INDEX IF NOT EXISTS idx_mandate_wizard_sessions_account ON mandate_wizard_sessions(account_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *WizardJournalRepository) InsertSession(ctx context.Context, sessionID, accountID string, stage models.Stage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mandate_wizard_sessions (session_id, account_id, stage, previous_stage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, accountID, stage, "")
	return err
}

// TransitionStage only moves the row when it is still in from.
func (r *WizardJournalRepository) TransitionStage(ctx context.Context, sessionID string, from, to models.Stage) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE mandate_wizard_sessions
		SET stage = $1, previous_stage = $2, updated_at = NOW()
		WHERE session_id = $3 AND stage = $4
	`, to, from, sessionID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *WizardJournalRepository) RecordReferences(ctx context.Context, sessionID, subscriptionID, paymentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mandate_wizard_sessions
		SET subscription_id = COALESCE(NULLIF($1, ''), subscription_id),
			payment_id = COALESCE(NULLIF($2, ''), payment_id),
			updated_at = NOW()
		WHERE session_id = $3
	`, subscriptionID, paymentID, sessionID)
	return err
}

func (r *WizardJournalRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.WizardRecord, error) {
	var (
		info           models.WizardRecord
		previousStage  sql.NullString
		subscriptionID sql.NullString
		paymentID      sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, account_id, stage, previous_stage, subscription_id, payment_id, created_at, updated_at
		FROM mandate_wizard_sessions WHERE session_id = $1
	`, sessionID).Scan(&info.SessionID, &info.AccountID, &info.Stage, &previousStage,
		&subscriptionID, &paymentID, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	info.PreviousStage = previousStage.String
	info.SubscriptionID = subscriptionID.String
	info.PaymentID = paymentID.String
	return &info, nil
}
