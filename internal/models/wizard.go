package models

import "time"

type Stage string

const (
	StageCustomerLookup  Stage = "CUSTOMER_LOOKUP"
	StageMandateForm     Stage = "MANDATE_FORM"
	StageOTPPending      Stage = "OTP_PENDING"
	StageOTPVerified     Stage = "OTP_VERIFIED"
	StagePaymentPending  Stage = "PAYMENT_PENDING"
	StagePaymentComplete Stage = "PAYMENT_COMPLETE"
	// StageFailed is kept for journal compatibility only. Failures stay
	// attached to the current stage and never move a session here.
	StageFailed Stage = "FAILED"
)

// SessionContext identifies the dashboard user a controller acts for.
// It is passed in explicitly instead of being read from global state.
type SessionContext struct {
	AccountIdentifier string `json:"account_identifier"`
	UserID            string `json:"user_id"`
	Token             string `json:"-"`
}

type Customer struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// MandateFields is the mandate form as submitted by the dashboard.
type MandateFields struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Cycle     string  `json:"cycle"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reference string  `json:"reference" validate:"required"`
	Network   string  `json:"network" validate:"required"`
	StartDate string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CreateSubscriptionRequest struct {
	CustomerPhone string  `json:"customer_phone"`
	CustomerName  string  `json:"customer_name"`
	Amount        float64 `json:"amount"`
	Cycle         string  `json:"cycle"`
	StartDate     string  `json:"start_date,omitempty"`
	EndDate       string  `json:"end_date"`
	Reference     string  `json:"reference"`
	Network       string  `json:"network"`
	AccountID     string  `json:"account_identifier"`
}

// Subscription is the mandate record owned by the payments API.
type Subscription struct {
	ID            string    `json:"id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	Amount        float64   `json:"amount"`
	Cycle         string    `json:"cycle"`
	Status        string    `json:"status"`
	Network       string    `json:"network"`
	Reference     string    `json:"reference"`
	EndDate       string    `json:"end_date"`
	CreatedAt     time.Time `json:"created_at"`
}

type OTPAttempt struct {
	Code        string    `json:"code"`
	Verified    bool      `json:"verified"`
	Message     string    `json:"message,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type FirstPaymentRequest struct {
	SubscriptionID string  `json:"subscription_id"`
	Amount         float64 `json:"amount"`
	Reference      string  `json:"reference"`
}

type PaymentResult struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type SubscriptionStatus struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	TransactionID  string `json:"transaction_id"`
}

const (
	PaymentAttemptPending   = "PENDING"
	PaymentAttemptFailed    = "FAILED"
	PaymentAttemptSubmitted = "SUBMITTED"
)

// PaymentAttempt is created at most once per wizard session.
type PaymentAttempt struct {
	Reference        string     `json:"reference"`
	PaymentID        string     `json:"payment_id,omitempty"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	Status           string     `json:"status"`
	ExternalStatus   string     `json:"external_status,omitempty"`
	SettlementStatus string     `json:"settlement_status,omitempty"`
	Error            string     `json:"error,omitempty"`
	RequestedAt      time.Time  `json:"requested_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// WizardSnapshot is a read-only copy of a session for rendering.
type WizardSnapshot struct {
	SessionID     string          `json:"session_id"`
	Stage         Stage           `json:"stage"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerName  string          `json:"customer_name"`
	LookupPending bool            `json:"lookup_pending"`
	LookupError   string          `json:"lookup_error,omitempty"`
	Subscription  *Subscription   `json:"subscription,omitempty"`
	OTP           *OTPAttempt     `json:"otp,omitempty"`
	Payment       *PaymentAttempt `json:"payment,omitempty"`
	InFlight      string          `json:"in_flight,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Actions       map[string]bool `json:"actions"`
}

// StageChangeEvent is published on every wizard stage transition.
type StageChangeEvent struct {
	SessionID      string    `json:"session_id"`
	AccountID      string    `json:"account_identifier"`
	Stage          Stage     `json:"stage"`
	PreviousStage  Stage     `json:"previous_stage"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	PaymentID      string    `json:"payment_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// WizardRecord is the journal row for a session.
type WizardRecord struct {
	SessionID      string
	AccountID      string
	Stage          string
	PreviousStage  string
	SubscriptionID string
	PaymentID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
