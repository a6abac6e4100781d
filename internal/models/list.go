package models

import "time"

const (
	ListPayments      = "payments"
	ListSubscriptions = "subscriptions"
)

type Payment struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Reference      string    `json:"reference"`
	CustomerPhone  string    `json:"customer_phone"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Network        string    `json:"network,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListView is the untyped rendering of a refreshable list.
type ListView struct {
	Name               string        `json:"name"`
	Items              any           `json:"items"`
	Count              int           `json:"count"`
	LastRefreshedAt    *time.Time    `json:"last_refreshed_at,omitempty"`
	AutoRefreshEnabled bool          `json:"auto_refresh_enabled"`
	Interval           time.Duration `json:"interval_ns,omitempty"`
	Loading            bool          `json:"loading"`
	Error              string        `json:"error,omitempty"`
}
