package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

var testSession = models.SessionContext{AccountIdentifier: "ACC-1", UserID: "u-1", Token: "tok"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *PaymentsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPaymentsClient(srv.URL, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCustomerInfo_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/customers/info", r.URL.Path)
		assert.Equal(t, "233241234567", r.URL.Query().Get("phone"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "ACC-1", r.Header.Get("X-Account-ID"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"name": "Jane Doe"}})
	})

	customer, err := c.CustomerInfo(context.Background(), testSession, "233241234567")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", customer.Name)
	assert.Equal(t, "233241234567", customer.Phone)
}

func TestCustomerInfo_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "no such customer"})
		}},
		{"empty name", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"name": ""}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.CustomerInfo(context.Background(), testSession, "233241234567")
			assert.ErrorIs(t, err, models.ErrCustomerNotFound)
		})
	}
}

func TestCreateSubscription_PostsFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/subscriptions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateSubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 100.0, req.Amount)
		assert.Equal(t, "MTN", req.Network)

		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
			"id": "sub-1", "amount": req.Amount, "cycle": req.Cycle, "status": "PENDING_OTP",
		}})
	})

	sub, err := c.CreateSubscription(context.Background(), testSession, models.CreateSubscriptionRequest{
		Amount: 100, Cycle: "MON", Network: "MTN", Reference: "REF1", EndDate: "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "PENDING_OTP", sub.Status)
}

func TestCreateSubscription_MissingIDIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"amount": 100}})
	})

	_, err := c.CreateSubscription(context.Background(), testSession, models.CreateSubscriptionRequest{})
	var rejected *models.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, models.GenericErrorMessage, rejected.Message)
}

func TestRejections_UseServiceMessageOrFallback(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantMsg string
	}{
		{"message field", http.StatusBadRequest, map[string]any{"message": "Invalid OTP"}, "Invalid OTP"},
		{"error field", http.StatusUnprocessableEntity, map[string]any{"error": "OTP expired"}, "OTP expired"},
		{"success false on 200", http.StatusOK, map[string]any{"success": false, "message": "Wrong code"}, "Wrong code"},
		{"no message", http.StatusInternalServerError, map[string]any{}, models.GenericErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			err := c.AuthorizeOTP(context.Background(), testSession, "sub-1", "00000")
			var rejected *models.RejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, tt.wantMsg, rejected.Message)
			assert.Equal(t, opAuthorizeOTP, rejected.Operation)
		})
	}
}

func TestAuthorizeOTP_SendsCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/subscriptions/sub-1/authorize", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12345", body["otp"])
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	assert.NoError(t, c.AuthorizeOTP(context.Background(), testSession, "sub-1", "12345"))
}

func TestFirstPaymentAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/subscriptions/sub-1/first-payment":
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{
				"payment_id": "pay-1", "transaction_id": "tx-1", "status": "PROCESSING",
			}})
		case "/api/v1/subscriptions/sub-1/status":
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{
				"status": "ACTIVE", "payment_status": "SUCCESSFUL", "transaction_id": "tx-1",
			}})
		default:
			http.NotFound(w, r)
		}
	})

	result, err := c.FirstPayment(context.Background(), testSession, models.FirstPaymentRequest{
		SubscriptionID: "sub-1", Amount: 100, Reference: "PAY1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, "tx-1", result.TransactionID)

	status, err := c.SubscriptionStatus(context.Background(), testSession, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", status.SubscriptionID)
	assert.Equal(t, "SUCCESSFUL", status.PaymentStatus)
}

func TestListPayments_UsesAccountIdentifier(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ACC-1", r.URL.Query().Get("account"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": "p1", "amount": 10}, {"id": "p2", "amount": 20},
		}})
	})

	payments, err := c.ListPayments(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "p2", payments[1].ID)
}

func TestDo_TransportError(t *testing.T) {
	c := NewPaymentsClient("http://127.0.0.1:0", 200*time.Millisecond)

	_, err := c.ListSubscriptions(context.Background(), testSession)
	require.Error(t, err)
	var rejected *models.RejectedError
	assert.False(t, errors.As(err, &rejected))
}
