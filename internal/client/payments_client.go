package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

const (
	opCustomerInfo       = "customer_info"
	opCreateSubscription = "create_subscription"
	opAuthorizeOTP       = "authorize_otp"
	opResendOTP          = "resend_otp"
	opFirstPayment       = "first_payment"
	opSubscriptionStatus = "subscription_status"
	opListPayments       = "list_payments"
	opListSubscriptions  = "list_subscriptions"
)

// envelope is the payments API response wrapper. Success is optional;
// when absent the HTTP status decides.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// PaymentsClient talks to the payments API over HTTP JSON.
type PaymentsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPaymentsClient(baseURL string, timeout time.Duration) *PaymentsClient {
	return &PaymentsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *PaymentsClient) CustomerInfo(ctx context.Context, sc models.SessionContext, phone string) (*models.Customer, error) {
	var customer models.Customer
	path := "/api/v1/customers/info?phone=" + url.QueryEscape(phone)
	err := c.do(ctx, sc, opCustomerInfo, http.MethodGet, path, nil, &customer)
	if err != nil {
		var rejected *models.RejectedError
		if errors.As(err, &rejected) && rejected.StatusCode == http.StatusNotFound {
			return nil, models.ErrCustomerNotFound
		}
		return nil, err
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, models.ErrCustomerNotFound
	}
	if customer.Phone == "" {
		customer.Phone = phone
	}
	return &customer, nil
}

func (c *PaymentsClient) CreateSubscription(ctx context.Context, sc models.SessionContext, req models.CreateSubscriptionRequest) (*models.Subscription, error) {
	var sub models.Subscription
	if err := c.do(ctx, sc, opCreateSubscription, http.MethodPost, "/api/v1/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, models.NewRejectedError(opCreateSubscription, http.StatusOK, "")
	}
	return &sub, nil
}

func (c *PaymentsClient) AuthorizeOTP(ctx context.Context, sc models.SessionContext, subscriptionID, code string) error {
	path := "/api/v1/subscriptions/" + url.PathEscape(subscriptionID) + "/authorize"
	body := map[string]string{"otp": code}
	return c.do(ctx, sc, opAuthorizeOTP, http.MethodPost, path, body, nil)
}

func (c *PaymentsClient) ResendOTP(ctx context.Context, sc models.SessionContext, subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	path := "/api/v1/subscriptions/" + url.PathEscape(subscriptionID) + "/resend-otp"
	if err := c.do(ctx, sc, opResendOTP, http.MethodPost, path, nil, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, nil
	}
	return &sub, nil
}

func (c *PaymentsClient) FirstPayment(ctx context.Context, sc models.SessionContext, req models.FirstPaymentRequest) (*models.PaymentResult, error) {
	var result models.PaymentResult
	path := "/api/v1/subscriptions/" + url.PathEscape(req.SubscriptionID) + "/first-payment"
	if err := c.do(ctx, sc, opFirstPayment, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *PaymentsClient) SubscriptionStatus(ctx context.Context, sc models.SessionContext, subscriptionID string) (*models.SubscriptionStatus, error) {
	var status models.SubscriptionStatus
	path := "/api/v1/subscriptions/" + url.PathEscape(subscriptionID) + "/status"
	if err := c.do(ctx, sc, opSubscriptionStatus, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	if status.SubscriptionID == "" {
		status.SubscriptionID = subscriptionID
	}
	return &status, nil
}

func (c *PaymentsClient) ListPayments(ctx context.Context, sc models.SessionContext) ([]models.Payment, error) {
	var payments []models.Payment
	path := "/api/v1/payments?account=" + url.QueryEscape(sc.AccountIdentifier)
	if err := c.do(ctx, sc, opListPayments, http.MethodGet, path, nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (c *PaymentsClient) ListSubscriptions(ctx context.Context, sc models.SessionContext) ([]models.Subscription, error) {
	var subs []models.Subscription
	path := "/api/v1/subscriptions?account=" + url.QueryEscape(sc.AccountIdentifier)
	if err := c.do(ctx, sc, opListSubscriptions, http.MethodGet, path, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *PaymentsClient) do(ctx context.Context, sc models.SessionContext, operation, method, path string, payload, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "payments-api "+operation,
		attribute.String("http.method", method),
		attribute.String("payments_api.operation", operation),
	)
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		telemetry.ExternalCalls.WithLabelValues(operation, result).Inc()
		telemetry.ExternalCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		span.End()
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sc.Token)
	}
	if sc.AccountIdentifier != "" {
		req.Header.Set("X-Account-ID", sc.AccountIdentifier)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}

	failed := resp.StatusCode < 200 || resp.StatusCode >= 300 || (env.Success != nil && !*env.Success)
	if failed {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		telemetry.Logger.Warn("Payments API rejected call",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return models.NewRejectedError(operation, resp.StatusCode, msg)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", operation, err)
	}
	return nil
}
