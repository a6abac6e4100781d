package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

// fakeAPI implements interfaces.PaymentsAPI with overridable behaviour and call counts.
type fakeAPI struct {
	mu    sync.Mutex
	calls  map[string]int
	args   map[string][]any
	tokens []string

	customerFn     func(ctx context.Context, phone string) (*models.Customer, error)
	createFn       func(ctx context.Context, req models.CreateSubscriptionRequest) (*models.Subscription, error)
	authorizeFn    func(ctx context.Context, id, code string) error
	resendFn       func(ctx context.Context, id string) (*models.Subscription, error)
	firstPaymentFn func(ctx context.Context, req models.FirstPaymentRequest) (*models.PaymentResult, error)
	statusFn       func(ctx context.Context, id string) (*models.SubscriptionStatus, error)
	paymentsFn     func(ctx context.Context) ([]models.Payment, error)
	subsFn         func(ctx context.Context) ([]models.Subscription, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: make(map[string]int),
		args:  make(map[string][]any),
	}
}

func (f *fakeAPI) record(op string, arg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.args[op] = append(f.args[op], arg)
}

func (f *fakeAPI) recordToken(sc models.SessionContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, sc.Token)
}

func (f *fakeAPI) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) argsFor(op string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.args[op]...)
}

func (f *fakeAPI) CustomerInfo(ctx context.Context, _ models.SessionContext, phone string) (*models.Customer, error) {
	f.record("customer_info", phone)
	if f.customerFn != nil {
		return f.customerFn(ctx, phone)
	}
	return &models.Customer{Phone: phone, Name: "Jane Doe"}, nil
}

func (f *fakeAPI) CreateSubscription(ctx context.Context, _ models.SessionContext, req models.CreateSubscriptionRequest) (*models.Subscription, error) {
	f.record("create_subscription", req)
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &models.Subscription{
		ID:            "sub-1",
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Amount:        req.Amount,
		Cycle:         req.Cycle,
		Status:        "PENDING_OTP",
		Network:       req.Network,
		Reference:     req.Reference,
		EndDate:       req.EndDate,
	}, nil
}

func (f *fakeAPI) AuthorizeOTP(ctx context.Context, _ models.SessionContext, id, code string) error {
	f.record("authorize_otp", code)
	if f.authorizeFn != nil {
		return f.authorizeFn(ctx, id, code)
	}
	return nil
}

func (f *fakeAPI) ResendOTP(ctx context.Context, _ models.SessionContext, id string) (*models.Subscription, error) {
	f.record("resend_otp", id)
	if f.resendFn != nil {
		return f.resendFn(ctx, id)
	}
	return &models.Subscription{ID: id, Status: "PENDING_OTP", Amount: 100}, nil
}

func (f *fakeAPI) FirstPayment(ctx context.Context, _ models.SessionContext, req models.FirstPaymentRequest) (*models.PaymentResult, error) {
	f.record("first_payment", req)
	if f.firstPaymentFn != nil {
		return f.firstPaymentFn(ctx, req)
	}
	return &models.PaymentResult{PaymentID: "pay-1", TransactionID: "tx-1", Status: "PROCESSING"}, nil
}

func (f *fakeAPI) SubscriptionStatus(ctx context.Context, _ models.SessionContext, id string) (*models.SubscriptionStatus, error) {
	f.record("subscription_status", id)
	if f.statusFn != nil {
		return f.statusFn(ctx, id)
	}
	return &models.SubscriptionStatus{SubscriptionID: id, Status: "ACTIVE", PaymentStatus: "SUCCESSFUL", TransactionID: "tx-1"}, nil
}

func (f *fakeAPI) ListPayments(ctx context.Context, sc models.SessionContext) ([]models.Payment, error) {
	f.record("list_payments", nil)
	f.recordToken(sc)
	if f.paymentsFn != nil {
		return f.paymentsFn(ctx)
	}
	return []models.Payment{{ID: "p1"}}, nil
}

func (f *fakeAPI) ListSubscriptions(ctx context.Context, sc models.SessionContext) ([]models.Subscription, error) {
	f.record("list_subscriptions", nil)
	f.recordToken(sc)
	if f.subsFn != nil {
		return f.subsFn(ctx)
	}
	return []models.Subscription{{ID: "s1"}}, nil
}

// fakeJournal records stage transitions in order.
type fakeJournal struct {
	mu          sync.Mutex
	inserted    []string
	transitions []string
	references  []string
	err         error
}

func (j *fakeJournal) InsertSession(_ context.Context, sessionID, _ string, _ models.Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inserted = append(j.inserted, sessionID)
	return j.err
}

func (j *fakeJournal) TransitionStage(_ context.Context, _ string, from, to models.Stage) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, fmt.Sprintf("%s->%s", from, to))
	return 1, j.err
}

func (j *fakeJournal) RecordReferences(_ context.Context, _ string, subscriptionID, paymentID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.references = append(j.references, subscriptionID+"|"+paymentID)
	return j.err
}

func (j *fakeJournal) GetBySessionID(_ context.Context, sessionID string) (*models.WizardRecord, error) {
	return &models.WizardRecord{SessionID: sessionID}, j.err
}

func (j *fakeJournal) Transitions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.transitions...)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishStageChange(ctx context.Context, event models.StageChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gate blocks a fake call until released, and reports when it was entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.entered <- struct{}{}
	<-g.release
}

func (g *gate) waitEntered() bool {
	select {
	case <-g.entered:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}
