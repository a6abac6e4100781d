package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/interfaces"
	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

// Actions reported in WizardSnapshot.Actions.
const (
	ActionEnterPhone          = "enter_phone"
	ActionCreateMandate       = "create_mandate"
	ActionAuthorizeOTP        = "authorize_otp"
	ActionResendOTP           = "resend_otp"
	ActionRequestFirstPayment = "request_first_payment"
	ActionRefreshSettlement   = "refresh_settlement"
	ActionReset               = "reset"
)

type WizardOptions struct {
	CountryCode    string
	LocalDigits    int
	OTPLength      int
	LookupDebounce time.Duration
	// LookupTimeout bounds debounced lookups, which have no caller context.
	LookupTimeout time.Duration
	// PaymentTimeout bounds the first payment, which outlives its caller.
	PaymentTimeout time.Duration
}

func DefaultWizardOptions() WizardOptions {
	return WizardOptions{
		CountryCode:    "233",
		LocalDigits:    9,
		OTPLength:      5,
		LookupDebounce: 800 * time.Millisecond,
		LookupTimeout:  15 * time.Second,
		PaymentTimeout: 15 * time.Second,
	}
}

// Wizard drives one mandate creation attempt through customer lookup,
// mandate creation, OTP authorization and the first payment.
//
// Network calls never run under mu. Results are applied only if the
// session epoch (bumped on reset/discard) and, for lookups, the lookup
// generation still match what was current when the call started.
type Wizard struct {
	id        string
	session   models.SessionContext
	api       interfaces.PaymentsAPI
	journal   interfaces.WizardJournal
	publisher interfaces.StagePublisher
	guard     interfaces.PaymentGuard
	validate  *validator.Validate
	opts      WizardOptions

	mu            sync.Mutex
	stage         models.Stage
	phone         string
	customerName  string
	lookupGen     uint64
	lookupTimer   *time.Timer
	lookupPending bool
	lookupErr     string
	subscription  *models.Subscription
	otp           *models.OTPAttempt
	payment       *models.PaymentAttempt
	inFlight      string
	lastErr       string
	epoch         uint64
	closed        bool
}

type WizardDeps struct {
	API       interfaces.PaymentsAPI
	Journal   interfaces.WizardJournal
	Publisher interfaces.StagePublisher
	Guard     interfaces.PaymentGuard
	Validate  *validator.Validate
}

func NewWizard(id string, session models.SessionContext, deps WizardDeps, opts WizardOptions) *Wizard {
	v := deps.Validate
	if v == nil {
		v = validator.New()
	}
	return &Wizard{
		id:        id,
		session:   session,
		api:       deps.API,
		journal:   deps.Journal,
		publisher: deps.Publisher,
		guard:     deps.Guard,
		validate:  v,
		opts:      opts,
		stage:     models.StageCustomerLookup,
	}
}

func (w *Wizard) ID() string { return w.id }

// NormalizePhone strips non-digits, a typed country code and the trunk zero, caps the local part at
// localDigits and prefixes the country code. ok reports a complete number.
func NormalizePhone(raw, countryCode string, localDigits int) (normalized, local string, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if countryCode != "" && len(digits) > localDigits && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	digits = strings.TrimPrefix(digits, "0")
	if len(digits) > localDigits {
		digits = digits[:localDigits]
	}
	return countryCode + digits, digits, len(digits) == localDigits
}

// EnterPhone records a phone edit. Any pending lookup is cancelled and any
// in-flight one is made stale; a new lookup is scheduled after the debounce
// period once the number is complete.
func (w *Wizard) EnterPhone(raw string) (models.WizardSnapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requirePhoneEditableLocked(); err != nil {
		return w.snapshotLocked(), err
	}

	normalized, _, complete := NormalizePhone(raw, w.opts.CountryCode, w.opts.LocalDigits)
	gen := w.supersedeLookupLocked()
	w.phone = normalized

	if complete {
		w.lookupPending = true
		w.lookupTimer = time.AfterFunc(w.opts.LookupDebounce, func() {
			ctx, cancel := context.WithTimeout(context.Background(), w.lookupTimeout())
			defer cancel()
			_, _ = w.runLookup(ctx, gen, normalized)
		})
	}
	return w.snapshotLocked(), nil
}

// LookupCustomer resolves the customer name immediately, bypassing the
// debounce. It still supersedes earlier lookups and is itself superseded by
// later edits, in which case ErrStaleResponse is returned.
func (w *Wizard) LookupCustomer(ctx context.Context, raw string) (*models.Customer, error) {
	w.mu.Lock()
	if err := w.requirePhoneEditableLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	normalized, _, complete := NormalizePhone(raw, w.opts.CountryCode, w.opts.LocalDigits)
	if !complete {
		w.mu.Unlock()
		return nil, &models.ValidationError{
			Field:   "phone",
			Message: fmt.Sprintf("phone number must have %d digits", w.opts.LocalDigits),
		}
	}
	gen := w.supersedeLookupLocked()
	w.phone = normalized
	w.lookupPending = true
	w.mu.Unlock()

	return w.runLookup(ctx, gen, normalized)
}

func (w *Wizard) requirePhoneEditableLocked() error {
	if w.closed {
		return models.ErrSessionDiscarded
	}
	if !phoneStage(w.stage) {
		return fmt.Errorf("%w: phone cannot change in %s", models.ErrStageNotAllowed, w.stage)
	}
	if w.inFlight != "" {
		return fmt.Errorf("%w: %s", models.ErrOperationInFlight, w.inFlight)
	}
	return nil
}

func phoneStage(stage models.Stage) bool {
	return stage == models.StageCustomerLookup || stage == models.StageMandateForm
}

// supersedeLookupLocked cancels the debounce timer, invalidates in-flight
// lookups and clears the name that belonged to the previous number.
func (w *Wizard) supersedeLookupLocked() uint64 {
	w.retireLookupLocked()
	w.lookupErr = ""
	w.customerName = ""
	return w.lookupGen
}

// retireLookupLocked stops any pending or in-flight lookup from landing.
func (w *Wizard) retireLookupLocked() {
	if w.lookupTimer != nil {
		w.lookupTimer.Stop()
		w.lookupTimer = nil
	}
	w.lookupGen++
	w.lookupPending = false
}

func (w *Wizard) lookupTimeout() time.Duration {
	if w.opts.LookupTimeout > 0 {
		return w.opts.LookupTimeout
	}
	return 15 * time.Second
}

func (w *Wizard) paymentTimeout() time.Duration {
	if w.opts.PaymentTimeout > 0 {
		return w.opts.PaymentTimeout
	}
	return 15 * time.Second
}

func (w *Wizard) runLookup(ctx context.Context, gen uint64, phone string) (*models.Customer, error) {
	w.mu.Lock()
	if w.closed || gen != w.lookupGen || !phoneStage(w.stage) {
		w.mu.Unlock()
		return nil, models.ErrStaleResponse
	}
	w.mu.Unlock()

	customer, err := w.api.CustomerInfo(ctx, w.session, phone)

	w.mu.Lock()
	if w.closed || gen != w.lookupGen || !phoneStage(w.stage) {
		w.mu.Unlock()
		telemetry.StaleLookupsDiscarded.Inc()
		telemetry.Logger.Debug("Discarded stale customer lookup",
			zap.String("session_id", w.id),
			zap.String("phone", phone),
		)
		return nil, models.ErrStaleResponse
	}
	w.lookupPending = false
	w.lookupTimer = nil

	if err != nil {
		w.customerName = ""
		w.lookupErr = models.UserMessage(err)
		w.mu.Unlock()
		telemetry.Logger.Info("Customer lookup failed",
			zap.String("session_id", w.id),
			zap.String("phone", phone),
			zap.Error(err),
		)
		return nil, err
	}

	w.customerName = customer.Name
	w.lookupErr = ""
	from := w.stage
	advanced := from == models.StageCustomerLookup
	if advanced {
		w.stage = models.StageMandateForm
	}
	epoch := w.epoch
	w.mu.Unlock()

	if advanced {
		w.recordTransition(ctx, epoch, from, models.StageMandateForm)
	}
	return customer, nil
}

// CreateMandate submits the mandate form for the resolved customer.
func (w *Wizard) CreateMandate(ctx context.Context, fields models.MandateFields) (*models.Subscription, error) {
	w.mu.Lock()
	if err := w.beginLocked(ActionCreateMandate, models.StageMandateForm); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.customerName == "" {
		w.inFlight = ""
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "customer", Message: "customer name has not been resolved"}
	}
	if err := w.validateFields(fields); err != nil {
		w.inFlight = ""
		w.mu.Unlock()
		return nil, err
	}
	req := models.CreateSubscriptionRequest{
		CustomerPhone: w.phone,
		CustomerName:  w.customerName,
		Amount:        fields.Amount,
		Cycle:         fields.Cycle,
		StartDate:     fields.StartDate,
		EndDate:       fields.EndDate,
		Reference:     strings.TrimSpace(fields.Reference),
		Network:       fields.Network,
		AccountID:     w.session.AccountIdentifier,
	}
	epoch := w.epoch
	w.mu.Unlock()

	sub, err := w.api.CreateSubscription(ctx, w.session, req)

	w.mu.Lock()
	if err := w.finishLocked(epoch); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if err != nil {
		w.lastErr = models.UserMessage(err)
		w.mu.Unlock()
		return nil, err
	}
	cached := *sub
	w.subscription = &cached
	w.lastErr = ""
	w.retireLookupLocked()
	w.stage = models.StageOTPPending
	w.mu.Unlock()

	w.recordReferences(ctx, sub.ID, "")
	w.recordTransition(ctx, epoch, models.StageMandateForm, models.StageOTPPending)
	out := cached
	return &out, nil
}

func (w *Wizard) validateFields(fields models.MandateFields) error {
	fields.Reference = strings.TrimSpace(fields.Reference)
	err := w.validate.Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &models.ValidationError{Field: fieldName(fe.Field()), Message: fieldMessage(fe)}
	}
	return &models.ValidationError{Field: "mandate", Message: err.Error()}
}

func fieldName(goField string) string {
	switch goField {
	case "EndDate":
		return "end_date"
	case "StartDate":
		return "start_date"
	default:
		return strings.ToLower(goField)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fieldName(fe.Field()) + " is required"
	case "gt":
		return fieldName(fe.Field()) + " must be greater than " + fe.Param()
	case "datetime":
		return fieldName(fe.Field()) + " must be a date in the form " + fe.Param()
	default:
		return fieldName(fe.Field()) + " is invalid"
	}
}

// AuthorizeOTP verifies the code sent to the customer. A rejected code
// leaves the session in OTP_PENDING with the entered code kept.
func (w *Wizard) AuthorizeOTP(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	if err := w.beginLocked(ActionAuthorizeOTP, models.StageOTPPending); err != nil {
		w.mu.Unlock()
		return err
	}
	if !isDigits(code) || len(code) != w.opts.OTPLength {
		w.inFlight = ""
		w.mu.Unlock()
		return &models.ValidationError{
			Field:   "otp",
			Message: fmt.Sprintf("OTP must be %d digits", w.opts.OTPLength),
		}
	}
	subscriptionID := w.subscription.ID
	w.otp = &models.OTPAttempt{Code: code, AttemptedAt: time.Now()}
	epoch := w.epoch
	w.mu.Unlock()

	err := w.api.AuthorizeOTP(ctx, w.session, subscriptionID, code)

	w.mu.Lock()
	if err := w.finishLocked(epoch); err != nil {
		w.mu.Unlock()
		return err
	}
	if err != nil {
		if w.otp != nil {
			w.otp.Verified = false
			w.otp.Message = models.UserMessage(err)
		}
		w.lastErr = models.UserMessage(err)
		w.mu.Unlock()
		return err
	}
	if w.otp != nil {
		w.otp.Verified = true
		w.otp.Message = ""
	}
	w.lastErr = ""
	w.stage = models.StageOTPVerified
	w.mu.Unlock()

	w.recordTransition(ctx, epoch, models.StageOTPPending, models.StageOTPVerified)
	return nil
}

// ResendOTP asks for a fresh code and clears the one entered locally.
func (w *Wizard) ResendOTP(ctx context.Context) (*models.Subscription, error) {
	w.mu.Lock()
	if err := w.beginLocked(ActionResendOTP, models.StageOTPPending); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	subscriptionID := w.subscription.ID
	epoch := w.epoch
	w.mu.Unlock()

	sub, err := w.api.ResendOTP(ctx, w.session, subscriptionID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(epoch); err != nil {
		return nil, err
	}
	if err != nil {
		w.lastErr = models.UserMessage(err)
		return nil, err
	}
	if sub != nil {
		cached := *sub
		w.subscription = &cached
	}
	w.otp = nil
	w.lastErr = ""
	out := *w.subscription
	return &out, nil
}

// RequestFirstPayment triggers the first installment. It runs at most once
// per session; the attempt is kept whatever its outcome.
func (w *Wizard) RequestFirstPayment(ctx context.Context, reference string) (*models.PaymentAttempt, error) {
	reference = strings.TrimSpace(reference)

	w.mu.Lock()
	if w.payment != nil {
		w.mu.Unlock()
		return nil, models.ErrPaymentAlreadyAttempted
	}
	if err := w.beginLocked(ActionRequestFirstPayment, models.StageOTPVerified); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.otp == nil || !w.otp.Verified {
		w.inFlight = ""
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: OTP has not been verified", models.ErrStageNotAllowed)
	}
	if reference == "" {
		w.inFlight = ""
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "reference", Message: "reference is required"}
	}
	sub := *w.subscription
	epoch := w.epoch
	w.mu.Unlock()

	// The payment runs to completion even if the caller goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.paymentTimeout())
	defer cancel()

	if w.guard != nil {
		acquired, err := w.guard.Acquire(ctx, sub.ID, w.id)
		if err != nil || !acquired {
			w.mu.Lock()
			if w.epoch == epoch {
				w.inFlight = ""
			}
			w.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("acquire first payment lock: %w", err)
			}
			return nil, models.ErrPaymentLocked
		}
		defer func() {
			if err := w.guard.Release(context.Background(), sub.ID, w.id); err != nil {
				telemetry.Logger.Warn("Failed to release first payment lock",
					zap.String("session_id", w.id),
					zap.String("subscription_id", sub.ID),
					zap.Error(err),
				)
			}
		}()
	}

	w.mu.Lock()
	if w.closed || w.epoch != epoch {
		w.mu.Unlock()
		return nil, models.ErrSessionDiscarded
	}
	w.payment = &models.PaymentAttempt{
		Reference:   reference,
		Status:      models.PaymentAttemptPending,
		RequestedAt: time.Now(),
	}
	w.stage = models.StagePaymentPending
	w.mu.Unlock()
	w.recordTransition(ctx, epoch, models.StageOTPVerified, models.StagePaymentPending)

	result, err := w.api.FirstPayment(ctx, w.session, models.FirstPaymentRequest{
		SubscriptionID: sub.ID,
		Amount:         sub.Amount,
		Reference:      reference,
	})

	w.mu.Lock()
	if err := w.finishLocked(epoch); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	now := time.Now()
	w.payment.CompletedAt = &now
	if err != nil {
		w.payment.Status = models.PaymentAttemptFailed
		w.payment.Error = models.UserMessage(err)
		w.lastErr = w.payment.Error
		w.mu.Unlock()
		telemetry.Logger.Warn("First payment failed",
			zap.String("session_id", w.id),
			zap.String("subscription_id", sub.ID),
			zap.Error(err),
		)
		return nil, err
	}
	w.payment.Status = models.PaymentAttemptSubmitted
	w.payment.PaymentID = result.PaymentID
	w.payment.TransactionID = result.TransactionID
	w.payment.ExternalStatus = result.Status
	w.lastErr = ""
	w.stage = models.StagePaymentComplete
	out := *w.payment
	w.mu.Unlock()

	w.recordReferences(ctx, "", result.PaymentID)
	w.recordTransition(ctx, epoch, models.StagePaymentPending, models.StagePaymentComplete)
	return &out, nil
}

// RefreshSettlement polls the subscription status after the first payment
// was accepted and caches the settlement outcome. The stage is unchanged.
func (w *Wizard) RefreshSettlement(ctx context.Context) (*models.SubscriptionStatus, error) {
	w.mu.Lock()
	if err := w.beginLocked(ActionRefreshSettlement, models.StagePaymentComplete); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	subscriptionID := w.subscription.ID
	epoch := w.epoch
	w.mu.Unlock()

	status, err := w.api.SubscriptionStatus(ctx, w.session, subscriptionID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(epoch); err != nil {
		return nil, err
	}
	if err != nil {
		w.lastErr = models.UserMessage(err)
		return nil, err
	}
	if status.Status != "" {
		w.subscription.Status = status.Status
	}
	w.payment.SettlementStatus = status.PaymentStatus
	if w.payment.TransactionID == "" {
		w.payment.TransactionID = status.TransactionID
	}
	w.lastErr = ""
	return status, nil
}

// Reset is the explicit "start over": everything cached is dropped and
// results of calls still in flight are ignored.
func (w *Wizard) Reset(ctx context.Context) models.WizardSnapshot {
	w.mu.Lock()
	from := w.stage
	w.clearLocked()
	w.stage = models.StageCustomerLookup
	epoch := w.epoch
	snap := w.snapshotLocked()
	w.mu.Unlock()

	if from != models.StageCustomerLookup {
		w.recordTransition(ctx, epoch, from, models.StageCustomerLookup)
	}
	return snap
}

// Close discards the session. Late results are ignored.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearLocked()
	w.closed = true
}

func (w *Wizard) clearLocked() {
	if w.lookupTimer != nil {
		w.lookupTimer.Stop()
		w.lookupTimer = nil
	}
	w.lookupGen++
	w.epoch++
	w.phone = ""
	w.customerName = ""
	w.lookupPending = false
	w.lookupErr = ""
	w.subscription = nil
	w.otp = nil
	w.payment = nil
	w.inFlight = ""
	w.lastErr = ""
}

// beginLocked checks the stage and claims the session for one operation.
func (w *Wizard) beginLocked(action string, required models.Stage) error {
	if w.closed {
		return models.ErrSessionDiscarded
	}
	if w.inFlight != "" {
		return fmt.Errorf("%w: %s", models.ErrOperationInFlight, w.inFlight)
	}
	if w.stage != required {
		return fmt.Errorf("%w: %s requires %s, session is %s", models.ErrStageNotAllowed, action, required, w.stage)
	}
	w.inFlight = action
	return nil
}

// finishLocked releases the operation claim unless the session moved on.
func (w *Wizard) finishLocked(epoch uint64) error {
	if w.closed || w.epoch != epoch {
		return models.ErrSessionDiscarded
	}
	w.inFlight = ""
	return nil
}

func (w *Wizard) recordTransition(ctx context.Context, epoch uint64, from, to models.Stage) {
	telemetry.StageTransitions.WithLabelValues(string(from), string(to)).Inc()
	telemetry.Logger.Info("Wizard stage transition",
		zap.String("session_id", w.id),
		zap.Uint64("epoch", epoch),
		zap.String("from_stage", string(from)),
		zap.String("to_stage", string(to)),
	)

	if w.journal != nil {
		rows, err := w.journal.TransitionStage(ctx, w.id, from, to)
		if err != nil {
			telemetry.Logger.Error("Failed to journal stage transition", zap.String("session_id", w.id), zap.Error(err))
		} else if rows == 0 {
			telemetry.Logger.Warn("Journal out of step with session",
				zap.String("session_id", w.id),
				zap.String("from_stage", string(from)),
				zap.String("to_stage", string(to)),
			)
		}
	}

	if w.publisher != nil {
		event := models.StageChangeEvent{
			SessionID:     w.id,
			AccountID:     w.session.AccountIdentifier,
			Stage:         to,
			PreviousStage: from,
			Timestamp:     time.Now(),
		}
		w.mu.Lock()
		if w.subscription != nil {
			event.SubscriptionID = w.subscription.ID
		}
		if w.payment != nil {
			event.PaymentID = w.payment.PaymentID
		}
		w.mu.Unlock()
		if err := w.publisher.PublishStageChange(ctx, event); err != nil {
			telemetry.Logger.Error("Failed to publish stage change", zap.String("session_id", w.id), zap.Error(err))
		}
	}
}

func (w *Wizard) recordReferences(ctx context.Context, subscriptionID, paymentID string) {
	if w.journal == nil {
		return
	}
	if err := w.journal.RecordReferences(ctx, w.id, subscriptionID, paymentID); err != nil {
		telemetry.Logger.Error("Failed to journal references", zap.String("session_id", w.id), zap.Error(err))
	}
}

// Snapshot returns a copy of the session, including which actions are
// currently enabled.
func (w *Wizard) Snapshot() models.WizardSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wizard) Stage() models.Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

func (w *Wizard) snapshotLocked() models.WizardSnapshot {
	snap := models.WizardSnapshot{
		SessionID:     w.id,
		Stage:         w.stage,
		CustomerPhone: w.phone,
		CustomerName:  w.customerName,
		LookupPending: w.lookupPending,
		LookupError:   w.lookupErr,
		InFlight:      w.inFlight,
		LastError:     w.lastErr,
	}
	if w.subscription != nil {
		sub := *w.subscription
		snap.Subscription = &sub
	}
	if w.otp != nil {
		otp := *w.otp
		snap.OTP = &otp
	}
	if w.payment != nil {
		p := *w.payment
		snap.Payment = &p
	}

	idle := w.inFlight == "" && !w.closed
	snap.Actions = map[string]bool{
		ActionEnterPhone:          idle && phoneStage(w.stage),
		ActionCreateMandate:       idle && w.stage == models.StageMandateForm && w.customerName != "",
		ActionAuthorizeOTP:        idle && w.stage == models.StageOTPPending,
		ActionResendOTP:           idle && w.stage == models.StageOTPPending,
		ActionRequestFirstPayment: idle && w.stage == models.StageOTPVerified && w.payment == nil,
		ActionRefreshSettlement:   idle && w.stage == models.StagePaymentComplete,
		ActionReset:               !w.closed,
	}
	return snap
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
