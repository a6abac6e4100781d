package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/interfaces"
	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

// Poller is the untyped face of a RefreshableList.
type Poller interface {
	FetchOnce(ctx context.Context, showLoading bool) error
	StartPolling(interval time.Duration)
	StopPolling()
	AutoRefreshEnabled() bool
	View() models.ListView
	Close()
}

// ListRegistry lazily creates one poller per account and list kind.
// Fetches run with the session of the most recent caller for that account,
// so a manual refresh always carries the caller's own credentials.
type ListRegistry struct {
	api             interfaces.PaymentsAPI
	notifier        interfaces.ListNotifier
	defaultInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]*listEntry
}

type sessionKey struct{}

// WithSession binds the caller's session to a manual fetch.
func WithSession(ctx context.Context, sc models.SessionContext) context.Context {
	return context.WithValue(ctx, sessionKey{}, sc)
}

type listEntry struct {
	poller Poller

	mu       sync.Mutex
	session  models.SessionContext
	lastSeen time.Time
}

func (e *listEntry) touch(sc models.SessionContext, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = sc
	e.lastSeen = now
}

func (e *listEntry) current() models.SessionContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// sessionFor prefers the session bound to ctx by WithSession.
func (e *listEntry) sessionFor(ctx context.Context) models.SessionContext {
	if sc, ok := ctx.Value(sessionKey{}).(models.SessionContext); ok {
		return sc
	}
	return e.current()
}

func (e *listEntry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

func NewListRegistry(api interfaces.PaymentsAPI, notifier interfaces.ListNotifier, defaultInterval time.Duration) *ListRegistry {
	return &ListRegistry{
		api:             api,
		notifier:        notifier,
		defaultInterval: defaultInterval,
		now:             time.Now,
		entries:         make(map[string]*listEntry),
	}
}

func (r *ListRegistry) DefaultInterval() time.Duration { return r.defaultInterval }

func (r *ListRegistry) Get(sc models.SessionContext, kind string) (Poller, error) {
	key := sc.AccountIdentifier + "|" + kind

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.touch(sc, r.now())
		return e.poller, nil
	}

	e := &listEntry{}
	e.touch(sc, r.now())
	account := sc.AccountIdentifier

	switch kind {
	case models.ListPayments:
		e.poller = NewRefreshableList[models.Payment](kind, func(ctx context.Context) ([]models.Payment, error) {
			return r.api.ListPayments(ctx, e.sessionFor(ctx))
		}, func(ctx context.Context, items []models.Payment) {
			r.notify(ctx, account, kind, items)
		})
	case models.ListSubscriptions:
		e.poller = NewRefreshableList[models.Subscription](kind, func(ctx context.Context) ([]models.Subscription, error) {
			return r.api.ListSubscriptions(ctx, e.sessionFor(ctx))
		}, func(ctx context.Context, items []models.Subscription) {
			r.notify(ctx, account, kind, items)
		})
	default:
		return nil, models.ErrUnknownList
	}
	r.entries[key] = e
	return e.poller, nil
}

// SweepIdle closes pollers nobody has asked for within maxIdle, stopping
// their background polling.
func (r *ListRegistry) SweepIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []Poller
	for key, e := range r.entries {
		if e.idleSince().Before(cutoff) {
			idle = append(idle, e.poller)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, p := range idle {
		p.Close()
	}
	if len(idle) > 0 {
		telemetry.Logger.Info("Closed idle list pollers", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (r *ListRegistry) notify(ctx context.Context, accountID, kind string, items any) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyRefreshed(ctx, accountID, kind, items); err != nil {
		telemetry.Logger.Warn("Failed to push list refresh",
			zap.String("account_id", accountID),
			zap.String("list", kind),
			zap.Error(err),
		)
	}
}

func (r *ListRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.poller.Close()
		delete(r.entries, key)
	}
}
