package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

type Fetcher[T any] func(ctx context.Context) ([]T, error)

// RefreshableList keeps a fetched list approximately fresh. At most one
// fetch runs at a time; ticks and manual refreshes that find one running
// are skipped, not queued.
type RefreshableList[T any] struct {
	name      string
	fetch     Fetcher[T]
	onRefresh func(ctx context.Context, items []T)

	inFlight atomic.Bool

	mu              sync.RWMutex
	items           []T
	lastRefreshedAt time.Time
	loading         bool
	lastErr         string
	interval        time.Duration
	ticker          *time.Ticker
	stop            chan struct{}
	closed          bool
}

func NewRefreshableList[T any](name string, fetch Fetcher[T], onRefresh func(ctx context.Context, items []T)) *RefreshableList[T] {
	return &RefreshableList[T]{
		name:      name,
		fetch:     fetch,
		onRefresh: onRefresh,
	}
}

// StartPolling re-arms the background poll; any earlier timer is cancelled first.
func (l *RefreshableList[T]) StartPolling(interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || interval <= 0 {
		return
	}
	l.stopLocked()

	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	l.ticker = ticker
	l.stop = stop
	l.interval = interval

	go l.poll(ticker, stop)
}

func (l *RefreshableList[T]) poll(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			_ = l.FetchOnce(context.Background(), false)
		}
	}
}

// StopPolling cancels the timer. Safe when not polling.
func (l *RefreshableList[T]) StopPolling() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *RefreshableList[T]) stopLocked() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
}

// Close stops polling; results of fetches still running are dropped.
func (l *RefreshableList[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.closed = true
}

func (l *RefreshableList[T]) AutoRefreshEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ticker != nil
}

// FetchOnce performs a single fetch. Background ticks pass showLoading=false
// so the list does not flash a loading state. A failed fetch keeps the
// previous items and records the error.
func (l *RefreshableList[T]) FetchOnce(ctx context.Context, showLoading bool) error {
	if !l.inFlight.CompareAndSwap(false, true) {
		telemetry.ListTicksSkipped.WithLabelValues(l.name).Inc()
		telemetry.Logger.Debug("Skipped list fetch, one already in flight", zap.String("list", l.name))
		return models.ErrFetchInFlight
	}
	defer l.inFlight.Store(false)

	if showLoading {
		l.mu.Lock()
		l.loading = true
		l.mu.Unlock()
	}

	items, err := l.fetch(ctx)

	l.mu.Lock()
	l.loading = false
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		l.lastErr = models.UserMessage(err)
		l.mu.Unlock()
		telemetry.ListFetches.WithLabelValues(l.name, "error").Inc()
		telemetry.Logger.Warn("List fetch failed", zap.String("list", l.name), zap.Error(err))
		return err
	}
	l.items = append(make([]T, 0, len(items)), items...)
	l.lastRefreshedAt = time.Now()
	l.lastErr = ""
	snapshot := append(make([]T, 0, len(l.items)), l.items...)
	l.mu.Unlock()

	telemetry.ListFetches.WithLabelValues(l.name, "ok").Inc()
	if l.onRefresh != nil {
		l.onRefresh(ctx, snapshot)
	}
	return nil
}

func (l *RefreshableList[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append(make([]T, 0, len(l.items)), l.items...)
}

func (l *RefreshableList[T]) LastRefreshedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRefreshedAt
}

func (l *RefreshableList[T]) View() models.ListView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	view := models.ListView{
		Name:               l.name,
		Items:              append(make([]T, 0, len(l.items)), l.items...),
		Count:              len(l.items),
		AutoRefreshEnabled: l.ticker != nil,
		Loading:            l.loading,
		Error:              l.lastErr,
	}
	if l.ticker != nil {
		view.Interval = l.interval
	}
	if !l.lastRefreshedAt.IsZero() {
		ts := l.lastRefreshedAt
		view.LastRefreshedAt = &ts
	}
	return view
}
