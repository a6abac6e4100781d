package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyRefreshed(_ context.Context, accountID, kind string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, accountID+"/"+kind)
	return nil
}

func TestListRegistry_GetReusesPollerPerAccountAndKind(t *testing.T) {
	r := NewListRegistry(newFakeAPI(), nil, 10*time.Second)
	defer r.CloseAll()

	p1, err := r.Get(testSession, models.ListPayments)
	require.NoError(t, err)
	p2, err := r.Get(testSession, models.ListPayments)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	other := models.SessionContext{AccountIdentifier: "ACC-2"}
	p3, err := r.Get(other, models.ListPayments)
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)

	_, err = r.Get(testSession, "collections")
	assert.ErrorIs(t, err, models.ErrUnknownList)
}

func TestListRegistry_FetchNotifies(t *testing.T) {
	api := newFakeAPI()
	notifier := &recordingNotifier{}
	r := NewListRegistry(api, notifier, 10*time.Second)
	defer r.CloseAll()

	subs, err := r.Get(testSession, models.ListSubscriptions)
	require.NoError(t, err)
	require.NoError(t, subs.FetchOnce(context.Background(), true))

	view := subs.View()
	assert.Equal(t, models.ListSubscriptions, view.Name)
	assert.Equal(t, 1, view.Count)
	assert.Equal(t, []models.Subscription{{ID: "s1"}}, view.Items)
	assert.Equal(t, []string{"ACC-1/subscriptions"}, notifier.calls)
	assert.Equal(t, 1, api.count("list_subscriptions"))
}

func TestListRegistry_FetchesUseLatestCallerSession(t *testing.T) {
	api := newFakeAPI()
	r := NewListRegistry(api, nil, 10*time.Second)
	defer r.CloseAll()

	alice := models.SessionContext{AccountIdentifier: "ACC-1", UserID: "alice", Token: "alice-expired"}
	bob := models.SessionContext{AccountIdentifier: "ACC-1", UserID: "bob", Token: "bob-fresh"}

	_, err := r.Get(alice, models.ListPayments)
	require.NoError(t, err)
	p, err := r.Get(bob, models.ListPayments)
	require.NoError(t, err)

	// A manual refresh carries the caller's own session even if another
	// user touched the poller in between.
	_, err = r.Get(alice, models.ListPayments)
	require.NoError(t, err)
	require.NoError(t, p.FetchOnce(WithSession(context.Background(), bob), true))

	// Background fetches use whoever asked last.
	require.NoError(t, p.FetchOnce(context.Background(), false))

	assert.Equal(t, []string{"bob-fresh", "alice-expired"}, api.seenTokens())
}

func TestListRegistry_SweepIdleClosesAbandonedPollers(t *testing.T) {
	api := newFakeAPI()
	clock := newFakeClock()
	r := NewListRegistry(api, nil, 10*time.Second)
	r.now = clock.Now
	defer r.CloseAll()

	stale, err := r.Get(testSession, models.ListPayments)
	require.NoError(t, err)
	stale.StartPolling(time.Hour)

	clock.Advance(20 * time.Minute)
	fresh, err := r.Get(testSession, models.ListSubscriptions)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, r.SweepIdle(30*time.Minute))
	assert.False(t, stale.AutoRefreshEnabled())

	again, err := r.Get(testSession, models.ListPayments)
	require.NoError(t, err)
	assert.NotSame(t, stale, again)

	same, err := r.Get(testSession, models.ListSubscriptions)
	require.NoError(t, err)
	assert.Same(t, fresh, same)
}
