package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

// WizardManager owns the live wizard sessions of this process.
type WizardManager struct {
	deps WizardDeps
	opts WizardOptions
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*managedWizard
}

type managedWizard struct {
	wizard    *Wizard
	accountID string

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *managedWizard) touch(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = now
}

func (e *managedWizard) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

func NewWizardManager(deps WizardDeps, opts WizardOptions) *WizardManager {
	return &WizardManager{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*managedWizard),
	}
}

func (m *WizardManager) Create(ctx context.Context, sc models.SessionContext) (*Wizard, error) {
	id := uuid.NewString()
	if m.deps.Journal != nil {
		if err := m.deps.Journal.InsertSession(ctx, id, sc.AccountIdentifier, models.StageCustomerLookup); err != nil {
			return nil, err
		}
	}

	w := NewWizard(id, sc, m.deps, m.opts)

	m.mu.Lock()
	m.sessions[id] = &managedWizard{wizard: w, accountID: sc.AccountIdentifier, lastSeen: m.now()}
	m.mu.Unlock()

	telemetry.Logger.Info("Wizard session created",
		zap.String("session_id", id),
		zap.String("account_id", sc.AccountIdentifier),
	)
	return w, nil
}

// Get returns the session only to the account that created it.
func (m *WizardManager) Get(sc models.SessionContext, id string) (*Wizard, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || entry.accountID != sc.AccountIdentifier {
		return nil, models.ErrSessionNotFound
	}
	entry.touch(m.now())
	return entry.wizard, nil
}

func (m *WizardManager) Discard(sc models.SessionContext, id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if !ok || entry.accountID != sc.AccountIdentifier {
		m.mu.Unlock()
		return models.ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	entry.wizard.Close()
	telemetry.Logger.Info("Wizard session discarded", zap.String("session_id", id))
	return nil
}

// Journal returns the persisted stage history of a session owned by sc.
func (m *WizardManager) Journal(ctx context.Context, sc models.SessionContext, id string) (*models.WizardRecord, error) {
	if _, err := m.Get(sc, id); err != nil {
		return nil, err
	}
	if m.deps.Journal == nil {
		return nil, models.ErrJournalDisabled
	}
	return m.deps.Journal.GetBySessionID(ctx, id)
}

// SweepIdle discards sessions untouched for maxIdle, skipping any with an
// operation in flight.
func (m *WizardManager) SweepIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*managedWizard
	for id, entry := range m.sessions {
		if entry.idleSince().Before(cutoff) && entry.wizard.Snapshot().InFlight == "" {
			idle = append(idle, entry)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, entry := range idle {
		entry.wizard.Close()
		telemetry.Logger.Info("Wizard session expired",
			zap.String("session_id", entry.wizard.ID()),
			zap.String("account_id", entry.accountID),
		)
	}
	return len(idle)
}

func (m *WizardManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedWizard)
	m.mu.Unlock()

	for _, entry := range sessions {
		entry.wizard.Close()
	}
}
