package engagement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
)

// WaiverGranter receives the single completion callback. Satisfied by
// the cart service.
type WaiverGranter interface {
	GrantWaiver(ctx context.Context, customerID uuid.UUID) (bool, error)
}

// Manager owns one gate per customer. A closed attempt stays on record
// until the next checkout resets it.
type Manager struct {
	cfg     config.EngagementConfig
	log     *logger.Logger
	metrics *metrics.Metrics
	granter WaiverGranter

	mu    sync.Mutex
	gates map[uuid.UUID]*gate
}

func NewManager(cfg config.EngagementConfig, log *logger.Logger, m *metrics.Metrics, granter WaiverGranter) *Manager {
	return &Manager{
		cfg:     cfg,
		log:     log,
		metrics: m,
		granter: granter,
		gates:   make(map[uuid.UUID]*gate),
	}
}

func (m *Manager) gateFor(customerID uuid.UUID) *gate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gates[customerID]; ok {
		return g
	}
	g := newGate(m.cfg, func(completed bool) {
		m.onTerminal(customerID, completed)
	})
	m.gates[customerID] = g
	return g
}

func (m *Manager) onTerminal(customerID uuid.UUID, completed bool) {
	ctx := m.log.WithCustomerID(context.Background(), customerID.String())

	if !completed {
		m.metrics.EngagementOutcome(enums.EngagementStateSkipped.String())
		m.log.Info(ctx, "engagement skipped, delivery fee stands")
		return
	}

	m.metrics.EngagementOutcome(enums.EngagementStateCompleted.String())
	granted, err := m.granter.GrantWaiver(ctx, customerID)
	if err != nil {
		m.log.Error(ctx, "granting waiver after engagement completion", err)
		return
	}
	if granted {
		m.log.Info(ctx, "engagement completed, delivery fee waived")
	}
}

// Start begins or resumes playback for the customer's attempt.
func (m *Manager) Start(ctx context.Context, customerID uuid.UUID) (Status, error) {
	status, err := m.gateFor(customerID).play()
	if err != nil {
		return Status{}, err
	}
	m.log.Info(m.log.WithCustomerID(ctx, customerID.String()), "engagement playing")
	return status, nil
}

// Pause stops progress on explicit user request.
func (m *Manager) Pause(ctx context.Context, customerID uuid.UUID) (Status, error) {
	return m.gateFor(customerID).pause(false)
}

// VisibilityLost pauses on a host-environment signal. The returned
// status carries Interrupted so the caller can tell the attempt was cut
// short rather than paused by the user.
func (m *Manager) VisibilityLost(ctx context.Context, customerID uuid.UUID) (Status, error) {
	status, err := m.gateFor(customerID).pause(true)
	if err != nil {
		return Status{}, err
	}
	m.log.Warn(m.log.WithCustomerID(ctx, customerID.String()),
		fmt.Sprintf("engagement interrupted at %.0f%%", status.Progress))
	return status, nil
}

// Skip closes the attempt without a waiver.
func (m *Manager) Skip(ctx context.Context, customerID uuid.UUID) (Status, error) {
	return m.gateFor(customerID).skip()
}

// Finish handles the creative's own finished signal.
func (m *Manager) Finish(ctx context.Context, customerID uuid.UUID) (Status, error) {
	return m.gateFor(customerID).finish()
}

// Status reports the current attempt without mutating it.
func (m *Manager) Status(ctx context.Context, customerID uuid.UUID) Status {
	m.mu.Lock()
	g, ok := m.gates[customerID]
	m.mu.Unlock()
	if !ok {
		return Status{State: enums.EngagementStateIdle}
	}
	return g.status()
}

// Reset discards the customer's attempt so the next checkout starts
// fresh. Called after an order is placed.
func (m *Manager) Reset(customerID uuid.UUID) {
	m.mu.Lock()
	g, ok := m.gates[customerID]
	delete(m.gates, customerID)
	m.mu.Unlock()
	if ok {
		g.teardown()
	}
}

// Close stops every ticker. Called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	gates := make([]*gate, 0, len(m.gates))
	for _, g := range m.gates {
		gates = append(gates, g)
	}
	m.gates = make(map[uuid.UUID]*gate)
	m.mu.Unlock()

	for _, g := range gates {
		g.teardown()
	}
}
