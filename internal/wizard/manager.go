package wizard

import (
	"sync"
	"time"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/metrics"
)

// Manager is the registry of open wizard sessions. Each session is created
// on wizard open and removed on close or idle expiry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	machine *Machine
	ttl     time.Duration
	logger  logger.Logger

	stopSweep chan struct{}
	sweepOnce sync.Once
}

func NewManager(machine *Machine, ttl time.Duration, log logger.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		machine:   machine,
		ttl:       ttl,
		logger:    log.WithFields(map[string]interface{}{"component": "wizard-manager"}),
		stopSweep: make(chan struct{}),
	}
}

// Machine returns the state machine shared by all sessions.
func (m *Manager) Machine() *Machine {
	return m.machine
}

// Open creates a new session at the Upload step.
func (m *Manager) Open(pipelineID string) *Session {
	sess := NewSession(pipelineID)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	metrics.WizardSessionsActive.Inc()
	m.logger.Info("session opened", map[string]interface{}{
		"sessionId":  sess.ID,
		"pipelineId": pipelineID,
	})
	return sess
}

// Get looks up an open session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}

// Close dismisses a session and removes it from the registry. Unknown ids
// return a not-found error; closing twice does not.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewSessionNotFoundError(sessionID)
	}

	m.machine.Close(sess)
	metrics.WizardSessionsActive.Dec()
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweeper expires idle sessions in the background. Expiry counts as a
// close: batch cleanup still runs exactly once.
func (m *Manager) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopSweep:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// StopSweeper stops the background expiry loop.
func (m *Manager) StopSweeper() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

func (m *Manager) sweep() {
	cutoff := time.Now().UTC().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		snap := sess.Snapshot()
		if snap.UpdatedAt.Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		m.logger.Info("session expired", map[string]interface{}{"sessionId": sess.ID})
		m.machine.Close(sess)
		metrics.WizardSessionsActive.Dec()
	}
}
