package jobqueue

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// Runner is a Broker that owns worker goroutines
type Runner interface {
	Broker
	Start()
	Stop()
}

// Manager owns the broker lifecycle for the process
type Manager struct {
	broker  Runner
	mu      sync.Mutex
	running bool
}

// NewManager creates a manager around the given broker
func NewManager(broker Runner) *Manager {
	return &Manager{broker: broker}
}

// GetBroker returns the managed broker
func (m *Manager) GetBroker() Runner {
	return m.broker
}

// Start starts the broker workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	log.Info("[JobQueue Manager] Starting job queue")
	m.broker.Start()
	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the broker workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	log.Info("[JobQueue Manager] Stopping job queue...")
	m.broker.Stop()
	log.Info("[JobQueue Manager] Stopped")
}
