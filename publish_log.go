package economy

import "sync"

// PublishLog is an interface for publishing trade logs (merchant sales, offers, timeouts).
//
// Publish is called from the engine goroutine while it owns the economy state,
// so implementations must return quickly and must not call back into the engine.
type PublishLog interface {
	Publish(...*TradeLog)
}

// MemoryPublishLog stores logs in memory, useful for testing.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	Logs []*TradeLog
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		Logs: make([]*TradeLog, 0),
	}
}

// Publish appends logs to the in-memory slice.
func (m *MemoryPublishLog) Publish(logs ...*TradeLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		cpy := new(TradeLog)
		*cpy = *log
		m.Logs = append(m.Logs, cpy)
	}
}

// Count returns the number of logs stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Logs)
}

// Get returns the log at the specified index.
func (m *MemoryPublishLog) Get(index int) *TradeLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Logs[index]
}

// All returns a copy of all logs stored.
func (m *MemoryPublishLog) All() []*TradeLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*TradeLog, len(m.Logs))
	copy(logs, m.Logs)
	return logs
}

// DiscardPublishLog discards all logs, useful for benchmarking.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(logs ...*TradeLog) {

}
