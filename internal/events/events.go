// Package events provides a small in-process publish/subscribe bus used to
// notify the HTTP event stream (and, eventually, the scheduler) when trades
// and alerts change state. Grounded in the teacher's internal/events
// package shape (EventType enum + typed EventData payloads); the Manager
// itself and the EventType constants were not present in the retrieved
// files and are authored fresh in the same idiom, inferred from call sites
// like internal/server/alerts_stream.go's eventBus.Subscribe.
package events

import (
	"sync"

	"github.com/fundops/compliance-engine/internal/domain"
)

// EventType names one kind of domain event.
type EventType string

const (
	TradeSubmitted  EventType = "trade_submitted"
	TradeAlerted    EventType = "trade_alerted"
	TradeOverridden EventType = "trade_overridden"
	TradeCancelled  EventType = "trade_cancelled"
	TradeProcessed  EventType = "trade_processed"
	AlertCreated    EventType = "alert_created"
	PortfolioRun    EventType = "portfolio_compliance_run"
)

// EventData is implemented by every typed event payload.
type EventData interface {
	EventType() EventType
}

// TradeEventData accompanies every trade-lifecycle event.
type TradeEventData struct {
	TradeID int64             `json:"trade_id"`
	FundID  int64             `json:"fund_id"`
	Ticker  string            `json:"ticker"`
	Status  domain.TradeStatus `json:"status"`
}

func (d TradeEventData) EventType() EventType {
	switch d.Status {
	case domain.TradeAlert:
		return TradeAlerted
	case domain.TradeCancelled:
		return TradeCancelled
	case domain.TradeProcessed:
		return TradeProcessed
	default:
		return TradeSubmitted
	}
}

// AlertEventData accompanies an AlertCreated event.
type AlertEventData struct {
	AlertID int64  `json:"alert_id"`
	RuleID  int64  `json:"rule_id"`
	FundID  int64  `json:"fund_id"`
	TradeID *int64 `json:"trade_id,omitempty"`
}

func (d AlertEventData) EventType() EventType { return AlertCreated }

// PortfolioEventData accompanies a PortfolioRun event, emitted once a
// scheduled or manually-triggered portfolio-compliance sweep completes for
// a fund.
type PortfolioEventData struct {
	FundID      int64 `json:"fund_id"`
	AlertsRaised int  `json:"alerts_raised"`
}

func (d PortfolioEventData) EventType() EventType { return PortfolioRun }

// Event pairs a type with its payload.
type Event struct {
	Type EventType
	Data EventData
}

// Handler receives published events.
type Handler func(Event)

// Manager is a minimal fan-out publish/subscribe bus: Emit delivers
// synchronously to every subscriber of that EventType, matching the
// teacher's single-process, no-external-broker event model.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	nextID      uint64
}

type subscription struct {
	id uint64
	h  Handler
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{subscribers: make(map[EventType][]subscription)}
}

// Subscribe registers a handler for an EventType and returns a func that
// removes it. Long-lived consumers (the alert websocket stream) must call
// it on disconnect or the handler leaks for the life of the process.
func (m *Manager) Subscribe(t EventType, h Handler) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subscribers[t] = append(m.subscribers[t], subscription{id: id, h: h})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[t]
		for i, sub := range subs {
			if sub.id == id {
				m.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers data to every subscriber of its EventType.
func (m *Manager) Emit(data EventData) {
	t := data.EventType()
	m.mu.RLock()
	subs := append([]subscription(nil), m.subscribers[t]...)
	m.mu.RUnlock()
	for _, sub := range subs {
		sub.h(Event{Type: t, Data: data})
	}
}
