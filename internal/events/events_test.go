package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fundops/compliance-engine/internal/domain"
)

func TestManager_EmitDeliversToSubscriber(t *testing.T) {
	m := NewManager()
	var received []Event
	m.Subscribe(AlertCreated, func(e Event) { received = append(received, e) })

	m.Emit(AlertEventData{AlertID: 1, RuleID: 2, FundID: 3})

	assert.Len(t, received, 1)
	assert.Equal(t, AlertCreated, received[0].Type)
}

func TestManager_EmitOnlyNotifiesMatchingType(t *testing.T) {
	m := NewManager()
	var alertCount, tradeCount int
	m.Subscribe(AlertCreated, func(Event) { alertCount++ })
	m.Subscribe(TradeProcessed, func(Event) { tradeCount++ })

	m.Emit(AlertEventData{AlertID: 1})

	assert.Equal(t, 1, alertCount)
	assert.Equal(t, 0, tradeCount)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager()
	var count int
	unsubscribe := m.Subscribe(AlertCreated, func(Event) { count++ })

	m.Emit(AlertEventData{AlertID: 1})
	assert.Equal(t, 1, count)

	unsubscribe()
	m.Emit(AlertEventData{AlertID: 2})
	assert.Equal(t, 1, count, "handler must not fire after unsubscribe")
}

func TestManager_UnsubscribeOnlyRemovesItsOwnHandler(t *testing.T) {
	m := NewManager()
	var firstCount, secondCount int
	unsubFirst := m.Subscribe(AlertCreated, func(Event) { firstCount++ })
	m.Subscribe(AlertCreated, func(Event) { secondCount++ })

	unsubFirst()
	m.Emit(AlertEventData{AlertID: 1})

	assert.Equal(t, 0, firstCount)
	assert.Equal(t, 1, secondCount)
}

func TestTradeEventData_EventTypeReflectsStatus(t *testing.T) {
	cases := []struct {
		status   domain.TradeStatus
		expected EventType
	}{
		{domain.TradeAlert, TradeAlerted},
		{domain.TradeCancelled, TradeCancelled},
		{domain.TradeProcessed, TradeProcessed},
		{domain.TradeSubmitted, TradeSubmitted},
		{domain.TradeValidating, TradeSubmitted},
	}
	for _, c := range cases {
		d := TradeEventData{Status: c.status}
		assert.Equal(t, c.expected, d.EventType())
	}
}
