// Package observability aggregates runtime telemetry for logging and the
// debug endpoint.
package observability

import (
	"sync/atomic"
	"time"
)

// Metrics holds process-wide counters. All increments are atomic; Snapshot
// gives a point-in-time view for the monitoring worker and debug server.
type Metrics struct {
	startedAt time.Time

	Connections       uint64
	Disconnections    uint64
	MessagesSent      uint64
	MessagesRejected  uint64
	DeliveriesDropped uint64
	ReadReceipts      uint64
	TypingSignals     uint64
	ErrorCount        uint64
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now().UTC()}
}

func (m *Metrics) IncrConnections()       { atomic.AddUint64(&m.Connections, 1) }
func (m *Metrics) IncrDisconnections()    { atomic.AddUint64(&m.Disconnections, 1) }
func (m *Metrics) IncrMessagesSent()      { atomic.AddUint64(&m.MessagesSent, 1) }
func (m *Metrics) IncrMessagesRejected()  { atomic.AddUint64(&m.MessagesRejected, 1) }
func (m *Metrics) IncrDeliveriesDropped() { atomic.AddUint64(&m.DeliveriesDropped, 1) }
func (m *Metrics) IncrReadReceipts()      { atomic.AddUint64(&m.ReadReceipts, 1) }
func (m *Metrics) IncrTypingSignals()     { atomic.AddUint64(&m.TypingSignals, 1) }
func (m *Metrics) IncrErrorCount()        { atomic.AddUint64(&m.ErrorCount, 1) }

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"uptime":             time.Since(m.startedAt).Round(time.Second).String(),
		"connections":        atomic.LoadUint64(&m.Connections),
		"disconnections":     atomic.LoadUint64(&m.Disconnections),
		"messages_sent":      atomic.LoadUint64(&m.MessagesSent),
		"messages_rejected":  atomic.LoadUint64(&m.MessagesRejected),
		"deliveries_dropped": atomic.LoadUint64(&m.DeliveriesDropped),
		"read_receipts":      atomic.LoadUint64(&m.ReadReceipts),
		"typing_signals":     atomic.LoadUint64(&m.TypingSignals),
		"errors":             atomic.LoadUint64(&m.ErrorCount),
	}
}
