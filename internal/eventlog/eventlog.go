// Package eventlog keeps a bounded in-memory log of webhook receipts for the
// status dashboards.
package eventlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of receipts retained.
const DefaultCapacity = 50

// Receipt statuses, in lifecycle order.
const (
	StatusSignatureVerified  = "signature_verified"
	StatusSignatureSoftFail  = "signature_failed_but_proceeding"
	StatusSignatureRejected  = "signature_rejected"
	StatusNoJSON             = "no_json"
	StatusProcessingMessages = "processing_messages"
	StatusCompleted          = "completed"
	StatusError              = "error"
)

// Receipt records one inbound POST to the webhook endpoint.
type Receipt struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	SignatureValid    bool      `json:"signature_valid"`
	PayloadSize       int       `json:"payload_size"`
	EntriesFound      int       `json:"entries_found"`
	MessagesProcessed int       `json:"messages_processed"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
}

// NewReceipt creates a receipt stamped with a fresh ID and the current time.
func NewReceipt() Receipt {
	return Receipt{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// Log is a mutex-guarded ring buffer of receipts. Append and trim happen under
// one lock so concurrent webhook handlers cannot lose updates.
type Log struct {
	mu       sync.Mutex
	capacity int
	total    int
	items    []Receipt
}

// NewLog creates a log with the given capacity (DefaultCapacity when <= 0).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append records a completed receipt, discarding the oldest entries beyond
// capacity.
func (l *Log) Append(r Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	l.items = append(l.items, r)
	if len(l.items) > l.capacity {
		l.items = l.items[len(l.items)-l.capacity:]
	}
}

// Recent returns up to n receipts, most recent last.
func (l *Log) Recent(n int) []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]Receipt, n)
	copy(out, l.items[len(l.items)-n:])
	return out
}

// Total returns the number of receipts ever appended.
func (l *Log) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
