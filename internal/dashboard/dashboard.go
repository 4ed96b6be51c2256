// Package dashboard keeps process-wide operation counters and a bounded
// history of recent events for the admin API. It lives entirely outside
// the core: handlers notify it, nothing in the core depends on it.
package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxHistory bounds the event ring; older entries fall off the end.
const MaxHistory = 200

// HistoryEvent is one recorded operation.
type HistoryEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Detail    json.RawMessage `json:"detail"`
}

// Overview is the counters snapshot served by the admin API.
type Overview struct {
	CacheHits    uint64     `json:"cache_hits"`
	CacheMisses  uint64     `json:"cache_misses"`
	TotalStores  uint64     `json:"total_stores"`
	TotalLookups uint64     `json:"total_lookups"`
	TotalPurges  uint64     `json:"total_purges"`
	HitRate      float64    `json:"hit_rate"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// Handle is the synchronized dashboard state. Initialized once at startup,
// read and written through this handle only, reset only via ClearHistory.
// Safe for concurrent use.
type Handle struct {
	mu           sync.RWMutex
	cacheHits    uint64
	cacheMisses  uint64
	totalStores  uint64
	totalLookups uint64
	totalPurges  uint64
	lastUpdated  *time.Time
	history      []HistoryEvent
}

// New creates an empty dashboard handle.
func New() *Handle {
	return &Handle{}
}

func (h *Handle) push(eventType string, tenant uuid.UUID, detail json.RawMessage) {
	now := time.Now().UTC()
	h.lastUpdated = &now
	event := HistoryEvent{Timestamp: now, EventType: eventType, TenantID: tenant, Detail: detail}
	h.history = append([]HistoryEvent{event}, h.history...)
	if len(h.history) > MaxHistory {
		h.history = h.history[:MaxHistory]
	}
}

// RecordStore counts a node store operation.
func (h *Handle) RecordStore(tenant uuid.UUID, kind string, nodeID uuid.UUID, created bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalStores++
	detail, _ := json.Marshal(map[string]any{"node_id": nodeID, "kind": kind, "created": created})
	h.push("STORE", tenant, detail)
}

// RecordLookup counts a lookup and its hit/miss outcome.
func (h *Handle) RecordLookup(tenant uuid.UUID, ref string, hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalLookups++
	if hit {
		h.cacheHits++
	} else {
		h.cacheMisses++
	}
	detail, _ := json.Marshal(map[string]any{"ref": ref, "hit": hit})
	h.push("LOOKUP", tenant, detail)
}

// RecordPurge counts a purge with caller-provided detail.
func (h *Handle) RecordPurge(tenant uuid.UUID, detail json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalPurges++
	h.push("PURGE", tenant, detail)
}

// Overview snapshots the counters.
func (h *Handle) Overview() Overview {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := h.cacheHits + h.cacheMisses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(h.cacheHits) / float64(total) * 100.0
	}
	return Overview{
		CacheHits:    h.cacheHits,
		CacheMisses:  h.cacheMisses,
		TotalStores:  h.totalStores,
		TotalLookups: h.totalLookups,
		TotalPurges:  h.totalPurges,
		HitRate:      hitRate,
		LastUpdated:  h.lastUpdated,
	}
}

// History returns the recorded events, newest first.
func (h *Handle) History() []HistoryEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEvent, len(h.history))
	copy(out, h.history)
	return out
}

// ClearHistory drops recorded events; counters are untouched.
func (h *Handle) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}
