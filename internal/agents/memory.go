package agents

import (
	"sync"
	"time"

	"kitakita/internal/metrics"
)

const (
	episodicCap  = 1000
	episodicKeep = 800
)

// Episode is one append-only experience record.
type Episode struct {
	Timestamp    time.Time
	Experience   string
	Context      string
	EmotionalTag string
	Importance   float64 // 0-1, computed but not used for eviction
}

// shortTermEntry is a cached value with access bookkeeping.
type shortTermEntry struct {
	Value       interface{}
	AccessCount int
	WrittenAt   time.Time
}

// Memory holds the four per-agent stores. Retention differs per store:
// short-term lives until Clear, long-term and semantic are populated once at
// init, episodic is capped and trimmed by recency. Keys are not checked for
// collisions across stores; callers namespace their own.
type Memory struct {
	mu        sync.RWMutex
	shortTerm map[string]*shortTermEntry
	longTerm  map[string]interface{}
	episodic  []Episode
	semantic  map[string]interface{}
}

// NewMemory creates an empty memory subsystem.
func NewMemory() *Memory {
	return &Memory{
		shortTerm: make(map[string]*shortTermEntry),
		longTerm:  make(map[string]interface{}),
		semantic:  make(map[string]interface{}),
	}
}

// SetShort writes a short-term value, resetting its access counter.
func (m *Memory) SetShort(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortTerm[key] = &shortTermEntry{Value: value, WrittenAt: time.Now()}
}

// GetShort reads a short-term value and bumps its access counter.
func (m *Memory) GetShort(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.shortTerm[key]
	if !ok {
		return nil, false
	}
	entry.AccessCount++
	return entry.Value, true
}

// ClearShort drops the whole short-term store.
func (m *Memory) ClearShort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortTerm = make(map[string]*shortTermEntry)
}

// LoadLongTerm populates the long-term store from the user's profile
// document. Called once during initialization; read-mostly afterwards.
func (m *Memory) LoadLongTerm(facts map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range facts {
		m.longTerm[k] = v
	}
}

// GetLong reads a long-term value.
func (m *Memory) GetLong(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.longTerm[key]
	return v, ok
}

// RecordEpisode appends an experience. When the store exceeds its cap it is
// trimmed to the most recent entries; the importance score does not
// influence eviction.
func (m *Memory) RecordEpisode(e Episode) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.episodic = append(m.episodic, e)
	if len(m.episodic) > episodicCap {
		trimmed := make([]Episode, episodicKeep)
		copy(trimmed, m.episodic[len(m.episodic)-episodicKeep:])
		m.episodic = trimmed
		metrics.EpisodicEvictions.Inc()
	}
}

// RecentEpisodes returns up to n most recent episodes, newest last.
func (m *Memory) RecentEpisodes(n int) []Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.episodic) {
		n = len(m.episodic)
	}
	out := make([]Episode, n)
	copy(out, m.episodic[len(m.episodic)-n:])
	return out
}

// EpisodeCount returns the number of stored episodes.
func (m *Memory) EpisodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.episodic)
}

// LoadSemantic populates static domain facts from a knowledge hook. The hook
// is stubbable so specialized agents can ship their own fact tables.
func (m *Memory) LoadSemantic(loader func() map[string]interface{}) {
	if loader == nil {
		return
	}
	facts := loader()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range facts {
		m.semantic[k] = v
	}
}

// GetSemantic reads a static domain fact.
func (m *Memory) GetSemantic(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.semantic[key]
	return v, ok
}
