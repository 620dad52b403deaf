package service

import (
	"sync"
	"time"
)

// Stats counts dispatch outcomes across the process lifetime. Written
// by the polling loop, read concurrently by the status endpoint.
type Stats struct {
	mu        sync.Mutex
	totalSent int64
	totalErr  int64
	lastSent  *time.Time
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) RecordSent() {
	s.mu.Lock()
	s.totalSent++
	s.mu.Unlock()
}

func (s *Stats) RecordError() {
	s.mu.Lock()
	s.totalErr++
	s.mu.Unlock()
}

// MarkBatch stamps the time the last polling batch finished sending.
func (s *Stats) MarkBatch(t time.Time) {
	s.mu.Lock()
	s.lastSent = &t
	s.mu.Unlock()
}

type StatsSnapshot struct {
	TotalSent    int64      `json:"total_sent"`
	TotalErrors  int64      `json:"total_errors"`
	LastSentTime *time.Time `json:"last_sent_time"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{TotalSent: s.totalSent, TotalErrors: s.totalErr}
	if s.lastSent != nil {
		t := *s.lastSent
		snap.LastSentTime = &t
	}
	return snap
}
