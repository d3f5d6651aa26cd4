package services

import (
	"sync"
)

// FaultObserver tracks which parties a party has come to suspect of
// omission faults, and which sessions/instances it has seen complete.
// Adapted from the teacher's CertificationProtocol (certification.go): the
// same unordered-pair-set plus append-only-history shape, repurposed from
// Byzantine-fault-pair certification to omission-suspicion bookkeeping for
// operator-facing diagnostics (there is no on-protocol consumer of this
// state — correctness never depends on it, only CLI/log summaries do).
type FaultObserver struct {
	mu        sync.RWMutex
	suspected map[int]bool     // party_id -> suspected of omitting
	excluded  map[[2]int]bool  // {i, j} -> i reported seeing j omit toward it
	completed []string         // session/instance IDs observed to finalize
}

// NewFaultObserver builds an empty observer.
func NewFaultObserver() *FaultObserver {
	return &FaultObserver{
		suspected: make(map[int]bool),
		excluded:  make(map[[2]int]bool),
		completed: make([]string, 0),
	}
}

// Suspect marks partyID as suspected of omitting messages.
func (fo *FaultObserver) Suspect(partyID int) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	fo.suspected[partyID] = true
}

// IsSuspected reports whether partyID has been marked.
func (fo *FaultObserver) IsSuspected(partyID int) bool {
	fo.mu.RLock()
	defer fo.mu.RUnlock()
	return fo.suspected[partyID]
}

// Suspected returns a snapshot of every suspected party ID.
func (fo *FaultObserver) Suspected() []int {
	fo.mu.RLock()
	defer fo.mu.RUnlock()
	out := make([]int, 0, len(fo.suspected))
	for id := range fo.suspected {
		out = append(out, id)
	}
	return out
}

// RecordExclusion notes that i observed j failing to deliver toward it,
// stored unordered as {min(i,j), max(i,j)}.
func (fo *FaultObserver) RecordExclusion(i, j int) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	if i > j {
		i, j = j, i
	}
	fo.excluded[[2]int{i, j}] = true
}

// IsExcludedPair reports whether {i, j} was ever recorded.
func (fo *FaultObserver) IsExcludedPair(i, j int) bool {
	fo.mu.RLock()
	defer fo.mu.RUnlock()
	if i > j {
		i, j = j, i
	}
	return fo.excluded[[2]int{i, j}]
}

// RecordCompletion appends a finished session/instance ID to the history,
// for operator-facing progress summaries.
func (fo *FaultObserver) RecordCompletion(id string) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	fo.completed = append(fo.completed, id)
}

// Completed returns a copy of the completion history.
func (fo *FaultObserver) Completed() []string {
	fo.mu.RLock()
	defer fo.mu.RUnlock()
	result := make([]string, len(fo.completed))
	copy(result, fo.completed)
	return result
}
