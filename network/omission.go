package network

import (
	"time"

	"secondprice-mpc-auction/rng"
)

// DropPolicy decides whether a message from -> to, of the given message
// type, should be silently dropped. Grounded on the reference simulator's
// OmissionPolicy hierarchy (DropAll/DropProb/DropTypes/
// SelectiveOmission/CompositeOmission/BurstDrop), modeling the only fault
// this system's adversary model admits: omission.
type DropPolicy interface {
	ShouldDrop(from, to int, msgType string) bool
}

// DropAll drops every message to or from PartyID (or both), depending on
// Direction ("send", "receive", or "both").
type DropAll struct {
	PartyID   int
	Direction string // "send", "receive", "both"
}

func (d DropAll) ShouldDrop(from, to int, _ string) bool {
	dir := d.Direction
	if dir == "" {
		dir = "both"
	}
	if (dir == "send" || dir == "both") && from == d.PartyID {
		return true
	}
	if (dir == "receive" || dir == "both") && to == d.PartyID {
		return true
	}
	return false
}

// DropProb drops messages sent by PartyID with probability P.
type DropProb struct {
	PartyID int
	P       float64
	Source  *rng.Source
}

func NewDropProb(partyID int, p float64, src *rng.Source) *DropProb {
	if src == nil {
		src = rng.New()
	}
	return &DropProb{PartyID: partyID, P: p, Source: src}
}

func (d *DropProb) ShouldDrop(from, _ int, _ string) bool {
	if from != d.PartyID {
		return false
	}
	return d.Source.Float64() < d.P
}

// DropTypes drops messages of the given types sent by PartyID, with
// probability P (1.0 = always).
type DropTypes struct {
	PartyID int
	Types   map[string]bool
	P       float64
	Source  *rng.Source
}

func NewDropTypes(partyID int, types []string, p float64, src *rng.Source) *DropTypes {
	if src == nil {
		src = rng.New()
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &DropTypes{PartyID: partyID, Types: set, P: p, Source: src}
}

func (d *DropTypes) ShouldDrop(from, _ int, msgType string) bool {
	if from != d.PartyID || !d.Types[msgType] {
		return false
	}
	return d.Source.Float64() < d.P
}

// SelectiveOmission drops messages from PartyID only to the parties listed
// in DropTo, letting everyone else see PartyID's messages normally.
type SelectiveOmission struct {
	PartyID int
	DropTo  map[int]bool
}

func (s SelectiveOmission) ShouldDrop(from, to int, _ string) bool {
	return from == s.PartyID && s.DropTo[to]
}

// CompositeOmission drops a message if any of its sub-policies would.
type CompositeOmission struct {
	Policies []DropPolicy
}

func (c CompositeOmission) ShouldDrop(from, to int, msgType string) bool {
	for _, p := range c.Policies {
		if p != nil && p.ShouldDrop(from, to, msgType) {
			return true
		}
	}
	return false
}

// BurstDrop drops messages sent by PartyID only during the configured
// [start, start+duration) windows measured from Since.
type BurstDrop struct {
	PartyID int
	Since   time.Time
	Bursts  []BurstWindow
}

type BurstWindow struct {
	Start, Duration time.Duration
}

func (b BurstDrop) ShouldDrop(from, _ int, _ string) bool {
	if from != b.PartyID {
		return false
	}
	elapsed := time.Since(b.Since)
	for _, w := range b.Bursts {
		if elapsed >= w.Start && elapsed < w.Start+w.Duration {
			return true
		}
	}
	return false
}
