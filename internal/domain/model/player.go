// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// Player is a stored rating record. It is created out of band and then only
// mutated by applying rating changes.
type Player struct {
	Name    string  `json:"name" bson:"name"`
	MMR     int64   `json:"mmr" bson:"mmr"`
	Wins    int64   `json:"wins" bson:"wins"`
	Losses  int64   `json:"losses" bson:"losses"`
	History []int64 `json:"history" bson:"history"`
}

// Clone returns a deep copy so callers never share the history slice with a store.
func (p Player) Clone() Player {
	c := p
	c.History = make([]int64, len(p.History))
	copy(c.History, p.History)
	return c
}

// Applied returns the player after a new rating has been applied, together
// with the change it represents. A delta of zero counts as a loss. A delta
// outside int64 is rejected with ErrDeltaOverflow.
func (p Player) Applied(mmr int64) (Player, Change, error) {
	if lo, hi := DeltaBounds(mmr); p.MMR < lo || p.MMR > hi {
		return Player{}, Change{}, fmt.Errorf("%s: %d -> %d: %w", p.Name, p.MMR, mmr, ErrDeltaOverflow)
	}
	next := p.Clone()
	ch := NewChange(p.Name, p.MMR, mmr)
	next.MMR = mmr
	next.History = append(next.History, ch.Delta)
	if ch.Win {
		next.Wins++
	} else {
		next.Losses++
	}
	return next, ch, nil
}

// DeltaBounds returns the range of stored ratings from which moving to mmr
// gives a delta (mmr - stored) that fits in an int64.
func DeltaBounds(mmr int64) (lo, hi int64) {
	if mmr >= 0 {
		return mmr - math.MaxInt64, math.MaxInt64
	}
	return math.MinInt64, mmr - math.MinInt64
}

// UpdateItem is one validated entry of an update batch.
type UpdateItem struct {
	Name string
	MMR  int64
}

// Change describes what applying one UpdateItem did to a player.
type Change struct {
	Name     string `json:"name"`
	Previous int64  `json:"previous"`
	Current  int64  `json:"current"`
	Delta    int64  `json:"delta"`
	Win      bool   `json:"win"`
}

// NewChange describes moving name from previous to current. Callers check
// DeltaBounds first.
func NewChange(name string, previous, current int64) Change {
	return Change{
		Name:     name,
		Previous: previous,
		Current:  current,
		Delta:    current - previous,
		Win:      current > previous,
	}
}

// WebhookEvent is an authenticated delivery on the passwd hook, handed to
// the async worker pool.
type WebhookEvent struct {
	DeliveryID string
	Event      string
	Payload    []byte
	ReceivedAt time.Time
}
