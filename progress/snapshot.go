// Package progress persists the player's game state as a single versioned
// snapshot.
package progress

import (
	"context"
	"slices"

	"github.com/mhpenta/storygen/story"
)

// Key identifies the snapshot. Bumping the version suffix discards older
// saves.
const Key = "financialGameProgress_v6"

// InitialNarrative is the story context of a new game.
const InitialNarrative = "Game Start."

// Store loads and saves the snapshot.
type Store interface {
	// Load returns the saved snapshot, or NewSnapshot() when none exists.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the saved snapshot.
	Save(ctx context.Context, s *Snapshot) error

	// Reset deletes the saved snapshot.
	Reset(ctx context.Context) error
}

// Snapshot is the complete game state.
type Snapshot struct {
	UnlockedLevels   int                     `json:"unlockedLevels"`
	CompletedModules []string                `json:"completedModules"`
	XP               int                     `json:"xp"`
	History          map[string]story.Record `json:"history"`
	Profile          *story.Profile          `json:"profile,omitempty"`
	Report           *story.Report           `json:"report,omitempty"`
	NarrativeContext string                  `json:"narrativeContext"`
}

// NewSnapshot returns the state of a new game.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		UnlockedLevels:   1,
		CompletedModules: []string{},
		History:          map[string]story.Record{},
		NarrativeContext: InitialNarrative,
	}
}

// Record stores the decision for rec.ModuleID, replacing any earlier one,
// and marks the module completed. XP is left to the caller.
func (s *Snapshot) Record(rec story.Record) {
	if s.History == nil {
		s.History = map[string]story.Record{}
	}
	s.History[rec.ModuleID] = rec
	if !slices.Contains(s.CompletedModules, rec.ModuleID) {
		s.CompletedModules = append(s.CompletedModules, rec.ModuleID)
	}
}

// EnsureProfile stores p as the player profile unless one is already saved,
// and returns the profile in effect. It reports whether p was stored.
func (s *Snapshot) EnsureProfile(p story.Profile) (story.Profile, bool) {
	if s.Profile != nil {
		return *s.Profile, false
	}
	if p.AgeGroup == "" {
		p.AgeGroup = p.Group()
	}
	s.Profile = &p
	return p, true
}

// Completed reports whether moduleID has a recorded decision.
func (s *Snapshot) Completed(moduleID string) bool {
	return slices.Contains(s.CompletedModules, moduleID)
}

// normalize fills missing collections and caps the narrative context.
func (s *Snapshot) normalize() {
	if s.UnlockedLevels < 1 {
		s.UnlockedLevels = 1
	}
	if s.CompletedModules == nil {
		s.CompletedModules = []string{}
	}
	if s.History == nil {
		s.History = map[string]story.Record{}
	}
	if r := []rune(s.NarrativeContext); len(r) > story.NarrativeCap {
		s.NarrativeContext = string(r[len(r)-story.NarrativeCap:])
	}
}
