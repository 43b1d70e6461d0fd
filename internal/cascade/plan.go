// Package cascade resolves priority conflicts among a user's active tasks.
//
// When a task is written with priority p, every other active task of the same
// owner holding a priority >= p is walked in (priority ASC, created_at DESC, id ASC)
// order. A task whose priority is already claimed is moved up to a free value.
// The walk is a single pass: values only ever grow, so a later task can never
// reintroduce a conflict for an earlier one.
package cascade

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how far a conflicting task is moved.
type Mode int

const (
	// ModeUntilFree moves a conflicting task to the lowest unclaimed value above
	// its current one. This keeps priorities unique from the insertion point up.
	ModeUntilFree Mode = iota

	// ModeSingleStep moves a conflicting task by exactly one. Three or more
	// collisions on one value can leave duplicates behind.
	ModeSingleStep
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeUntilFree:
		return "until_free"
	case ModeSingleStep:
		return "single_step"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration value into a Mode. An empty value selects
// ModeUntilFree.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "until_free":
		return ModeUntilFree, nil
	case "single_step":
		return ModeSingleStep, nil
	default:
		return ModeUntilFree, fmt.Errorf("unknown cascade mode %q", s)
	}
}

// Candidate is an active task that may need to move during a cascade.
type Candidate struct {
	ID        uuid.UUID
	Priority  int
	CreatedAt time.Time
}

// Change is a priority reassignment produced by a cascade.
type Change struct {
	ID          uuid.UUID
	OldPriority int
	NewPriority int
}

// SortCandidates orders candidates in walk order: priority ascending, newest
// first among equal priorities, then by ID so identical timestamps stay stable.
func SortCandidates(candidates []Candidate) {
	slices.SortStableFunc(candidates, compareCandidates)
}

func compareCandidates(a, b Candidate) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// Plan computes the priority changes needed once seed has been claimed by the
// triggering task. Candidates must already be in walk order and must all have a
// priority >= seed. Tasks that keep their priority are not part of the result.
// Plan treats priorities as opaque integers and applies no range checks.
func Plan(mode Mode, seed int, candidates []Candidate) []Change {
	if len(candidates) == 0 {
		return nil
	}

	inUse := make(map[int]struct{}, len(candidates)+1)
	inUse[seed] = struct{}{}

	var changes []Change
	for _, c := range candidates {
		next := c.Priority
		if _, taken := inUse[next]; taken {
			next++
			if mode == ModeUntilFree {
				for {
					if _, taken := inUse[next]; !taken {
						break
					}
					next++
				}
			}
		}
		inUse[next] = struct{}{}

		if next != c.Priority {
			changes = append(changes, Change{
				ID:          c.ID,
				OldPriority: c.Priority,
				NewPriority: next,
			})
		}
	}

	return changes
}
