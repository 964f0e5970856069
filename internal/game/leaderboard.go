package game

import (
	"sync"
	"time"

	"cyber-defense/internal/game/rank"
)

// LeaderboardSize is how many runs the board keeps
const LeaderboardSize = 25

// RunRecord is the final tally of one run
type RunRecord struct {
	RunID    string    `json:"runId"`
	Score    int       `json:"score"`
	Wave     int       `json:"wave"`
	Kills    int       `json:"kills"`
	Frames   uint64    `json:"frames"`
	GameOver bool      `json:"gameOver"` // false when the run was restarted early
	EndedAt  time.Time `json:"endedAt"`
}

// RankedRun is a run with its board position
type RankedRun struct {
	Rank int `json:"rank"`
	RunRecord
}

// RunBoard ranks finished runs by score. Ties go to the run recorded
// first. Only the best capacity runs are kept.
//
// Operations:
//   - Record: O(log n)
//   - Rank: O(log n)
//   - Top: O(log n + k)
type RunBoard struct {
	mu       sync.RWMutex
	list     *rank.SkipList
	runs     map[string]RunRecord
	capacity int
}

// NewRunBoard creates an empty board
func NewRunBoard(capacity int) *RunBoard {
	if capacity <= 0 {
		capacity = LeaderboardSize
	}
	return &RunBoard{
		list:     rank.New(time.Now().UnixNano()),
		runs:     make(map[string]RunRecord, capacity+1),
		capacity: capacity,
	}
}

// Record stores a run and returns its rank, or 0 if it did not make the board.
// Recording the same run ID again replaces the earlier record.
func (b *RunBoard) Record(r RunRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.runs[r.RunID] = r
	pos := b.list.Insert(r.RunID, float64(r.Score))

	for b.list.Len() > b.capacity {
		last, _ := b.list.ByRank(b.list.Len())
		b.list.Remove(last.Key)
		delete(b.runs, last.Key)
		if last.Key == r.RunID {
			pos = 0
		}
	}
	return pos
}

// Top returns the best n runs, best first
func (b *RunBoard) Top(n int) []RankedRun {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.list.Range(1, n)
	out := make([]RankedRun, len(entries))
	for i, e := range entries {
		out[i] = RankedRun{Rank: i + 1, RunRecord: b.runs[e.Key]}
	}
	return out
}

// Rank returns a run's 1-based position, or 0 if it is not on the board
func (b *RunBoard) Rank(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.Rank(runID)
}

// Len returns how many runs are on the board
func (b *RunBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.Len()
}
