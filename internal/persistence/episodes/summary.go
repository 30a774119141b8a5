package episodes

import "time"

// Outcome labels stored in the index.
const (
	OutcomeGoal      = "goal"
	OutcomeDeathzone = "deathzone"
	OutcomeTimeout   = "timeout"
)

// Summary is one finished episode.
type Summary struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	AgentID      string    `json:"agent_id"`
	Episode      uint64    `json:"episode"`
	Steps        uint64    `json:"steps"`
	Duration     float64   `json:"duration"`
	Reward       float64   `json:"reward"`
	Outcome      string    `json:"outcome"`
	Branch       string    `json:"branch"`
	GoalDistance float64   `json:"goal_distance"`
	FinishedAt   time.Time `json:"finished_at"`
}
