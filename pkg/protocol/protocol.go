// Package protocol holds the JSON messages exchanged on the /env websocket.
package protocol

// Ops understood on the /env socket.
const (
	OpReset  = "reset"
	OpStep   = "step"
	OpStatus = "status"
)

// Forward and turn branch values of an Action.
const (
	ForwardStop = 0
	ForwardMove = 1
	ForwardBack = 2

	TurnNone  = 0
	TurnLeft  = 1
	TurnRight = 2
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Observation is what a policy sees after each reset or step.
type Observation struct {
	Agent              Vec3    `json:"agent"`
	AgentYaw           float64 `json:"agent_yaw"`
	Velocity           Vec3    `json:"velocity"`
	Goal               Vec3    `json:"goal"`
	Obstacle           Vec3    `json:"obstacle"`
	Distance           float64 `json:"distance"`
	NormalizedDistance float64 `json:"normalized_distance"`
}

// Info carries per-step diagnostics. Outcome is "none", "goal" or "deathzone".
type Info struct {
	Episode       uint64  `json:"episode"`
	Step          uint64  `json:"step"`
	Elapsed       float64 `json:"elapsed"`
	EpisodeReward float64 `json:"episode_reward"`
	Outcome       string  `json:"outcome"`
	Contacts      int     `json:"contacts"`
}

// Action is a discrete [forward, turn] command.
type Action struct {
	Forward int `json:"forward"`
	Turn    int `json:"turn"`
}

func (a Action) Vector() []float64 {
	return []float64{float64(a.Forward), float64(a.Turn)}
}

// Request is one client message. Action is the [forward, turn] pair used by
// step.
type Request struct {
	Op     string    `json:"op"`
	Action []float64 `json:"action,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	Op          string       `json:"op"`
	Session     string       `json:"session"`
	Observation *Observation `json:"observation,omitempty"`
	Reward      float64      `json:"reward"`
	Done        bool         `json:"done"`
	Truncated   bool         `json:"truncated"`
	Info        *Info        `json:"info,omitempty"`
	Error       string       `json:"error,omitempty"`
}
