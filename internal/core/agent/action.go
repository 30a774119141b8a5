package agent

import "math"

// Forward branch values.
const (
	ForwardStop = 0
	ForwardMove = 1
	ForwardBack = 2
)

// Turn branch values.
const (
	TurnNone  = 0
	TurnLeft  = 1
	TurnRight = 2
)

// Action is one discrete decision: two independent three-way branches.
// Values outside {0,1,2} leave the corresponding command untouched.
type Action struct {
	Forward int `json:"forward"`
	Turn    int `json:"turn"`
}

// ActionFromVector converts a trainer action vector. Missing or non-integral
// entries become -1, which issues no command.
func ActionFromVector(v []float64) Action {
	a := Action{Forward: -1, Turn: -1}
	if len(v) > 0 {
		a.Forward = branch(v[0])
	}
	if len(v) > 1 {
		a.Turn = branch(v[1])
	}
	return a
}

func branch(f float64) int {
	if f != math.Trunc(f) || f < -1 || f > 2 {
		return -1
	}
	return int(f)
}

// Vector is the inverse of ActionFromVector.
func (a Action) Vector() []float64 {
	return []float64{float64(a.Forward), float64(a.Turn)}
}
