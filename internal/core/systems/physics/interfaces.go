package physics

import "fmt"

// Collaborator abstractions for the physics host. The episode controller only
// issues velocity commands and reads transforms through these; integration
// and contact detection stay on the host side.

// Placeable is anything the controller can teleport at episode start
// (the agent, the goal marker, the obstacle).
type Placeable interface {
	Position() Vec3
	// Yaw returns the rotation about the vertical axis, in degrees.
	Yaw() float64
	// Place teleports the object. yaw is in degrees.
	Place(pos Vec3, yaw float64)
}

// Body is a rigid body that accepts write-only velocity commands.
type Body interface {
	Placeable

	SetVelocity(v Vec3)
	// SetAngularVelocity sets the angular velocity in radians per second.
	SetAngularVelocity(w Vec3)

	Velocity() Vec3
	AngularVelocity() Vec3
}

// Tag is the categorical label attached to a collider.
type Tag uint8

const (
	TagOther Tag = iota
	TagObstacle
	TagDeathzone
	TagGoal
)

func (t Tag) String() string {
	switch t {
	case TagObstacle:
		return "Obstacle"
	case TagDeathzone:
		return "Deathzone"
	case TagGoal:
		return "Goal"
	default:
		return "Other"
	}
}

// ParseTag maps a collider label to a Tag. Unknown labels map to TagOther.
func ParseTag(s string) Tag {
	switch s {
	case "Obstacle":
		return TagObstacle
	case "Deathzone":
		return TagDeathzone
	case "Goal":
		return TagGoal
	default:
		return TagOther
	}
}

func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tag) UnmarshalText(b []byte) error {
	*t = ParseTag(string(b))
	return nil
}

// ContactKind distinguishes the first tick of a contact from its continuation.
type ContactKind uint8

const (
	ContactEnter ContactKind = iota + 1
	ContactStay
)

func (k ContactKind) String() string {
	switch k {
	case ContactEnter:
		return "enter"
	case ContactStay:
		return "stay"
	default:
		return "unknown"
	}
}

func (k ContactKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ContactKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "enter":
		*k = ContactEnter
	case "stay":
		*k = ContactStay
	default:
		return fmt.Errorf("unknown contact kind %q", b)
	}
	return nil
}

// Contact is a collision report for one body against one tagged collider.
type Contact struct {
	Kind ContactKind `json:"kind"`
	Tag  Tag         `json:"tag"`
	// Time is the host clock in seconds at which the contact was observed.
	Time float64 `json:"time"`
}
