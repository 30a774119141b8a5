package physics

import "math"

// Deg2Rad converts degrees to radians.
const Deg2Rad = math.Pi / 180

// Vec3 is a plain 3D vector. The room plane is XZ, Y is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Zero is the zero vector.
var Zero = Vec3{}

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3    { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64            { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Distance(o Vec3) float64 { return o.Sub(v).Len() }

// DistanceXZ is the distance between two points projected onto the room plane.
func (v Vec3) DistanceXZ(o Vec3) float64 { return math.Hypot(o.X-v.X, o.Z-v.Z) }

// MoveTowards moves v toward target by at most maxDelta. It never overshoots.
func MoveTowards(v, target Vec3, maxDelta float64) Vec3 {
	d := target.Sub(v)
	dist := d.Len()
	if dist <= maxDelta || dist == 0 {
		return target
	}
	return v.Add(d.Scale(maxDelta / dist))
}

// Lerp interpolates between a and b. t is clamped to [0,1].
func Lerp(a, b Vec3, t float64) Vec3 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(b.Sub(a).Scale(t))
}

// Forward returns the unit heading for a yaw in degrees. Yaw 0 faces +Z and
// positive yaw turns toward +X.
func Forward(yaw float64) Vec3 {
	r := yaw * Deg2Rad
	return Vec3{X: math.Sin(r), Z: math.Cos(r)}
}

// NormalizeYaw wraps a yaw in degrees into [0, 360).
func NormalizeYaw(yaw float64) float64 {
	y := math.Mod(yaw, 360)
	if y < 0 {
		y += 360
	}
	return y
}

// KinematicBody is a Body without mass: Integrate moves it by its commanded
// velocities. Reference hosts and tests use it in place of an engine body.
type KinematicBody struct {
	pos     Vec3
	yaw     float64
	vel     Vec3
	angular Vec3
}

var _ Body = (*KinematicBody)(nil)

func NewKinematicBody(pos Vec3, yaw float64) *KinematicBody {
	return &KinematicBody{pos: pos, yaw: NormalizeYaw(yaw)}
}

func (b *KinematicBody) Position() Vec3            { return b.pos }
func (b *KinematicBody) Yaw() float64              { return b.yaw }
func (b *KinematicBody) Velocity() Vec3            { return b.vel }
func (b *KinematicBody) AngularVelocity() Vec3     { return b.angular }
func (b *KinematicBody) SetVelocity(v Vec3)        { b.vel = v }
func (b *KinematicBody) SetAngularVelocity(w Vec3) { b.angular = w }

func (b *KinematicBody) Place(pos Vec3, yaw float64) {
	b.pos = pos
	b.yaw = NormalizeYaw(yaw)
}

// Integrate advances the body by dt seconds.
func (b *KinematicBody) Integrate(dt float64) {
	b.pos = b.pos.Add(b.vel.Scale(dt))
	b.yaw = NormalizeYaw(b.yaw + b.angular.Y*dt/Deg2Rad)
}

// Marker is a static Placeable, used for the goal and the obstacle.
type Marker struct {
	pos Vec3
	yaw float64
}

var _ Placeable = (*Marker)(nil)

func (m *Marker) Position() Vec3 { return m.pos }
func (m *Marker) Yaw() float64   { return m.yaw }

func (m *Marker) Place(pos Vec3, yaw float64) {
	m.pos = pos
	m.yaw = NormalizeYaw(yaw)
}
