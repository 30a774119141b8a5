package room

import (
	"fmt"
	"math"

	"github.com/zeusync/finder/internal/core/systems/physics"
)

// DistanceMargin is subtracted from the room diagonal to obtain MaxDistance.
const DistanceMargin = 1.0

// Rand is the random source used for spawn sampling. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	Float64() float64
}

// Bounds are the spawn limits of a room, relative to its origin.
type Bounds struct {
	XMin float64 `yaml:"x_min" json:"x_min"`
	XMax float64 `yaml:"x_max" json:"x_max"`
	ZMin float64 `yaml:"z_min" json:"z_min"`
	ZMax float64 `yaml:"z_max" json:"z_max"`
}

// DefaultBounds is the 18x18 spawn area of the reference scene.
func DefaultBounds() Bounds {
	return Bounds{XMin: -9, XMax: 9, ZMin: -9, ZMax: 9}
}

// Validate checks that both axes are finite and non-empty.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.XMin, b.XMax, b.ZMin, b.ZMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value %v", ErrInvalidBounds, v)
		}
	}
	if b.XMin >= b.XMax {
		return fmt.Errorf("%w: x_min %v >= x_max %v", ErrInvalidBounds, b.XMin, b.XMax)
	}
	if b.ZMin >= b.ZMax {
		return fmt.Errorf("%w: z_min %v >= z_max %v", ErrInvalidBounds, b.ZMin, b.ZMax)
	}
	return nil
}

// Diagonal is the distance between the (XMin, ZMin) and (XMax, ZMax) corners.
func (b Bounds) Diagonal() float64 {
	return physics.Vec3{X: b.XMin, Z: b.ZMin}.Distance(physics.Vec3{X: b.XMax, Z: b.ZMax})
}

// Room owns the rectangular spawn area and the distance normalizer derived
// from it. A Room is immutable after New and safe for concurrent use.
type Room struct {
	bounds      Bounds
	origin      physics.Vec3
	maxDistance float64
}

// New validates b and precomputes MaxDistance.
func New(b Bounds, origin physics.Vec3) (*Room, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	maxDistance := b.Diagonal() - DistanceMargin
	if maxDistance <= 0 {
		return nil, fmt.Errorf("%w: diagonal %.3f", ErrDegenerate, b.Diagonal())
	}
	return &Room{bounds: b, origin: origin, maxDistance: maxDistance}, nil
}

func (r *Room) Bounds() Bounds       { return r.bounds }
func (r *Room) Origin() physics.Vec3 { return r.origin }

// MaxDistance is the largest agent-to-goal distance used to normalize the
// shaping reward. Always positive.
func (r *Room) MaxDistance() float64 { return r.maxDistance }

// RandomPosition samples a point relative to the origin with x in
// [XMin, XMax], z in [ZMin, ZMax] and the given height.
func (r *Room) RandomPosition(rng Rand, y float64) physics.Vec3 {
	return physics.Vec3{
		X: uniform(rng, r.bounds.XMin, r.bounds.XMax),
		Y: y,
		Z: uniform(rng, r.bounds.ZMin, r.bounds.ZMax),
	}
}

// WorldPosition is RandomPosition offset by the room origin.
func (r *Room) WorldPosition(rng Rand, y float64) physics.Vec3 {
	return r.origin.Add(r.RandomPosition(rng, y))
}

// Contains reports whether a world-space point lies within the spawn area.
func (r *Room) Contains(p physics.Vec3) bool {
	return r.Rect(0).Contains(p)
}

// Rect returns the spawn area in world space, grown by margin on every side.
func (r *Room) Rect(margin float64) physics.Rect {
	return physics.Rect{
		MinX: r.origin.X + r.bounds.XMin - margin,
		MaxX: r.origin.X + r.bounds.XMax + margin,
		MinZ: r.origin.Z + r.bounds.ZMin - margin,
		MaxZ: r.origin.Z + r.bounds.ZMax + margin,
	}
}

// FarthestCorner returns the world-space spawn corner farthest from p.
func (r *Room) FarthestCorner(p physics.Vec3, y float64) physics.Vec3 {
	rect := r.Rect(0)
	x := rect.MinX
	if p.X-rect.MinX < rect.MaxX-p.X {
		x = rect.MaxX
	}
	z := rect.MinZ
	if p.Z-rect.MinZ < rect.MaxZ-p.Z {
		z = rect.MaxZ
	}
	return physics.Vec3{X: x, Y: y, Z: z}
}

func uniform(rng Rand, lo, hi float64) float64 {
	v := lo + rng.Float64()*(hi-lo)
	// guard against rounding past hi for wide ranges
	return math.Min(v, hi)
}
