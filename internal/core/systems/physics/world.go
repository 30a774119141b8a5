package physics

import "sort"

// Rect is an axis-aligned rectangle on the XZ plane.
type Rect struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Vec3) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Z >= r.MinZ && p.Z <= r.MaxZ
}

// Collider is a tagged circular footprint attached to a Placeable.
type Collider struct {
	Tag    Tag
	Radius float64
	Object Placeable
}

// World is a minimal reference host: it integrates a single kinematic agent
// and reports its contacts against static colliders and the area outside the
// platform (the death zone). It stands in for a real engine in the driver and
// in tests; nothing in the episode controller depends on it.
type World struct {
	agent       *KinematicBody
	agentRadius float64
	platform    Rect
	colliders   []Collider

	touching   map[int]bool
	wasOutside bool
}

// NewWorld creates a world around agent. The agent falls into the death zone
// once its center leaves platform.
func NewWorld(agent *KinematicBody, agentRadius float64, platform Rect) *World {
	return &World{
		agent:       agent,
		agentRadius: agentRadius,
		platform:    platform,
		touching:    make(map[int]bool),
	}
}

// AddCollider registers a static collider and returns its index.
func (w *World) AddCollider(c Collider) int {
	w.colliders = append(w.colliders, c)
	return len(w.colliders) - 1
}

func (w *World) Agent() *KinematicBody { return w.agent }
func (w *World) Platform() Rect        { return w.platform }

// ResetContacts forgets ongoing contacts, so the next overlap is reported as
// an enter. Call it after teleporting objects at episode start.
func (w *World) ResetContacts() {
	clear(w.touching)
	w.wasOutside = false
}

// Advance integrates the agent by dt and returns the contacts observed at the
// end of the tick, stamped with now. Enter contacts precede stay contacts.
func (w *World) Advance(dt, now float64) []Contact {
	w.agent.Integrate(dt)
	pos := w.agent.Position()

	var contacts []Contact
	for i, c := range w.colliders {
		overlap := pos.DistanceXZ(c.Object.Position()) <= w.agentRadius+c.Radius
		contacts = w.track(contacts, i, overlap, c.Tag, now)
	}

	outside := !w.platform.Contains(pos)
	switch {
	case outside && !w.wasOutside:
		contacts = append(contacts, Contact{Kind: ContactEnter, Tag: TagDeathzone, Time: now})
	case outside:
		contacts = append(contacts, Contact{Kind: ContactStay, Tag: TagDeathzone, Time: now})
	}
	w.wasOutside = outside

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Kind < contacts[j].Kind
	})
	return contacts
}

func (w *World) track(contacts []Contact, idx int, overlap bool, tag Tag, now float64) []Contact {
	was := w.touching[idx]
	switch {
	case overlap && !was:
		contacts = append(contacts, Contact{Kind: ContactEnter, Tag: tag, Time: now})
	case overlap:
		contacts = append(contacts, Contact{Kind: ContactStay, Tag: tag, Time: now})
	}
	if overlap {
		w.touching[idx] = true
	} else {
		delete(w.touching, idx)
	}
	return contacts
}
