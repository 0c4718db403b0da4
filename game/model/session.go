package model

// GameSession hosts every dog playing one map plus the loot lying on it.
// Dogs and loot keep their insertion order, which makes ticks
// deterministic for a given random source.
type GameSession struct {
	id   uint32
	m    *Map
	dogs []*Dog
	loot []*Loot
}

// NewSession creates an empty session for the map, minting its id from
// the counters.
func NewSession(c *Counters, m *Map) *GameSession {
	return &GameSession{id: c.NextSessionID(), m: m}
}

// RestoreSession rebuilds an empty session from checkpoint data, keeping
// its id. Dogs and loot are added back by the caller.
func RestoreSession(id uint32, m *Map) *GameSession {
	return &GameSession{id: id, m: m}
}

// ID returns the session id.
func (s *GameSession) ID() uint32 { return s.id }

// Map returns the map the session runs on.
func (s *GameSession) Map() *Map { return s.m }

// Dogs returns the dogs in the session, in join order.
func (s *GameSession) Dogs() []*Dog { return s.dogs }

// AddDog puts the dog into the session.
func (s *GameSession) AddDog(d *Dog) {
	s.dogs = append(s.dogs, d)
}

// DogByID returns the dog with the given id, or nil.
func (s *GameSession) DogByID(id uint32) *Dog {
	for _, d := range s.dogs {
		if d.ID() == id {
			return d
		}
	}
	return nil
}

// RemoveDog takes the dog with the given id out of the session. Unknown
// ids are ignored.
func (s *GameSession) RemoveDog(id uint32) {
	for i, d := range s.dogs {
		if d.ID() == id {
			s.dogs = append(s.dogs[:i], s.dogs[i+1:]...)
			return
		}
	}
}

// Loot returns the loot lying on the map, in spawn order.
func (s *GameSession) Loot() []*Loot {
	return s.loot
}

// AddLoot drops the item onto the map.
func (s *GameSession) AddLoot(l *Loot) {
	s.loot = append(s.loot, l)
}

// TakeLoot removes the item with the given id from the map and returns
// it, or nil when no such item lies there.
func (s *GameSession) TakeLoot(id uint32) *Loot {
	for i, l := range s.loot {
		if l.ID() == id {
			s.loot = append(s.loot[:i], s.loot[i+1:]...)
			return l
		}
	}
	return nil
}
