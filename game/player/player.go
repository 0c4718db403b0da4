// Package player binds authenticated players to their dogs. The registry
// is the single source of truth for which tokens are live; everything a
// request may do starts with a token lookup here.
package player

import (
	"fmt"

	"github.com/dogwalk/gameserver/game/model"
)

// Player ties a token to the dog it controls and the session the dog
// plays in.
type Player struct {
	id    uint32
	token Token
	dog   *model.Dog
	sess  *model.GameSession
}

// ID returns the player id shared with clients.
func (p *Player) ID() uint32 { return p.id }

// Token returns the player's credential.
func (p *Player) Token() Token { return p.token }

// Dog returns the avatar the player controls.
func (p *Player) Dog() *model.Dog { return p.dog }

// Session returns the session the player's dog lives in.
func (p *Player) Session() *model.GameSession { return p.sess }

// Registry holds every live player, indexed by token.
type Registry struct {
	counters *model.Counters
	tokens   *Tokens
	byToken  map[Token]*Player
	order    []*Player
}

// NewRegistry returns an empty registry minting ids from counters and
// tokens from the given minter.
func NewRegistry(counters *model.Counters, tokens *Tokens) *Registry {
	return &Registry{
		counters: counters,
		tokens:   tokens,
		byToken:  make(map[Token]*Player),
	}
}

// Add registers a new player for the dog and returns it with a fresh id
// and token.
func (r *Registry) Add(dog *model.Dog, sess *model.GameSession) *Player {
	p := &Player{
		id:    r.counters.NextPlayerID(),
		token: r.tokens.Next(),
		dog:   dog,
		sess:  sess,
	}
	r.byToken[p.token] = p
	r.order = append(r.order, p)
	return p
}

// Restore re-registers a player loaded from a checkpoint under its old
// id and token.
func (r *Registry) Restore(token Token, id uint32, dog *model.Dog, sess *model.GameSession) error {
	if _, ok := r.byToken[token]; ok {
		return fmt.Errorf("duplicate player token for player %d", id)
	}
	p := &Player{id: id, token: token, dog: dog, sess: sess}
	r.byToken[token] = p
	r.order = append(r.order, p)
	return nil
}

// FindByToken returns the player holding the token, or nil.
func (r *Registry) FindByToken(token Token) *Player {
	return r.byToken[token]
}

// All returns every live player in registration order.
func (r *Registry) All() []*Player {
	return r.order
}

// BySession returns the players whose dogs share the session, in
// registration order.
func (r *Registry) BySession(sessionID uint32) []*Player {
	var out []*Player
	for _, p := range r.order {
		if p.sess.ID() == sessionID {
			out = append(out, p)
		}
	}
	return out
}

// RemoveByDogID drops the player controlling the given dog. Unknown dogs
// are ignored, so the retirement path can call this unconditionally.
func (r *Registry) RemoveByDogID(dogID uint32) {
	for i, p := range r.order {
		if p.dog.ID() == dogID {
			delete(r.byToken, p.token)
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
