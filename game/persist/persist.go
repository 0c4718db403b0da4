// Package persist checkpoints the world to disk and restores it on
// startup. The archive is a gob stream inside an lz4 frame, written to a
// temp file and renamed into place so a crash mid-save never clobbers
// the previous checkpoint.
//
// The stream starts with a format version, then the tagged session and
// player sections. A corrupt player section only costs the players read
// so far; a corrupt session section fails the whole load.
package persist

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/dogwalk/gameserver/game/geom"
	"github.com/dogwalk/gameserver/game/model"
	"github.com/dogwalk/gameserver/game/player"
)

const formatVersion uint32 = 1

type lootRec struct {
	Type    int
	ID      uint32
	Value   int
	Pos     geom.Point2D
	Width   float64
	Counter uint32
}

type dogRec struct {
	ID      uint32
	Name    string
	Pos     geom.Point2D
	Speed   geom.Vec2D
	Dir     int
	Bag     []lootRec
	Width   float64
	Score   int
	Counter uint32
}

type sessionRec struct {
	MapID   string
	Dogs    []dogRec
	Loot    []lootRec
	ID      uint32
	Counter uint32
}

type playerRec struct {
	SessionID uint32
	DogID     uint32
	Token     string
	ID        uint32
	Counter   uint32
}

// Store reads and writes checkpoints at a fixed path.
type Store struct {
	path string
	log  *zap.Logger
}

// NewStore returns a store for the given file path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Path returns the checkpoint location.
func (s *Store) Path() string { return s.path }

// Save writes the whole world atomically: temp file, fsync, rename.
func (s *Store) Save(g *model.Game, reg *player.Registry) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	if err := writeArchive(f, g, reg); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move state file into place: %w", err)
	}
	return nil
}

func writeArchive(f *os.File, g *model.Game, reg *player.Registry) error {
	zw := lz4.NewWriter(f)
	enc := gob.NewEncoder(zw)

	dogMark, lootMark, sessMark, playerMark := g.Counters().Watermarks()

	if err := enc.Encode(formatVersion); err != nil {
		return fmt.Errorf("failed to encode version: %w", err)
	}

	sessions := g.Sessions()
	if err := enc.Encode("sessions"); err != nil {
		return fmt.Errorf("failed to encode section tag: %w", err)
	}
	if err := enc.Encode(len(sessions)); err != nil {
		return fmt.Errorf("failed to encode session count: %w", err)
	}
	for _, sess := range sessions {
		rec := sessionRec{
			MapID:   sess.Map().ID(),
			ID:      sess.ID(),
			Counter: sessMark,
		}
		for _, dog := range sess.Dogs() {
			rec.Dogs = append(rec.Dogs, dogToRec(dog, dogMark, lootMark))
		}
		for _, l := range sess.Loot() {
			rec.Loot = append(rec.Loot, lootToRec(l, lootMark))
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode session %d: %w", sess.ID(), err)
		}
	}

	players := reg.All()
	if err := enc.Encode("players"); err != nil {
		return fmt.Errorf("failed to encode section tag: %w", err)
	}
	if err := enc.Encode(len(players)); err != nil {
		return fmt.Errorf("failed to encode player count: %w", err)
	}
	for _, p := range players {
		rec := playerRec{
			SessionID: p.Session().ID(),
			DogID:     p.Dog().ID(),
			Token:     string(p.Token()),
			ID:        p.ID(),
			Counter:   playerMark,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode player %d: %w", p.ID(), err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	return nil
}

func dogToRec(dog *model.Dog, dogMark, lootMark uint32) dogRec {
	rec := dogRec{
		ID:      dog.ID(),
		Name:    dog.Name(),
		Pos:     dog.Pos(),
		Speed:   dog.Speed(),
		Dir:     int(dog.Direction()),
		Width:   dog.Width(),
		Score:   dog.Score(),
		Counter: dogMark,
	}
	for _, l := range dog.Bag() {
		rec.Bag = append(rec.Bag, lootToRec(l, lootMark))
	}
	return rec
}

func lootToRec(l *model.Loot, mark uint32) lootRec {
	return lootRec{
		Type:    l.Type(),
		ID:      l.ID(),
		Value:   l.Value(),
		Pos:     l.Pos(),
		Width:   l.Width(),
		Counter: mark,
	}
}

// Load restores the world from the checkpoint. A missing file is a
// normal fresh start. Errors in the session section abort the load;
// errors in the player section keep whatever players were read before
// the damage.
func (s *Store) Load(g *model.Game, reg *player.Registry) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(lz4.NewReader(f))

	var version uint32
	if err := dec.Decode(&version); err != nil {
		return fmt.Errorf("failed to decode version: %w", err)
	}
	if version != formatVersion {
		return fmt.Errorf("unsupported state format version %d", version)
	}

	if err := s.loadSessions(dec, g); err != nil {
		return err
	}
	s.loadPlayers(dec, g, reg)

	s.log.Info("game state loaded", zap.String("path", s.path))
	return nil
}

func (s *Store) loadSessions(dec *gob.Decoder, g *model.Game) error {
	var tag string
	if err := dec.Decode(&tag); err != nil {
		return fmt.Errorf("failed to decode section tag: %w", err)
	}
	if tag != "sessions" {
		return fmt.Errorf("unexpected section %q, want sessions", tag)
	}
	var count int
	if err := dec.Decode(&count); err != nil {
		return fmt.Errorf("failed to decode session count: %w", err)
	}

	for i := 0; i < count; i++ {
		var rec sessionRec
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("failed to decode session %d: %w", i, err)
		}
		m := g.FindMap(rec.MapID)
		if m == nil {
			return fmt.Errorf("state references unknown map %q", rec.MapID)
		}

		sess := model.RestoreSession(rec.ID, m)
		for _, d := range rec.Dogs {
			var bag []*model.Loot
			for _, l := range d.Bag {
				bag = append(bag, recToLoot(g, l))
			}
			dog := model.RestoreDog(d.ID, d.Name, d.Pos, d.Speed, model.Direction(d.Dir), d.Width, d.Score, bag)
			sess.AddDog(dog)
			g.Counters().Restore(d.Counter, 0, 0, 0)
		}
		for _, l := range rec.Loot {
			sess.AddLoot(recToLoot(g, l))
		}
		if err := g.AttachSession(sess); err != nil {
			return fmt.Errorf("failed to restore session %d: %w", rec.ID, err)
		}
		g.Counters().Restore(0, 0, rec.Counter, 0)
	}
	return nil
}

// loadPlayers reads players until the section ends or breaks. Damage
// here is not fatal: the sessions are already loaded and every player
// read so far stays registered.
func (s *Store) loadPlayers(dec *gob.Decoder, g *model.Game, reg *player.Registry) {
	var tag string
	if err := dec.Decode(&tag); err != nil || tag != "players" {
		s.log.Warn("state file has no readable player section", zap.Error(err))
		return
	}
	var count int
	if err := dec.Decode(&count); err != nil {
		s.log.Warn("failed to decode player count", zap.Error(err))
		return
	}

	for i := 0; i < count; i++ {
		var rec playerRec
		if err := dec.Decode(&rec); err != nil {
			s.log.Warn("failed to decode player, keeping the ones loaded",
				zap.Int("loaded", i), zap.Error(err))
			return
		}
		sess := g.SessionByID(rec.SessionID)
		if sess == nil {
			s.log.Warn("player references unknown session",
				zap.Uint32("playerId", rec.ID), zap.Uint32("sessionId", rec.SessionID))
			return
		}
		dog := sess.DogByID(rec.DogID)
		if dog == nil {
			s.log.Warn("player references unknown dog",
				zap.Uint32("playerId", rec.ID), zap.Uint32("dogId", rec.DogID))
			return
		}
		if err := reg.Restore(player.Token(rec.Token), rec.ID, dog, sess); err != nil {
			s.log.Warn("failed to restore player", zap.Error(err))
			return
		}
		g.Counters().Restore(0, 0, 0, rec.Counter)
		s.log.Info("player restored", zap.Uint32("playerId", rec.ID))
	}
}

func recToLoot(g *model.Game, rec lootRec) *model.Loot {
	g.Counters().Restore(0, rec.Counter, 0, 0)
	return model.RestoreLoot(rec.ID, rec.Type, rec.Value, rec.Pos, rec.Width)
}
