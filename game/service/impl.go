package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/model"
	"github.com/dogwalk/gameserver/game/player"
)

// Deps wires a Service together.
type Deps struct {
	Game    *model.Game
	Players *player.Registry
	Records RecordStore
	// Saver checkpoints the world; it runs on the strand during
	// Shutdown. Optional.
	Saver func() error
	// TickPeriod drives the wall-clock ticker in normal mode. Ignored
	// in test mode.
	TickPeriod time.Duration
	Logger     *zap.Logger
}

// Service implements GameService on top of the world model, serializing
// all live-state access through a strand.
type Service struct {
	game    *model.Game
	players *player.Registry
	records RecordStore
	saver   func() error
	log     *zap.Logger

	strand    *strand
	broadcast BroadcastFunc

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ GameService = (*Service)(nil)

// New assembles the service. In normal mode it starts the wall-clock
// ticker immediately.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		game:    deps.Game,
		players: deps.Players,
		records: deps.Records,
		saver:   deps.Saver,
		log:     log,
		strand:  newStrand(64),
		quit:    make(chan struct{}),
	}
	if deps.Game.Mode() == model.ModeNormal && deps.TickPeriod > 0 {
		s.runTicker(deps.TickPeriod)
	}
	return s
}

// SetBroadcaster registers the sink for state pushes. Set it before
// traffic arrives; fn is called on the strand and must not block.
func (s *Service) SetBroadcaster(fn BroadcastFunc) { s.broadcast = fn }

// Shutdown stops the ticker, takes a final checkpoint and stops the
// strand. Only the first call does any work; the service must not be
// used afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	var saveErr error
	s.stopOnce.Do(func() {
		close(s.quit)
		s.wg.Wait()

		if s.saver != nil {
			if err := s.strand.do(ctx, func() { saveErr = s.saver() }); err != nil {
				saveErr = err
			}
		}
		s.strand.close()
	})

	if saveErr != nil {
		return fmt.Errorf("failed to save state on shutdown: %w", saveErr)
	}
	return nil
}

// ListMaps returns id and name of every map, in catalog order.
func (s *Service) ListMaps(ctx context.Context) ([]MapInfo, error) {
	maps := s.game.Maps()
	out := make([]MapInfo, 0, len(maps))
	for _, m := range maps {
		out = append(out, MapInfo{ID: m.ID(), Name: m.Name()})
	}
	return out, nil
}

// GetMap echoes one map definition.
func (s *Service) GetMap(ctx context.Context, mapID string) (*MapDetail, error) {
	m := s.game.FindMap(mapID)
	if m == nil {
		return nil, model.ErrMapNotFound
	}
	def := m.Definition()
	detail := &MapDetail{
		ID:        def.ID,
		Name:      def.Name,
		Roads:     def.Roads,
		Buildings: def.Buildings,
		Offices:   def.Offices,
		LootTypes: def.LootTypes,
	}
	// Clients expect arrays, not null.
	if detail.Buildings == nil {
		detail.Buildings = []config.Building{}
	}
	if detail.Offices == nil {
		detail.Offices = []config.Office{}
	}
	if detail.LootTypes == nil {
		detail.LootTypes = []json.RawMessage{}
	}
	return detail, nil
}

// Join puts a new dog on the map and returns the player's credentials.
func (s *Service) Join(ctx context.Context, userName, mapID string) (*JoinResult, error) {
	if userName == "" {
		return nil, ErrInvalidName
	}
	var (
		res *JoinResult
		err error
	)
	if serr := s.strand.do(ctx, func() {
		dog, sess, spawnErr := s.game.SpawnDog(mapID, userName)
		if spawnErr != nil {
			err = spawnErr
			return
		}
		p := s.players.Add(dog, sess)
		res = &JoinResult{AuthToken: string(p.Token()), PlayerID: p.ID()}
		s.push(sess)
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Players lists the names of everyone sharing the caller's session,
// keyed by decimal player id.
func (s *Service) Players(ctx context.Context, token string) (map[string]PlayerName, error) {
	var (
		out map[string]PlayerName
		err error
	)
	if serr := s.strand.do(ctx, func() {
		p := s.players.FindByToken(player.Token(token))
		if p == nil {
			err = ErrUnknownToken
			return
		}
		out = make(map[string]PlayerName)
		for _, other := range s.players.BySession(p.Session().ID()) {
			out[formatID(other.ID())] = PlayerName{Name: other.Dog().Name()}
		}
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// State returns the caller's session as clients draw it.
func (s *Service) State(ctx context.Context, token string) (*StateSnapshot, error) {
	var (
		out *StateSnapshot
		err error
	)
	if serr := s.strand.do(ctx, func() {
		p := s.players.FindByToken(player.Token(token))
		if p == nil {
			err = ErrUnknownToken
			return
		}
		out = s.snapshot(p.Session())
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Action applies a move command to the caller's dog. Unknown commands
// stop the dog; every command counts as activity.
func (s *Service) Action(ctx context.Context, token, move string) error {
	var err error
	if serr := s.strand.do(ctx, func() {
		p := s.players.FindByToken(player.Token(token))
		if p == nil {
			err = ErrUnknownToken
			return
		}
		p.Dog().SetMove(model.DirectionFromMove(move), p.Session().Map().DogSpeed())
		s.push(p.Session())
	}); serr != nil {
		return serr
	}
	return err
}

// SessionID resolves a token to the id of the session its player is in.
// Transports that subscribe clients to live updates key on it.
func (s *Service) SessionID(ctx context.Context, token string) (uint32, error) {
	var (
		id  uint32
		err error
	)
	if serr := s.strand.do(ctx, func() {
		p := s.players.FindByToken(player.Token(token))
		if p == nil {
			err = ErrUnknownToken
			return
		}
		id = p.Session().ID()
	}); serr != nil {
		return 0, serr
	}
	return id, err
}

// Tick advances the world by delta. Only available in test mode; the
// ticker owns time otherwise.
func (s *Service) Tick(ctx context.Context, delta time.Duration) error {
	if !s.TickEnabled() {
		return ErrTickDisabled
	}
	var err error
	if serr := s.strand.do(ctx, func() { err = s.advance(ctx, delta) }); serr != nil {
		return serr
	}
	return err
}

// TickEnabled reports whether manual ticks drive the clock.
func (s *Service) TickEnabled() bool {
	return s.game.Mode() == model.ModeTest
}

// Records returns one leaderboard page.
func (s *Service) Records(ctx context.Context, start, maxItems int) ([]RecordInfo, error) {
	if maxItems > MaxRecordItems {
		return nil, ErrTooManyItems
	}
	recs, err := s.records.Records(ctx, start, maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	out := make([]RecordInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecordInfo{
			Name:     r.Name,
			Score:    r.Score,
			PlayTime: float64(r.PlayTimeMS) / 1000.0,
		})
	}
	return out, nil
}

// advance moves the clock and the world and pushes the new state of
// every session. Must run on the strand.
func (s *Service) advance(ctx context.Context, delta time.Duration) error {
	s.game.AddTestTime(delta)
	err := s.game.Update(ctx, delta)
	for _, sess := range s.game.Sessions() {
		s.push(sess)
	}
	return err
}

// snapshot builds the wire state of one session. Must run on the strand.
func (s *Service) snapshot(sess *model.GameSession) *StateSnapshot {
	snap := &StateSnapshot{
		Players:     make(map[string]DogState),
		LostObjects: make(map[string]LootState),
	}
	for _, p := range s.players.BySession(sess.ID()) {
		dog := p.Dog()
		ds := DogState{
			Pos:   [2]float64{dog.Pos().X, dog.Pos().Y},
			Speed: [2]float64{dog.Speed().X, dog.Speed().Y},
			Dir:   dog.Direction().String(),
			Bag:   make([]BagItem, 0, len(dog.Bag())),
			Score: dog.Score(),
		}
		for _, l := range dog.Bag() {
			ds.Bag = append(ds.Bag, BagItem{ID: l.ID(), Type: l.Type()})
		}
		snap.Players[formatID(p.ID())] = ds
	}
	for _, l := range sess.Loot() {
		snap.LostObjects[formatID(l.ID())] = LootState{
			Type: l.Type(),
			Pos:  [2]float64{l.Pos().X, l.Pos().Y},
		}
	}
	return snap
}

func (s *Service) push(sess *model.GameSession) {
	if s.broadcast == nil {
		return
	}
	s.broadcast(sess.ID(), s.snapshot(sess))
}

// runTicker drives the world from the wall clock. Each tick feeds the
// measured elapsed time into the pipeline, so a delayed tick does not
// lose game time.
func (s *Service) runTicker(period time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-s.quit:
				return
			case now := <-ticker.C:
				delta := now.Sub(last)
				last = now
				var err error
				if derr := s.strand.do(context.Background(), func() {
					err = s.advance(context.Background(), delta)
				}); derr != nil {
					s.log.Error("failed to run tick", zap.Error(derr))
					continue
				}
				if err != nil {
					s.log.Error("tick failed", zap.Error(err))
				}
			}
		}
	}()
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
