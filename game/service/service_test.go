package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/model"
	"github.com/dogwalk/gameserver/game/player"
)

const townCatalog = `{
  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
  "maps": [{
    "id": "town", "name": "Town", "dogSpeed": 2.0,
    "roads": [
      {"x0": 0, "y0": 0, "x1": 10},
      {"x0": 10, "y0": 0, "y1": 10}
    ],
    "buildings": [{"x": 2, "y": 2, "w": 3, "h": 3}],
    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
    "lootTypes": [
      {"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10},
      {"name": "wallet", "file": "wallet.obj", "type": "obj", "scale": 0.01, "value": 30}
    ]
  }]
}`

type recordStoreFunc func(ctx context.Context, start, maxItems int) ([]model.PlayerRecord, error)

func (f recordStoreFunc) Records(ctx context.Context, start, maxItems int) ([]model.PlayerRecord, error) {
	return f(ctx, start, maxItems)
}

func emptyRecords(context.Context, int, int) ([]model.PlayerRecord, error) {
	return nil, nil
}

func newTestService(t *testing.T, settings model.Settings, deps Deps) *Service {
	t.Helper()
	cfg, err := config.Parse([]byte(townCatalog))
	require.NoError(t, err)
	counters := model.NewCounters()
	g, err := model.NewGame(cfg, counters, settings)
	require.NoError(t, err)

	deps.Game = g
	deps.Players = player.NewRegistry(counters, player.NewTokens())
	if deps.Records == nil {
		deps.Records = recordStoreFunc(emptyRecords)
	}
	svc := New(deps)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc
}

func TestJoinAndState(t *testing.T) {
	svc := newTestService(t, model.Settings{}, Deps{})
	ctx := context.Background()

	join, err := svc.Join(ctx, "Fido", "town")
	require.NoError(t, err)
	assert.True(t, player.IsValid(join.AuthToken), "join issues a well-formed token")

	sid, err := svc.SessionID(ctx, join.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), sid)

	_, err = svc.SessionID(ctx, "ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrUnknownToken)

	state, err := svc.State(ctx, join.AuthToken)
	require.NoError(t, err)
	require.Contains(t, state.Players, "0")
	dog := state.Players["0"]
	assert.Equal(t, [2]float64{0, 0}, dog.Pos)
	assert.Equal(t, [2]float64{0, 0}, dog.Speed)
	assert.Equal(t, "", dog.Dir)
	assert.Empty(t, dog.Bag)
	assert.Zero(t, dog.Score)
	assert.Empty(t, state.LostObjects)
}

func TestJoinRejectsBadInput(t *testing.T) {
	svc := newTestService(t, model.Settings{}, Deps{})
	ctx := context.Background()

	_, err := svc.Join(ctx, "", "town")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Join(ctx, "Fido", "nowhere")
	assert.ErrorIs(t, err, model.ErrMapNotFound)
}

func TestPlayersRoster(t *testing.T) {
	svc := newTestService(t, model.Settings{}, Deps{})
	ctx := context.Background()

	fido, err := svc.Join(ctx, "Fido", "town")
	require.NoError(t, err)
	rex, err := svc.Join(ctx, "Rex", "town")
	require.NoError(t, err)

	roster, err := svc.Players(ctx, fido.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, map[string]PlayerName{
		"0": {Name: "Fido"},
		"1": {Name: "Rex"},
	}, roster)

	// Both players see the same roster.
	other, err := svc.Players(ctx, rex.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, roster, other)

	_, err = svc.Players(ctx, "ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestActionAndTick(t *testing.T) {
	svc := newTestService(t, model.Settings{Mode: model.ModeTest}, Deps{})
	ctx := context.Background()

	join, err := svc.Join(ctx, "Fido", "town")
	require.NoError(t, err)

	require.NoError(t, svc.Action(ctx, join.AuthToken, "R"))

	state, err := svc.State(ctx, join.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, "R", state.Players["0"].Dir)
	assert.Equal(t, [2]float64{2, 0}, state.Players["0"].Speed, "action applies the map's dog speed")

	require.NoError(t, svc.Tick(ctx, time.Second))

	state, err = svc.State(ctx, join.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{2, 0}, state.Players["0"].Pos, "one second at speed 2 covers two units")

	// Stop command.
	require.NoError(t, svc.Action(ctx, join.AuthToken, ""))
	state, err = svc.State(ctx, join.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0, 0}, state.Players["0"].Speed)
	assert.Equal(t, "", state.Players["0"].Dir)

	assert.ErrorIs(t, svc.Action(ctx, "ffffffffffffffffffffffffffffffff", "R"), ErrUnknownToken)
}

func TestTickDisabledInNormalMode(t *testing.T) {
	svc := newTestService(t, model.Settings{Mode: model.ModeNormal}, Deps{})

	assert.False(t, svc.TickEnabled())
	assert.ErrorIs(t, svc.Tick(context.Background(), time.Second), ErrTickDisabled)
}

func TestTickerDrivesNormalMode(t *testing.T) {
	svc := newTestService(t, model.Settings{Mode: model.ModeNormal}, Deps{TickPeriod: 10 * time.Millisecond})
	ctx := context.Background()

	join, err := svc.Join(ctx, "Fido", "town")
	require.NoError(t, err)
	require.NoError(t, svc.Action(ctx, join.AuthToken, "R"))

	require.Eventually(t, func() bool {
		state, err := svc.State(ctx, join.AuthToken)
		if err != nil {
			return false
		}
		return state.Players["0"].Pos[0] > 0
	}, 2*time.Second, 10*time.Millisecond, "the internal ticker must move the dog")
}

func TestListAndGetMaps(t *testing.T) {
	svc := newTestService(t, model.Settings{}, Deps{})
	ctx := context.Background()

	maps, err := svc.ListMaps(ctx)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, MapInfo{ID: "town", Name: "Town"}, maps[0])

	detail, err := svc.GetMap(ctx, "town")
	require.NoError(t, err)
	assert.Equal(t, "town", detail.ID)
	require.Len(t, detail.Roads, 2)
	assert.Equal(t, 0, detail.Roads[0].X0)
	require.NotNil(t, detail.Roads[0].X1)
	assert.Equal(t, 10, *detail.Roads[0].X1)
	assert.Len(t, detail.Buildings, 1)
	assert.Len(t, detail.Offices, 1)
	assert.Len(t, detail.LootTypes, 2)

	_, err = svc.GetMap(ctx, "nowhere")
	assert.ErrorIs(t, err, model.ErrMapNotFound)
}

func TestRecords(t *testing.T) {
	var gotStart, gotMax int
	store := recordStoreFunc(func(_ context.Context, start, maxItems int) ([]model.PlayerRecord, error) {
		gotStart, gotMax = start, maxItems
		return []model.PlayerRecord{
			{Name: "Fido", Score: 42, PlayTimeMS: 61500},
		}, nil
	})
	svc := newTestService(t, model.Settings{}, Deps{Records: store})
	ctx := context.Background()

	recs, err := svc.Records(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, gotStart)
	assert.Equal(t, 10, gotMax)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordInfo{Name: "Fido", Score: 42, PlayTime: 61.5}, recs[0])

	_, err = svc.Records(ctx, 0, MaxRecordItems+1)
	assert.ErrorIs(t, err, ErrTooManyItems)
}

func TestRecordsStoreFailure(t *testing.T) {
	store := recordStoreFunc(func(context.Context, int, int) ([]model.PlayerRecord, error) {
		return nil, errors.New("connection refused")
	})
	svc := newTestService(t, model.Settings{}, Deps{Records: store})

	_, err := svc.Records(context.Background(), 0, 100)
	assert.Error(t, err)
}

func TestBroadcastOnMutations(t *testing.T) {
	svc := newTestService(t, model.Settings{Mode: model.ModeTest}, Deps{})
	ctx := context.Background()

	var (
		mu     sync.Mutex
		pushes []uint32
		last   *StateSnapshot
	)
	svc.SetBroadcaster(func(sessionID uint32, state *StateSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		pushes = append(pushes, sessionID)
		last = state
	})

	join, err := svc.Join(ctx, "Fido", "town")
	require.NoError(t, err)
	require.NoError(t, svc.Action(ctx, join.AuthToken, "R"))
	require.NoError(t, svc.Tick(ctx, time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, pushes, 3, "join, action and tick each push")
	require.NotNil(t, last)
	assert.Contains(t, last.Players, "0")
	assert.Equal(t, [2]float64{2, 0}, last.Players["0"].Pos)
}

func TestStrandRunsTasksInOrder(t *testing.T) {
	s := newStrand(4)
	defer s.close()

	var got []int
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, s.do(ctx, func() { got = append(got, i) }))
	}

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestStrandRejectsAfterClose(t *testing.T) {
	s := newStrand(4)
	s.close()
	err := s.do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStrandHonorsContext(t *testing.T) {
	s := newStrand(1)

	gate := make(chan struct{})
	running := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.do(context.Background(), func() { close(running); <-gate })
	}()
	<-running
	go func() {
		defer wg.Done()
		_ = s.do(context.Background(), func() {})
	}()
	require.Eventually(t, func() bool { return len(s.tasks) == 1 }, time.Second, time.Millisecond,
		"queue must be full before the canceled submit")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.do(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(gate)
	wg.Wait()
	s.close()
}

func TestShutdownSaves(t *testing.T) {
	saves := 0
	svc := newTestService(t, model.Settings{}, Deps{Saver: func() error {
		saves++
		return nil
	}})

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Equal(t, 1, saves)

	_, err := svc.Join(context.Background(), "Fido", "town")
	assert.ErrorIs(t, err, ErrStopped)

	// The cleanup shutdown is a no-op.
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Equal(t, 1, saves)
}
