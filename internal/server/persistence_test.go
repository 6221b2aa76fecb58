package server

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dots-server/internal/dots"
)

// setupTestPersistence spins up a throwaway Postgres container. Tests
// that need it are skipped under -short and when Docker is unavailable.
func setupTestPersistence(t *testing.T) (*PersistenceManager, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dots_test"),
		postgres.WithUsername("dots"),
		postgres.WithPassword("dots"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	pm := NewPersistenceManager(pool)
	require.NoError(t, pm.InitSchema(ctx))
	return pm, ctx
}

func TestPersistenceSaveLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	pm, ctx := setupTestPersistence(t)

	room := dots.NewRoom("ABCDEF", "Alice", 3, 2)
	guestID, err := room.Join("Bob")
	assert.NoError(err)
	assert.NoError(room.SetReady(guestID, true))
	assert.NoError(room.Start(room.HostPlayerID))

	snap := room.Snapshot()
	assert.NoError(pm.SaveRoom(ctx, snap))

	loaded, err := pm.LoadRoom(ctx, "ABCDEF")
	assert.NoError(err)
	assert.NotNil(loaded)
	assert.Equal(snap.RoomCode, loaded.RoomCode)
	assert.Equal(snap.Status, loaded.Status)
	assert.Equal(snap.HostPlayerID, loaded.HostPlayerID)
	assert.Equal(snap.TurnIndex, loaded.TurnIndex)
	assert.Equal(len(snap.Players), len(loaded.Players))
	assert.Equal(snap.Board.Edges.H, loaded.Board.Edges.H)
	assert.Equal(snap.Board.Edges.V, loaded.Board.Edges.V)
	assert.Equal(snap.Board.Boxes, loaded.Board.Boxes)
}

func TestPersistenceSaveIsUpsert(t *testing.T) {
	assert := assert.New(t)
	pm, ctx := setupTestPersistence(t)

	room := dots.NewRoom("ABCDEF", "Alice", 2, 2)
	assert.NoError(pm.SaveRoom(ctx, room.Snapshot()))

	_, err := room.Join("Bob")
	assert.NoError(err)
	assert.NoError(pm.SaveRoom(ctx, room.Snapshot()))

	loaded, err := pm.LoadRoom(ctx, "ABCDEF")
	assert.NoError(err)
	assert.Len(loaded.Players, 2)
}

func TestPersistenceLoadAbsentRoom(t *testing.T) {
	pm, ctx := setupTestPersistence(t)

	loaded, err := pm.LoadRoom(ctx, "ZZZZZZ")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPersistenceLoadActiveRoomsSkipsFinished(t *testing.T) {
	assert := assert.New(t)
	pm, ctx := setupTestPersistence(t)

	lobby := dots.NewRoom("AAAAAA", "Alice", 2, 2)
	assert.NoError(pm.SaveRoom(ctx, lobby.Snapshot()))

	finished := dots.NewRoom("BBBBBB", "Bob", 2, 2)
	finishedSnap := finished.Snapshot()
	finishedSnap.Status = dots.PhaseFinished
	assert.NoError(pm.SaveRoom(ctx, finishedSnap))

	snaps, err := pm.LoadActiveRooms(ctx)
	assert.NoError(err)
	assert.Len(snaps, 1)
	assert.Equal("AAAAAA", snaps[0].RoomCode)
}

func TestPersistenceDeleteRoom(t *testing.T) {
	assert := assert.New(t)
	pm, ctx := setupTestPersistence(t)

	room := dots.NewRoom("ABCDEF", "Alice", 2, 2)
	assert.NoError(pm.SaveRoom(ctx, room.Snapshot()))

	assert.NoError(pm.DeleteRoom(ctx, "ABCDEF"))

	loaded, err := pm.LoadRoom(ctx, "ABCDEF")
	assert.NoError(err)
	assert.Nil(loaded)

	assert.Error(pm.DeleteRoom(ctx, "ABCDEF"), "deleting twice reports the miss")
}

func TestPersistenceCleanupOldRooms(t *testing.T) {
	assert := assert.New(t)
	pm, ctx := setupTestPersistence(t)

	active := dots.NewRoom("AAAAAA", "Alice", 2, 2)
	assert.NoError(pm.SaveRoom(ctx, active.Snapshot()))

	finished := dots.NewRoom("BBBBBB", "Bob", 2, 2)
	finishedSnap := finished.Snapshot()
	finishedSnap.Status = dots.PhaseFinished
	assert.NoError(pm.SaveRoom(ctx, finishedSnap))

	// Nothing is older than an hour yet.
	deleted, err := pm.CleanupOldRooms(ctx, time.Hour)
	assert.NoError(err)
	assert.Equal(0, deleted)

	// With a zero horizon the finished room is eligible immediately.
	deleted, err = pm.CleanupOldRooms(ctx, 0)
	assert.NoError(err)
	assert.Equal(1, deleted)

	remaining, err := pm.LoadRoom(ctx, "AAAAAA")
	assert.NoError(err)
	assert.NotNil(remaining, "unfinished rooms survive cleanup")
}
