package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosminstn/disruptor-mediator/internal/adapters/persistence"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/database"
	"github.com/cosminstn/disruptor-mediator/test/helpers"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFailure(id, handler, errMsg string) mediator.Failure {
	return mediator.Failure{
		ID:          id,
		MediatorID:  "mediator-a3f8e2b1",
		Kind:        mediator.KindCommand,
		MessageType: "PrintThing",
		Handler:     handler,
		Group:       1,
		Error:       errMsg,
	}
}

func TestFailureRepository_RecordAndList(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now)
	ctx := context.Background()

	// Act
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-1", "printThingHandler", "printer on fire")))
	clock.Advance(time.Second)
	panicked := newFailure("f-2", "findNextNumberHandler", "boom")
	panicked.Panicked = true
	panicked.Kind = mediator.KindQuery
	require.NoError(t, repo.RecordFailure(ctx, panicked))

	// Assert
	records, err := repo.ListRecent(ctx, persistence.FailureFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "f-2", records[0].ID, "newest first")
	assert.Equal(t, "query", records[0].Kind)
	assert.True(t, records[0].Panicked)
	assert.Equal(t, "f-1", records[1].ID)
	assert.Equal(t, "command", records[1].Kind)
	assert.Equal(t, 1, records[1].Occurrences)
}

func TestFailureRepository_DeduplicatesWithinWindow(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now)
	ctx := context.Background()

	// Act
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-1", "printThingHandler", "printer on fire")))
	clock.Advance(10 * time.Second)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-2", "printThingHandler", "printer on fire")))
	clock.Advance(2 * time.Minute)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-3", "printThingHandler", "printer on fire")))

	// Assert
	records, err := repo.ListRecent(ctx, persistence.FailureFilter{Handler: "printThingHandler"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "f-3", records[0].ID)
	assert.Equal(t, 1, records[0].Occurrences)
	assert.Equal(t, "f-1", records[1].ID)
	assert.Equal(t, 2, records[1].Occurrences)
}

func TestFailureRepository_ZeroWindowKeepsEveryFailure(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now).WithDedupWindow(0)
	ctx := context.Background()

	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-1", "printThingHandler", "printer on fire")))
	clock.Advance(time.Millisecond)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-2", "printThingHandler", "printer on fire")))

	records, err := repo.ListRecent(ctx, persistence.FailureFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFailureRepository_FailedInsertIsNotDeduplicated(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now)
	ctx := context.Background()
	require.NoError(t, db.Migrator().DropTable(&persistence.HandlerFailureModel{}))

	// Act
	err := repo.RecordFailure(ctx, newFailure("f-1", "printThingHandler", "printer on fire"))
	require.Error(t, err)
	require.NoError(t, database.AutoMigrate(db))
	clock.Advance(time.Second)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-2", "printThingHandler", "printer on fire")))

	// Assert
	records, err := repo.ListRecent(ctx, persistence.FailureFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "f-2", records[0].ID)
	assert.Equal(t, 1, records[0].Occurrences)
}

func TestFailureRepository_RepeatAfterPurgeInsertsFreshRow(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now)
	ctx := context.Background()
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-1", "printThingHandler", "printer on fire")))
	clock.Advance(time.Second)
	purged, err := repo.Purge(ctx, clock.now)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	// Act
	clock.Advance(time.Second)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-2", "printThingHandler", "printer on fire")))
	clock.Advance(time.Second)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("f-3", "printThingHandler", "printer on fire")))

	// Assert
	records, err := repo.ListRecent(ctx, persistence.FailureFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "f-2", records[0].ID)
	assert.Equal(t, 2, records[0].Occurrences)
}

func TestFailureRepository_FilterAndPurge(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := persistence.NewGormFailureRepository(db, clock.Now)
	ctx := context.Background()

	require.NoError(t, repo.RecordFailure(ctx, newFailure("old", "printThingHandler", "a")))
	clock.Advance(time.Hour)
	require.NoError(t, repo.RecordFailure(ctx, newFailure("new", "stringEventHandler", "b")))

	since := clock.now.Add(-time.Minute)
	records, err := repo.ListRecent(ctx, persistence.FailureFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ID)

	purged, err := repo.Purge(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	records, err = repo.ListRecent(ctx, persistence.FailureFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ID)
}

func TestFailureRepository_ServesAsMediatorFailureSink(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormFailureRepository(db, nil)
	type Broken struct {
		mediator.CommandOf[mediator.Unit]
	}
	registry := mediator.NewRegistry(mediator.StaticBindings(
		mediator.BindCommand[Broken, mediator.Unit]("brokenHandler",
			mediator.CommandHandlerFunc[Broken, mediator.Unit](func(context.Context, Broken) (mediator.Unit, error) {
				return mediator.Unit{}, assert.AnError
			})),
	))
	m, err := mediator.New(registry, mediator.WithFailureSink(repo))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	// Act
	_, err = mediator.DispatchBlocking[mediator.Unit](context.Background(), m, Broken{})

	// Assert
	require.ErrorIs(t, err, assert.AnError)
	records, err := repo.ListRecent(context.Background(), persistence.FailureFilter{Handler: "brokenHandler"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Broken", records[0].MessageType)
	assert.Equal(t, m.ID(), records[0].MediatorID)
}
