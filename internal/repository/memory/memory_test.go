package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/repository"
)

func TestStore_Create(t *testing.T) {
	t.Run("assigns ids and initial visit count", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		m1, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com/page")
		require.NoError(t, err)
		m2, err := store.Create(context.TODO(), "Zz9xY1", "https://example.com/page")
		require.NoError(t, err)

		assert.Equal(t, int64(1), m1.ID)
		assert.Equal(t, int64(2), m2.ID)
		assert.Zero(t, m1.VisitCount)
	})

	t.Run("initial visit count of one", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 1)

		m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, int64(1), m.VisitCount)
	})

	t.Run("duplicate short code", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		_, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		_, err = store.Create(context.TODO(), "Ab3dE9", "https://other.example.com")

		assert.ErrorIs(t, err, repository.ErrShortCodeExists)
	})

	t.Run("concurrent creates claim distinct codes", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		var wg sync.WaitGroup
		errs := make([]error, 100)

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.Create(context.TODO(), "sameCode", "https://example.com")
			}(i)
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
			} else {
				assert.ErrorIs(t, err, repository.ErrShortCodeExists)
			}
		}
		assert.Equal(t, 1, created)
	})
}

func TestStore_FindByOriginalURL(t *testing.T) {
	store := NewStore(entity.VisitModeAggregate, 0)

	_, err := store.Create(context.TODO(), "code1", "https://example.com")
	require.NoError(t, err)
	_, err = store.Create(context.TODO(), "code2", "https://example.com")
	require.NoError(t, err)
	_, err = store.Create(context.TODO(), "code3", "https://other.example.com")
	require.NoError(t, err)

	mappings, err := store.FindByOriginalURL(context.TODO(), "https://example.com")

	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "code1", mappings[0].ShortCode)
	assert.Equal(t, "code2", mappings[1].ShortCode)

	mappings, err = store.FindByOriginalURL(context.TODO(), "https://unknown.example.com")
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestStore_IncrementVisits(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		err := store.IncrementVisits(context.TODO(), "missing")

		assert.ErrorIs(t, err, repository.ErrURLNotFound)
	})

	t.Run("no lost updates under concurrent increments", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		_, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.IncrementVisits(context.TODO(), "Ab3dE9"))
			}()
		}
		wg.Wait()

		m, err := store.FindByShortCode(context.TODO(), "Ab3dE9")
		require.NoError(t, err)
		assert.Equal(t, int64(200), m.VisitCount)
	})

	t.Run("by original url bumps every alias", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		_, err := store.Create(context.TODO(), "code1", "https://example.com")
		require.NoError(t, err)
		_, err = store.Create(context.TODO(), "code2", "https://example.com")
		require.NoError(t, err)

		require.NoError(t, store.IncrementVisitsByOriginalURL(context.TODO(), "https://example.com"))

		for _, code := range []string{"code1", "code2"} {
			m, err := store.FindByShortCode(context.TODO(), code)
			require.NoError(t, err)
			assert.Equal(t, int64(1), m.VisitCount)
		}
	})
}

func TestStore_Record(t *testing.T) {
	t1 := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	t.Run("aggregate mode merges repeat visits from one ip", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		require.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", t1))
		require.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", t2))

		visits, err := store.ListByMappingIDs(context.TODO(), []int64{m.ID})
		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, int64(2), visits[0].Count)
		// Repeat visits keep the first visit's timestamp.
		assert.True(t, visits[0].RecordedAt.Equal(t1))
	})

	t.Run("log mode keeps one row per visit", func(t *testing.T) {
		store := NewStore(entity.VisitModeLog, 0)

		m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		require.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", t1))
		require.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", t2))

		visits, err := store.ListByMappingIDs(context.TODO(), []int64{m.ID})
		require.NoError(t, err)
		require.Len(t, visits, 2)
		assert.Equal(t, int64(1), visits[0].Count)
		assert.Equal(t, int64(1), visits[1].Count)
	})

	t.Run("aggregate mode is atomic under concurrent visits from one ip", func(t *testing.T) {
		store := NewStore(entity.VisitModeAggregate, 0)

		m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", time.Now()))
			}()
		}
		wg.Wait()

		visits, err := store.ListByMappingIDs(context.TODO(), []int64{m.ID})
		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, int64(100), visits[0].Count)
	})

	t.Run("list is ordered by timestamp ascending", func(t *testing.T) {
		store := NewStore(entity.VisitModeLog, 0)

		m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
		require.NoError(t, err)

		for i := 4; i >= 0; i-- {
			ip := fmt.Sprintf("10.0.0.%d", i)
			require.NoError(t, store.Record(context.TODO(), m.ID, ip, t1.Add(time.Duration(i)*time.Second)))
		}

		visits, err := store.ListByMappingIDs(context.TODO(), []int64{m.ID})
		require.NoError(t, err)
		require.Len(t, visits, 5)
		for i := 1; i < len(visits); i++ {
			assert.False(t, visits[i].RecordedAt.Before(visits[i-1].RecordedAt))
		}
	})
}

func TestStore_TotalByMappingIDs(t *testing.T) {
	store := NewStore(entity.VisitModeAggregate, 0)

	m1, err := store.Create(context.TODO(), "code1", "https://example.com")
	require.NoError(t, err)
	m2, err := store.Create(context.TODO(), "code2", "https://example.com")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Record(context.TODO(), m1.ID, "10.0.0.1", now))
	require.NoError(t, store.Record(context.TODO(), m1.ID, "10.0.0.1", now))
	require.NoError(t, store.Record(context.TODO(), m2.ID, "10.0.0.2", now))

	total, err := store.TotalByMappingIDs(context.TODO(), []int64{m1.ID, m2.ID})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestStore_ResetAll(t *testing.T) {
	store := NewStore(entity.VisitModeAggregate, 0)

	m, err := store.Create(context.TODO(), "Ab3dE9", "https://example.com")
	require.NoError(t, err)
	require.NoError(t, store.Record(context.TODO(), m.ID, "10.0.0.1", time.Now()))

	require.NoError(t, store.ResetAll(context.TODO()))

	_, err = store.FindByShortCode(context.TODO(), "Ab3dE9")
	assert.ErrorIs(t, err, repository.ErrURLNotFound)

	visits, err := store.ListByMappingIDs(context.TODO(), []int64{m.ID})
	require.NoError(t, err)
	assert.Empty(t, visits)
}
