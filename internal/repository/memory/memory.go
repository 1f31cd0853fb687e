// Package memory implements the mapping store and visit ledger in process
// memory. It backs tests and single-instance deployments; the service
// layer does not know which implementation it talks to.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/repository"
)

// Store holds both tables behind one mutex, which makes every operation
// atomic, including the reset spanning both of them.
type Store struct {
	mu            sync.Mutex
	nextMappingID int64
	nextVisitID   int64
	mappings      []*entity.URLMapping
	visits        []*entity.Visit
	initialVisits int64
	visitMode     entity.VisitMode
}

// NewStore returns an empty store recording visits per the given mode and
// seeding new mappings with the given initial visit count.
func NewStore(visitMode entity.VisitMode, initialVisits int64) *Store {
	return &Store{
		nextMappingID: 1,
		nextVisitID:   1,
		initialVisits: initialVisits,
		visitMode:     visitMode,
	}
}

func copyMapping(m *entity.URLMapping) *entity.URLMapping {
	cp := *m
	return &cp
}

func copyVisit(v *entity.Visit) *entity.Visit {
	cp := *v
	return &cp
}

func (s *Store) Create(_ context.Context, shortCode, originalURL string) (*entity.URLMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.ShortCode == shortCode {
			return nil, repository.ErrShortCodeExists
		}
	}

	now := time.Now()
	m := &entity.URLMapping{
		ID:          s.nextMappingID,
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		VisitCount:  s.initialVisits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextMappingID++
	s.mappings = append(s.mappings, m)

	return copyMapping(m), nil
}

func (s *Store) FindByShortCode(_ context.Context, shortCode string) (*entity.URLMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.ShortCode == shortCode {
			return copyMapping(m), nil
		}
	}

	return nil, repository.ErrURLNotFound
}

func (s *Store) FindByOriginalURL(_ context.Context, originalURL string) ([]*entity.URLMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mappings []*entity.URLMapping
	for _, m := range s.mappings {
		if m.OriginalURL == originalURL {
			mappings = append(mappings, copyMapping(m))
		}
	}

	// Creation order equals insertion order here.
	return mappings, nil
}

func (s *Store) IncrementVisits(_ context.Context, shortCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.ShortCode == shortCode {
			m.VisitCount++
			m.UpdatedAt = time.Now()
			return nil
		}
	}

	return repository.ErrURLNotFound
}

func (s *Store) IncrementVisitsByOriginalURL(_ context.Context, originalURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, m := range s.mappings {
		if m.OriginalURL == originalURL {
			m.VisitCount++
			m.UpdatedAt = time.Now()
			found = true
		}
	}

	if !found {
		return repository.ErrURLNotFound
	}

	return nil
}

// Record stores one visit under the store mutex, so the find-or-create
// plus increment sequence of aggregate mode cannot interleave.
func (s *Store) Record(_ context.Context, mappingID int64, ipAddress string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visitMode == entity.VisitModeAggregate {
		for _, v := range s.visits {
			if v.URLMappingID == mappingID && v.IPAddress == ipAddress {
				// The timestamp keeps the first visit's time.
				v.Count++
				return nil
			}
		}
	}

	s.visits = append(s.visits, &entity.Visit{
		ID:           s.nextVisitID,
		URLMappingID: mappingID,
		IPAddress:    ipAddress,
		Count:        1,
		RecordedAt:   now,
	})
	s.nextVisitID++

	return nil
}

func (s *Store) ListByMappingIDs(_ context.Context, mappingIDs []int64) ([]*entity.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[int64]struct{}, len(mappingIDs))
	for _, id := range mappingIDs {
		ids[id] = struct{}{}
	}

	var visits []*entity.Visit
	for _, v := range s.visits {
		if _, ok := ids[v.URLMappingID]; ok {
			visits = append(visits, copyVisit(v))
		}
	}

	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].RecordedAt.Equal(visits[j].RecordedAt) {
			return visits[i].ID < visits[j].ID
		}
		return visits[i].RecordedAt.Before(visits[j].RecordedAt)
	})

	return visits, nil
}

func (s *Store) TotalByMappingIDs(_ context.Context, mappingIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[int64]struct{}, len(mappingIDs))
	for _, id := range mappingIDs {
		ids[id] = struct{}{}
	}

	var total int64
	for _, v := range s.visits {
		if _, ok := ids[v.URLMappingID]; ok {
			total += v.Count
		}
	}

	return total, nil
}

// ResetAll clears both tables. Holding the single mutex makes the bulk
// delete atomic across them.
func (s *Store) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings = nil
	s.visits = nil

	return nil
}
