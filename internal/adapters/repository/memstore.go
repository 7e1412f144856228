package repository

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/pkg/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MemoryStore is the in-process Store. Reads share an RWMutex and always
// return copies.
type MemoryStore struct {
	mu    sync.RWMutex
	leads []model.Lead
	ids   map[string]struct{}
	lang  language.Tag
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		ids:  make(map[string]struct{}),
		lang: language.Und,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends lead.
func (s *MemoryStore) Add(ctx context.Context, lead model.Lead) error {
	return s.AddAll(ctx, []model.Lead{lead})
}

// AddAll appends leads in order, or none of them when any id is taken.
func (s *MemoryStore) AddAll(ctx context.Context, leads []model.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryOperation("add", time.Since(start).Seconds()) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(leads))
	for _, l := range leads {
		_, stored := s.ids[l.ID]
		_, repeated := batch[l.ID]
		if stored || repeated {
			metrics.RecordErrorByComponent("repository", "duplicate_id")
			return fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
		}
		batch[l.ID] = struct{}{}
	}
	for id := range batch {
		s.ids[id] = struct{}{}
	}
	s.leads = append(s.leads, leads...)
	metrics.UpdateLeadsTotal(len(s.leads))
	return nil
}

// Remove deletes the lead with id if present.
func (s *MemoryStore) Remove(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	s.leads = slices.DeleteFunc(s.leads, func(l model.Lead) bool { return l.ID == id })
	metrics.RecordLeadRemoved()
	metrics.UpdateLeadsTotal(len(s.leads))
	return true
}

// Get returns the lead with id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.ids[id]; ok {
		for _, l := range s.leads {
			if l.ID == id {
				return l, nil
			}
		}
	}
	return model.Lead{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Query filters by search term and score band, keeping insertion order.
func (s *MemoryStore) Query(_ context.Context, q Query) []model.Lead {
	start := time.Now()
	defer func() { metrics.RecordRepositoryOperation("query", time.Since(start).Seconds()) }()

	caser := cases.Lower(s.lang)
	term := caser.String(q.Search)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if !q.Filter.Matches(l.Score) {
			continue
		}
		if term != "" &&
			!strings.Contains(caser.String(l.Name), term) &&
			!strings.Contains(caser.String(l.Email), term) &&
			!strings.Contains(caser.String(l.Company), term) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Stats counts leads per band and averages their scores.
func (s *MemoryStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.leads)}
	if st.Total == 0 {
		return st
	}
	sum := 0
	for _, l := range s.leads {
		sum += l.Score
		switch model.BandOf(l.Score) {
		case model.FilterHigh:
			st.High++
		case model.FilterMedium:
			st.Medium++
		default:
			st.Low++
		}
	}
	st.AverageScore = int(math.Round(float64(sum) / float64(st.Total)))
	return st
}

// TopConverting returns the best high-band leads.
func (s *MemoryStore) TopConverting(_ context.Context, n int) ([]model.Lead, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryOperation("top", time.Since(start).Seconds()) }()

	s.mu.RLock()
	high := make([]model.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if l.Score >= model.HighScoreThreshold {
			high = append(high, l)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(high, func(a, b model.Lead) int { return cmp.Compare(b.Score, a.Score) })
	if len(high) > n {
		high = high[:n]
	}
	return high, nil
}

// Count returns the number of stored leads.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}
