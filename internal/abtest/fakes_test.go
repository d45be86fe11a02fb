package abtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/redis"
)

// memoryStore is an in-memory ABTestRepository
type memoryStore struct {
	mu          sync.Mutex
	variants    map[string][]contracts.VariantPerformance
	evaluations []contracts.EvaluationRecord

	loadErrs   []error // consumed one per LoadVariants call
	recordErrs []error // consumed one per RecordEvaluation call
	loadCalls  int
	onLoad     func() // runs before every LoadVariants, outside the mutex
}

func newMemoryStore(variants ...contracts.VariantPerformance) *memoryStore {
	s := &memoryStore{variants: make(map[string][]contracts.VariantPerformance)}
	for _, v := range variants {
		s.variants[v.TestName] = append(s.variants[v.TestName], v)
	}
	return s
}

func (s *memoryStore) ListTestNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.variants))
	for name := range s.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStore) LoadVariants(ctx context.Context, testName string) ([]contracts.VariantPerformance, error) {
	if s.onLoad != nil {
		s.onLoad()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadCalls++
	if len(s.loadErrs) > 0 {
		err := s.loadErrs[0]
		s.loadErrs = s.loadErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	vs, ok := s.variants[testName]
	if !ok {
		return nil, contracts.ErrTestNotFound
	}
	return append([]contracts.VariantPerformance{}, vs...), nil
}

func (s *memoryStore) RecordEvaluation(ctx context.Context, record *contracts.EvaluationRecord, updates []contracts.VariantUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recordErrs) > 0 {
		err := s.recordErrs[0]
		s.recordErrs = s.recordErrs[1:]
		if err != nil {
			return err
		}
	}

	vs := s.variants[record.TestName]
	for _, u := range updates {
		for i := range vs {
			if vs[i].VariantID == u.VariantID {
				vs[i].IsActive = u.IsActive
				vs[i].TrafficWeight = u.TrafficWeight
			}
		}
	}

	for _, e := range s.evaluations {
		if e.ID == record.ID {
			return nil
		}
	}
	s.evaluations = append(s.evaluations, *record)
	return nil
}

func (s *memoryStore) ListEvaluations(ctx context.Context, testName string, limit int) ([]contracts.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.EvaluationRecord, 0)
	for i := len(s.evaluations) - 1; i >= 0 && len(out) < limit; i-- {
		if s.evaluations[i].TestName == testName {
			out = append(out, s.evaluations[i])
		}
	}
	return out, nil
}

func (s *memoryStore) PurgeEvaluations(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.evaluations[:0]
	var purged int64
	for _, e := range s.evaluations {
		if e.EvaluatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.evaluations = kept
	return purged, nil
}

func (s *memoryStore) SetManualOverride(ctx context.Context, testName, variantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.variants[testName]
	for i := range vs {
		if vs[i].VariantID == variantID {
			vs[i].ManualOverrideActive = active
			return nil
		}
	}
	return contracts.ErrVariantNotFound
}

func (s *memoryStore) variant(testName, id string) contracts.VariantPerformance {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.variants[testName] {
		if v.VariantID == id {
			return v
		}
	}
	return contracts.VariantPerformance{}
}

// memoryLocker grants one holder per key
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, redis.ErrLockHeld
	}
	l.held[key] = true

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

// memoryCache stores values as-is
type memoryCache struct {
	mu     sync.Mutex
	values map[string]*contracts.EvaluationRecord
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]*contracts.EvaluationRecord)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	rec, ok := dest.(*contracts.EvaluationRecord)
	if !ok {
		return false, errors.New("unexpected cache destination")
	}
	*rec = *v
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := value.(*contracts.EvaluationRecord)
	if !ok {
		return errors.New("unexpected cache value")
	}
	c.values[key] = rec
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	return nil
}

// recordingNotifier keeps every notified record
type recordingNotifier struct {
	mu      sync.Mutex
	records []*contracts.EvaluationRecord
}

func (n *recordingNotifier) Notify(ctx context.Context, record *contracts.EvaluationRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return nil
}
