// Package stats serves dashboard reads: per-affiliate sales rollups with
// request deduplication, and search-as-you-type product lookup where the
// last request wins.
package stats

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"creator-checkout/internal/domain"
)

type statsRepo interface {
	GetAffiliateStats(ctx context.Context, affiliateID string) (*domain.AffiliateStats, error)
}

// Service deduplicates identical stats fetches: a result is cached for the
// session, concurrent fetches collapse into one, and a failure caches
// nothing so the next render can retry.
type Service struct {
	repo   statsRepo
	logger *log.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*domain.AffiliateStats
}

// New builds the service.
func New(repo statsRepo, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, logger: logger, cache: map[string]*domain.AffiliateStats{}}
}

// AffiliateStats returns the rollup for one affiliate.
func (s *Service) AffiliateStats(ctx context.Context, affiliateID string) (*domain.AffiliateStats, error) {
	s.mu.Lock()
	if cached, ok := s.cache[affiliateID]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(affiliateID, func() (interface{}, error) {
		return s.repo.GetAffiliateStats(ctx, affiliateID)
	})
	if err != nil {
		s.logger.Printf("stats service: affiliate=%s error=%v", affiliateID, err)
		return nil, err
	}
	stats := v.(*domain.AffiliateStats)

	s.mu.Lock()
	s.cache[affiliateID] = stats
	s.mu.Unlock()
	return stats, nil
}

type productSearcher interface {
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

// Searcher issues search requests where a new query cancels the in-flight
// one: only the last keystroke's results are ever applied. A superseded
// request resolves to domain.ErrSuperseded, which callers drop silently.
type Searcher struct {
	repo productSearcher

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	latest []domain.Product
}

// NewSearcher builds a searcher.
func NewSearcher(repo productSearcher) *Searcher {
	return &Searcher{repo: repo}
}

// Search runs the query, cancelling any previous in-flight request.
func (s *Searcher) Search(ctx context.Context, query string) ([]domain.Product, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	results, err := s.repo.SearchProducts(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, domain.ErrSuperseded
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, domain.ErrSuperseded
		}
		return nil, err
	}
	s.latest = results
	return results, nil
}

// Latest returns the most recently applied results.
func (s *Searcher) Latest() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
