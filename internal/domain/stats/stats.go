// Package stats computes the public dashboard counters.
package stats

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/extraweb/internal/domain/product"
)

// DefaultRating is shown while no rating exists or counting failed.
const DefaultRating = 4.8

const cacheKey = "stats:dashboard"

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Breakdown holds per-collection counts.
type Breakdown struct {
	Courses     int64 `json:"courses"`
	Websites    int64 `json:"websites"`
	Software    int64 `json:"software"`
	Users       int64 `json:"users"`
	Enrollments int64 `json:"enrollments"`
	Reviews     int64 `json:"reviews"`
}

// Dashboard is the public statistics summary.
type Dashboard struct {
	ActiveUsers   int64     `json:"activeUsers"`
	Downloads     int64     `json:"downloads"`
	AvgRating     float64   `json:"avgRating"`
	TotalProducts int64     `json:"totalProducts"`
	Breakdown     Breakdown `json:"breakdown"`
}

// Source counts the underlying collections.
type Source interface {
	CountActiveUsers(ctx context.Context) (int64, error)
	// CountProducts counts non-deleted products of type t, only approved
	// ones when approvedOnly is set.
	CountProducts(ctx context.Context, t product.Type, approvedOnly bool) (int64, error)
	CountEnrollments(ctx context.Context) (int64, error)
	CountDownloads(ctx context.Context) (int64, error)
	// Ratings returns the average rating and count of approved
	// testimonials. count is zero when there are none.
	Ratings(ctx context.Context) (avg float64, count int64, err error)
}

// Cache stores the encoded dashboard.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Resetter zeroes product metrics.
type Resetter interface {
	ResetMetrics(ctx context.Context) (*product.ResetResult, error)
}

// Service computes and caches the dashboard.
type Service struct {
	source   Source
	resetter Resetter
	cache    Cache
	ttl      time.Duration
}

// NewService creates a stats Service. A nil cache disables caching.
func NewService(source Source, resetter Resetter, cache Cache, ttl time.Duration) *Service {
	return &Service{source: source, resetter: resetter, cache: cache, ttl: ttl}
}

// Defaults returns the zeroed dashboard.
func Defaults() *Dashboard {
	return &Dashboard{AvgRating: DefaultRating}
}

// Dashboard returns the current statistics. It never fails: on any counting
// error the zeroed defaults are returned.
func (s *Service) Dashboard(ctx context.Context) *Dashboard {
	lg := zctx.From(ctx)
	if d, ok := s.cached(ctx); ok {
		return d
	}

	d, err := s.compute(ctx)
	if err != nil {
		lg.Error("Compute dashboard stats", zap.Error(err))
		return Defaults()
	}

	if s.cache != nil && s.ttl > 0 {
		data, err := json.Marshal(d)
		if err == nil {
			err = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
		if err != nil {
			lg.Warn("Cache dashboard stats", zap.Error(err))
		}
	}
	return d
}

func (s *Service) cached(ctx context.Context) (*Dashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			zctx.From(ctx).Warn("Read cached stats", zap.Error(err))
		}
		return nil, false
	}
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	return &d, true
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	var (
		users, courses, enrollments, downloads int64
		websites, allWebsites                  int64
		software, allSoftware                  int64
		avg                                    float64
		reviews                                int64
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			*dst = n
			return err
		})
	}
	products := func(t product.Type, approved bool) func(context.Context) (int64, error) {
		return func(ctx context.Context) (int64, error) {
			return s.source.CountProducts(ctx, t, approved)
		}
	}

	count(&users, s.source.CountActiveUsers)
	count(&courses, products(product.TypeCourse, false))
	count(&websites, products(product.TypeWebsite, true))
	count(&allWebsites, products(product.TypeWebsite, false))
	count(&software, products(product.TypeSoftware, true))
	count(&allSoftware, products(product.TypeSoftware, false))
	count(&enrollments, s.source.CountEnrollments)
	count(&downloads, s.source.CountDownloads)
	g.Go(func() error {
		var err error
		avg, reviews, err = s.source.Ratings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if websites == 0 {
		websites = allWebsites
	}
	if software == 0 {
		software = allSoftware
	}
	rating := DefaultRating
	if reviews > 0 {
		rating = math.Round(avg*10) / 10
	}

	return &Dashboard{
		ActiveUsers:   users,
		Downloads:     downloads,
		AvgRating:     rating,
		TotalProducts: courses + websites + software,
		Breakdown: Breakdown{
			Courses:     courses,
			Websites:    websites,
			Software:    software,
			Users:       users,
			Enrollments: enrollments,
			Reviews:     reviews,
		},
	}, nil
}

// Reset zeroes product metrics and drops the cached dashboard.
func (s *Service) Reset(ctx context.Context) (*product.ResetResult, error) {
	res, err := s.resetter.ResetMetrics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reset metrics")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			zctx.From(ctx).Warn("Evict cached stats", zap.Error(err))
		}
	}
	return res, nil
}
