// Command coupon-import loads promotion codes from gzip-compressed code
// lists and creates a coupon for every code present in at least two lists.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/storage/mongo"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxFiles      = 64
)

type options struct {
	dataDir      string
	mongoURI     string
	database     string
	capacity     uint
	discountType string
	value        string
	validFor     time.Duration
	usageLimit   int
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.gz code lists")
	flag.StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&opts.database, "mongo-database", "extraweb", "MongoDB database name")
	flag.UintVar(&opts.capacity, "capacity", 10_000_000, "expected codes per list, sizes the bloom filters")
	flag.StringVar(&opts.discountType, "discount-type", string(coupon.DiscountPercentage), "discount type of imported coupons")
	flag.StringVar(&opts.value, "value", "10", "discount value of imported coupons")
	flag.DurationVar(&opts.validFor, "valid-for", 30*24*time.Hour, "validity window starting now")
	flag.IntVar(&opts.usageLimit, "usage-limit", 0, "global usage limit per coupon; 0 is unlimited")
	flag.Parse()

	if opts.mongoURI == "" {
		opts.mongoURI = os.Getenv("MONGODB_URI")
	}
	if opts.mongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGODB_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list code files")
	}
	if len(files) < 2 || len(files) > maxFiles {
		return errors.Errorf("need between 2 and %d code lists in %s, found %d", maxFiles, opts.dataDir, len(files))
	}
	sort.Strings(files)

	value, err := decimal.NewFromString(opts.value)
	if err != nil {
		return errors.Wrap(err, "parse discount value")
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files, opts.capacity)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")
	codes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}
	slog.Info("valid codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	slog.Info("connecting to database")
	store, err := mongo.Open(ctx, opts.mongoURI, opts.database)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer func() { _ = store.Close(context.Background()) }()
	if err := store.Migrate(ctx); err != nil {
		return errors.Wrap(err, "migrate")
	}

	now := time.Now().UTC()
	tmpl := coupon.Coupon{
		DiscountType:  coupon.DiscountType(opts.discountType),
		DiscountValue: value,
		StartDate:     now,
		EndDate:       now.Add(opts.validFor),
		UsageLimit:    opts.usageLimit,
		ApplicableTo:  coupon.ScopeAll,
		IsActive:      true,
	}
	return writeCoupons(ctx, coupon.NewService(store.Coupons()), tmpl, codes)
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count uint64
			err := streamGzFile(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes re-streams each file and checks codes against the other
// files' bloom filters. Bloom hits are candidates only: a code is kept when
// it was actually read from two or more files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint64)
			fileBit := uint64(1) << uint(i)
			err := streamGzFile(ctx, path, func(code string) {
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}
			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}
	var valid []string
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= 2 {
			valid = append(valid, code)
		}
	}
	sort.Strings(valid)
	return valid, nil
}

// streamGzFile calls fn for every normalized code of a gzip file whose
// length is a valid coupon code length.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := coupon.NormalizeCode(scanner.Text())
		if n := len(code); n < coupon.MinCodeLen || n > coupon.MaxCodeLen {
			continue
		}
		fn(code)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// CouponCreator stores coupons.
type CouponCreator interface {
	Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error)
}

// writeCoupons creates a coupon per code from tmpl. Existing codes are
// skipped.
func writeCoupons(ctx context.Context, coupons CouponCreator, tmpl coupon.Coupon, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	var created, skipped int
	for i, code := range codes {
		c := tmpl
		c.Code = code
		c.Description = fmt.Sprintf("Imported promo code %s", code)
		if _, err := coupons.Create(ctx, &c); err != nil {
			if !errors.Is(err, apperr.ErrDuplicateKey) {
				return errors.Wrapf(err, "create coupon %s", code)
			}
			skipped++
		} else {
			created++
		}
		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	slog.Info("coupons written", slog.Int("created", created), slog.Int("skipped", skipped))
	return nil
}
