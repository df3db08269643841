// Command seed-db populates a development database with an admin, a regular
// user, a small catalog, demo coupons and testimonials, then prints bearer
// tokens for both accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/testimonial"
	"github.com/xenking/extraweb/internal/domain/user"
	"github.com/xenking/extraweb/internal/id"
	"github.com/xenking/extraweb/internal/storage/mongo"
)

type options struct {
	mongoURI  string
	database  string
	jwtSecret string
	tokenTTL  time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&opts.database, "mongo-database", "extraweb", "MongoDB database name")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret for printed tokens (or EXTRAWEB_AUTH_JWT_SECRET env)")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	if opts.mongoURI == "" {
		opts.mongoURI = os.Getenv("MONGODB_URI")
	}
	if opts.mongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGODB_URI")
		os.Exit(1)
	}
	if opts.jwtSecret == "" {
		opts.jwtSecret = os.Getenv("EXTRAWEB_AUTH_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database", slog.String("database", opts.database))

	store, err := mongo.Open(ctx, opts.mongoURI, opts.database)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer func() { _ = store.Close(context.WithoutCancel(ctx)) }()

	slog.Info("creating indexes")
	if err := store.Migrate(ctx); err != nil {
		return errors.Wrap(err, "migrate")
	}

	admin, created, err := ensureUser(ctx, store.Users(), &user.User{
		FirstName: "Site",
		LastName:  "Admin",
		Email:     "admin@extraweb.local",
		Role:      auth.RoleAdmin,
	})
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	customer, _, err := ensureUser(ctx, store.Users(), &user.User{
		FirstName: "Demo",
		LastName:  "Customer",
		Email:     "customer@extraweb.local",
		Role:      auth.RoleUser,
	})
	if err != nil {
		return errors.Wrap(err, "seed customer")
	}

	// Catalog and testimonials have no natural key, so they are only seeded
	// into a fresh database.
	if created {
		if err := seedProducts(ctx, store.Products()); err != nil {
			return errors.Wrap(err, "seed products")
		}
		if err := seedTestimonials(ctx, testimonial.NewService(store.Testimonials())); err != nil {
			return errors.Wrap(err, "seed testimonials")
		}
	} else {
		slog.Info("admin already exists, skipping catalog and testimonials")
	}

	if err := seedCoupons(ctx, coupon.NewService(store.Coupons()), time.Now()); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if opts.jwtSecret == "" {
		slog.Warn("no JWT secret given, skipping token output")
		return nil
	}
	tokens := auth.NewTokens([]byte(opts.jwtSecret), "")
	for _, u := range []*user.User{admin, customer} {
		tok, err := tokens.Issue(auth.Principal{
			UserID: u.ID,
			Role:   u.Role,
			Email:  u.Email,
			Name:   u.FullName(),
		}, opts.tokenTTL)
		if err != nil {
			return errors.Wrapf(err, "issue token for %s", u.Email)
		}
		fmt.Printf("%s (%s): %s\n", u.Email, u.Role, tok)
	}

	return nil
}

type userStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// ensureUser creates u unless a user with the same email exists, in which
// case the stored user is returned.
func ensureUser(ctx context.Context, users userStore, u *user.User) (*user.User, bool, error) {
	u.ID = id.New(id.User)
	u.CreatedAt = time.Now().UTC()
	err := users.Create(ctx, u)
	switch {
	case err == nil:
		slog.Info("created user", slog.String("email", u.Email), slog.String("role", string(u.Role)))
		return u, true, nil
	case errors.Is(err, apperr.ErrDuplicateKey):
		existing, err := users.GetByEmail(ctx, u.Email)
		if err != nil {
			return nil, false, errors.Wrapf(err, "load %s", u.Email)
		}
		return existing, false, nil
	default:
		return nil, false, errors.Wrapf(err, "create %s", u.Email)
	}
}

func seedProducts(ctx context.Context, products product.Repository) error {
	now := time.Now().UTC()
	catalog := []product.Product{
		{ID: id.New(id.Website), Type: product.TypeWebsite, Title: "Agency Landing Page", Price: decimal.NewFromInt(4500)},
		{ID: id.New(id.Website), Type: product.TypeWebsite, Title: "E-commerce Storefront", Price: decimal.NewFromInt(12000)},
		{ID: id.New(id.Software), Type: product.TypeSoftware, Title: "Inventory Manager", Price: decimal.NewFromInt(8000)},
		{ID: id.New(id.Software), Type: product.TypeSoftware, Title: "School Management Suite", Price: decimal.NewFromInt(15000)},
		{ID: id.New(id.Course), Type: product.TypeCourse, Title: "Full-Stack Web Development", Price: decimal.NewFromInt(6000)},
		{ID: id.New(id.Course), Type: product.TypeCourse, Title: "Go for Backend Engineers", Price: decimal.NewFromInt(5000)},
	}

	slog.Info("creating products", slog.Int("count", len(catalog)))

	for i := range catalog {
		p := &catalog[i]
		p.CreatedAt = now
		if p.Type != product.TypeCourse {
			p.Status = product.StatusApproved
		}
		if err := products.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "create %s %q", p.Type, p.Title)
		}
		slog.Info("created product", slog.String("id", p.ID), slog.String("type", string(p.Type)), slog.String("title", p.Title))
	}

	return nil
}

type couponCreator interface {
	Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error)
}

func seedCoupons(ctx context.Context, coupons couponCreator, now time.Time) error {
	slog.Info("seeding demo coupons")

	start := now.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(1, 0, 0)
	defs := []coupon.Coupon{
		{
			Code:             "WELCOME10",
			Description:      "10% off your first purchase",
			DiscountType:     coupon.DiscountPercentage,
			DiscountValue:    decimal.NewFromInt(10),
			MaxDiscount:      decimal.NewFromInt(2000),
			StartDate:        start,
			EndDate:          end,
			ApplicableTo:     coupon.ScopeAll,
			IsActive:         true,
			ShowInTopHeader:  true,
			TopHeaderMessage: "Use WELCOME10 for 10% off",
		},
		{
			Code:                    "COURSE3X",
			Description:             "Pay any course in three monthly installments",
			DiscountType:            coupon.DiscountFixed,
			DiscountValue:           decimal.NewFromInt(500),
			StartDate:               start,
			EndDate:                 end,
			ApplicableTo:            coupon.ScopeCourse,
			IsActive:                true,
			InstallmentEnabled:      true,
			InstallmentCount:        3,
			InstallmentIntervalDays: 30,
		},
	}

	for i := range defs {
		c := &defs[i]
		switch _, err := coupons.Create(ctx, c); {
		case err == nil:
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("description", c.Description))
		case errors.Is(err, apperr.ErrDuplicateKey):
			slog.Info("coupon exists", slog.String("code", c.Code))
		default:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
	}

	return nil
}

type testimonialCreator interface {
	Create(ctx context.Context, t *testimonial.Testimonial) error
}

func seedTestimonials(ctx context.Context, testimonials testimonialCreator) error {
	defs := []testimonial.Testimonial{
		{
			ClientName:  "Rahim Uddin",
			CompanyName: "Dhaka Textiles",
			Title:       "Our sales doubled after launch",
			Type:        testimonial.TypeTestimonial,
			VideoID:     "dQw4w9WgXcQ",
			Rating:      5,
			Status:      testimonial.StatusApproved,
			IsFeatured:  true,
		},
		{
			ClientName:  "Nadia Karim",
			CompanyName: "Bright Academy",
			Title:       "The course was practical and clear",
			Type:        testimonial.TypeReview,
			VideoID:     "9bZkp7q19f0",
			Rating:      5,
			Status:      testimonial.StatusApproved,
			Order:       1,
		},
	}

	for i := range defs {
		t := &defs[i]
		if err := testimonials.Create(ctx, t); err != nil {
			return errors.Wrapf(err, "create testimonial %q", t.Title)
		}
		slog.Info("created testimonial", slog.String("id", t.ID), slog.String("client", t.ClientName))
	}

	return nil
}
