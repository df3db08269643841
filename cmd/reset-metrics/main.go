// Command reset-metrics zeroes the rating, review, sales, view and like
// counters on every website and software listing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/storage/mongo"
)

func main() {
	var (
		mongoURI string
		database string
	)

	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&database, "mongo-database", "extraweb", "MongoDB database name")
	flag.Parse()

	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}
	if mongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGODB_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store, err := mongo.Open(ctx, mongoURI, database)
	if err != nil {
		slog.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close(context.WithoutCancel(ctx)) }()

	res, err := reset(ctx, store.Products())
	if err != nil {
		slog.Error("reset failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("metrics reset",
		slog.Int64("websites", res.Websites),
		slog.Int64("software", res.Software),
	)
}

type resetter interface {
	ResetMetrics(ctx context.Context) (*product.ResetResult, error)
}

func reset(ctx context.Context, r resetter) (*product.ResetResult, error) {
	res, err := r.ResetMetrics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reset metrics")
	}
	return res, nil
}
