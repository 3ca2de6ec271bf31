package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
	"github.com/sanisidro/sanisidro-api/internal/repository"
)

// defaultPromotions are the promotions every fresh environment starts with.
var defaultPromotions = []promotion.Promotion{
	{
		Code:         "PROMO10",
		Title:        "10% de descuento",
		Description:  "10% off orders of 50 or more",
		Kind:         promotion.KindGeneral,
		DiscountType: promotion.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		MinAmount:    decimal.NewFromInt(50),
		Active:       true,
	},
	{
		Code:               "CEVICHE15",
		Title:              "Semana del ceviche",
		Description:        "15% off when the order has a ceviche",
		Kind:               promotion.KindProduct,
		DiscountType:       promotion.DiscountPercentage,
		Value:              decimal.NewFromInt(15),
		ApplicableProducts: []string{"Ceviche", "Ceviche mixto"},
		Active:             true,
	},
	{
		Code:         "BIENVENIDA5",
		Title:        "Bienvenida",
		Description:  "5 soles off a first order of at least 2 dishes",
		Kind:         promotion.KindGeneral,
		DiscountType: promotion.DiscountFixed,
		Value:        decimal.NewFromInt(5),
		MinQuantity:  2,
		Active:       true,
	},
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string) error {
	lg.Info("Connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL, 0)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewPromotionRepository(pool)
	svc := promotion.NewService(repo, repo, nil)

	for _, p := range defaultPromotions {
		if err := svc.Upsert(ctx, &p); err != nil {
			return errors.Wrapf(err, "upsert promotion %s", p.Code)
		}
		lg.Info("Upserted promotion", zap.String("code", p.Code), zap.String("id", p.ID))
	}
	return nil
}
