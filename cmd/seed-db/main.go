// Command seed-db loads demo catalog data and a starter set of offers into
// the database. It is idempotent: rerunning it replaces the same rows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillgrid/promo-engine/internal/domain/catalog"
	"github.com/tillgrid/promo-engine/internal/domain/promo"
	"github.com/tillgrid/promo-engine/internal/repository"
)

type productJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	Weighed    bool            `json:"weighed"`
	WeightUnit string          `json:"weightUnit"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedOffers(ctx, repository.NewOfferRepository(pool)); err != nil {
		return errors.Wrap(err, "seed offers")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, catalog.Product{
			ID:         p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			Category:   p.Category,
			Price:      p.Price,
			Weighed:    p.Weighed,
			WeightUnit: p.WeightUnit,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// seedOffers installs one starter offer of each kind.
func seedOffers(ctx context.Context, repo *repository.OfferRepository) error {
	slog.Info("seeding starter offers")

	group := promo.GroupOffer{
		ID:          "coffee-bundle-3",
		Name:        "Buy 3 coffees, 10% off the bundle",
		RequiredQty: 3,
		Kind:        promo.KindPercentage,
		Value:       decimal.NewFromInt(10),
		Active:      true,
		ProductIDs:  []string{"espresso-beans", "filter-roast", "cold-brew"},
	}
	if err := repo.UpsertGroupOffer(ctx, group); err != nil {
		return errors.Wrapf(err, "upsert group offer %s", group.ID)
	}
	slog.Info("upserted group offer", slog.String("id", group.ID))

	bogo := promo.BOGOOffer{
		ID:            "croissant-b2g1",
		Name:          "Buy 2 croissants, get 1 free",
		BuyQty:        2,
		GetQty:        1,
		Kind:          promo.KindFree,
		Active:        true,
		BuyProductIDs: []string{"croissant"},
		GetProductIDs: []string{"croissant"},
	}
	if err := repo.UpsertBOGOOffer(ctx, bogo); err != nil {
		return errors.Wrapf(err, "upsert bogo offer %s", bogo.ID)
	}
	slog.Info("upserted bogo offer", slog.String("id", bogo.ID))

	happyHour := promo.TimeDiscount{
		ID:       "bakery-happy-hour",
		Name:     "Weekday bakery happy hour: 15% off 15:00-17:00",
		Kind:     promo.KindPercentage,
		Value:    decimal.NewFromInt(15),
		Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:    promo.NewTimeOfDay(15, 0),
		End:      promo.NewTimeOfDay(17, 0),
		Category: "bakery",
		Active:   true,
	}
	if err := repo.UpsertTimeDiscount(ctx, happyHour); err != nil {
		return errors.Wrapf(err, "upsert time discount %s", happyHour.ID)
	}
	slog.Info("upserted time discount", slog.String("id", happyHour.ID))

	return nil
}
