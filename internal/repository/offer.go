package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tillgrid/promo-engine/internal/domain/checkout"
	"github.com/tillgrid/promo-engine/internal/domain/promo"
)

// Offer product set roles in the offer_products table.
const (
	RoleGroup = "group"
	RoleBuy   = "buy"
	RoleGet   = "get"
)

const (
	listGroupOffersSQL = `SELECT id, name, required_qty, discount_kind, value, priority,
		active, active_from, active_until
		FROM group_offers WHERE active = TRUE`

	listBOGOOffersSQL = `SELECT id, name, buy_qty, get_qty, discount_kind, value,
		discount_on_buy, priority, active, active_from, active_until
		FROM bogo_offers WHERE active = TRUE`

	listTimeDiscountsSQL = `SELECT id, name, discount_kind, value, days_of_week,
		start_minute, end_minute, whole_cart, category, priority, active, active_from, active_until
		FROM time_discounts WHERE active = TRUE`

	listOfferProductsSQL = `SELECT offer_id, role, product_id
		FROM offer_products ORDER BY offer_id, role, product_id`

	upsertGroupOfferSQL = `INSERT INTO group_offers
		(id, name, required_qty, discount_kind, value, priority, active, active_from, active_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, required_qty = EXCLUDED.required_qty,
			discount_kind = EXCLUDED.discount_kind, value = EXCLUDED.value,
			priority = EXCLUDED.priority, active = EXCLUDED.active,
			active_from = EXCLUDED.active_from, active_until = EXCLUDED.active_until`

	upsertBOGOOfferSQL = `INSERT INTO bogo_offers
		(id, name, buy_qty, get_qty, discount_kind, value, discount_on_buy, priority, active, active_from, active_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, buy_qty = EXCLUDED.buy_qty, get_qty = EXCLUDED.get_qty,
			discount_kind = EXCLUDED.discount_kind, value = EXCLUDED.value,
			discount_on_buy = EXCLUDED.discount_on_buy, priority = EXCLUDED.priority,
			active = EXCLUDED.active, active_from = EXCLUDED.active_from, active_until = EXCLUDED.active_until`

	upsertTimeDiscountSQL = `INSERT INTO time_discounts
		(id, name, discount_kind, value, days_of_week, start_minute, end_minute,
		 whole_cart, category, priority, active, active_from, active_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, discount_kind = EXCLUDED.discount_kind, value = EXCLUDED.value,
			days_of_week = EXCLUDED.days_of_week, start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute, whole_cart = EXCLUDED.whole_cart,
			category = EXCLUDED.category, priority = EXCLUDED.priority, active = EXCLUDED.active,
			active_from = EXCLUDED.active_from, active_until = EXCLUDED.active_until`

	deleteOfferProductsSQL = `DELETE FROM offer_products WHERE offer_id = $1 AND role = $2`

	insertOfferProductSQL = `INSERT INTO offer_products (offer_id, role, product_id)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
)

var _ checkout.OfferRepository = (*OfferRepository)(nil)

// OfferRepository loads and stores offer definitions in PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// LoadActive returns every active offer definition with its eligible product
// sets attached. Date-window and schedule filtering is left to the engine,
// which evaluates them against the cart's pricing instant.
func (r *OfferRepository) LoadActive(ctx context.Context) (promo.Offers, error) {
	sets, err := r.loadProductSets(ctx)
	if err != nil {
		return promo.Offers{}, err
	}

	var offers promo.Offers

	rows, err := r.pool.Query(ctx, listGroupOffersSQL)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("listing group offers: %w", err)
	}
	offers.Groups, err = pgx.CollectRows(rows, scanGroupOffer)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("scanning group offers: %w", err)
	}
	for i := range offers.Groups {
		offers.Groups[i].ProductIDs = sets[productSetKey{offers.Groups[i].ID, RoleGroup}]
	}

	rows, err = r.pool.Query(ctx, listBOGOOffersSQL)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("listing bogo offers: %w", err)
	}
	offers.BOGOs, err = pgx.CollectRows(rows, scanBOGOOffer)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("scanning bogo offers: %w", err)
	}
	for i := range offers.BOGOs {
		offers.BOGOs[i].BuyProductIDs = sets[productSetKey{offers.BOGOs[i].ID, RoleBuy}]
		offers.BOGOs[i].GetProductIDs = sets[productSetKey{offers.BOGOs[i].ID, RoleGet}]
	}

	rows, err = r.pool.Query(ctx, listTimeDiscountsSQL)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("listing time discounts: %w", err)
	}
	offers.Times, err = pgx.CollectRows(rows, scanTimeDiscount)
	if err != nil {
		return promo.Offers{}, fmt.Errorf("scanning time discounts: %w", err)
	}

	return offers, nil
}

// UpsertGroupOffer inserts or replaces a group offer and its product set.
func (r *OfferRepository) UpsertGroupOffer(ctx context.Context, o promo.GroupOffer) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertGroupOfferSQL,
			o.ID, o.Name, o.RequiredQty, o.Kind.String(), o.Value,
			o.Priority, o.Active, o.ActiveFrom, o.ActiveTo,
		)
		if err != nil {
			return fmt.Errorf("upserting group offer %q: %w", o.ID, err)
		}
		return replaceProductSet(ctx, tx, o.ID, RoleGroup, o.ProductIDs)
	})
}

// UpsertBOGOOffer inserts or replaces a BOGO offer and its buy/get sets.
func (r *OfferRepository) UpsertBOGOOffer(ctx context.Context, o promo.BOGOOffer) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertBOGOOfferSQL,
			o.ID, o.Name, o.BuyQty, o.GetQty, o.Kind.String(), o.Value,
			o.DiscountOnBuy, o.Priority, o.Active, o.ActiveFrom, o.ActiveTo,
		)
		if err != nil {
			return fmt.Errorf("upserting bogo offer %q: %w", o.ID, err)
		}
		if err := replaceProductSet(ctx, tx, o.ID, RoleBuy, o.BuyProductIDs); err != nil {
			return err
		}
		return replaceProductSet(ctx, tx, o.ID, RoleGet, o.GetProductIDs)
	})
}

// UpsertTimeDiscount inserts or replaces a time discount.
func (r *OfferRepository) UpsertTimeDiscount(ctx context.Context, d promo.TimeDiscount) error {
	days := make([]int32, len(d.Days))
	for i, wd := range d.Days {
		days[i] = int32(wd)
	}
	_, err := r.pool.Exec(ctx, upsertTimeDiscountSQL,
		d.ID, d.Name, d.Kind.String(), d.Value, days,
		int(d.Start), int(d.End), d.WholeCart, d.Category,
		d.Priority, d.Active, d.ActiveFrom, d.ActiveTo,
	)
	if err != nil {
		return fmt.Errorf("upserting time discount %q: %w", d.ID, err)
	}
	return nil
}

// AddOfferProducts attaches product IDs to an offer's product set without
// touching existing members. Used by the bulk ingest tool.
func (r *OfferRepository) AddOfferProducts(ctx context.Context, offerID, role string, productIDs []string) error {
	batch := &pgx.Batch{}
	for _, id := range productIDs {
		batch.Queue(insertOfferProductSQL, offerID, role, id)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("adding products to offer %q: %w", offerID, err)
	}
	return nil
}

func (r *OfferRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func replaceProductSet(ctx context.Context, tx pgx.Tx, offerID, role string, productIDs []string) error {
	if _, err := tx.Exec(ctx, deleteOfferProductsSQL, offerID, role); err != nil {
		return fmt.Errorf("clearing %s products for offer %q: %w", role, offerID, err)
	}
	for _, id := range productIDs {
		if _, err := tx.Exec(ctx, insertOfferProductSQL, offerID, role, id); err != nil {
			return fmt.Errorf("adding %s product %q to offer %q: %w", role, id, offerID, err)
		}
	}
	return nil
}

type productSetKey struct {
	offerID string
	role    string
}

func (r *OfferRepository) loadProductSets(ctx context.Context) (map[productSetKey][]string, error) {
	rows, err := r.pool.Query(ctx, listOfferProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing offer products: %w", err)
	}
	defer rows.Close()

	sets := make(map[productSetKey][]string)
	for rows.Next() {
		var key productSetKey
		var productID string
		if err := rows.Scan(&key.offerID, &key.role, &productID); err != nil {
			return nil, fmt.Errorf("scanning offer product: %w", err)
		}
		sets[key] = append(sets[key], productID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading offer products: %w", err)
	}
	return sets, nil
}

// decodeDiscountKind maps a stored kind name to its enum value. An
// unrecognized name is a scan error: decoding it to the zero value would
// silently turn a corrupted rule into a percentage discount.
func decodeDiscountKind(s string) (promo.DiscountKind, error) {
	kind, ok := promo.ParseDiscountKind(s)
	if !ok {
		return 0, fmt.Errorf("unknown discount kind %q", s)
	}
	return kind, nil
}

func scanGroupOffer(row pgx.CollectableRow) (promo.GroupOffer, error) {
	var (
		o    promo.GroupOffer
		kind string
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.RequiredQty, &kind, &o.Value,
		&o.Priority, &o.Active, &o.ActiveFrom, &o.ActiveTo,
	)
	if err != nil {
		return o, err
	}
	o.Kind, err = decodeDiscountKind(kind)
	return o, err
}

func scanBOGOOffer(row pgx.CollectableRow) (promo.BOGOOffer, error) {
	var (
		o    promo.BOGOOffer
		kind string
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.BuyQty, &o.GetQty, &kind, &o.Value,
		&o.DiscountOnBuy, &o.Priority, &o.Active, &o.ActiveFrom, &o.ActiveTo,
	)
	if err != nil {
		return o, err
	}
	o.Kind, err = decodeDiscountKind(kind)
	return o, err
}

func scanTimeDiscount(row pgx.CollectableRow) (promo.TimeDiscount, error) {
	var (
		d     promo.TimeDiscount
		kind  string
		days  []int32
		start int
		end   int
		value decimal.Decimal
	)
	err := row.Scan(
		&d.ID, &d.Name, &kind, &value, &days,
		&start, &end, &d.WholeCart, &d.Category,
		&d.Priority, &d.Active, &d.ActiveFrom, &d.ActiveTo,
	)
	if err != nil {
		return d, err
	}
	d.Kind, err = decodeDiscountKind(kind)
	if err != nil {
		return d, err
	}
	d.Value = value
	d.Days = make([]time.Weekday, len(days))
	for i, day := range days {
		d.Days[i] = time.Weekday(day)
	}
	d.Start = promo.TimeOfDay(start)
	d.End = promo.TimeOfDay(end)
	return d, nil
}
