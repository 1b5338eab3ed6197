package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmlink/marketplace/internal/market"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Product(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, seller_id, name, category, unit, price_cents, quantity, status,
		       COALESCE(location, ''), created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &p.Unit, &p.Price,
			&p.Quantity, &p.Status, &p.Location, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "product %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return &p, nil
}

func (r *Repo) Equipment(ctx context.Context, id string) (*Equipment, error) {
	var e Equipment
	err := r.DB.QueryRow(ctx, `
		SELECT id, owner_id, name, equipment_type, daily_rate_cents,
		       COALESCE(security_deposit_cents, 0), min_rental_days,
		       COALESCE(max_rental_days, 0), status, COALESCE(location, ''),
		       created_at, updated_at
		FROM equipment WHERE id=$1`, id).
		Scan(&e.ID, &e.OwnerID, &e.Name, &e.EquipmentType, &e.DailyRate,
			&e.SecurityDeposit, &e.MinRentalDays, &e.MaxRentalDays, &e.Status,
			&e.Location, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "equipment %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return &e, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, seller_id, name, category, unit, price_cents, quantity, status,
		       COALESCE(location, ''), created_at, updated_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, market.Storage(err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &p.Unit,
			&p.Price, &p.Quantity, &p.Status, &p.Location, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, market.Storage(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, market.Storage(err)
	}
	return out, nil
}
