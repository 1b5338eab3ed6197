package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmlink/marketplace/internal/market"
)

// Repo is the pgx-backed Store. Transitions with catalog side effects run as
// a single transaction: the order row is locked first, then the product row,
// then both are updated, so a failed check leaves zero mutation behind.
type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, COALESCE(external_id, ''), product_id, buyer_id, seller_id,
	quantity, unit_price_cents, total_cents, status, payment_status,
	COALESCE(delivery_address, ''), COALESCE(special_instructions, ''),
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.ProductID, &o.BuyerID, &o.SellerID,
		&o.Quantity, &o.UnitPrice, &o.TotalAmount, &o.Status, &o.PaymentStatus,
		&o.DeliveryAddress, &o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders (id, external_id, product_id, buyer_id, seller_id,
			quantity, unit_price_cents, total_cents, status, payment_status,
			delivery_address, special_instructions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, nullable(o.ExternalID), o.ProductID, o.BuyerID, o.SellerID,
		o.Quantity, o.UnitPrice, o.TotalAmount, o.Status, o.PaymentStatus,
		nullable(o.DeliveryAddress), nullable(o.SpecialInstructions),
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return market.Storage(err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "order %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return o, nil
}

func (r *Repo) ByExternalID(ctx context.Context, externalID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id=$1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "order external_id=%s", externalID)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return o, nil
}

// Confirm locks the order and its product, checks stock, decrements it and
// flips pending->confirmed. Two concurrent confirms serialize on the order
// row lock; the loser sees a non-pending status and fails with no mutation.
func (r *Repo) Confirm(ctx context.Context, orderID string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, market.Storage(err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	if o.Status != StatusPending {
		return nil, market.E(market.KindInvalidTransition, "order %s is %s, not pending", orderID, o.Status)
	}

	var stock int64
	if err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1 FOR UPDATE`, o.ProductID).Scan(&stock); err != nil {
		return nil, market.Storage(err)
	}
	if stock < o.Quantity {
		return nil, market.E(market.KindResourceUnavailable, "product %s has %d left, order needs %d", o.ProductID, stock, o.Quantity)
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET quantity = quantity - $2, updated_at = now() WHERE id=$1`,
		o.ProductID, o.Quantity); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.QueryRow(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status=$3 RETURNING updated_at`,
		orderID, StatusConfirmed, StatusPending).Scan(&o.UpdatedAt); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, market.Storage(err)
	}
	o.Status = StatusConfirmed
	return o, nil
}

// CancelRestock flips confirmed->cancelled and re-credits exactly the
// quantity the confirmation decremented.
func (r *Repo) CancelRestock(ctx context.Context, orderID string, pay PaymentStatus) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, market.Storage(err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	if o.Status != StatusConfirmed {
		return nil, market.E(market.KindInvalidTransition, "order %s is %s, not confirmed", orderID, o.Status)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET quantity = quantity + $2, updated_at = now() WHERE id=$1`,
		o.ProductID, o.Quantity); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.QueryRow(ctx, `UPDATE orders SET status=$2, payment_status=$3, updated_at=now() WHERE id=$1 AND status=$4 RETURNING updated_at`,
		orderID, StatusCancelled, pay, StatusConfirmed).Scan(&o.UpdatedAt); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, market.Storage(err)
	}
	o.Status = StatusCancelled
	o.PaymentStatus = pay
	return o, nil
}

// SetStatus is a conditional update guarded by the expected current status.
// Zero rows means either the id is unknown or another request won the race.
func (r *Repo) SetStatus(ctx context.Context, orderID string, from, to Status, pay PaymentStatus) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status=$4
		RETURNING `+orderCols, orderID, to, pay, from))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.Get(ctx, orderID); gerr != nil {
			return nil, gerr
		}
		return nil, market.E(market.KindInvalidTransition, "order %s no longer %s", orderID, from)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return o, nil
}

func (r *Repo) BySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return r.list(ctx, `o.seller_id=$1`, sellerID)
}

func (r *Repo) ByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.list(ctx, `o.buyer_id=$1`, buyerID)
}

// PendingBySeller feeds the notification projection.
func (r *Repo) PendingBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return r.list(ctx, `o.seller_id=$1 AND o.status='pending'`, sellerID)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, COALESCE(o.external_id, ''), o.product_id, p.name,
		       o.buyer_id, o.seller_id, o.quantity, o.unit_price_cents,
		       o.total_cents, o.status, o.payment_status,
		       COALESCE(o.delivery_address, ''), COALESCE(o.special_instructions, ''),
		       o.created_at, o.updated_at
		FROM orders o
		JOIN products p ON p.id = o.product_id
		WHERE `+where+`
		ORDER BY o.created_at DESC`, args...)
	if err != nil {
		return nil, market.Storage(err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ExternalID, &o.ProductID, &o.ProductName,
			&o.BuyerID, &o.SellerID, &o.Quantity, &o.UnitPrice, &o.TotalAmount,
			&o.Status, &o.PaymentStatus, &o.DeliveryAddress, &o.SpecialInstructions,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, market.Storage(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, market.Storage(err)
	}
	return out, nil
}
