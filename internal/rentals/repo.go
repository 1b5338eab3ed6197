package rentals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/market"
)

// Repo is the pgx-backed Store. Same locking discipline as the order repo:
// rental row first, equipment row second, all inside one transaction.
type Repo struct{ DB *pgxpool.Pool }

const rentalCols = `id, equipment_id, renter_id, owner_id, start_date, end_date,
	rental_days, daily_rate_cents, total_cents, COALESCE(security_deposit_cents, 0),
	delivery_required, COALESCE(delivery_address, ''),
	COALESCE(special_instructions, ''), status, payment_status,
	created_at, updated_at`

func scanRental(row pgx.Row) (*Rental, error) {
	var rl Rental
	err := row.Scan(&rl.ID, &rl.EquipmentID, &rl.RenterID, &rl.OwnerID,
		&rl.StartDate, &rl.EndDate, &rl.RentalDays, &rl.DailyRate, &rl.TotalAmount,
		&rl.SecurityDeposit, &rl.DeliveryRequired, &rl.DeliveryAddress,
		&rl.SpecialInstructions, &rl.Status, &rl.PaymentStatus,
		&rl.CreatedAt, &rl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rl, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repo) Insert(ctx context.Context, rl *Rental) error {
	now := time.Now().UTC()
	rl.CreatedAt, rl.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO equipment_rentals (id, equipment_id, renter_id, owner_id,
			start_date, end_date, rental_days, daily_rate_cents, total_cents,
			security_deposit_cents, delivery_required, delivery_address,
			special_instructions, status, payment_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		rl.ID, rl.EquipmentID, rl.RenterID, rl.OwnerID, rl.StartDate, rl.EndDate,
		rl.RentalDays, rl.DailyRate, rl.TotalAmount, rl.SecurityDeposit,
		rl.DeliveryRequired, nullable(rl.DeliveryAddress),
		nullable(rl.SpecialInstructions), rl.Status, rl.PaymentStatus,
		rl.CreatedAt, rl.UpdatedAt)
	if err != nil {
		return market.Storage(err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Rental, error) {
	rl, err := scanRental(r.DB.QueryRow(ctx, `SELECT `+rentalCols+` FROM equipment_rentals WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "rental %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return rl, nil
}

// Confirm flips pending->confirmed and takes the equipment off the market.
// A second confirm against the same equipment loses on the equipment guard
// and the rental stays pending.
func (r *Repo) Confirm(ctx context.Context, rentalID string) (*Rental, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, market.Storage(err)
	}
	defer tx.Rollback(ctx)

	rl, err := scanRental(tx.QueryRow(ctx, `SELECT `+rentalCols+` FROM equipment_rentals WHERE id=$1 FOR UPDATE`, rentalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "rental %s", rentalID)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	if rl.Status != StatusPending {
		return nil, market.E(market.KindInvalidTransition, "rental %s is %s, not pending", rentalID, rl.Status)
	}

	ct, err := tx.Exec(ctx, `UPDATE equipment SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		rl.EquipmentID, catalog.EquipmentRented, catalog.EquipmentAvailable)
	if err != nil {
		return nil, market.Storage(err)
	}
	if ct.RowsAffected() != 1 {
		return nil, market.E(market.KindResourceUnavailable, "equipment %s is no longer available", rl.EquipmentID)
	}
	if err := tx.QueryRow(ctx, `UPDATE equipment_rentals SET status=$2, updated_at=now() WHERE id=$1 AND status=$3 RETURNING updated_at`,
		rentalID, StatusConfirmed, StatusPending).Scan(&rl.UpdatedAt); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, market.Storage(err)
	}
	rl.Status = StatusConfirmed
	return rl, nil
}

// Release flips from->to and puts the equipment back on the market.
func (r *Repo) Release(ctx context.Context, rentalID string, from, to Status, pay PaymentStatus) (*Rental, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, market.Storage(err)
	}
	defer tx.Rollback(ctx)

	rl, err := scanRental(tx.QueryRow(ctx, `SELECT `+rentalCols+` FROM equipment_rentals WHERE id=$1 FOR UPDATE`, rentalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "rental %s", rentalID)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	if rl.Status != from {
		return nil, market.E(market.KindInvalidTransition, "rental %s is %s, not %s", rentalID, rl.Status, from)
	}

	if _, err := tx.Exec(ctx, `UPDATE equipment SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		rl.EquipmentID, catalog.EquipmentAvailable, catalog.EquipmentRented); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.QueryRow(ctx, `UPDATE equipment_rentals SET status=$2, payment_status=$3, updated_at=now() WHERE id=$1 AND status=$4 RETURNING updated_at`,
		rentalID, to, pay, from).Scan(&rl.UpdatedAt); err != nil {
		return nil, market.Storage(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, market.Storage(err)
	}
	rl.Status = to
	rl.PaymentStatus = pay
	return rl, nil
}

func (r *Repo) SetStatus(ctx context.Context, rentalID string, from, to Status, pay PaymentStatus) (*Rental, error) {
	rl, err := scanRental(r.DB.QueryRow(ctx, `
		UPDATE equipment_rentals SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status=$4
		RETURNING `+rentalCols, rentalID, to, pay, from))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.Get(ctx, rentalID); gerr != nil {
			return nil, gerr
		}
		return nil, market.E(market.KindInvalidTransition, "rental %s no longer %s", rentalID, from)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return rl, nil
}

func (r *Repo) ByRenter(ctx context.Context, renterID string) ([]Rental, error) {
	return r.list(ctx, `r.renter_id=$1`, renterID)
}

func (r *Repo) ByOwner(ctx context.Context, ownerID string) ([]Rental, error) {
	return r.list(ctx, `r.owner_id=$1`, ownerID)
}

// PendingByOwner feeds the notification projection.
func (r *Repo) PendingByOwner(ctx context.Context, ownerID string) ([]Rental, error) {
	return r.list(ctx, `r.owner_id=$1 AND r.status='pending'`, ownerID)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]Rental, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT r.id, r.equipment_id, e.name, r.renter_id, r.owner_id,
		       r.start_date, r.end_date, r.rental_days, r.daily_rate_cents,
		       r.total_cents, COALESCE(r.security_deposit_cents, 0),
		       r.delivery_required, COALESCE(r.delivery_address, ''),
		       COALESCE(r.special_instructions, ''), r.status, r.payment_status,
		       r.created_at, r.updated_at
		FROM equipment_rentals r
		JOIN equipment e ON e.id = r.equipment_id
		WHERE `+where+`
		ORDER BY r.created_at DESC`, args...)
	if err != nil {
		return nil, market.Storage(err)
	}
	defer rows.Close()

	var out []Rental
	for rows.Next() {
		var rl Rental
		if err := rows.Scan(&rl.ID, &rl.EquipmentID, &rl.EquipmentName,
			&rl.RenterID, &rl.OwnerID, &rl.StartDate, &rl.EndDate, &rl.RentalDays,
			&rl.DailyRate, &rl.TotalAmount, &rl.SecurityDeposit,
			&rl.DeliveryRequired, &rl.DeliveryAddress, &rl.SpecialInstructions,
			&rl.Status, &rl.PaymentStatus, &rl.CreatedAt, &rl.UpdatedAt); err != nil {
			return nil, market.Storage(err)
		}
		out = append(out, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, market.Storage(err)
	}
	return out, nil
}
