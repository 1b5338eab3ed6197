package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmlink/marketplace/internal/market"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InsertInquiry(ctx context.Context, inq *Inquiry) error {
	now := time.Now().UTC()
	inq.CreatedAt, inq.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO product_inquiries (id, kind, item_id, inquirer_id, seller_id,
			subject, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inq.ID, inq.Kind, inq.ItemID, inq.InquirerID, inq.SellerID,
		inq.Subject, inq.Status, inq.CreatedAt, inq.UpdatedAt)
	if err != nil {
		return market.Storage(err)
	}
	return nil
}

func (r *Repo) Inquiry(ctx context.Context, id string) (*Inquiry, error) {
	var inq Inquiry
	err := r.DB.QueryRow(ctx, `
		SELECT id, kind, item_id, inquirer_id, seller_id, subject, status,
		       created_at, updated_at
		FROM product_inquiries WHERE id=$1`, id).
		Scan(&inq.ID, &inq.Kind, &inq.ItemID, &inq.InquirerID, &inq.SellerID,
			&inq.Subject, &inq.Status, &inq.CreatedAt, &inq.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "inquiry %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return &inq, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	m.CreatedAt = time.Now().UTC()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO messages (id, inquiry_id, sender_id, recipient_id, content,
			is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.InquiryID, m.SenderID, m.RecipientID, m.Content, m.IsRead, m.CreatedAt)
	if err != nil {
		return market.Storage(err)
	}
	return nil
}

func (r *Repo) Message(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := r.DB.QueryRow(ctx, `
		SELECT id, inquiry_id, sender_id, recipient_id, content, is_read, created_at
		FROM messages WHERE id=$1`, id).
		Scan(&m.ID, &m.InquiryID, &m.SenderID, &m.RecipientID, &m.Content,
			&m.IsRead, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, market.E(market.KindNotFound, "message %s", id)
	}
	if err != nil {
		return nil, market.Storage(err)
	}
	return &m, nil
}

func (r *Repo) MarkRead(ctx context.Context, messageID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE messages SET is_read = true WHERE id=$1 AND is_read = false`, messageID)
	if err != nil {
		return market.Storage(err)
	}
	return nil
}

func (r *Repo) Messages(ctx context.Context, inquiryID string) ([]Message, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, inquiry_id, sender_id, recipient_id, content, is_read, created_at
		FROM messages WHERE inquiry_id=$1 ORDER BY created_at`, inquiryID)
	if err != nil {
		return nil, market.Storage(err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.InquiryID, &m.SenderID, &m.RecipientID,
			&m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, market.Storage(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, market.Storage(err)
	}
	return out, nil
}

// OpenBySeller lists a seller's open inquiries with their unread counts; it
// feeds the notification projection.
func (r *Repo) OpenBySeller(ctx context.Context, sellerID string) ([]InquirySummary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT i.id, i.kind, i.item_id, i.inquirer_id, i.seller_id, i.subject,
		       i.status, i.created_at, i.updated_at,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.inquiry_id = i.id AND m.recipient_id = $1 AND m.is_read = false)
		FROM product_inquiries i
		WHERE i.seller_id = $1 AND i.status = 'open'
		ORDER BY i.created_at DESC`, sellerID)
	if err != nil {
		return nil, market.Storage(err)
	}
	defer rows.Close()

	var out []InquirySummary
	for rows.Next() {
		var s InquirySummary
		if err := rows.Scan(&s.ID, &s.Kind, &s.ItemID, &s.InquirerID, &s.SellerID,
			&s.Subject, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.UnreadCount); err != nil {
			return nil, market.Storage(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, market.Storage(err)
	}
	return out, nil
}
