package messaging

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/farmlink/marketplace/internal/market"
)

type Store interface {
	InsertInquiry(ctx context.Context, inq *Inquiry) error
	Inquiry(ctx context.Context, id string) (*Inquiry, error)
	InsertMessage(ctx context.Context, m *Message) error
	Message(ctx context.Context, id string) (*Message, error)
	// MarkRead sets is_read=true; already-read rows are left alone.
	MarkRead(ctx context.Context, messageID string) error
	Messages(ctx context.Context, inquiryID string) ([]Message, error)
}

// Service is the inquiry messaging thread: an append-only message log per
// inquiry with read tracking.
type Service struct {
	Store Store
}

func (s *Service) OpenInquiry(ctx context.Context, kind InquiryKind, itemID, inquirerID, sellerID, subject string) (*Inquiry, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, market.E(market.KindEmptyContent, "inquiry subject is blank")
	}
	if inquirerID == sellerID {
		return nil, market.E(market.KindForbidden, "cannot open an inquiry against yourself")
	}
	inq := &Inquiry{
		ID:         uuid.NewString(),
		Kind:       kind,
		ItemID:     itemID,
		InquirerID: inquirerID,
		SellerID:   sellerID,
		Subject:    subject,
		Status:     InquiryOpen,
	}
	if err := s.Store.InsertInquiry(ctx, inq); err != nil {
		return nil, err
	}
	return inq, nil
}

// PostMessage appends to the thread. Only the two parties may post; the
// recipient is always the other party.
func (s *Service) PostMessage(ctx context.Context, inquiryID, senderID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, market.E(market.KindEmptyContent, "message content is blank")
	}
	inq, err := s.Store.Inquiry(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	var recipient string
	switch senderID {
	case inq.InquirerID:
		recipient = inq.SellerID
	case inq.SellerID:
		recipient = inq.InquirerID
	default:
		return nil, market.E(market.KindForbidden, "sender %s is not a party to inquiry %s", senderID, inquiryID)
	}
	m := &Message{
		ID:          uuid.NewString(),
		InquiryID:   inquiryID,
		SenderID:    senderID,
		RecipientID: recipient,
		Content:     content,
	}
	if err := s.Store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkRead is recipient-only and idempotent: re-marking a read message is a
// no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, messageID, actorID string) error {
	m, err := s.Store.Message(ctx, messageID)
	if err != nil {
		return err
	}
	if actorID != m.RecipientID {
		return market.E(market.KindForbidden, "actor %s is not the recipient of message %s", actorID, messageID)
	}
	if m.IsRead {
		return nil
	}
	return s.Store.MarkRead(ctx, messageID)
}

// Thread lists an inquiry's messages, restricted to its parties.
func (s *Service) Thread(ctx context.Context, inquiryID, viewerID string) ([]Message, error) {
	inq, err := s.Store.Inquiry(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if viewerID != inq.InquirerID && viewerID != inq.SellerID {
		return nil, market.E(market.KindForbidden, "viewer %s is not a party to inquiry %s", viewerID, inquiryID)
	}
	return s.Store.Messages(ctx, inquiryID)
}
