package messaging

import "time"

type InquiryKind string

const (
	KindProduct   InquiryKind = "product"
	KindEquipment InquiryKind = "equipment"
)

type InquiryStatus string

const (
	InquiryOpen       InquiryStatus = "open"
	InquiryInProgress InquiryStatus = "in_progress"
	InquiryResolved   InquiryStatus = "resolved"
	InquiryClosed     InquiryStatus = "closed"
)

type Inquiry struct {
	ID         string        `json:"id"`
	Kind       InquiryKind   `json:"kind"`
	ItemID     string        `json:"item_id"`
	InquirerID string        `json:"inquirer_id"`
	SellerID   string        `json:"seller_id"`
	Subject    string        `json:"subject"`
	Status     InquiryStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Message belongs to exactly one inquiry. is_read moves false->true only,
// driven by the recipient.
type Message struct {
	ID          string    `json:"id"`
	InquiryID   string    `json:"inquiry_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// InquirySummary is an inquiry plus the viewer's unread message count, the
// shape the notification projection consumes.
type InquirySummary struct {
	Inquiry
	UnreadCount int `json:"unread_count"`
}
