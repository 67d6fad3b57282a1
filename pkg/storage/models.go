package storage

import "time"

// Attachment kinds stored alongside a request.
const (
	KindDocument = "document"
	KindPhoto    = "photo"
)

// SupportRequest is the durable record of a completed intake conversation.
// Rows are written once and never updated; created_at is assigned by the
// database.
type SupportRequest struct {
	ID             uint    `gorm:"primaryKey"`
	UserID         int64   `gorm:"not null;index"`
	UserUsername   *string `gorm:"type:text"`
	Name           string  `gorm:"type:text;not null"`
	Email          *string `gorm:"type:text"`
	Message        string  `gorm:"type:text;not null"`
	AdminID        *int64
	AdminName      *string `gorm:"type:text"`
	AttachmentPath *string `gorm:"type:text"`
	AttachmentKind *string `gorm:"type:varchar(16)"`

	CreatedAt time.Time `gorm:"<-:false;not null;default:now()"`
}

func (SupportRequest) TableName() string { return "support_requests" }

// SupportReply is one staff reply relayed to a requester, appended per attempt
// that succeeds. Replies reference the request and are never edited.
type SupportReply struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID uint   `gorm:"not null;index"`
	AdminID   int64  `gorm:"not null"`
	Message   string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"<-:false;not null;default:now()"`
}

func (SupportReply) TableName() string { return "support_responses" }
