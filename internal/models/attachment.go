package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/bccstack/internal/utils"
)

// Attachment is a stored proposal file. Rows are never updated after insert.
type Attachment struct {
	ID             string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OrganizationID string     `gorm:"column:organization_id;type:varchar(50);index;not null" json:"organizationId"`
	DocumentID     string     `gorm:"column:document_id;type:varchar(50);index;not null" json:"documentId"`
	IngestionID    string     `gorm:"column:ingestion_id;type:varchar(50);index" json:"ingestionId"`
	Filename       string     `gorm:"column:filename;type:varchar(500);not null" json:"filename"`
	ContentType    string     `gorm:"column:content_type;type:varchar(255);not null" json:"contentType"`
	SizeBytes      int64      `gorm:"column:size_bytes;not null" json:"sizeBytes"`
	StorageService string     `gorm:"column:storage_service;type:varchar(50)" json:"storageService"`
	StorageBucket  string     `gorm:"column:storage_bucket;type:varchar(255)" json:"storageBucket"`
	StoragePointer string     `gorm:"column:storage_pointer;type:varchar(1000);not null" json:"storagePointer"`
	ContentHash    string     `gorm:"column:content_hash;type:varchar(64);index" json:"contentHash"`
	ExpiresAt      *time.Time `gorm:"column:expires_at;type:timestamp" json:"expiresAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	a.CreatedAt = utils.Now()
	return nil
}
