package models

import (
	"time"

	"github.com/customeros/bccstack/internal/enum"
)

// Tenant is owned by the account service; capture reads it and only
// touches storage_used_bytes through a quota reservation.
type Tenant struct {
	ID                      string        `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ShortID                 string        `gorm:"column:short_id;type:varchar(50);uniqueIndex;not null" json:"shortId"`
	Name                    string        `gorm:"column:name;type:varchar(255)" json:"name"`
	PlanTier                enum.PlanTier `gorm:"column:plan_tier;type:varchar(20);not null;default:free" json:"planTier"`
	InboundCaptureEnabled   bool          `gorm:"column:inbound_capture_enabled;not null;default:true" json:"inboundCaptureEnabled"`
	TrialCapturesUsed       int           `gorm:"column:trial_captures_used;not null;default:0" json:"trialCapturesUsed"`
	StorageUsedBytes        int64         `gorm:"column:storage_used_bytes;not null;default:0" json:"storageUsedBytes"`
	StorageQuotaBytes       int64         `gorm:"column:storage_quota_bytes;not null;default:0" json:"storageQuotaBytes"`
	AttachmentRetentionDays int           `gorm:"column:attachment_retention_days;not null;default:0" json:"attachmentRetentionDays"`
	CreatedAt               time.Time     `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt               time.Time     `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// RetentionExpiry returns nil when the tenant keeps attachments forever.
func (t *Tenant) RetentionExpiry(from time.Time) *time.Time {
	if t == nil || t.AttachmentRetentionDays <= 0 {
		return nil
	}
	expiresAt := from.AddDate(0, 0, t.AttachmentRetentionDays)
	return &expiresAt
}
