package models

import "time"

type Document struct {
	ID                   string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID             string    `gorm:"column:tenant_id;type:varchar(50);not null;uniqueIndex:uq_documents_tenant_public" json:"tenantId"`
	PublicID             string    `gorm:"column:public_id;type:varchar(50);not null;uniqueIndex:uq_documents_tenant_public" json:"publicId"`
	Title                string    `gorm:"column:title;type:varchar(500)" json:"title"`
	ProposalLink         *string   `gorm:"column:proposal_link;type:text" json:"proposalLink,omitempty"`
	ProposalAttachmentID *string   `gorm:"column:proposal_attachment_id;type:varchar(50)" json:"proposalAttachmentId,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt            time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) HasProposal() bool {
	return d != nil && (d.ProposalAttachmentID != nil || d.ProposalLink != nil)
}
