package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/utils"
)

// IngestionRecord is one webhook delivery that passed signature verification
type IngestionRecord struct {
	ID             string               `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Provider       enum.Provider        `gorm:"column:provider;type:varchar(20);not null" json:"provider"`
	IdempotencyKey string               `gorm:"column:idempotency_key;type:varchar(300);uniqueIndex;not null" json:"idempotencyKey"`
	Status         enum.IngestionStatus `gorm:"column:status;type:varchar(50);index;not null" json:"status"`

	// Linkage, filled in as the pipeline resolves it
	OrganizationID *string `gorm:"column:organization_id;type:varchar(50);index" json:"organizationId,omitempty"`
	DocumentID     *string `gorm:"column:document_id;type:varchar(50);index" json:"documentId,omitempty"`
	AttachmentID   *string `gorm:"column:attachment_id;type:varchar(50)" json:"attachmentId,omitempty"`
	ParsedLink     *string `gorm:"column:parsed_link;type:text" json:"parsedLink,omitempty"`

	// Payload snapshot, bounded before persistence
	MessageID          string         `gorm:"column:message_id;type:varchar(1000)" json:"messageId"`
	BodyChecksum       string         `gorm:"column:body_checksum;type:varchar(64)" json:"bodyChecksum"`
	RawFrom            string         `gorm:"column:raw_from;type:varchar(1000)" json:"rawFrom"`
	RawTo              string         `gorm:"column:raw_to;type:varchar(1000)" json:"rawTo"`
	RawSubject         string         `gorm:"column:raw_subject;type:varchar(1000)" json:"rawSubject"`
	RawBodyText        string         `gorm:"column:raw_body_text;type:text" json:"-"`
	RawBodyHTML        string         `gorm:"column:raw_body_html;type:text" json:"-"`
	MatchedRecipients  pq.StringArray `gorm:"column:matched_recipients;type:text[]" json:"matchedRecipients"`
	CandidateFilenames pq.StringArray `gorm:"column:candidate_filenames;type:text[]" json:"candidateFilenames"`
	RemoteIP           string         `gorm:"column:remote_ip;type:varchar(64)" json:"remoteIp"`

	ErrorMessage *string `gorm:"column:error_message;type:text" json:"errorMessage,omitempty"`

	ReceivedAt  time.Time  `gorm:"column:received_at;type:timestamp;not null;default:current_timestamp" json:"receivedAt"`
	ProcessedAt *time.Time `gorm:"column:processed_at;type:timestamp" json:"processedAt,omitempty"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (IngestionRecord) TableName() string {
	return "ingestion_records"
}

func (r *IngestionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("ingest", 16)
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = utils.Now()
	}
	r.UpdatedAt = utils.Now()
	return nil
}

// IngestionRecordClose is the set of fields written on a terminal transition.
type IngestionRecordClose struct {
	Status         enum.IngestionStatus
	OrganizationID *string
	DocumentID     *string
	AttachmentID   *string
	ParsedLink     *string
	ErrorMessage   *string
}
