package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/bccstack/interfaces"
)

type Repositories struct {
	IngestionRecordRepository interfaces.IngestionRecordRepository
	AttachmentRepository      interfaces.AttachmentRepository
	TenantRepository          interfaces.TenantRepository
	DocumentRepository        interfaces.DocumentRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		IngestionRecordRepository: NewIngestionRecordRepository(db),
		AttachmentRepository:      NewAttachmentRepository(db),
		TenantRepository:          NewTenantRepository(db),
		DocumentRepository:        NewDocumentRepository(db),
	}
}
