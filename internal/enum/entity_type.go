package enum

type EntityType string

const (
	INGESTION_RECORD EntityType = "INGESTION_RECORD"
	ATTACHMENT       EntityType = "ATTACHMENT"
	DOCUMENT         EntityType = "DOCUMENT"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
