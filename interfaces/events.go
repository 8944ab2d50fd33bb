package interfaces

import (
	"context"

	"github.com/customeros/bccstack/internal/enum"
)

type EventPublisher interface {
	PublishFanoutEvent(ctx context.Context, tenant, entityId string, entityType enum.EntityType, eventType string, message interface{}) error
	PublishDirectEvent(ctx context.Context, tenant, entityId string, entityType enum.EntityType, eventType string, message interface{}) error
	Close() error
}
