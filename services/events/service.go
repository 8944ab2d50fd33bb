package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/logger"
)

type EventsService struct {
	Publisher interfaces.EventPublisher
}

// NewEventsService connects to RabbitMQ when a url is configured. Without one,
// events are logged and dropped.
func NewEventsService(rabbitmqURL, appSource string, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL not set, capture events will not be published")
		return &EventsService{Publisher: NewNoopPublisher(log)}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, appSource, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	return &EventsService{
		Publisher: publisher,
	}, nil
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing events service: %v", errs)
	}

	return nil
}

type noopPublisher struct {
	log logger.Logger
}

func NewNoopPublisher(log logger.Logger) interfaces.EventPublisher {
	return &noopPublisher{log: log}
}

func (p *noopPublisher) PublishFanoutEvent(_ context.Context, tenant, entityId string, _ enum.EntityType, eventType string, _ interface{}) error {
	p.log.Debugf("dropping fanout event %s for %s/%s", eventType, tenant, entityId)
	return nil
}

func (p *noopPublisher) PublishDirectEvent(_ context.Context, tenant, entityId string, _ enum.EntityType, eventType string, _ interface{}) error {
	p.log.Debugf("dropping direct event %s for %s/%s", eventType, tenant, entityId)
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// PublishedEvent is what RecordingPublisher keeps per call.
type PublishedEvent struct {
	Direct     bool
	Tenant     string
	EntityId   string
	EntityType enum.EntityType
	EventType  string
	Message    interface{}
}

// RecordingPublisher keeps events in memory. Err, when set, is returned from every publish.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) PublishFanoutEvent(_ context.Context, tenant, entityId string, entityType enum.EntityType, eventType string, message interface{}) error {
	return p.record(false, tenant, entityId, entityType, eventType, message)
}

func (p *RecordingPublisher) PublishDirectEvent(_ context.Context, tenant, entityId string, entityType enum.EntityType, eventType string, message interface{}) error {
	return p.record(true, tenant, entityId, entityType, eventType, message)
}

func (p *RecordingPublisher) record(direct bool, tenant, entityId string, entityType enum.EntityType, eventType string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, PublishedEvent{
		Direct:     direct,
		Tenant:     tenant,
		EntityId:   entityId,
		EntityType: entityType,
		EventType:  eventType,
		Message:    message,
	})
	return nil
}

func (p *RecordingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *RecordingPublisher) Close() error {
	return nil
}
