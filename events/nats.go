package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	// StreamName is the JetStream stream carrying loyalty events
	StreamName = "loyalty_events"

	SubjectCampaignDispatched   = "loyalty.campaign.dispatched"
	SubjectBirthdayRewarded     = "loyalty.birthday.rewarded"
	SubjectBirthdayRunCompleted = "loyalty.birthday.completed"

	sourceService = "loyaltycast"
)

var subjects = map[EventType]string{
	EventTypeCampaignDispatched:   SubjectCampaignDispatched,
	EventTypeBirthdayRewarded:     SubjectBirthdayRewarded,
	EventTypeBirthdayRunCompleted: SubjectBirthdayRunCompleted,
}

// SubjectFor maps an event type to its NATS subject
func SubjectFor(eventType EventType) (string, bool) {
	s, ok := subjects[eventType]
	return s, ok
}

// Envelope wraps a serialized event for the message bus
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// MessagePublisher is the transport the forwarder writes envelopes to
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSClient publishes to NATS JetStream
type NATSClient struct {
	servers string
	nc      *nats.Conn
	js      nats.JetStreamContext
}

// NewNATSClient creates a new NATS client
func NewNATSClient(servers string) *NATSClient {
	return &NATSClient{servers: servers}
}

// Connect establishes a connection to the NATS server and ensures the loyalty stream exists
func (c *NATSClient) Connect() error {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.nc = nc
	c.js = js

	if err := c.ensureStream(); err != nil {
		nc.Close()
		return err
	}

	log.WithField("servers", c.servers).Info("Connected to NATS with JetStream")
	return nil
}

func (c *NATSClient) ensureStream() error {
	if _, err := c.js.StreamInfo(StreamName); err == nil {
		return nil
	}

	all := make([]string, 0, len(subjects))
	for _, s := range subjects {
		all = append(all, s)
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:        StreamName,
		Subjects:    all,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Description: "Loyalty campaign and birthday job events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	log.WithFields(log.Fields{
		"stream":   StreamName,
		"subjects": all,
	}).Info("Created JetStream stream")
	return nil
}

// Publish publishes a message to the specified subject using JetStream
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return fmt.Errorf("not connected to NATS JetStream")
	}

	if _, err := c.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection
func (c *NATSClient) Close() {
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			log.WithError(err).Warn("Failed to drain NATS connection")
		}
		log.Info("NATS connection closed")
	}
}

// Forwarder relays bus events to a message publisher
type Forwarder struct {
	publisher MessagePublisher
	timeout   time.Duration
	newID     func() string
	now       func() time.Time
}

// NewForwarder creates a forwarder writing to publisher
func NewForwarder(publisher MessagePublisher) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		timeout:   5 * time.Second,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// Attach subscribes the forwarder to every event type that has a subject
func (f *Forwarder) Attach(bus *Bus) {
	for eventType := range subjects {
		bus.Subscribe(eventType, f.Handle)
	}
}

// Handle serializes the event into an envelope and publishes it. Failures are logged.
func (f *Forwarder) Handle(ctx context.Context, event Event) {
	subject, ok := SubjectFor(event.Type())
	if !ok {
		return
	}

	data, err := f.encode(event)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to encode event")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.publisher.Publish(pubCtx, subject, data); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"error":     err,
		}).Error("Failed to forward event")
		return
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"subject":   subject,
	}).Debug("Forwarded event")
}

func (f *Forwarder) encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := Envelope{
		EventID:       f.newID(),
		EventType:     string(event.Type()),
		Timestamp:     f.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}
