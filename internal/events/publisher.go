package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"proposals-service/internal/models"
)

// Stream and subject layout for proposal extraction events
const (
	StreamProposals = "PROPOSALS"

	SubjectExtractionCompleted = "proposal.extraction.completed"
	SubjectExtractionFailed    = "proposal.extraction.failed"
)

// ExtractionEvent is the wire payload published after an extraction run
type ExtractionEvent struct {
	EventID      string    `json:"eventId"`
	EventType    string    `json:"eventType"`
	TenantID     string    `json:"tenantId"`
	RunID        string    `json:"runId,omitempty"`
	FileName     string    `json:"fileName"`
	FileHash     string    `json:"fileHash"`
	Status       string    `json:"status"`
	ProductCount int       `json:"productCount"`
	OfferCount   int       `json:"offerCount"`
	ImageCount   int       `json:"imageCount"`
	WarningCount int       `json:"warningCount"`
	ValidateOnly bool      `json:"validateOnly"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher publishes extraction lifecycle events to NATS JetStream
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the proposals stream exists
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("proposals-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamProposals,
		Subjects: []string{"proposal.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		logger.WithError(err).Warn("Failed to ensure proposals stream (may already exist)")
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "proposal-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}

// PublishExtractionCompleted publishes a proposal.extraction.completed event
func (p *Publisher) PublishExtractionCompleted(ctx context.Context, run *models.ExtractionRun) error {
	event := &ExtractionEvent{
		EventID:      uuid.New().String(),
		EventType:    SubjectExtractionCompleted,
		TenantID:     run.TenantID,
		RunID:        run.ID.String(),
		FileName:     run.FileName,
		FileHash:     run.FileHash,
		Status:       string(run.Status),
		ProductCount: run.ProductCount,
		OfferCount:   run.OfferCount,
		ImageCount:   run.ImageCount,
		WarningCount: run.WarningCount,
		ValidateOnly: run.ValidateOnly,
		Timestamp:    time.Now().UTC(),
	}
	return p.publish(ctx, SubjectExtractionCompleted, event)
}

// PublishExtractionFailed publishes a proposal.extraction.failed event
func (p *Publisher) PublishExtractionFailed(ctx context.Context, tenantID, fileName, fileHash, reason string) error {
	event := &ExtractionEvent{
		EventID:   uuid.New().String(),
		EventType: SubjectExtractionFailed,
		TenantID:  tenantID,
		FileName:  fileName,
		FileHash:  fileHash,
		Status:    string(models.ExtractionStatusFailed),
		Error:     reason,
		Timestamp: time.Now().UTC(),
	}
	return p.publish(ctx, SubjectExtractionFailed, event)
}

// publish serializes and publishes an event asynchronously so request
// handling never blocks on the broker.
func (p *Publisher) publish(ctx context.Context, subject string, event *ExtractionEvent) error {
	if p == nil || p.js == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := p.js.Publish(subject, data, nats.Context(pubCtx)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"runID":     event.RunID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish extraction event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"runID":     event.RunID,
				"tenantID":  event.TenantID,
			}).Info("Extraction event published")
		}
	}()

	return nil
}
