package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/ucsindex/engine/internal/domain"
)

// InvalidationMessage is published for readers in other processes.
type InvalidationMessage struct {
	Date   string   `json:"date"`
	Assets []string `json:"assets"`
}

type publisher interface {
	Publish(ctx context.Context, data []byte) error
}

type topicPublisher struct {
	topic *pubsub.Topic
}

func (p topicPublisher) Publish(ctx context.Context, data []byte) error {
	_, err := p.topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
	return err
}

// PubSubNotifier broadcasts invalidations on a Pub/Sub topic.
type PubSubNotifier struct {
	pub publisher
}

// NewPubSubNotifier publishes to topicID using client.
func NewPubSubNotifier(client *pubsub.Client, topicID string) *PubSubNotifier {
	return &PubSubNotifier{pub: topicPublisher{topic: client.Topic(topicID)}}
}

func (n *PubSubNotifier) Invalidate(ctx context.Context, date time.Time, assetIDs []string) error {
	data, err := json.Marshal(InvalidationMessage{
		Date:   domain.FormatISODate(date),
		Assets: assetIDs,
	})
	if err != nil {
		return fmt.Errorf("encoding invalidation message: %w", err)
	}
	if err := n.pub.Publish(ctx, data); err != nil {
		return fmt.Errorf("publishing invalidation: %w", err)
	}
	return nil
}
