package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/trader-bot/internal/infrastructure/kafka"
)

// Outbound message kinds consumed by the relay.
const (
	KindPost   = "post"
	KindEdit   = "edit"
	KindDirect = "direct"
)

// OutboundMessage is what the relay turns into real chat traffic. For posts
// the ID is the correlation token future acknowledgements will carry.
type OutboundMessage struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Target    string `json:"target"`               // channel ID or user ID
	MessageID string `json:"message_id,omitempty"` // edits only
	Content   string `json:"content"`
}

// KafkaGateway publishes outbound chat messages to the relay topic.
type KafkaGateway struct {
	producer *kafka.Producer
}

// NewKafkaGateway wraps a producer on the outbound relay topic.
func NewKafkaGateway(producer *kafka.Producer) *KafkaGateway {
	return &KafkaGateway{producer: producer}
}

func (g *KafkaGateway) PostToChannel(ctx context.Context, channelID, content string) (string, error) {
	id := uuid.New().String()
	msg := OutboundMessage{ID: id, Kind: KindPost, Target: channelID, Content: content}
	if err := g.producer.Publish(ctx, channelID, msg); err != nil {
		return "", err
	}
	return id, nil
}

func (g *KafkaGateway) EditMessage(ctx context.Context, messageID, content string) error {
	msg := OutboundMessage{ID: uuid.New().String(), Kind: KindEdit, MessageID: messageID, Content: content}
	return g.producer.Publish(ctx, messageID, msg)
}

func (g *KafkaGateway) SendDirect(ctx context.Context, userID, content string) (string, error) {
	id := uuid.New().String()
	msg := OutboundMessage{ID: id, Kind: KindDirect, Target: userID, Content: content}
	if err := g.producer.Publish(ctx, userID, msg); err != nil {
		return "", err
	}
	return id, nil
}
