package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// StreamPublisher emits publication and decision events to Redis streams
type StreamPublisher struct {
	client *redis.Client
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{
		client: client,
	}
}

// PublishEvent emits a publication state change to predictions.events
func (p *StreamPublisher) PublishEvent(ctx context.Context, event models.PublicationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling publication event: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "predictions.events",
		Values: map[string]interface{}{
			"data":          string(data),
			"prediction_id": event.Prediction.PredictionID,
			"event_type":    event.EventType,
		},
	}).Err()
}

// PublishDecisions emits a game decision bundle to the sport-specific stream
func (p *StreamPublisher) PublishDecisions(ctx context.Context, bundle models.GameDecisions) error {
	streamKey := fmt.Sprintf("decisions.%s", bundle.Sport)

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshaling decision bundle: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data":        string(data),
			"game_id":     bundle.GameID,
			"inputs_hash": bundle.InputsHash,
		},
	}).Err()
}
