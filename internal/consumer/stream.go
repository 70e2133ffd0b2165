package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// StreamConsumer consumes simulation results from Redis Streams, one stream
// per sport (sim.results.<sport>), through a consumer group so crashed
// engines resume from their pending entries
type StreamConsumer struct {
	client     *redis.Client
	consumerID string
	groupName  string
}

// Message is one stream entry carrying a simulation result
type Message struct {
	ID        string
	StreamKey string
	Result    models.SimulationResult
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(client *redis.Client, consumerID, groupName string) *StreamConsumer {
	return &StreamConsumer{
		client:     client,
		consumerID: consumerID,
		groupName:  groupName,
	}
}

// StreamKeyFor returns the result stream for a sport
func StreamKeyFor(sport models.Sport) string {
	return fmt.Sprintf("sim.results.%s", sport)
}

// ConsumeStream starts consuming simulation results from a sport's stream
func (c *StreamConsumer) ConsumeStream(ctx context.Context, streamKey string) (<-chan Message, <-chan error) {
	messageCh := make(chan Message, 100)
	errorCh := make(chan error, 10)

	// Create consumer group if it doesn't exist
	err := c.client.XGroupCreateMkStream(ctx, streamKey, c.groupName, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		errorCh <- fmt.Errorf("failed to create consumer group: %w", err)
		close(messageCh)
		close(errorCh)
		return messageCh, errorCh
	}

	go func() {
		defer close(messageCh)
		defer close(errorCh)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    c.groupName,
					Consumer: c.consumerID,
					Streams:  []string{streamKey, ">"},
					Count:    10,
					Block:    1 * time.Second,
				}).Result()

				if err != nil {
					if err == redis.Nil {
						continue
					}
					if ctx.Err() != nil {
						return
					}
					errorCh <- fmt.Errorf("error reading from stream: %w", err)
					time.Sleep(1 * time.Second)
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						msg, err := c.parseMessage(streamKey, message)
						if err != nil {
							errorCh <- fmt.Errorf("error parsing message %s: %w", message.ID, err)
							// Poison entries are acked, not retried forever
							_ = c.AckMessage(ctx, streamKey, message.ID)
							continue
						}

						messageCh <- msg
					}
				}
			}
		}
	}()

	return messageCh, errorCh
}

// parseMessage parses a Redis stream message into a simulation result
func (c *StreamConsumer) parseMessage(streamKey string, xmsg redis.XMessage) (Message, error) {
	data, ok := xmsg.Values["data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("missing 'data' field in message")
	}

	var result models.SimulationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return Message{}, fmt.Errorf("failed to parse simulation result JSON: %w", err)
	}

	if result.ContextHash == "" {
		return Message{}, fmt.Errorf("simulation result missing context_hash")
	}

	return Message{
		ID:        xmsg.ID,
		StreamKey: streamKey,
		Result:    result,
	}, nil
}

// AckMessage acknowledges a message as processed
func (c *StreamConsumer) AckMessage(ctx context.Context, streamKey, messageID string) error {
	return c.client.XAck(ctx, streamKey, c.groupName, messageID).Err()
}
