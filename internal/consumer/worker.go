package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// RemoteWorker dispatches simulation requests to the external worker fleet
// over Redis streams and waits on the matching results. Results are matched
// to waiting passes by context hash; a pass that hits its deadline leaves
// its results to be dropped on arrival.
type RemoteWorker struct {
	client   *redis.Client
	consumer *StreamConsumer
	expected func(models.Sport) int
	log      zerolog.Logger

	mu      sync.Mutex
	waiting map[string]chan models.SimulationResult
}

// NewRemoteWorker creates a remote simulation worker client. expected
// returns how many per-market results a sport's simulation emits.
func NewRemoteWorker(client *redis.Client, consumer *StreamConsumer, expected func(models.Sport) int, log zerolog.Logger) *RemoteWorker {
	return &RemoteWorker{
		client:   client,
		consumer: consumer,
		expected: expected,
		log:      log.With().Str("component", "sim-worker").Logger(),
		waiting:  make(map[string]chan models.SimulationResult),
	}
}

// Start begins routing result streams for every sport. Blocks until ctx is
// done.
func (w *RemoteWorker) Start(ctx context.Context, sports []models.Sport) {
	var wg sync.WaitGroup
	for _, sport := range sports {
		wg.Add(1)
		go func(sport models.Sport) {
			defer wg.Done()
			w.route(ctx, StreamKeyFor(sport))
		}(sport)
	}
	wg.Wait()
}

func (w *RemoteWorker) route(ctx context.Context, streamKey string) {
	messages, errors := w.consumer.ConsumeStream(ctx, streamKey)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Str("stream", streamKey).Msg("result stream error")
		case msg, ok := <-messages:
			if !ok {
				return
			}
			w.deliver(msg.Result)
			if err := w.consumer.AckMessage(ctx, streamKey, msg.ID); err != nil {
				w.log.Warn().Err(err).Str("message", msg.ID).Msg("ack failed")
			}
		}
	}
}

func (w *RemoteWorker) deliver(result models.SimulationResult) {
	w.mu.Lock()
	ch, exists := w.waiting[result.ContextHash]
	w.mu.Unlock()
	if !exists {
		// Late result for a cancelled or replayed pass
		return
	}

	select {
	case ch <- result:
	default:
		w.log.Warn().Str("context", result.ContextHash).Msg("result channel full, dropping")
	}
}

// Run publishes one simulation request and blocks until every market result
// arrives or ctx expires
func (w *RemoteWorker) Run(ctx context.Context, simCtx models.SimulationContext) ([]models.SimulationResult, error) {
	want := w.expected(simCtx.Sport)
	if want <= 0 {
		return nil, fmt.Errorf("no markets configured for %s", simCtx.Sport)
	}

	ch := make(chan models.SimulationResult, want)
	w.mu.Lock()
	if _, exists := w.waiting[simCtx.ContextHash]; exists {
		w.mu.Unlock()
		return nil, fmt.Errorf("pass already running for context %s", simCtx.ContextHash)
	}
	w.waiting[simCtx.ContextHash] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.waiting, simCtx.ContextHash)
		w.mu.Unlock()
	}()

	data, err := json.Marshal(simCtx)
	if err != nil {
		return nil, fmt.Errorf("marshaling sim request: %w", err)
	}
	err = w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: fmt.Sprintf("sim.requests.%s", simCtx.Sport),
		Values: map[string]interface{}{
			"data":         string(data),
			"context_hash": simCtx.ContextHash,
			"game_id":      simCtx.GameID,
		},
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("publishing sim request: %w", err)
	}

	seen := make(map[models.MarketType]bool, want)
	results := make([]models.SimulationResult, 0, want)
	for len(results) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-ch:
			if seen[result.MarketType] {
				continue
			}
			seen[result.MarketType] = true
			results = append(results, result)
		}
	}

	return results, nil
}
