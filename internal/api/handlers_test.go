package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/api"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

type fakeDecisionStore struct {
	bundles map[string]*models.GameDecisions
	states  []models.MarketState
	fail    bool
}

func (f *fakeDecisionStore) PutGameDecisions(_ context.Context, _ models.GameDecisions) error {
	return nil
}

func (f *fakeDecisionStore) GetGameDecisions(_ context.Context, gameID string) (*models.GameDecisions, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.bundles[gameID], nil
}

func (f *fakeDecisionStore) ListMarketStates(_ context.Context, _ models.Sport) ([]models.MarketState, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.states, nil
}

type fakePublicationStore struct {
	official []models.PublishedPrediction
}

func (f *fakePublicationStore) InsertPublication(_ context.Context, pub models.PublishedPrediction) (*models.PublishedPrediction, bool, error) {
	return &pub, true, nil
}

func (f *fakePublicationStore) GetPublication(_ context.Context, _ string, _ models.Channel) (*models.PublishedPrediction, error) {
	return nil, nil
}

func (f *fakePublicationStore) ListOfficial(_ context.Context, _ models.Sport, limit, offset int) ([]models.PublishedPrediction, error) {
	if offset >= len(f.official) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.official) {
		end = len(f.official)
	}
	return f.official[offset:end], nil
}

func (f *fakePublicationStore) ListUngraded(_ context.Context, _ models.Sport) ([]models.PublishedPrediction, error) {
	return nil, nil
}

func (f *fakePublicationStore) Void(_ context.Context, _ string, _ string) error {
	return nil
}

type fakeAuditWriter struct {
	records map[string][]models.AuditRecord
}

func (f *fakeAuditWriter) Insert(_ context.Context, record models.AuditRecord) error {
	if f.records == nil {
		f.records = make(map[string][]models.AuditRecord)
	}
	f.records[record.InputsHash] = append(f.records[record.InputsHash], record)
	return nil
}

func (f *fakeAuditWriter) Find(_ context.Context, inputsHash string) ([]models.AuditRecord, error) {
	return f.records[inputsHash], nil
}

type fakePinger struct{ fail bool }

func (f *fakePinger) Ping(_ context.Context) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return nil
}

func newTestServer(t *testing.T, decisions *fakeDecisionStore, pubs *fakePublicationStore, auditWriter *fakeAuditWriter, pinger *fakePinger) *httptest.Server {
	t.Helper()

	registry, err := sportconfig.Load("")
	if err != nil {
		t.Fatalf("loading sport config: %v", err)
	}

	auditLog := audit.NewLogger(auditWriter, "engine-test", zerolog.Nop())
	handler := api.NewHandler(registry, decisions, pubs, auditLog, pinger, api.Meta{
		EngineBuildID: "engine-test",
		SimVersion:    "sim-test",
		DeployedAt:    time.Now().UTC(),
		Environment:   "test",
		Status:        "ok",
	}, zerolog.Nop())

	server := httptest.NewServer(api.NewRouter(handler, []string{"http://localhost:3000"}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, body
}

func TestHealthCheck(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		server := newTestServer(t, &fakeDecisionStore{}, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, _ := get(t, server.URL+"/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("Database down", func(t *testing.T) {
		server := newTestServer(t, &fakeDecisionStore{}, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{fail: true})

		resp, _ := get(t, server.URL+"/health")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})
}

func TestGetMeta(t *testing.T) {
	server := newTestServer(t, &fakeDecisionStore{}, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

	resp, body := get(t, server.URL+"/meta")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var buildID string
	if err := json.Unmarshal(body["engine_build_id"], &buildID); err != nil || buildID != "engine-test" {
		t.Errorf("engine_build_id = %q, want engine-test", buildID)
	}
}

func TestGetGameDecisions(t *testing.T) {
	bundle := &models.GameDecisions{
		GameID: "game-1",
		Sport:  models.SportNBA,
		Spread: &models.MarketDecision{
			GameID:         "game-1",
			Sport:          models.SportNBA,
			MarketType:     models.MarketSpread,
			Classification: models.ClassificationEdge,
		},
		InputsHash: "hash-1",
	}
	decisions := &fakeDecisionStore{bundles: map[string]*models.GameDecisions{"game-1": bundle}}

	t.Run("Found", func(t *testing.T) {
		server := newTestServer(t, decisions, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, body := get(t, server.URL+"/api/v1/decisions/NBA/game-1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var gameID string
		if err := json.Unmarshal(body["game_id"], &gameID); err != nil || gameID != "game-1" {
			t.Errorf("game_id = %q, want game-1", gameID)
		}
	})

	t.Run("Unknown league", func(t *testing.T) {
		server := newTestServer(t, decisions, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, _ := get(t, server.URL+"/api/v1/decisions/XFL/game-1")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("Missing game fails closed", func(t *testing.T) {
		server := newTestServer(t, decisions, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, _ := get(t, server.URL+"/api/v1/decisions/NBA/game-404")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503 when no bundle exists yet", resp.StatusCode)
		}
	})

	t.Run("Wrong league for game", func(t *testing.T) {
		server := newTestServer(t, decisions, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, _ := get(t, server.URL+"/api/v1/decisions/NHL/game-1")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("Store failure fails closed", func(t *testing.T) {
		server := newTestServer(t, &fakeDecisionStore{fail: true}, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

		resp, _ := get(t, server.URL+"/api/v1/decisions/NBA/game-1")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503 never 404 on store errors", resp.StatusCode)
		}
	})
}

func TestGetMarketStates(t *testing.T) {
	decisions := &fakeDecisionStore{states: []models.MarketState{
		{GameID: "game-1", Sport: models.SportNBA, MarketType: models.MarketSpread, Classification: models.ClassificationEdge, BroadcastAllowed: true, ParlayAllowed: true},
		{GameID: "game-1", Sport: models.SportNBA, MarketType: models.MarketTotal, Classification: models.ClassificationLean, ParlayAllowed: true},
	}}
	server := newTestServer(t, decisions, &fakePublicationStore{}, &fakeAuditWriter{}, &fakePinger{})

	resp, body := get(t, server.URL+"/api/v1/market-states?league=NBA")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var count int
	if err := json.Unmarshal(body["count"], &count); err != nil || count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	resp, _ = get(t, server.URL+"/api/v1/market-states?league=nope")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetPredictions(t *testing.T) {
	pubs := &fakePublicationStore{}
	for i := 0; i < 5; i++ {
		pubs.official = append(pubs.official, models.PublishedPrediction{
			PublishID: "pub",
			Sport:     models.SportNBA,
		})
	}
	server := newTestServer(t, &fakeDecisionStore{}, pubs, &fakeAuditWriter{}, &fakePinger{})

	resp, body := get(t, server.URL+"/api/v1/predictions?league=NBA&limit=2&offset=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var count, limit int
	if err := json.Unmarshal(body["count"], &count); err != nil || count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if err := json.Unmarshal(body["limit"], &limit); err != nil || limit != 2 {
		t.Errorf("limit = %d, want 2", limit)
	}
}

func TestGetAuditTrail(t *testing.T) {
	writer := &fakeAuditWriter{}
	if err := writer.Insert(context.Background(), models.AuditRecord{
		EventID:    "game-1",
		InputsHash: "hash-1",
	}); err != nil {
		t.Fatalf("seeding audit record: %v", err)
	}
	server := newTestServer(t, &fakeDecisionStore{}, &fakePublicationStore{}, writer, &fakePinger{})

	resp, body := get(t, server.URL+"/api/v1/audit/hash-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var count int
	if err := json.Unmarshal(body["count"], &count); err != nil || count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	resp, _ = get(t, server.URL+"/api/v1/audit/hash-unknown")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
