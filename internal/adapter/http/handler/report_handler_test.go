package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/adapter/http/dto"
	"github.com/chainbooks/chainbooks/internal/adapter/http/handler"
	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/infrastructure/metrics"
	"github.com/chainbooks/chainbooks/internal/usecase"
	"github.com/chainbooks/chainbooks/internal/usecase/mocks"
)

const testWallet = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

// metrics.New registers collectors globally; share one instance across
// the package's tests.
var testMetrics = metrics.New()

func testPipeline() *usecase.Pipeline {
	oracle := mocks.NewMockOracle()
	oracle.GetUnitPriceFunc = func(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
		return decimal.NewFromInt(2000), true, nil
	}

	return usecase.NewPipeline(
		usecase.NewNormalizer(oracle, 2),
		usecase.NewClassifier(usecase.DefaultProtocolRules()),
		usecase.NewStatementGenerator(),
		oracle,
		nil,
		nil,
		mocks.NewMockIDGen(),
		usecase.RunConfig{Method: domain.FIFO, Frequency: domain.Monthly},
	)
}

func testFeed() *mocks.MockFeed {
	feed := mocks.NewMockFeed()
	feed.Records = []domain.RawRecord{
		{
			TxHash:         "0xa2b5f1c8d4e7a0b3c6d9e2f5a8b1c4d7e0f3a6b9c2d5e8f1a4b7c0d3e6f9a2b5",
			LogIndex:       0,
			BlockNumber:    100,
			BlockTimestamp: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			FromAddress:    "0x3333333333333333333333333333333333333333",
			ToAddress:      testWallet,
			Asset:          "ETH",
			Amount:         decimal.NewFromInt(1),
			Success:        true,
		},
	}
	return feed
}

func TestReportHandler_Run(t *testing.T) {
	h := handler.NewReportHandler(testPipeline(), testFeed(), testMetrics, zerolog.Nop())

	body, _ := json.Marshal(dto.RunReportRequest{Wallet: testWallet})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Wallet != testWallet {
		t.Errorf("wallet = %s, want %s", resp.Wallet, testWallet)
	}
	if len(resp.Periods) != 1 {
		t.Errorf("periods = %d, want 1", len(resp.Periods))
	}
	if resp.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestReportHandler_InvalidWallet(t *testing.T) {
	h := handler.NewReportHandler(testPipeline(), testFeed(), testMetrics, zerolog.Nop())

	body, _ := json.Marshal(dto.RunReportRequest{Wallet: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReportHandler_MalformedBody(t *testing.T) {
	h := handler.NewReportHandler(testPipeline(), testFeed(), testMetrics, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReportHandler_CorruptFeedIsUnprocessable(t *testing.T) {
	feed := testFeed()
	dup := feed.Records[0]
	dup.Amount = decimal.NewFromInt(2)
	feed.Records = append(feed.Records, dup)

	h := handler.NewReportHandler(testPipeline(), feed, testMetrics, zerolog.Nop())

	body, _ := json.Marshal(dto.RunReportRequest{Wallet: testWallet})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

type fakeCheckpointStore struct {
	cp *domain.Checkpoint
}

func (s *fakeCheckpointStore) Get(ctx context.Context, wallet string) (*domain.Checkpoint, error) {
	if s.cp == nil || s.cp.Wallet != wallet {
		return nil, domain.ErrCheckpointNotFound
	}
	return s.cp, nil
}

func (s *fakeCheckpointStore) Delete(ctx context.Context, wallet string) error {
	s.cp = nil
	return nil
}

func checkpointRequest(method, wallet string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/checkpoints/"+wallet, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("wallet", wallet)

	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCheckpointHandler_Get(t *testing.T) {
	store := &fakeCheckpointStore{cp: &domain.Checkpoint{
		Wallet:      testWallet,
		RunID:       "run-1",
		LastOrdinal: domain.Ordinal{Block: 42, Log: 7},
		OpenLots:    map[string][]domain.Lot{"ETH": {{ID: "l1"}, {ID: "l2"}}},
		UpdatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}}

	h := handler.NewCheckpointHandler(store)
	rec := httptest.NewRecorder()

	h.Get(rec, checkpointRequest(http.MethodGet, testWallet))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp dto.CheckpointResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.LastBlock != 42 || resp.LastLog != 7 {
		t.Errorf("last ordinal = %d:%d, want 42:7", resp.LastBlock, resp.LastLog)
	}
	if resp.OpenLots != 2 {
		t.Errorf("open lots = %d, want 2", resp.OpenLots)
	}
}

func TestCheckpointHandler_GetNotFound(t *testing.T) {
	h := handler.NewCheckpointHandler(&fakeCheckpointStore{})
	rec := httptest.NewRecorder()

	h.Get(rec, checkpointRequest(http.MethodGet, testWallet))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckpointHandler_Delete(t *testing.T) {
	store := &fakeCheckpointStore{cp: &domain.Checkpoint{Wallet: testWallet}}

	h := handler.NewCheckpointHandler(store)
	rec := httptest.NewRecorder()

	h.Delete(rec, checkpointRequest(http.MethodDelete, testWallet))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.cp != nil {
		t.Error("checkpoint should have been deleted")
	}
}
