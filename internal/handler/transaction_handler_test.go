package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/dispatch"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/orchestrator"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/repository"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/validation"
)

// ---- mock implementations ----

type mockOrchestration struct {
	submitFn func(events.TransactionRequest) (*orchestrator.SubmitResult, error)
	getFn    func(string) (*models.TransactionRecord, error)
}

func (m *mockOrchestration) Submit(ctx context.Context, req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(req)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockOrchestration) GetTransaction(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	if m.getFn != nil {
		return m.getFn(eventID)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuth(clientID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("clientId", clientID)
		c.Next()
	}
}

func newTestRouter(orch Orchestration, clientID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(clientID))
	h := NewTransactionHandler(orch)
	v1 := r.Group("/v1/transactions")
	v1.POST("", h.SubmitTransaction)
	v1.GET("/:eventId", h.GetTransaction)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

func confirmedRecord() *models.TransactionRecord {
	rec := models.NewTransactionRecord(events.TransactionRequest{
		EventID:       "11111111-1111-1111-1111-111111111111",
		Type:          events.TypeDeposit,
		Amount:        decimal.NewFromFloat(50),
		SourceAccount: "01234567",
		ClientID:      "cli-001",
		Timestamp:     time.Now().UTC(),
	}, []models.Leg{{Participant: "service-user", Account: "01234567", Operation: events.OpCredit}})
	rec.State = models.StateConfirmed
	rec.Revision = 3
	return rec
}

func depositBody() map[string]interface{} {
	return map[string]interface{}{
		"eventId":       "11111111-1111-1111-1111-111111111111",
		"type":          "DEPOSIT",
		"amount":        50.0,
		"sourceAccount": "01234567",
	}
}

// ---- tests ----

func TestSubmitTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		submitFn       func(events.TransactionRequest) (*orchestrator.SubmitResult, error)
		expectedStatus int
	}{
		{
			name: "created - deposit resolves",
			body: depositBody(),
			submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
				return &orchestrator.SubmitResult{Record: confirmedRecord()}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "ok - duplicate returns cached record",
			body: depositBody(),
			submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
				return &orchestrator.SubmitResult{Record: confirmedRecord(), Duplicate: true}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "bad request - gate rejection",
			body: depositBody(),
			submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
				return nil, &validation.Error{Field: "amount", Message: "amount must be greater than zero"}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "not found - no participant owns account",
			body: depositBody(),
			submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
				return nil, fmt.Errorf("%w: 99999999", dispatch.ErrUnknownAccount)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]interface{}{"amount": 50.0},
			submitFn:       nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - unknown transaction type",
			body:           map[string]interface{}{"eventId": "11111111-1111-1111-1111-111111111111", "type": "LOAN", "amount": 50.0, "sourceAccount": "01234567"},
			submitFn:       nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error - store failure",
			body: depositBody(),
			submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
				return nil, fmt.Errorf("db down")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockOrchestration{submitFn: tt.submitFn}, "cli-001")
			w := doRequest(router, http.MethodPost, "/v1/transactions", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestSubmitTransactionCarriesClientID(t *testing.T) {
	var captured events.TransactionRequest
	router := newTestRouter(&mockOrchestration{
		submitFn: func(req events.TransactionRequest) (*orchestrator.SubmitResult, error) {
			captured = req
			return &orchestrator.SubmitResult{Record: confirmedRecord()}, nil
		},
	}, "cli-042")

	w := doRequest(router, http.MethodPost, "/v1/transactions", depositBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	if captured.ClientID != "cli-042" {
		t.Errorf("client id must come from the auth context, got %q", captured.ClientID)
	}
	if captured.Type != events.TypeDeposit {
		t.Errorf("expected DEPOSIT got %s", captured.Type)
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		eventID        string
		getFn          func(string) (*models.TransactionRecord, error)
		expectedStatus int
	}{
		{
			name:    "success - fetch terminal record",
			eventID: "11111111-1111-1111-1111-111111111111",
			getFn: func(string) (*models.TransactionRecord, error) {
				return confirmedRecord(), nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "not found - unknown event id",
			eventID: "22222222-2222-2222-2222-222222222222",
			getFn: func(string) (*models.TransactionRecord, error) {
				return nil, repository.ErrNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockOrchestration{getFn: tt.getFn}, "cli-001")
			w := doRequest(router, http.MethodGet, "/v1/transactions/"+tt.eventID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
