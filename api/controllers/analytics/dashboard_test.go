package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/analytics"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

type stubDashboardService struct {
	viewer sales.Viewer
	result *analytics.Dashboard
}

func (s *stubDashboardService) Dashboard(ctx context.Context, viewer sales.Viewer) (*analytics.Dashboard, error) {
	s.viewer = viewer
	return s.result, nil
}

func TestDashboardPassesViewer(t *testing.T) {
	userID := uuid.New()
	svc := &stubDashboardService{result: &analytics.Dashboard{
		TodaySummary: analytics.TodaySummary{TotalSales: decimal.RequireFromString("12.50"), TransactionCount: 2},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/dashboard", nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleCashier))
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	Dashboard(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.viewer.UserID != userID || svc.viewer.Role != enums.UserRoleCashier {
		t.Fatalf("unexpected viewer %+v", svc.viewer)
	}

	var envelope struct {
		Data analytics.Dashboard `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.TodaySummary.TransactionCount != 2 {
		t.Fatalf("unexpected dashboard %+v", envelope.Data)
	}
}

func TestDashboardRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/dashboard", nil)
	rec := httptest.NewRecorder()
	Dashboard(&stubDashboardService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
