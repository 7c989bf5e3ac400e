package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveProviderCallCountsOutcomeAndCost(t *testing.T) {
	beforeCalls := testutil.ToFloat64(providerCallsTotal.WithLabelValues("financial", "failed"))
	beforeCost := testutil.ToFloat64(providerCostUSD.WithLabelValues("financial"))

	ObserveProviderCall("financial", "failed", 1.5, 0)
	ObserveProviderCall("financial", "failed", 0, 0.02)

	if got := testutil.ToFloat64(providerCallsTotal.WithLabelValues("financial", "failed")) - beforeCalls; got != 2 {
		t.Fatalf("expected 2 calls, got %v", got)
	}
	if got := testutil.ToFloat64(providerCostUSD.WithLabelValues("financial")) - beforeCost; got < 0.0199 || got > 0.0201 {
		t.Fatalf("expected cost 0.02, got %v", got)
	}
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(4, 2)
	if got := testutil.ToFloat64(queueJobs.WithLabelValues("queued")); got != 4 {
		t.Fatalf("expected queued 4, got %v", got)
	}
	if got := testutil.ToFloat64(queueJobs.WithLabelValues("running")); got != 2 {
		t.Fatalf("expected running 2, got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncAnalysisStarted()
	ObserveAnalysisFinished("completed", -1)

	r := gin.New()
	r.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	for _, name := range []string{"screenplay_analysis_started_total", "screenplay_analysis_finished_total"} {
		if !strings.Contains(resp.Body.String(), name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}
