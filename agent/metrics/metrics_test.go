package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTurn(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(turnsTotal.WithLabelValues("finish"))
	RecordTurn("finish", 10*time.Millisecond)
	if got := testutil.ToFloat64(turnsTotal.WithLabelValues("finish")); got != before+1 {
		t.Fatalf("turns_total = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	Register()
	Register()
	RecordToolCall("card", "fetch_cards", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "chative_tool_calls_total") {
		t.Fatal("tool call counter not exposed")
	}
}
