package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/atlas-edu/permitd/internal/permit"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/permissions/{role}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/permissions/admin", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("/v1/permissions/{role}", "200"))
	if got != 1 {
		t.Fatalf("requests_total = %v, want 1", got)
	}
}

func TestMetricsHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(permit.DecisionDeny, permit.ReasonNoRole)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	want := `permitd_decisions_total{decision="deny",reason="NO_ROLE"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("exposition missing %q, got: %s", want, body)
	}
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.ObserveDecision(permit.DecisionAllow, permit.ReasonAllowed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil metrics handler status = %d", rec.Code)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec = httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatal("nil metrics middleware should pass requests through")
	}
}

type countingSink struct {
	events int
	err    error
}

func (s *countingSink) Enabled() bool { return true }

func (s *countingSink) Emit(context.Context, permit.Event) error {
	s.events++
	return s.err
}

func TestDecisionSinkCountsAndForwards(t *testing.T) {
	m := NewMetrics()
	next := &countingSink{}
	sink := NewDecisionSink(m, next)

	if !sink.Enabled() {
		t.Fatal("decision sink must always be enabled")
	}
	ev := permit.Event{Decision: permit.DecisionAllow, Reason: permit.ReasonAllowed}
	if err := sink.Emit(context.Background(), ev); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if next.events != 1 {
		t.Fatalf("wrapped sink received %d events, want 1", next.events)
	}
	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("allow", "ALLOWED")); got != 1 {
		t.Fatalf("decisions_total = %v, want 1", got)
	}

	next.err = errors.New("sink down")
	if err := sink.Emit(context.Background(), ev); err == nil {
		t.Fatal("wrapped sink error should surface to the caller")
	}
}

func TestDecisionSinkWithoutNext(t *testing.T) {
	m := NewMetrics()
	sink := NewDecisionSink(m, nil)
	if err := sink.Emit(context.Background(), permit.Event{Decision: permit.DecisionDeny, Reason: permit.ReasonNotAllowed}); err != nil {
		t.Fatalf("emit without wrapped sink: %v", err)
	}
	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("deny", "NOT_ALLOWED")); got != 1 {
		t.Fatalf("decisions_total = %v, want 1", got)
	}
}
