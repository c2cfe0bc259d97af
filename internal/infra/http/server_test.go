package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestHealth(t *testing.T) {
	srv := NewServer(zerolog.Nop(), prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"status":"running"}` {
		t.Fatalf("body = %s", body)
	}

	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("HEAD: status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(zerolog.Nop(), reg)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_total 1") {
		t.Fatalf("метрика не найдена: %s", body)
	}
}

func TestWebhookSecretMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := WebhookSecretMiddleware("s3cret")(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/webhook", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("без заголовка ожидали 401, получили %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	req.Header.Set(SecretTokenHeader, "s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("с верным секретом ожидали 200, получили %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	WebhookSecretMiddleware("")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("пустой секрет отключает проверку, получили %d", rec.Code)
	}
}
