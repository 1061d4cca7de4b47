package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"blog/internal/app"
	"blog/internal/config"
	"blog/internal/storage/migrations"
	"blog/internal/storage/mongodb"
)

const apiPrefix = "/api/v1"

type Suite struct {
	*testing.T
	Cfg     *config.Config
	Storage *mongodb.Storage
	Client  *http.Client
	BaseURL string
}

// New starts the whole API in-process against the MongoDB of
// config/test.yaml. Every suite gets its own cookie jar.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	t.Parallel()

	cfg := config.LoadConfig("../config/test.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	if _, err := migrations.Up(cfg.Mongo.URI, cfg.Mongo.Database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		t.Fatalf("failed to connect to mongodb: %v", err)
	}

	application := app.New(slog.New(slog.DiscardHandler), cfg)
	server := httptest.NewServer(application.Handler)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	t.Cleanup(func() {
		t.Helper()
		cancel()
		server.Close()
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		application.Stop(cleanupCtx)
		_ = storage.Close(cleanupCtx)
	})

	return ctx, &Suite{
		T:       t,
		Cfg:     cfg,
		Storage: storage,
		Client:  &http.Client{Jar: jar, Timeout: 10 * time.Second},
		BaseURL: server.URL,
	}
}

// Do sends a JSON request to the API. token, when set, is sent as the bearer
// access token. The response body is read and closed.
func (s *Suite) Do(ctx context.Context, method, path string, body any, token string) (*http.Response, []byte) {
	s.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.Fatalf("failed to encode body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+apiPrefix+path, r)
	if err != nil {
		s.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		s.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.Fatalf("failed to read body: %v", err)
	}

	return resp, raw
}

// Decode unmarshals raw into a new T.
func Decode[T any](s *Suite, raw []byte) T {
	s.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.Fatalf("failed to decode %q: %v", raw, err)
	}
	return v
}
