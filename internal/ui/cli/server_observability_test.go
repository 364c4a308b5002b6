package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	coreapp "bindkey/internal/core/app"
	"bindkey/internal/core/config"
)

func TestObservabilityServer(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ProjectRoot = t.TempDir()
	app, err := coreapp.New(cfg, cfg.Paths.ProjectRoot)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close(context.Background())

	srv := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(app))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status coreapp.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "up" || !strings.HasPrefix(status.Components["index"], "ok") {
		t.Fatalf("unexpected health %+v", status)
	}

	metrics, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer metrics.Body.Close()
	body, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(body), "bindkey_index_types") {
		t.Fatal("expected bindkey metrics to be exported")
	}
}

func TestObservabilityServer_AddressInUse(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ProjectRoot = t.TempDir()
	app, err := coreapp.New(cfg, cfg.Paths.ProjectRoot)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close(context.Background())

	first := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(app))
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer first.Stop(context.Background())

	second := NewObservabilityServer(first.Addr(), coreapp.NewHealthService(app))
	if err := second.Start(context.Background()); err == nil {
		second.Stop(context.Background())
		t.Fatal("expected the second bind to fail")
	}
}
