package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	status.Components["index"] = fmt.Sprintf("ok (%d files, %d types)", len(s.app.Table.Files()), s.app.Table.Len())

	switch {
	case s.app.store != nil:
		if _, err := s.app.store.Paths(ctx); err != nil {
			status.Status = "degraded"
			status.Components["index_store"] = "error: " + err.Error()
		} else {
			status.Components["index_store"] = "ok"
		}
	case s.app.Config.DB.Enabled:
		status.Status = "degraded"
		status.Components["index_store"] = "missing but enabled in config"
	}

	s.app.watchMu.Lock()
	watching := s.app.activeWatcher != nil
	s.app.watchMu.Unlock()
	if watching {
		status.Components["watcher"] = "ok"
	}
	return status
}
