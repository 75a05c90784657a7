package api_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

func TestSchedulerNextRun(t *testing.T) {
	deps := newTestDeps()
	deps.scheduler.nextRunFunc = func(category domain.Category) (*domain.NextRun, error) {
		return &domain.NextRun{
			Category:     category,
			NextRunTime:  time.Date(2025, 8, 16, 20, 0, 0, 0, time.UTC),
			SecondsUntil: 3600,
			Enabled:      true,
		}, nil
	}
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodGet, "/scheduler/next-run?category=CLK", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["category"] != string(domain.CategoryCLK) {
		t.Errorf("category = %v, want CLK", body["category"])
	}
	if body["seconds_until"] != float64(3600) {
		t.Errorf("seconds_until = %v, want 3600", body["seconds_until"])
	}
	if body["enabled"] != true {
		t.Errorf("enabled = %v, want true", body["enabled"])
	}
}

func TestSchedulerNextRunRequiresCategory(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodGet, "/scheduler/next-run", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSchedulerSettings(t *testing.T) {
	deps := newTestDeps()
	deps.scheduler.settingsFunc = func() ([]*domain.SchedulerSetting, error) {
		return []*domain.SchedulerSetting{
			{Category: domain.CategoryDNK, Timezone: "America/Toronto", Hour: 20, Enabled: true},
			{Category: domain.CategoryCLK, Timezone: "America/Toronto", Hour: 21, Enabled: false},
		}, nil
	}
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodGet, "/scheduler/settings", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decodeBody(t, w); body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestUpdateSchedulerSetting(t *testing.T) {
	deps := newTestDeps()
	var got *domain.SchedulerSetting
	deps.scheduler.updateFunc = func(setting *domain.SchedulerSetting) error {
		got = setting
		return nil
	}
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodPut, "/scheduler/settings", map[string]any{
		"category": "DNK",
		"hour":     20,
		"minute":   30,
		"timezone": "America/Toronto",
		"enabled":  true,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got == nil {
		t.Fatal("UpdateSetting was not called")
	}
	if got.Category != domain.CategoryDNK || got.Hour != 20 || got.Minute != 30 {
		t.Errorf("setting = %+v, want DNK 20:30", got)
	}
	if got.Timezone != "America/Toronto" || !got.Enabled {
		t.Errorf("setting = %+v, want enabled America/Toronto", got)
	}
}

func TestUpdateSchedulerSettingRejectsInvalid(t *testing.T) {
	deps := newTestDeps()
	deps.scheduler.updateFunc = func(*domain.SchedulerSetting) error {
		return fmt.Errorf("%w: hour must be between 0 and 23", domain.ErrInvalidSchedule)
	}
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodPut, "/scheduler/settings", map[string]any{
		"category": "DNK",
		"hour":     26,
		"timezone": "America/Toronto",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestUpdateSchedulerSettingUnknownCategory(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, "")

	w := doJSON(t, router, http.MethodPut, "/scheduler/settings", map[string]any{
		"category": "SHOES",
		"hour":     20,
		"timezone": "America/Toronto",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
