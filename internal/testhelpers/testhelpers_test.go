package testhelpers

import (
	"net/http"
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func TestSetupTestDB_MigratesSchema(t *testing.T) {
	db := SetupTestDB(t)

	integration := NewIntegrationBuilder().WithName("stripe").Build()
	if err := db.Create(&integration).Error; err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	rule := NewAlertRuleBuilder().ForIntegration(integration.ID).Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	check := NewCheckBuilder(integration.ID).Failed("timeout").WithResponseTime(5000).Build()
	if err := db.Create(&check).Error; err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	incident := NewIncidentBuilder(integration.ID, rule.ID).Resolved(30).Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}
	if incident.DurationMinutes == nil || *incident.DurationMinutes != 30 {
		t.Errorf("builder did not set duration: %+v", incident)
	}
}

func TestUseGlobalDB_RestoresPrevious(t *testing.T) {
	db := SetupTestDB(t)

	t.Run("inner", func(t *testing.T) {
		UseGlobalDB(t, db)
		if database.GetDB() != db {
			t.Error("expected global handle to point at the test database")
		}
	})

	if database.DB == db {
		t.Error("expected global handle restored after cleanup")
	}
}

func TestHTTPTestContext_RoundTrip(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Probe", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var body struct {
		OK bool `json:"ok"`
	}
	NewHTTPTestContext(t, http.MethodPost, "/anything", nil).
		WithJSONBody(map[string]string{"k": "v"}).
		Execute(handler).
		AssertStatus(http.StatusAccepted).
		AssertHeader("X-Probe", "yes").
		AssertBodyContains("ok").
		DecodeJSON(&body)

	if !body.OK {
		t.Error("expected decoded body")
	}
}
