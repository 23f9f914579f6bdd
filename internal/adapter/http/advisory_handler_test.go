package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"microfi-backend/internal/advisory"
	"microfi-backend/pkg/amortize"
)

func setupAdvisoryAPI(t *testing.T, client *advisory.Client) *echo.Echo {
	t.Helper()
	risk := amortize.RiskEngine{PrincipalThreshold: 100, RateCeiling: 15}
	h := NewAdvisoryHandler(client, risk, NewValidator())

	e := echo.New()
	e.POST("/advisory/assess", h.Assess)
	return e
}

const assessBody = `{"principal":500,"rate_pct":10,"duration_months":12,"purpose":"inventory","description":"restock for the dry season"}`

func TestAssessEndpoint(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("Authorization = %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		gotPrompt = req.Prompt
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"manageable exposure, diversify suppliers"}`)
	}))
	defer srv.Close()

	e := setupAdvisoryAPI(t, advisory.NewClient(srv.URL, "test-key"))

	rec := do(t, e, http.MethodPost, "/advisory/assess", assessBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["risk_score"] != "Medium" {
		t.Fatalf("risk_score = %v, want Medium", body["risk_score"])
	}
	if body["assessment"] != "manageable exposure, diversify suppliers" {
		t.Fatalf("assessment = %v", body["assessment"])
	}
	for _, want := range []string{"500", "10.00", "12 months", "inventory", "dry season"} {
		if !strings.Contains(gotPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gotPrompt)
		}
	}
}

func TestAssessEndpointValidation(t *testing.T) {
	e := setupAdvisoryAPI(t, advisory.NewClient("", ""))

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing principal", `{"rate_pct":10,"duration_months":12,"purpose":"x"}`},
		{"negative rate", `{"principal":500,"rate_pct":-1,"duration_months":12,"purpose":"x"}`},
		{"zero months", `{"principal":500,"rate_pct":10,"duration_months":0,"purpose":"x"}`},
		{"missing purpose", `{"principal":500,"rate_pct":10,"duration_months":12}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/advisory/assess", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAssessEndpointUnconfiguredStillScores(t *testing.T) {
	e := setupAdvisoryAPI(t, advisory.NewClient("", ""))

	rec := do(t, e, http.MethodPost, "/advisory/assess", assessBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["risk_score"] != "Medium" {
		t.Fatalf("risk_score = %v, want Medium", body["risk_score"])
	}
	if body["assessment"] != "" {
		t.Fatalf("assessment = %v, want empty when unconfigured", body["assessment"])
	}
}

func TestAssessEndpointUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := setupAdvisoryAPI(t, advisory.NewClient(srv.URL, "test-key"))

	rec := do(t, e, http.MethodPost, "/advisory/assess", assessBody)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "ADVISORY_UNAVAILABLE" {
		t.Fatalf("code = %v", body["code"])
	}
}
