package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/config"
)

type client struct {
	t       *testing.T
	handler http.Handler
}

func (c *client) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (c *client) ok(method, path, token string, body any) map[string]any {
	c.t.Helper()
	w, out := c.do(method, path, token, body)
	require.Equal(c.t, http.StatusOK, w.Code, "%s %s: %s", method, path, w.Body.String())
	return out
}

func (c *client) signupAndLogin(email, name, role string) string {
	c.t.Helper()
	c.ok(http.MethodPost, "/signup", "", map[string]string{
		"email": email, "password": "s3cret-pass", "name": name, "role": role,
	})
	out := c.ok(http.MethodPost, "/login", "", map[string]string{"email": email, "password": "s3cret-pass"})
	return out["accessToken"].(string)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Security.JWTSecret = "test-secret"
	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestHealthAndMetrics(t *testing.T) {
	c := &client{t: t, handler: newTestApp(t).Handler()}

	out := c.ok(http.MethodGet, "/health", "", nil)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, out["timestamp"])

	w, _ := c.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "samudra_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := &client{t: t, handler: newTestApp(t).Handler()}

	w, out := c.do(http.MethodGet, "/credits/available", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, out["error"])

	buyer := c.signupAndLogin("buyer@example.org", "Coastal Buyer Ltd", "buyer")
	w, out = c.do(http.MethodGet, "/mrv/pending", buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied. nccr verifier role required.", out["error"])
}

func TestCORSPreflight(t *testing.T) {
	c := &client{t: t, handler: newTestApp(t).Handler()}

	req := httptest.NewRequest(http.MethodOptions, "/credits/available", nil)
	req.Header.Set("Origin", "https://dashboard.example.org")
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// TestRegistryLifecycle drives one project from registration to retirement.
func TestRegistryLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := &client{t: t, handler: app.Handler()}

	manager := c.signupAndLogin("manager@mangroves.in", "Asha Manager", "project_manager")
	verifier := c.signupAndLogin("verifier1@nccr.gov.in", "NCCR Verifier", "nccr_verifier")
	buyer := c.signupAndLogin("buyer@example.org", "Coastal Buyer Ltd", "buyer")

	// register
	out := c.ok(http.MethodPost, "/projects", manager, map[string]any{
		"name":          "Sundarbans Mangrove Restoration",
		"description":   "Community-led mangrove restoration and conservation with MRV monitoring",
		"location":      "Sundarbans, West Bengal",
		"ecosystemType": "mangrove",
		"area":          2000,
		"coordinates":   "21.9497, 89.1833",
	})
	projectID := out["projectId"].(string)
	project := out["project"].(map[string]any)
	assert.Equal(t, "registered", project["status"])
	assert.Equal(t, "Asha Manager", project["managerName"])

	// ML verification is stored per project
	out = c.ok(http.MethodPost, "/ml/verify-project", verifier, map[string]any{
		"projectId": projectID,
		"projectData": map[string]any{
			"name": "Sundarbans Mangrove Restoration", "location": "Sundarbans, West Bengal",
			"ecosystemType": "mangrove", "area": 1250,
		},
	})
	assert.Equal(t, true, out["success"])
	c.ok(http.MethodGet, "/ml/verification/"+projectID, verifier, nil)

	// evidence upload
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("projectId", projectID))
	part, err := mw.CreateFormFile("files", "readings.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("ts,salinity\n1,32.1\n"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/mrv/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+manager)
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded struct {
		Files []map[string]any `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	require.Len(t, uploaded.Files, 1)

	// submit MRV
	out = c.ok(http.MethodPost, "/mrv", manager, map[string]any{
		"projectId": projectID,
		"rawData": map[string]any{
			"satelliteData":    "Sentinel-2 NDVI composite for Q1 shows canopy expansion across planted plots",
			"communityReports": "Village monitoring teams recorded seedling survival above eighty percent",
		},
		"files": uploaded.Files,
	})
	mrvID := out["mrvId"].(string)

	pending := c.ok(http.MethodGet, "/mrv/pending", verifier, nil)["pendingMrv"].([]any)
	require.Len(t, pending, 1)

	// approve, then a second decision conflicts
	out = c.ok(http.MethodPost, "/mrv/"+mrvID+"/approve", verifier, map[string]any{"approved": true, "notes": "Evidence consistent"})
	mrvData := out["mrvData"].(map[string]any)
	assert.Equal(t, "approved", mrvData["status"])
	w, _ = c.do(http.MethodPost, "/mrv/"+mrvID+"/approve", verifier, map[string]any{"approved": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	estimate := mrvData["mlResults"].(map[string]any)["carbon_estimate"].(float64)
	stats := c.ok(http.MethodGet, "/public/stats", "", nil)
	assert.Equal(t, estimate, stats["totalCreditsIssued"])
	assert.Equal(t, float64(1), stats["totalProjects"])

	available := c.ok(http.MethodGet, "/credits/available", buyer, nil)["availableCredits"].([]any)
	require.Len(t, available, 1)
	credit := available[0].(map[string]any)
	creditID := credit["id"].(string)
	assert.Equal(t, estimate, credit["amount"])

	// checkout and purchase
	session := c.ok(http.MethodPost, "/payments/session", buyer, map[string]string{"creditId": creditID})
	assert.Equal(t, "INR", session["currency"])
	c.ok(http.MethodPost, "/payments/verify", buyer, map[string]any{"sessionId": session["sessionId"]})

	w, _ = c.do(http.MethodPost, "/credits/purchase", buyer, map[string]any{
		"creditId":    creditID,
		"paymentData": map[string]any{"paymentId": "pi_forged", "status": "succeeded", "sessionId": session["sessionId"]},
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	out = c.ok(http.MethodPost, "/credits/purchase", buyer, map[string]any{
		"creditId": creditID,
		"amount":   estimate,
		"paymentData": map[string]any{
			"paymentId": session["paymentIntentId"], "status": "succeeded", "sessionId": session["sessionId"],
		},
	})
	assert.Equal(t, creditID, out["creditId"])

	owned := c.ok(http.MethodGet, "/credits/owned", buyer, nil)["ownedCredits"].([]any)
	require.Len(t, owned, 1)
	assert.Empty(t, c.ok(http.MethodGet, "/credits/available", buyer, nil)["availableCredits"])
	payouts := c.ok(http.MethodGet, "/payouts/manager", manager, nil)
	assert.Len(t, payouts["payouts"].([]any), 1)
	assert.Greater(t, payouts["totalPayout"].(float64), float64(0))

	// retire and download the certificate
	out = c.ok(http.MethodPost, "/credits/retire", buyer, map[string]string{"creditId": creditID, "reason": "FY2025 Scope 1 offset"})
	retirement := out["retirement"].(map[string]any)
	retirementID := retirement["id"].(string)
	assert.Equal(t, "FY2025 Scope 1 offset", retirement["reason"])
	assert.Empty(t, c.ok(http.MethodGet, "/credits/owned", buyer, nil)["ownedCredits"])

	w, _ = c.do(http.MethodPost, "/credits/retire", buyer, map[string]string{"creditId": creditID, "reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	stats = c.ok(http.MethodGet, "/public/stats", "", nil)
	assert.Equal(t, estimate, stats["totalCreditsRetired"])

	w, _ = c.do(http.MethodGet, "/credits/retirements/"+retirementID+"/certificate", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	// chain anchoring is visible publicly
	hash := retirement["onChainTxHash"].(string)
	tx := c.ok(http.MethodGet, "/transactions/"+hash, "", nil)["transaction"].(map[string]any)
	assert.Equal(t, "credit_retirement", tx["kind"])
	assert.Equal(t, retirementID, tx["reference"])

	// a non-registered project cannot be deleted
	w, _ = c.do(http.MethodDelete, "/projects/"+projectID, manager, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = c.do(http.MethodGet, "/registry/export?format=csv", verifier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), creditID)
}
