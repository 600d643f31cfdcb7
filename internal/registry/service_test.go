package registry

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/credits"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

func seed(t *testing.T) *kvstore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, projects.Save(ctx, store, &projects.Project{
		ID: "project_1", Name: "Pichavaram Mangroves", EcosystemType: "mangrove",
		Location: "Tamil Nadu", Area: 420, Status: "approved", ManagerName: "Asha", CreatedAt: created,
	}))
	require.NoError(t, projects.Save(ctx, store, &projects.Project{
		ID: "project_2", Name: "Chilika Seagrass", EcosystemType: "seagrass",
		Location: "Odisha", Area: 80, Status: "registered", CreatedAt: created,
	}))
	retiredAt := created.Add(48 * time.Hour)
	require.NoError(t, kvstore.SetJSON(ctx, store, "credit_a", &credits.CarbonCredit{
		ID: "credit_a", ProjectID: "project_1", Amount: 120, VerifiedAt: created, MRVID: "mrv_1",
	}))
	require.NoError(t, kvstore.SetJSON(ctx, store, "credit_b", &credits.CarbonCredit{
		ID: "credit_b", ProjectID: "project_1", Amount: 75.5, OwnerID: "user_b", IsRetired: true,
		RetiredAt: &retiredAt, RetirementReason: "FY25 offset", VerifiedAt: created, MRVID: "mrv_2",
	}))
	return store
}

func TestSnapshot(t *testing.T) {
	svc := NewService(seed(t), zap.NewNop())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Projects.Rows, 2)
	require.Len(t, snap.Credits.Rows, 2)

	assert.Equal(t, "Pichavaram Mangroves", snap.Credits.Rows[0][2])
	assert.Equal(t, CreditAvailable, snap.Credits.Rows[0][4])
	assert.Equal(t, CreditRetired, snap.Credits.Rows[1][4])
	assert.Equal(t, 195.5, snap.Projects.Rows[0][8])
	assert.Equal(t, float64(0), snap.Projects.Rows[1][8])
}

func TestExport_CSV(t *testing.T) {
	svc := NewService(seed(t), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC) }

	data, filename, err := svc.Export(context.Background(), FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, "registry-credits-20250402-100000.csv", filename)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, creditColumns, records[0])
	assert.Equal(t, []string{
		"credit_b", "project_1", "Pichavaram Mangroves", "75.5", "retired", "user_b",
		"2025-03-01T09:30:00Z", "2025-03-03T09:30:00Z", "FY25 offset", "", "mrv_2", "",
	}, records[2])

	data, _, err = svc.Export(context.Background(), FormatCSV, "projects")
	require.NoError(t, err)
	records, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Chilika Seagrass", records[2][1])

	_, _, err = svc.Export(context.Background(), FormatCSV, "payouts")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestExport_XLSX(t *testing.T) {
	svc := NewService(seed(t), zap.NewNop())

	data, filename, err := svc.Export(context.Background(), FormatXLSX, "")
	require.NoError(t, err)
	assert.Contains(t, filename, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Projects", "Credits"}, f.GetSheetList())

	name, err := f.GetCellValue("Credits", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Pichavaram Mangroves", name)

	header, err := f.GetCellValue("Projects", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Project ID", header)
}

func TestHandler_Export(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetIdentity(c, &auth.Identity{UserID: "user_v", Role: auth.RoleNCCRVerifier})
		c.Next()
	})
	NewHandler(NewService(seed(t), zap.NewNop()), zap.NewNop()).RegisterRoutes(router.Group(""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registry/export?format=xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, FormatXLSX.ContentType(), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registry/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ExportRequiresVerifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetIdentity(c, &auth.Identity{UserID: "user_b", Role: auth.RoleBuyer})
		c.Next()
	})
	NewHandler(NewService(seed(t), zap.NewNop()), zap.NewNop()).RegisterRoutes(router.Group(""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registry/export", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
