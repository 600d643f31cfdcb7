package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/chain"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/workflows"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetUser(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

type failingChain struct{}

func (failingChain) Submit(context.Context, chain.Kind, string) (*chain.Transaction, error) {
	return nil, errors.New("node unavailable")
}

func (failingChain) Get(context.Context, string) (*chain.Transaction, error) {
	return nil, errors.New("node unavailable")
}

var manager = &auth.Identity{UserID: "user_pm", Email: "pm@example.org", Name: "Asha", Role: auth.RoleProjectManager}

func validRequest() *CreateProjectRequest {
	return &CreateProjectRequest{
		Name:          "Mangrove Restoration Initiative",
		Description:   "Community-led restoration of degraded mangroves.",
		Location:      "Sundarbans, West Bengal",
		EcosystemType: EcosystemMangrove,
		Area:          250,
		Coordinates:   "21.9497° N, 89.1833° E",
	}
}

func newTestService(t *testing.T, client chain.Client) (*Service, kvstore.Store, *MockDirectory) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	if client == nil {
		client = chain.NewSimulatedLedger(store, "testnet", 0, nil, zap.NewNop())
	}
	dir := new(MockDirectory)
	return NewService(store, client, dir, notifications.NopPublisher{}, zap.NewNop()), store, dir
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, nil)

	p, err := svc.CreateProject(ctx, manager, validRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, KeyPrefix))
	assert.Equal(t, workflows.ProjectRegistered, p.Status)
	assert.Equal(t, "Asha", p.ManagerName)
	assert.Equal(t, "pm@example.org", p.ManagerEmail)
	assert.True(t, strings.HasPrefix(p.OnChainTxHash, "0x"))
	require.Len(t, p.Centroid, 2)
	assert.InDelta(t, 89.1833, p.Centroid[0], 1e-9)
	assert.InDelta(t, 21.9497, p.Centroid[1], 1e-9)
	assert.Nil(t, p.MappedArea)

	stored, err := Load(ctx, store, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, stored.Name)
}

func TestCreateProject_PolygonBoundary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	req := validRequest()
	req.Coordinates = `{"type":"Polygon","coordinates":[[[88.0,21.0],[88.01,21.0],[88.01,21.01],[88.0,21.01],[88.0,21.0]]]}`
	p, err := svc.CreateProject(ctx, manager, req)
	require.NoError(t, err)
	require.NotNil(t, p.MappedArea)
	// roughly 1.04km x 1.11km
	assert.InDelta(t, 115, *p.MappedArea, 5)
}

func TestCreateProject_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	cases := []struct {
		name   string
		mutate func(r *CreateProjectRequest)
		msg    string
	}{
		{"missing name", func(r *CreateProjectRequest) { r.Name = "" }, "Missing required field: name"},
		{"missing location", func(r *CreateProjectRequest) { r.Location = " " }, "Missing required field: location"},
		{"missing area", func(r *CreateProjectRequest) { r.Area = 0 }, "Missing required field: area"},
		{"negative area", func(r *CreateProjectRequest) { r.Area = -3 }, "Project area must be greater than 0"},
		{"bad ecosystem", func(r *CreateProjectRequest) { r.EcosystemType = "forest" }, "Invalid ecosystem type"},
		{"bad coordinates", func(r *CreateProjectRequest) { r.Coordinates = "somewhere" }, "Invalid coordinates"},
		{"out of range", func(r *CreateProjectRequest) { r.Coordinates = "95, 10" }, "Invalid coordinates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			_, err := svc.CreateProject(ctx, manager, req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
			assert.Equal(t, tc.msg, apperrors.Message(err))
		})
	}
}

func TestCreateProject_ChainFailureIsNotFatal(t *testing.T) {
	svc, _, _ := newTestService(t, failingChain{})
	p, err := svc.CreateProject(context.Background(), manager, validRequest())
	require.NoError(t, err)
	assert.Empty(t, p.OnChainTxHash)
}

func TestAllProjects_EnrichesManagers(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newTestService(t, nil)

	_, err := svc.CreateProject(ctx, manager, validRequest())
	require.NoError(t, err)
	ghost := &auth.Identity{UserID: "user_gone", Role: auth.RoleProjectManager}
	_, err = svc.CreateProject(ctx, ghost, validRequest())
	require.NoError(t, err)

	dir.On("GetUser", ctx, "user_pm").Return(&auth.User{ID: "user_pm", Name: "Asha R.", Email: "asha@example.org"}, nil)
	dir.On("GetUser", ctx, "user_gone").Return(nil, auth.ErrUserNotFound)

	all, err := svc.AllProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	byManager := map[string]Project{}
	for _, p := range all {
		byManager[p.ManagerID] = p
	}
	assert.Equal(t, "Asha R.", byManager["user_pm"].ManagerName)
	assert.Equal(t, "asha@example.org", byManager["user_pm"].ManagerEmail)
	assert.Equal(t, "Unknown Manager", byManager["user_gone"].ManagerName)
	assert.Equal(t, "N/A", byManager["user_gone"].ManagerEmail)

	mine, err := svc.ManagerProjects(ctx, "user_pm")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	dir.AssertNumberOfCalls(t, "GetUser", 2)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, nil)

	p, err := svc.CreateProject(ctx, manager, validRequest())
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, p.ID, "user_other")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
	assert.Equal(t, "Access denied: You can only delete your own projects", apperrors.Message(err))

	err = svc.DeleteProject(ctx, "project_missing", "user_pm")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	submitted, err := svc.CreateProject(ctx, manager, validRequest())
	require.NoError(t, err)
	submitted.Status = workflows.ProjectMRVSubmitted
	require.NoError(t, Save(ctx, store, submitted))
	err = svc.DeleteProject(ctx, submitted.ID, "user_pm")
	assert.True(t, apperrors.Is(err, apperrors.KindStateConflict))
	assert.Equal(t, "Cannot delete project: Only unverified projects can be deleted", apperrors.Message(err))

	require.NoError(t, svc.DeleteProject(ctx, p.ID, "user_pm"))
	_, err = Load(ctx, store, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t, nil)

	identity := manager
	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetIdentity(c, identity)
		c.Next()
	})
	NewHandler(svc, zap.NewNop()).RegisterRoutes(router.Group(""))

	body, _ := json.Marshal(validRequest())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	var created CreateProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, created.ProjectID, created.Project.ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/all", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Access denied. nccr verifier role required."}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/projects/"+created.ProjectID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Project deleted successfully"}`, w.Body.String())

	identity = &auth.Identity{UserID: "user_b", Role: auth.RoleBuyer}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/manager", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
