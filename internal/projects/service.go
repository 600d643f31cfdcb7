package projects

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/chain"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/geospatial"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/workflows"
)

// ManagerDirectory resolves project managers for display.
type ManagerDirectory interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
}

type Service struct {
	store        kvstore.Store
	chain        chain.Client
	managers     ManagerDirectory
	publisher    notifications.Publisher
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(store kvstore.Store, chainClient chain.Client, managers ManagerDirectory, publisher notifications.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		chain:        chainClient,
		managers:     managers,
		publisher:    publisher,
		stateMachine: workflows.NewProjectStateMachine(),
		logger:       logger,
		now:          time.Now,
	}
}

func validateCreate(req *CreateProjectRequest) error {
	required := []struct {
		field string
		empty bool
	}{
		{"name", strings.TrimSpace(req.Name) == ""},
		{"description", strings.TrimSpace(req.Description) == ""},
		{"location", strings.TrimSpace(req.Location) == ""},
		{"ecosystemType", req.EcosystemType == ""},
		{"area", req.Area == 0},
	}
	for _, r := range required {
		if r.empty {
			return apperrors.Validation("Missing required field: " + r.field)
		}
	}
	if req.Area <= 0 {
		return apperrors.Validation("Project area must be greater than 0")
	}
	if !validEcosystem(req.EcosystemType) {
		return apperrors.Validation("Invalid ecosystem type")
	}
	return nil
}

// CreateProject registers a project owned by the calling manager.
func (s *Service) CreateProject(ctx context.Context, manager *auth.Identity, req *CreateProjectRequest) (*Project, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	project := &Project{
		ID:                    KeyPrefix + uuid.NewString(),
		Name:                  strings.TrimSpace(req.Name),
		Description:           req.Description,
		Location:              req.Location,
		EcosystemType:         req.EcosystemType,
		Area:                  req.Area,
		CommunityPartners:     req.CommunityPartners,
		ExpectedCarbonCapture: req.ExpectedCarbonCapture,
		ManagerID:             manager.UserID,
		ManagerName:           manager.Name,
		ManagerEmail:          manager.Email,
		Status:                workflows.ProjectRegistered,
		CreatedAt:             s.now().UTC(),
	}
	if project.ManagerName == "" {
		project.ManagerName = unknownManagerName
	}
	if project.ManagerEmail == "" {
		project.ManagerEmail = unknownManagerEmail
	}

	if raw := strings.TrimSpace(req.Coordinates); raw != "" {
		geom, err := geospatial.ParseCoordinates(raw)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindValidation, "Invalid coordinates", err)
		}
		project.Coordinates = raw
		c := geospatial.Centroid(geom)
		project.Centroid = []float64{c.Lon(), c.Lat()}
		if area := geospatial.AreaHectares(geom); area > 0 {
			project.MappedArea = &area
		}
	}

	if tx, err := s.chain.Submit(ctx, chain.KindProjectRegistration, project.ID); err != nil {
		s.logger.Warn("Project registration not anchored on chain", zap.String("project_id", project.ID), zap.Error(err))
	} else {
		project.OnChainTxHash = tx.Hash
	}

	if err := Save(ctx, s.store, project); err != nil {
		return nil, apperrors.Upstream("Failed to create project", err)
	}

	s.logger.Info("Project registered",
		zap.String("project_id", project.ID),
		zap.String("manager_id", project.ManagerID),
		zap.String("ecosystem", project.EcosystemType),
	)
	s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventProjectRegistered, map[string]any{
		"projectId": project.ID,
		"name":      project.Name,
	}).ForRoles(string(auth.RoleNCCRVerifier)))
	return project, nil
}

// ManagerProjects lists the projects owned by managerID.
func (s *Service) ManagerProjects(ctx context.Context, managerID string) ([]Project, error) {
	all, err := List(ctx, s.store)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load projects", err)
	}
	out := make([]Project, 0)
	for _, p := range all {
		if p.ManagerID == managerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// AllProjects lists every project with the manager's current name and email.
func (s *Service) AllProjects(ctx context.Context) ([]Project, error) {
	all, err := List(ctx, s.store)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load projects", err)
	}

	cache := make(map[string]*auth.User)
	for i := range all {
		p := &all[i]
		manager, seen := cache[p.ManagerID]
		if !seen {
			manager, err = s.managers.GetUser(ctx, p.ManagerID)
			if err != nil {
				s.logger.Debug("Manager lookup failed", zap.String("manager_id", p.ManagerID), zap.Error(err))
				manager = nil
			}
			cache[p.ManagerID] = manager
		}

		p.ManagerName, p.ManagerEmail = unknownManagerName, unknownManagerEmail
		if manager != nil {
			if manager.Name != "" {
				p.ManagerName = manager.Name
			}
			if manager.Email != "" {
				p.ManagerEmail = manager.Email
			}
		}
	}
	return all, nil
}

// DeleteProject removes a project that its manager registered and that has
// not entered verification.
func (s *Service) DeleteProject(ctx context.Context, projectID, managerID string) error {
	return s.store.Transact(ctx, func(tx kvstore.Tx) error {
		project, err := Load(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if project.ManagerID != managerID {
			return apperrors.Forbidden("Access denied: You can only delete your own projects")
		}
		if project.Status != workflows.ProjectRegistered {
			return apperrors.Conflict("Cannot delete project: Only unverified projects can be deleted")
		}
		if err := tx.Delete(ctx, projectID); err != nil {
			return err
		}
		s.logger.Info("Project deleted", zap.String("project_id", projectID), zap.String("manager_id", managerID))
		return nil
	})
}
