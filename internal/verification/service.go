package verification

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// Service scores projects and keeps the latest result per project.
type Service struct {
	store  kvstore.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store kvstore.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// VerifyProject scores data (or the stored project when data is nil) and
// overwrites any earlier result for projectID.
func (s *Service) VerifyProject(ctx context.Context, projectID string, data *ProjectAttributes, verifierID string) (*MLVerification, error) {
	if projectID == "" {
		return nil, apperrors.Validation("Project ID is required")
	}
	if data == nil {
		if !projects.IsProjectKey(projectID) {
			return nil, apperrors.NotFound("Project not found")
		}
		stored, err := kvstore.GetJSON[ProjectAttributes](ctx, s.store, projectID)
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperrors.NotFound("Project not found")
		}
		if err != nil {
			return nil, apperrors.Upstream("Failed to load project", err)
		}
		data = stored
	}

	result := Score(*data)
	v := &MLVerification{
		ProjectID:      projectID,
		MLScore:        result.Score,
		Confidence:     result.Confidence,
		RiskFactors:    result.RiskFactors,
		Recommendation: result.Recommendation,
		Timestamp:      s.now().UTC(),
		VerifierID:     verifierID,
	}
	if err := kvstore.SetJSON(ctx, s.store, verificationKey(projectID), v); err != nil {
		return nil, apperrors.Upstream("Failed to store verification", err)
	}

	s.logger.Info("ML verification completed",
		zap.String("project_id", projectID),
		zap.Float64("score", v.MLScore),
		zap.Int("risk_factors", len(v.RiskFactors)),
	)
	return v, nil
}

// GetVerification returns the stored result for projectID.
func (s *Service) GetVerification(ctx context.Context, projectID string) (*MLVerification, error) {
	v, err := kvstore.GetJSON[MLVerification](ctx, s.store, verificationKey(projectID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("No ML verification found for this project")
	}
	if err != nil {
		return nil, apperrors.Upstream("Failed to load verification", err)
	}
	return v, nil
}
