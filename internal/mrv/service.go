package mrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/chain"
	"samudra-ledger/registry-backend/internal/credits"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/storage"
	"samudra-ledger/registry-backend/pkg/workflows"
)

const minDetailLength = 50

// FileUpload is one incoming evidence file.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type Service struct {
	store         kvstore.Store
	files         storage.FileStore
	estimator     Estimator
	chain         chain.Client
	publisher     notifications.Publisher
	presignTTL    time.Duration
	mrvStates     *workflows.StateMachine
	projectStates *workflows.StateMachine
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(
	store kvstore.Store,
	files storage.FileStore,
	estimator Estimator,
	chainClient chain.Client,
	publisher notifications.Publisher,
	presignTTL time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:         store,
		files:         files,
		estimator:     estimator,
		chain:         chainClient,
		publisher:     publisher,
		presignTTL:    presignTTL,
		mrvStates:     workflows.NewMRVStateMachine(),
		projectStates: workflows.NewProjectStateMachine(),
		logger:        logger,
		now:           time.Now,
	}
}

func load(ctx context.Context, g kvstore.Getter, id string) (*MRVData, error) {
	if !strings.HasPrefix(id, KeyPrefix) {
		return nil, apperrors.NotFound("MRV report not found")
	}
	m, err := kvstore.GetJSON[MRVData](ctx, g, id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("MRV report not found")
	}
	return m, err
}

// UploadFiles stores evidence for one of the manager's projects. The first
// failure aborts the batch; files already stored are left in place.
func (s *Service) UploadFiles(ctx context.Context, managerID, projectID string, uploads []FileUpload) ([]UploadedFile, error) {
	if projectID == "" {
		return nil, apperrors.Validation("Project ID is required")
	}
	project, err := projects.Load(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if project.ManagerID != managerID {
		return nil, apperrors.Forbidden("Access denied: You can only upload files for your own projects")
	}

	out := make([]UploadedFile, 0, len(uploads))
	for _, u := range uploads {
		now := s.now().UTC()
		key := objectKey(projectID, now.UnixMilli(), u.Name)

		if err := s.put(ctx, key, u); err != nil {
			return nil, apperrors.Upstream(fmt.Sprintf("Failed to upload %s: %v", u.Name, err), err)
		}

		link, err := s.files.PresignedURL(ctx, key, s.presignTTL)
		if err != nil {
			s.logger.Warn("Failed to presign upload", zap.String("path", key), zap.Error(err))
		}

		out = append(out, UploadedFile{
			Name:         u.Name,
			OriginalName: u.Name,
			Size:         u.Size,
			Type:         u.ContentType,
			Category:     Categorize(u.Name, u.ContentType),
			Path:         key,
			URL:          link,
			UploadedAt:   now,
		})
	}

	s.logger.Info("MRV evidence uploaded", zap.String("project_id", projectID), zap.Int("files", len(out)))
	return out, nil
}

func (s *Service) put(ctx context.Context, key string, u FileUpload) error {
	body, err := u.Open()
	if err != nil {
		return err
	}
	defer body.Close()
	return s.files.Upload(ctx, key, u.ContentType, body)
}

func validateSubmission(req *CreateMRVRequest) error {
	if req.ProjectID == "" {
		return apperrors.Validation("Project ID is required")
	}
	if req.RawData.SatelliteData == "" || req.RawData.CommunityReports == "" {
		return apperrors.Validation("Satellite data and community reports are required")
	}
	if utf8.RuneCountInString(req.RawData.SatelliteData) < minDetailLength ||
		utf8.RuneCountInString(req.RawData.CommunityReports) < minDetailLength {
		return apperrors.Validation("MRV data must contain sufficient detail (minimum 50 characters each)")
	}
	return nil
}

// SubmitMRV records a submission for a registered project owned by managerID
// and moves the project to mrv_submitted.
func (s *Service) SubmitMRV(ctx context.Context, managerID string, req *CreateMRVRequest) (*MRVData, error) {
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	files := req.Files
	if files == nil {
		files = []UploadedFile{}
	}
	m := &MRVData{
		ID:           KeyPrefix + uuid.NewString(),
		ProjectID:    req.ProjectID,
		ManagerID:    managerID,
		RawData:      req.RawData,
		Files:        files,
		Status:       workflows.MRVPendingProcessing,
		SubmittedAt:  s.now().UTC(),
		QualityScore: QualityScore(req.RawData, files),
	}

	results, err := s.estimator.Estimate(ctx, m)
	if err != nil {
		return nil, apperrors.Upstream("Failed to process MRV data", err)
	}
	m.MLResults = results

	err = s.store.Transact(ctx, func(tx kvstore.Tx) error {
		project, err := projects.Load(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}
		if project.ManagerID != managerID {
			return apperrors.Forbidden("Access denied: You can only submit MRV data for your own projects")
		}
		if !s.projectStates.CanTransition(project.Status, workflows.ProjectMRVSubmitted) {
			return apperrors.Conflict("MRV data can only be submitted for registered projects")
		}
		project.Status = workflows.ProjectMRVSubmitted
		if err := projects.Save(ctx, tx, project); err != nil {
			return err
		}
		return kvstore.SetJSON(ctx, tx, m.ID, m)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("MRV data submitted",
		zap.String("mrv_id", m.ID),
		zap.String("project_id", m.ProjectID),
		zap.Int("quality_score", m.QualityScore),
		zap.Int("carbon_estimate", m.MLResults.CarbonEstimate),
	)
	s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventMRVSubmitted, map[string]any{
		"mrvId":     m.ID,
		"projectId": m.ProjectID,
	}).ForRoles(string(auth.RoleNCCRVerifier)))
	return m, nil
}

// PendingMRV lists submissions awaiting a verifier decision, oldest first.
func (s *Service) PendingMRV(ctx context.Context) ([]MRVData, error) {
	all, err := kvstore.ListJSON[MRVData](ctx, s.store, KeyPrefix)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load MRV data", err)
	}
	out := make([]MRVData, 0)
	for _, m := range all {
		if workflows.IsPendingMRV(m.Status) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// Decide records a verifier's verdict. Approval issues exactly one credit for
// the estimated amount and adds it to the issued counter in the same
// transaction; anchoring the issuance on chain is best-effort.
func (s *Service) Decide(ctx context.Context, verifierID, mrvID string, approved bool, notes string) (*Decision, error) {
	existing, err := load(ctx, s.store, mrvID)
	if err != nil {
		return nil, err
	}
	if !workflows.IsPendingMRV(existing.Status) {
		return nil, apperrors.Conflict("MRV report has already been verified")
	}

	mrvTarget, projectTarget := workflows.MRVRejected, workflows.ProjectRejected
	var creditID, txHash string
	if approved {
		mrvTarget, projectTarget = workflows.MRVApproved, workflows.ProjectApproved
		creditID = credits.KeyPrefix + uuid.NewString()
		if tx, err := s.chain.Submit(ctx, chain.KindCreditIssuance, creditID); err != nil {
			s.logger.Warn("Credit issuance not anchored on chain", zap.String("mrv_id", mrvID), zap.Error(err))
		} else {
			txHash = tx.Hash
		}
	}

	var decision *Decision
	err = s.store.Transact(ctx, func(tx kvstore.Tx) error {
		decision = nil
		m, err := load(ctx, tx, mrvID)
		if err != nil {
			return err
		}
		if !s.mrvStates.CanTransition(m.Status, mrvTarget) {
			return apperrors.Conflict("MRV report has already been verified")
		}
		project, err := projects.Load(ctx, tx, m.ProjectID)
		if err != nil {
			return err
		}
		if !s.projectStates.CanTransition(project.Status, projectTarget) {
			return apperrors.Conflict("Project is not awaiting verification")
		}

		now := s.now().UTC()
		m.Status = mrvTarget
		m.VerifiedBy = verifierID
		m.VerifiedAt = &now
		m.VerificationNotes = notes
		project.Status = projectTarget
		decision = &Decision{MRV: m}

		if approved {
			if m.MLResults == nil {
				return apperrors.Conflict("MRV report has no measurement to issue credits from")
			}
			credit := &credits.CarbonCredit{
				ID:            creditID,
				ProjectID:     m.ProjectID,
				Amount:        float64(m.MLResults.CarbonEstimate),
				HealthScore:   m.MLResults.BiomassHealthScore,
				EvidenceCID:   m.MLResults.EvidenceCID,
				VerifiedAt:    now,
				MRVID:         m.ID,
				OnChainTxHash: txHash,
			}
			m.OnChainTxHash = txHash
			m.CreditID = credit.ID
			if _, err := kvstore.Increment(ctx, tx, credits.CounterIssued, credit.Amount); err != nil {
				return err
			}
			if err := kvstore.SetJSON(ctx, tx, credit.ID, credit); err != nil {
				return err
			}
			decision.Credit = credit
		}

		if err := projects.Save(ctx, tx, project); err != nil {
			return err
		}
		return kvstore.SetJSON(ctx, tx, m.ID, m)
	})
	if err != nil {
		return nil, err
	}

	m := decision.MRV
	s.logger.Info("MRV decision recorded",
		zap.String("mrv_id", m.ID),
		zap.String("status", m.Status),
		zap.String("verifier_id", verifierID),
	)
	s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventMRVDecided, map[string]any{
		"mrvId":     m.ID,
		"projectId": m.ProjectID,
		"status":    m.Status,
	}).ForUsers(m.ManagerID).ForRoles(string(auth.RoleNCCRVerifier)))
	if c := decision.Credit; c != nil {
		s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventCreditIssued, map[string]any{
			"creditId":  c.ID,
			"projectId": c.ProjectID,
			"amount":    c.Amount,
		}))
	}
	return decision, nil
}
