package registry

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/credits"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

type Service struct {
	store  kvstore.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store kvstore.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

func creditState(c *credits.CarbonCredit) string {
	switch {
	case c.IsRetired:
		return CreditRetired
	case c.OwnerID != "":
		return CreditOwned
	default:
		return CreditAvailable
	}
}

// Snapshot reads every project and credit and lays them out as tables.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	projectList, err := projects.List(ctx, s.store)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load projects", err)
	}
	creditList, err := kvstore.ListJSON[credits.CarbonCredit](ctx, s.store, credits.KeyPrefix)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load credits", err)
	}

	names := make(map[string]string, len(projectList))
	issued := make(map[string]float64, len(projectList))
	for _, p := range projectList {
		names[p.ID] = p.Name
	}
	creditRows := make([][]any, 0, len(creditList))
	for i := range creditList {
		c := &creditList[i]
		issued[c.ProjectID] += c.Amount
		creditRows = append(creditRows, []any{
			c.ID, c.ProjectID, names[c.ProjectID], c.Amount, creditState(c),
			c.OwnerID, c.VerifiedAt, c.RetiredAt, c.RetirementReason, c.EvidenceCID,
			c.MRVID, c.OnChainTxHash,
		})
	}

	projectRows := make([][]any, 0, len(projectList))
	for _, p := range projectList {
		projectRows = append(projectRows, []any{
			p.ID, p.Name, p.EcosystemType, p.Location, p.Area, p.Status,
			p.ManagerName, p.CreatedAt, issued[p.ID], p.OnChainTxHash,
		})
	}

	return &Snapshot{
		GeneratedAt: s.now().UTC(),
		Projects:    Table{Name: "Projects", Columns: projectColumns, Rows: projectRows},
		Credits:     Table{Name: "Credits", Columns: creditColumns, Rows: creditRows},
	}, nil
}

// Export renders the registry in format. CSV carries a single table
// (credits unless dataset is "projects"); XLSX carries both as sheets.
func (s *Service) Export(ctx context.Context, format Format, dataset string) ([]byte, string, error) {
	if dataset != "" && dataset != "credits" && dataset != "projects" {
		return nil, "", apperrors.Validation("Invalid dataset: must be credits or projects")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	stamp := snap.GeneratedAt.Format("20060102-150405")
	var filename string
	switch format {
	case FormatXLSX:
		err = WriteXLSX(&buf, snap.Projects, snap.Credits)
		filename = fmt.Sprintf("registry-%s.xlsx", stamp)
	default:
		table := snap.Credits
		if dataset == "projects" {
			table = snap.Projects
		}
		err = WriteCSV(&buf, table)
		filename = fmt.Sprintf("registry-%s-%s.csv", strings.ToLower(table.Name), stamp)
	}
	if err != nil {
		return nil, "", fmt.Errorf("render %s export: %w", format, err)
	}

	s.logger.Info("Registry exported",
		zap.String("format", string(format)),
		zap.Int("projects", len(snap.Projects.Rows)),
		zap.Int("credits", len(snap.Credits.Rows)),
	)
	return buf.Bytes(), filename, nil
}
