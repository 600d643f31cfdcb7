package projects

import (
	"strings"
	"time"
)

// Ecosystem types a project can restore.
const (
	EcosystemMangrove       = "mangrove"
	EcosystemSaltmarsh      = "saltmarsh"
	EcosystemSeagrass       = "seagrass"
	EcosystemCoastalWetland = "coastal_wetland"
)

const (
	KeyPrefix = "project_"

	unknownManagerName  = "Unknown Manager"
	unknownManagerEmail = "N/A"
)

func validEcosystem(e string) bool {
	switch e {
	case EcosystemMangrove, EcosystemSaltmarsh, EcosystemSeagrass, EcosystemCoastalWetland:
		return true
	}
	return false
}

// IsProjectKey reports whether key addresses a project.
func IsProjectKey(key string) bool { return strings.HasPrefix(key, KeyPrefix) }

// Project represents a blue carbon restoration project
type Project struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	Location              string    `json:"location"`
	EcosystemType         string    `json:"ecosystemType"`
	Area                  float64   `json:"area"` // hectares
	Coordinates           string    `json:"coordinates,omitempty"`
	Centroid              []float64 `json:"centroid,omitempty"`   // [lng, lat]
	MappedArea            *float64  `json:"mappedArea,omitempty"` // hectares, polygon boundaries only
	CommunityPartners     string    `json:"communityPartners,omitempty"`
	ExpectedCarbonCapture *float64  `json:"expectedCarbonCapture,omitempty"`
	ManagerID             string    `json:"managerId"`
	ManagerName           string    `json:"managerName,omitempty"`
	ManagerEmail          string    `json:"managerEmail,omitempty"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	OnChainTxHash         string    `json:"onChainTxHash,omitempty"`
}

// Requests

type CreateProjectRequest struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Location              string   `json:"location"`
	EcosystemType         string   `json:"ecosystemType"`
	Area                  float64  `json:"area"`
	Coordinates           string   `json:"coordinates"`
	CommunityPartners     string   `json:"communityPartners"`
	ExpectedCarbonCapture *float64 `json:"expectedCarbonCapture"`
}

type CreateProjectResponse struct {
	ProjectID string   `json:"projectId"`
	Project   *Project `json:"project"`
}
