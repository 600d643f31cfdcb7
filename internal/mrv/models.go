// Package mrv handles monitoring, reporting and verification submissions and
// the verifier decision that issues credits.
package mrv

import (
	"time"

	"samudra-ledger/registry-backend/internal/credits"
)

const KeyPrefix = "mrv_"

// File categories.
const (
	CategoryPhoto    = "photo"
	CategoryIoTData  = "iot_data"
	CategoryDocument = "document"
)

// RawData is the field evidence a manager reports.
type RawData struct {
	SatelliteData    string `json:"satelliteData"`
	CommunityReports string `json:"communityReports"`
	SensorReadings   string `json:"sensorReadings"`
	IoTData          string `json:"iotData"`
	Notes            string `json:"notes"`
}

// UploadedFile is evidence stored in the file store.
type UploadedFile struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	Path         string    `json:"path"`
	URL          string    `json:"url,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// MLResults is the measurement attached at submission. CarbonEstimate is the
// amount a resulting credit carries.
type MLResults struct {
	CarbonEstimate     int     `json:"carbon_estimate"`
	BiomassHealthScore float64 `json:"biomass_health_score"`
	EvidenceCID        string  `json:"evidenceCid"`
}

// MRVData is one submission for a project.
type MRVData struct {
	ID                string         `json:"id"`
	ProjectID         string         `json:"projectId"`
	ManagerID         string         `json:"managerId"`
	RawData           RawData        `json:"rawData"`
	Files             []UploadedFile `json:"files"`
	Status            string         `json:"status"`
	SubmittedAt       time.Time      `json:"submittedAt"`
	QualityScore      int            `json:"qualityScore"`
	MLResults         *MLResults     `json:"mlResults,omitempty"`
	VerifiedBy        string         `json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time     `json:"verifiedAt,omitempty"`
	VerificationNotes string         `json:"verificationNotes,omitempty"`
	OnChainTxHash     string         `json:"onChainTxHash,omitempty"`
	CreditID          string         `json:"creditId,omitempty"`
}

type CreateMRVRequest struct {
	ProjectID string         `json:"projectId"`
	RawData   RawData        `json:"rawData"`
	Files     []UploadedFile `json:"files"`
}

type SubmitResponse struct {
	MRVID   string   `json:"mrvId"`
	MRVData *MRVData `json:"mrvData"`
}

type DecisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

// Decision is the outcome of a verifier review. Credit is set only for
// approvals.
type Decision struct {
	MRV    *MRVData
	Credit *credits.CarbonCredit
}
