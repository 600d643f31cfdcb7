package verification

import "time"

// MLVerification is the persisted outcome of scoring a project.
type MLVerification struct {
	ProjectID      string    `json:"projectId"`
	MLScore        float64   `json:"mlScore"`
	Confidence     float64   `json:"confidence"`
	RiskFactors    []string  `json:"riskFactors"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
	VerifierID     string    `json:"verifierId"`
}

// VerifyProjectRequest is the body of POST /ml/verify-project. When
// projectData is omitted the stored project is scored.
type VerifyProjectRequest struct {
	ProjectID   string             `json:"projectId"`
	ProjectData *ProjectAttributes `json:"projectData"`
}

func verificationKey(projectID string) string {
	return "ml_verification_" + projectID
}
