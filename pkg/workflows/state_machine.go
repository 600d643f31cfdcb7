// Package workflows enforces the status lifecycles of projects and MRV
// submissions.
package workflows

import "fmt"

// Project statuses.
const (
	ProjectRegistered   = "registered"
	ProjectMRVSubmitted = "mrv_submitted"
	ProjectApproved     = "approved"
	ProjectRejected     = "rejected"
)

// MRV statuses. pending_verification is accepted as an alias of the initial
// pending state for records written by older clients.
const (
	MRVPendingProcessing   = "pending_ml_processing"
	MRVPendingVerification = "pending_verification"
	MRVApproved            = "approved"
	MRVRejected            = "rejected"
)

// StateMachine enforces status transitions
type StateMachine struct {
	name               string
	allowedTransitions map[string][]string
}

// NewProjectStateMachine returns the project lifecycle.
func NewProjectStateMachine() *StateMachine {
	return &StateMachine{
		name: "project",
		allowedTransitions: map[string][]string{
			ProjectRegistered:   {ProjectMRVSubmitted},
			ProjectMRVSubmitted: {ProjectApproved, ProjectRejected},
			ProjectApproved:     {},
			ProjectRejected:     {},
		},
	}
}

// NewMRVStateMachine returns the MRV submission lifecycle.
func NewMRVStateMachine() *StateMachine {
	return &StateMachine{
		name: "mrv",
		allowedTransitions: map[string][]string{
			MRVPendingProcessing:   {MRVPendingVerification, MRVApproved, MRVRejected},
			MRVPendingVerification: {MRVApproved, MRVRejected},
			MRVApproved:            {},
			MRVRejected:            {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	for _, allowedTo := range sm.allowedTransitions[from] {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns an error when from -> to is not allowed.
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%s cannot move from %q to %q", sm.name, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves status.
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// IsPendingMRV reports whether an MRV record still awaits a verifier decision.
func IsPendingMRV(status string) bool {
	return status == MRVPendingProcessing || status == MRVPendingVerification
}
