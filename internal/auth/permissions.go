package auth

import (
	"fmt"
	"strings"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

// Authorization is the outcome of a role check.
type Authorization struct {
	Allowed  bool
	Caller   Role
	Required Role
}

// CheckPermission compares the caller's role with the role an endpoint
// declares. Every protected route goes through it via RequireRole.
func CheckPermission(caller, required Role) Authorization {
	return Authorization{
		Allowed:  caller != "" && caller == required,
		Caller:   caller,
		Required: required,
	}
}

// Err returns nil when allowed, otherwise the authorization error shown to
// the client.
func (a Authorization) Err() error {
	if a.Allowed {
		return nil
	}
	return apperrors.Forbidden(fmt.Sprintf("Access denied. %s role required.", strings.ReplaceAll(string(a.Required), "_", " ")))
}
