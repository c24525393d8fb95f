package models

import (
	dErrors "caseflow/pkg/domain-errors"
)

// Role is one of the three sequential reviewer capabilities. Administrator
// is an orthogonal override resolved by the directory, not a Role.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleSupervisor  Role = "supervisor"
	RoleExaminer    Role = "examiner"
)

// ParseRole creates a Role from a string, validating it.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
	}
	return r, nil
}

// IsValid checks if the role is one of the supported reviewer roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleInterviewer, RoleSupervisor, RoleExaminer:
		return true
	}
	return false
}

// String returns the string representation.
func (r Role) String() string { return string(r) }
