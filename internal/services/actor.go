package services

import (
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID   uuid.UUID
	SchoolID *uuid.UUID
	Role     string
	IP       string
}

func (a Actor) IsSystemAdmin() bool { return a.Role == models.RoleSystemAdmin }

// CanAccess reports whether the actor may read or write data owned by school.
func (a Actor) CanAccess(schoolID uuid.UUID) bool {
	if a.IsSystemAdmin() {
		return true
	}
	return a.SchoolID != nil && *a.SchoolID == schoolID
}

// SchoolScope returns the school an operation is pinned to. Non system admins
// are always pinned to their own school; system admins must name one.
func (a Actor) SchoolScope(requested string) (uuid.UUID, error) {
	if !a.IsSystemAdmin() {
		if a.SchoolID == nil {
			return uuid.Nil, ErrForbidden
		}
		if requested != "" && requested != a.SchoolID.String() {
			return uuid.Nil, ErrForbidden
		}
		return *a.SchoolID, nil
	}
	if requested == "" {
		return uuid.Nil, ErrSchoolRequired
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return uuid.Nil, ErrInvalidInput
	}
	return id, nil
}
