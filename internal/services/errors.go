package services

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrDistributionNotFound   = errors.New("mark distribution not found")
	ErrDistributionExists     = errors.New("mark distribution already exists for scope")
	ErrNoDistributionForScope = errors.New("no mark distribution applies to scope")
	ErrScoreSetNotFound       = errors.New("score set not found")
	ErrSchoolRequired         = errors.New("school_id is required")
	ErrAcademicYearRequired   = errors.New("academic_year is required")
	ErrUserNotFound           = errors.New("user not found")
	ErrSchoolNotFound         = errors.New("school not found")
)
