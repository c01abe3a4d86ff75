package util

import (
	"aerovision_backend/internal/model"
	"errors"
	"fmt"
)

var (
	ErrRegistrationConflict = errors.New("registration conflict")
	ErrEmailRegistered      = fmt.Errorf("%w: email already registered", ErrRegistrationConflict)
	ErrDNIRegistered        = fmt.Errorf("%w: dni already registered", ErrRegistrationConflict)
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotFound             = errors.New("not found")
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound       = fmt.Errorf("course %w", ErrNotFound)
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotEnrolled          = fmt.Errorf("%w: not enrolled in course", ErrPermissionDenied)
	ErrValidation           = errors.New("validation failed")
	ErrInvalidProgress      = errors.New("invalid progress")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrInvalidUpload        = errors.New("invalid upload")
	ErrSessionNotFound      = errors.New("session not found or expired")
	ErrPersistence          = errors.New("persistence failure")

	ErrInvalidCourse  = model.ErrInvalidCourse
	ErrLessonNotFound = model.ErrLessonNotFound
	ErrBlockNotFound  = model.ErrBlockNotFound
	ErrOptionNotFound = model.ErrOptionNotFound
)
