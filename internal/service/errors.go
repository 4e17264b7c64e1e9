package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Error kinds returned by the academy services. Handlers map them to HTTP status
// codes with errors.Is; the specific errors below all wrap exactly one of them.
var (
	ErrValidation      = errors.New("validation failed")
	ErrAuthorization   = errors.New("not authorized")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrDeadlineExpired = errors.New("deadline expired")
)

var (
	ErrAlreadySubmitted     = fmt.Errorf("%w: homework already submitted", ErrConflict)
	ErrDuplicateSequence    = fmt.Errorf("%w: sequence already used in this group", ErrConflict)
	ErrUsernameTaken        = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrNotEnrolled          = fmt.Errorf("%w: student is not enrolled in the homework group", ErrAuthorization)
	ErrHomeworkLocked       = fmt.Errorf("%w: complete the previous homeworks first", ErrAuthorization)
	ErrForbidden            = fmt.Errorf("%w: insufficient permissions", ErrAuthorization)
	ErrInvalidScore         = fmt.Errorf("%w: score must be between 0 and 100", ErrValidation)
	ErrEmptySubmission      = fmt.Errorf("%w: submission needs content or a file", ErrValidation)
	ErrUnsupportedFile      = fmt.Errorf("%w: unsupported file type", ErrValidation)
	ErrUploadsDisabled      = fmt.Errorf("%w: file uploads are not configured", ErrValidation)
	ErrInvalidMemberRole    = fmt.Errorf("%w: user has the wrong role for this membership", ErrValidation)
	ErrSubmissionDeadline   = fmt.Errorf("%w: the deadline for this homework has passed", ErrDeadlineExpired)
	ErrUserNotFound         = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrCourseNotFound       = fmt.Errorf("%w: course not found", ErrNotFound)
	ErrGroupNotFound        = fmt.Errorf("%w: group not found", ErrNotFound)
	ErrHomeworkNotFound     = fmt.Errorf("%w: homework not found", ErrNotFound)
	ErrSubmissionNotFound   = fmt.Errorf("%w: submission not found", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("%w: notification not found", ErrNotFound)
)

// validationError wraps validator failures so they match ErrValidation while
// keeping the field details in the message.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return fmt.Errorf("%w: %s failed on %s", ErrValidation, first.Field(), first.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// systemNow is the default clock. Timestamps are kept in UTC so the sqlite
// driver's text comparisons agree with postgres.
func systemNow() time.Time {
	return time.Now().UTC()
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
