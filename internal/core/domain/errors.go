package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// User & session errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserBanned        = errors.New("user is banned")
	ErrSessionInvalid    = errors.New("session superseded by a newer sign-in")
)

// Catalog errors
var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrPackageNotFound      = errors.New("package not found")
	ErrChapterNotFound      = errors.New("chapter not found")
	ErrLessonNotFound       = errors.New("lesson not found")
	ErrPriceRequired        = errors.New("price is required for a paid course")
	ErrPackageTooFewCourses = errors.New("package must contain at least two courses")
)

// Enrollment errors
var (
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrDuplicateEnrollment = errors.New("student already enrolled in this target")
	ErrInvalidStatus       = errors.New("invalid payment status or transition")
)

// Payment gateway errors
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrGatewayError         = errors.New("payment gateway rejected the request")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrRefundExceedsBalance = errors.New("refund amount exceeds remaining balance")
	ErrPaymentNotRefundable = errors.New("only paid payments can be refunded")
)

// BannedError carries the ban reason stored on the account so the caller
// can surface it to the user.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return ErrUserBanned.Error()
	}
	return "user is banned: " + e.Reason
}

// Is lets errors.Is(err, ErrUserBanned) match a BannedError.
func (e *BannedError) Is(target error) bool {
	return target == ErrUserBanned
}
