package service

import "errors"

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidationConflict = errors.New("validation conflict")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Error is a client-facing failure with a kind and a message safe to return
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func conflict(msg string) *Error     { return &Error{Kind: ErrValidationConflict, Message: msg} }
func notFound(msg string) *Error     { return &Error{Kind: ErrNotFound, Message: msg} }
func denied(msg string) *Error       { return &Error{Kind: ErrPermissionDenied, Message: msg} }
func unauthorized(msg string) *Error { return &Error{Kind: ErrUnauthenticated, Message: msg} }

// invalid turns an input validation failure into a conflict
func invalid(err error) error {
	return &Error{Kind: ErrValidationConflict, Message: err.Error()}
}

var (
	ErrUserExists             = conflict("User with this email or mobile already exists")
	ErrEmailRegistered        = conflict("Email already registered")
	ErrInvalidFamilyCode      = conflict("Invalid family code. Family not found or inactive.")
	ErrAlreadyRequested       = conflict("User already requested or joined this family")
	ErrAlreadyVerified        = conflict("Account already verified")
	ErrInvalidOTP             = conflict("Invalid OTP")
	ErrOTPExpired             = conflict("OTP expired")
	ErrOTPCooldown            = conflict("Please wait before requesting a new OTP")
	ErrNotVerified            = conflict("Account not verified. Please verify your email first")
	ErrPendingRequestNotFound = notFound("Pending family member request not found")
	ErrMemberNotFound         = notFound("Family member not found")
	ErrMembershipNotFound     = notFound("Family membership not found for current user.")
	ErrFamilyNotFound         = notFound("Family not found")
	ErrUserNotFound           = notFound("User not found")
	ErrNotificationNotFound   = notFound("Notification not found")
	ErrAccessDenied           = denied("Access denied: Only family admins can reject members")
	ErrRemoveDenied           = denied("Access denied: Only family admins can remove members")
	ErrApproveDenied          = denied("Access denied: Only family admins can approve members")
	ErrViewDenied             = denied("Access denied: You can only view members of your own family")
	ErrManageDenied           = denied("Access denied: Only the family creator can manage this family")
	ErrRequestForMemberDenied = denied("Access denied: Only family admins can file requests for other users")
	ErrRegisterDenied         = denied("Access denied: Only family admins can register members")
	ErrRoleDenied             = denied("Access denied: Cannot grant a role above your own")
	ErrFamilyViewDenied       = denied("Access denied: You can only view your own family")
	ErrInvalidCredentials     = unauthorized("Invalid credentials")
)
