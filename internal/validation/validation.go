package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	mobileRegex      = regexp.MustCompile(`^[0-9]{6,15}$`)
	countryCodeRegex = regexp.MustCompile(`^\+?[0-9]{1,4}$`)
	familyCodeRegex  = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)
	otpRegex         = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateContact checks a country code and mobile pair. Both empty is allowed.
func ValidateContact(countryCode, mobile string) error {
	countryCode = strings.TrimSpace(countryCode)
	mobile = strings.TrimSpace(mobile)
	if countryCode == "" && mobile == "" {
		return nil
	}
	if !countryCodeRegex.MatchString(countryCode) {
		return ValidationError{Field: "countryCode", Message: "invalid country code"}
	}
	if !mobileRegex.MatchString(mobile) {
		return ValidationError{Field: "mobile", Message: "mobile must be 6 to 15 digits"}
	}
	return nil
}

// ValidateFamilyCode checks the shape of a family code
func ValidateFamilyCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ValidationError{Field: "familyCode", Message: "family code is required"}
	}
	if !familyCodeRegex.MatchString(code) {
		return ValidationError{Field: "familyCode", Message: "invalid family code"}
	}
	return nil
}

// ValidateOTP checks that an OTP is six digits
func ValidateOTP(otp string) error {
	if !otpRegex.MatchString(strings.TrimSpace(otp)) {
		return ValidationError{Field: "otp", Message: "otp must be 6 digits"}
	}
	return nil
}
