package models

import "time"

// UserStatus is the verification state of an account
type UserStatus int

const (
	UserStatusUnverified UserStatus = 0
	UserStatusActive     UserStatus = 1
	UserStatusInactive   UserStatus = 2
)

// Role is a user's global role
type Role int

const (
	RoleMember     Role = 1
	RoleAdmin      Role = 2
	RoleSuperAdmin Role = 3
)

// IsAdminClass reports whether the role carries family administration rights
func (r Role) IsAdminClass() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an account in the system
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	CountryCode  string     `json:"countryCode"`
	Mobile       string     `json:"mobile"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	Role         Role       `json:"role"`
	CreatedBy    *int64     `json:"createdBy,omitempty"`
	OTP          *string    `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsVerified reports whether the account has completed OTP verification
func (u *User) IsVerified() bool {
	return u.Status == UserStatusActive
}

// UserProfile holds the optional personal details of a user
type UserProfile struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"userId"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	ProfileImage  *string    `json:"-"`
	Gender        *string    `json:"gender"`
	DOB           *time.Time `json:"dob"`
	MaritalStatus *string    `json:"maritalStatus"`
	SpouseName    *string    `json:"spouseName"`
	FatherName    *string    `json:"fatherName"`
	MotherName    *string    `json:"motherName"`
	ContactNumber *string    `json:"contactNumber"`
	Address       *string    `json:"address"`
	Bio           *string    `json:"bio"`
	FamilyCode    *string    `json:"familyCode"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// FullName joins first and last name with a single space
func (p *UserProfile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}
