package models

import "time"

// FamilyStatus marks whether a family accepts members
type FamilyStatus int

const (
	FamilyStatusInactive FamilyStatus = 0
	FamilyStatusActive   FamilyStatus = 1
)

// Family is a group of users identified by a shared code
type Family struct {
	ID         int64        `json:"id"`
	FamilyCode string       `json:"familyCode"`
	Name       string       `json:"name"`
	Photo      *string      `json:"photo"`
	Status     FamilyStatus `json:"status"`
	CreatedBy  *int64       `json:"createdBy"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// IsActive reports whether the family can be joined
func (f *Family) IsActive() bool {
	return f.Status == FamilyStatusActive
}

// ApproveStatus is the state of a membership row. Rejection deletes the row.
type ApproveStatus string

const (
	ApproveStatusPending  ApproveStatus = "pending"
	ApproveStatusApproved ApproveStatus = "approved"
)

// FamilyMember is a user's single membership slot
type FamilyMember struct {
	ID            int64         `json:"id"`
	MemberID      int64         `json:"memberId"`
	FamilyCode    string        `json:"familyCode"`
	CreatorID     *int64        `json:"creatorId"`
	ApproveStatus ApproveStatus `json:"approveStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// IsApproved reports whether the membership has been approved
func (m *FamilyMember) IsApproved() bool {
	return m.ApproveStatus == ApproveStatusApproved
}

// MemberUser is the public projection of a member's account
type MemberUser struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	CountryCode string     `json:"countryCode"`
	Mobile      string     `json:"mobile"`
	Status      UserStatus `json:"status"`
	Role        Role       `json:"role"`
}

// MemberProfile is the public projection of a member's profile
type MemberProfile struct {
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	FullName      string     `json:"fullName"`
	ProfileImage  *string    `json:"profileImage"`
	Gender        *string    `json:"gender"`
	DOB           *time.Time `json:"dob"`
	MaritalStatus *string    `json:"maritalStatus"`
	ContactNumber *string    `json:"contactNumber"`
	Address       *string    `json:"address"`
	Bio           *string    `json:"bio"`
	ImageFile     *string    `json:"-"`
}

// MemberListing combines a membership row with user and profile projections
type MemberListing struct {
	FamilyMember
	User         MemberUser     `json:"user"`
	Profile      *MemberProfile `json:"profile"`
	FullName     *string        `json:"fullName"`
	ProfileImage *string        `json:"profileImage"`
}

// Demographic is the per-member input to family statistics
type Demographic struct {
	MemberID int64
	Gender   *string
	DOB      *time.Time
}

// FamilyStats aggregates approved members of a family
type FamilyStats struct {
	TotalMembers int     `json:"totalMembers"`
	Males        int     `json:"males"`
	Females      int     `json:"females"`
	AverageAge   float64 `json:"averageAge"`
}
