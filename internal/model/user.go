package model

import "time"

// Role names carried in the users.role column and in the JWT "role" claim.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// ValidRole reports whether r is one of the supported roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an operator account as stored in the `users` table.
// Admins are bound to exactly one school; superadmins have no school.
//
// Fields:
//  ID           – primary key identifier (UUID).
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password, never serialized.
//  Role         – admin or superadmin.
//  SchoolID     – affiliated school, set only for admins.
//  Email        – optional contact email.
//  PhoneNumber  – optional contact phone.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    `json:"id"`                    // users.id
	Username     string    `json:"username"`              // users.username
	PasswordHash string    `json:"-"`                     // users.password_hash
	Role         string    `json:"role"`                  // users.role
	SchoolID     *string   `json:"schoolId,omitempty"`    // users.school_id (nullable)
	Email        *string   `json:"email,omitempty"`       // users.email (nullable)
	PhoneNumber  *string   `json:"phoneNumber,omitempty"` // users.phone_number (nullable)
	CreatedAt    time.Time `json:"createdAt"`             // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"`             // users.updated_at
}

// School returns the affiliated school id or "" for superadmins.
func (u User) School() string {
	if u.SchoolID == nil {
		return ""
	}
	return *u.SchoolID
}

// UserPatch carries the fields of a partial user update.  A nil pointer
// leaves the stored column untouched.  ClearSchool drops the school
// affiliation (used when an account becomes a superadmin).
type UserPatch struct {
	Username     *string
	PasswordHash *string
	Role         *string
	SchoolID     *string
	ClearSchool  bool
	Email        *string
	PhoneNumber  *string
}
