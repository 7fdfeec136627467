package model

import "time"

// School is a tenant: every student, attendance event and message
// belongs to exactly one school.  Names are unique regardless of case.
//
// Fields:
//  ID        – primary key identifier (UUID).
//  Name      – display name, unique case-insensitively.
//  LogoURL   – optional logo location.
//  Address   – optional postal address.
//  AdminID   – optional reference to the owning admin user.
//  Disabled  – when true the tenant's accounts are locked out.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type School struct {
	ID        string    `json:"id"`                // schools.id
	Name      string    `json:"name"`              // schools.name
	LogoURL   *string   `json:"logoUrl,omitempty"` // schools.logo_url (nullable)
	Address   *string   `json:"address,omitempty"` // schools.address (nullable)
	AdminID   *string   `json:"adminId,omitempty"` // schools.admin_id (nullable)
	Disabled  bool      `json:"disabled"`          // schools.disabled
	CreatedAt time.Time `json:"createdAt"`         // schools.created_at
	UpdatedAt time.Time `json:"updatedAt"`         // schools.updated_at
}

// SchoolPatch carries the fields of a partial school update.
type SchoolPatch struct {
	Name     *string
	LogoURL  *string
	Address  *string
	AdminID  *string
	Disabled *bool
}

// Empty reports whether the patch changes nothing.
func (p SchoolPatch) Empty() bool {
	return p.Name == nil && p.LogoURL == nil && p.Address == nil && p.AdminID == nil && p.Disabled == nil
}
