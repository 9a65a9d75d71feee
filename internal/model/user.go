package model

import (
	"strings"
)

// Role determines which dashboards and endpoints a user may reach
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReception Role = "reception"
	RoleDoctor    Role = "doctor"
	RoleLab       Role = "lab"
	RoleXray      Role = "xray"
	RolePharmacy  Role = "pharmacy"
	RolePatient   Role = "patient"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleReception, RoleDoctor, RoleLab, RoleXray, RolePharmacy, RolePatient}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents a system user. Patients carry a human-readable UniqueID.
type User struct {
	Base
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
	UniqueID     string `json:"uniqueId,omitempty" db:"unique_id"`
	Age          int    `json:"age,omitempty" db:"age"`
	Gender       string `json:"gender,omitempty" db:"gender"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	Address      string `json:"address,omitempty" db:"address"`
	IsVerified   bool   `json:"isVerified" db:"is_verified"`
}

func (u User) RecordID() string   { return u.ID }
func (u User) PatientKey() string { return u.UniqueID }
func (u User) DateKey() string    { return ISODate(u.CreatedAt) }
func (u User) SearchFields() []string {
	return []string{u.Name, u.Email, u.UniqueID, string(u.Role)}
}

func (u User) StatusLabel() string {
	if u.IsVerified {
		return "verified"
	}
	return "unverified"
}

// HasRole reports whether the user holds one of roles.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Auth request types
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,notblank" validate:"required,notblank"`
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required,min=8" validate:"required,min=8"`
	Age      int    `json:"age" binding:"omitempty,min=0,max=150" validate:"omitempty,min=0,max=150"`
	Gender   string `json:"gender"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric" validate:"required,len=6,numeric"`
}

type ForgotRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
}

type VerifyForgotRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric" validate:"required,len=6,numeric"`
}

type NewPasswordRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Token    string `json:"token" binding:"required" validate:"required"`
	Password string `json:"password" binding:"required,min=8" validate:"required,min=8"`
}

// ResetTicket is returned by verifyForgot and consumed by newPassword.
type ResetTicket struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// UpdateProfileRequest is a partial update of the caller's own profile
type UpdateProfileRequest struct {
	Name    *string `json:"name" binding:"omitempty,notblank"`
	Age     *int    `json:"age" binding:"omitempty,min=0,max=150"`
	Gender  *string `json:"gender"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// UpdateUserRequest is an admin update of any user
type UpdateUserRequest struct {
	UpdateProfileRequest
	Role       *Role `json:"role" binding:"omitempty,oneof=admin reception doctor lab xray pharmacy patient"`
	IsVerified *bool `json:"isVerified"`
}

// Apply copies the non-nil fields onto u.
func (r UpdateProfileRequest) Apply(u *User) {
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Age != nil {
		u.Age = *r.Age
	}
	if r.Gender != nil {
		u.Gender = *r.Gender
	}
	if r.Phone != nil {
		u.Phone = *r.Phone
	}
	if r.Address != nil {
		u.Address = *r.Address
	}
}

// Apply copies the non-nil fields onto u.
func (r UpdateUserRequest) Apply(u *User) {
	r.UpdateProfileRequest.Apply(u)
	if r.Role != nil {
		u.Role = *r.Role
	}
	if r.IsVerified != nil {
		u.IsVerified = *r.IsVerified
	}
}
