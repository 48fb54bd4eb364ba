package domain

import (
	"strconv"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
)

type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Role      Role      `db:"role"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// NotificationGroup is the real-time routing key for a user. Admins share a
// single broadcast group; vendors and customers get per-user groups.
func (u *User) NotificationGroup() string {
	switch u.Role {
	case RoleAdmin:
		return "notifications_admins"
	case RoleVendor:
		return "notifications_vendor_" + strconv.FormatInt(u.ID, 10)
	default:
		return "notifications_user_" + strconv.FormatInt(u.ID, 10)
	}
}
