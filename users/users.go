package users

import (
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
)

// Role is the marketplace role a user picks when completing their profile.
type Role string

const (
	RoleCustomer   Role = "customer"   // Buys from retailers
	RoleRetailer   Role = "retailer"   // Sells to customers, buys from wholesalers
	RoleWholesaler Role = "wholesaler" // Sells in bulk to retailers
)

var validRoles = map[Role]struct{}{
	RoleCustomer:   {},
	RoleRetailer:   {},
	RoleWholesaler: {},
}

// Roles returns every accepted role in a stable order.
func Roles() []Role {
	return []Role{RoleCustomer, RoleRetailer, RoleWholesaler}
}

func (r Role) IsValid() bool {
	_, ok := validRoles[r]
	return ok
}

// ParseRole accepts only the exact lower-case role names.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if !role.IsValid() {
		return "", apperrors.Wrapf(apperrors.ErrInvalidRole, "%q is not one of %s", value, rolesList())
	}
	return role, nil
}

func rolesList() string {
	names := make([]string, 0, len(validRoles))
	for _, r := range Roles() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

// User is the identity established by the Google sign-in plus the
// marketplace role, which stays nil until the profile is completed.
type User struct {
	ID            string `json:"id"`             // Provider subject identifier
	Email         string `json:"email"`          // Email claim from the ID token
	Name          string `json:"name"`           // Display name
	Picture       string `json:"picture"`        // Avatar URL
	EmailVerified bool   `json:"email_verified"` // Provider asserted email ownership
	Role          *Role  `json:"role,omitempty"` // Absent until complete-profile
}

// HasRole reports whether the profile has been completed.
func (u User) HasRole() bool {
	return u.Role != nil && u.Role.IsValid()
}

func (u User) String() string {
	return fmt.Sprintf("%s <%s>", u.ID, u.Email)
}
