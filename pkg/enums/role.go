package enums

import "fmt"

// Role is the account-level permission role of a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLeadGuide Role = "lead-guide"
	RoleGuide     Role = "guide"
	RoleUser      Role = "user"
)

var validRoles = []Role{RoleAdmin, RoleLeadGuide, RoleGuide, RoleUser}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
