package users

// AdminRoleName is the role that passes every role and permission check
const AdminRoleName = "admin"

// Permission is a fine-grained authorization unit (e.g. "funding:create")
type Permission struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role is the coarse-grained authorization unit. A user holds exactly one.
type Role struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// UserProfile is the identity and authorization snapshot carried by a session.
// It is replaced wholesale on login and never partially mutated.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Status    string `json:"status,omitempty"`

	// Approved gates the protected application area. Absent means false.
	Approved bool  `json:"approved"`
	Role     *Role `json:"role,omitempty"`
}

// FullName joins first and last name, skipping empty parts
func (u *UserProfile) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsApproved is the nil-safe read of the approval flag
func (u *UserProfile) IsApproved() bool {
	return u != nil && u.Approved
}

// RoleName returns the active role's name, or "" when there is no user or role
func (u *UserProfile) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}
