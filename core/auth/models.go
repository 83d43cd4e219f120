package auth

import "strings"

// Role is the primary role derived from a set of RoleFlags.
// It is only used for display and redirects, never for access control.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleNone    Role = "user"
)

var rolePriorities = map[Role]int{
	RoleAdmin:   30,
	RoleTeacher: 20,
	RoleStudent: 10,
}

// RolePriority returns the priority of a role; unknown roles rank lowest.
func RolePriority(role Role) int {
	return rolePriorities[role]
}

// CredentialPair holds the opaque bearer tokens of a session.
type CredentialPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Valid reports whether both tokens are present; a partial pair counts as no pair.
func (p CredentialPair) Valid() bool {
	return strings.TrimSpace(p.Access) != "" && strings.TrimSpace(p.Refresh) != ""
}

// RoleFlags are non-exclusive role memberships.
type RoleFlags struct {
	Student bool `json:"student"`
	Teacher bool `json:"teacher"`
	Admin   bool `json:"admin"`
}

// Has reports whether the flag for role is set.
func (f RoleFlags) Has(role Role) bool {
	switch role {
	case RoleAdmin:
		return f.Admin
	case RoleTeacher:
		return f.Teacher
	case RoleStudent:
		return f.Student
	}
	return false
}

// HasAny reports whether at least one of roles is set.
func (f RoleFlags) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if f.Has(role) {
			return true
		}
	}
	return false
}

// Primary derives the highest priority role: admin > teacher > student > user.
func (f RoleFlags) Primary() Role {
	primary := RoleNone
	for _, role := range []Role{RoleStudent, RoleTeacher, RoleAdmin} {
		if f.Has(role) && RolePriority(role) > RolePriority(primary) {
			primary = role
		}
	}
	return primary
}

func flagsFromRole(role Role) RoleFlags {
	return RoleFlags{
		Student: role == RoleStudent,
		Teacher: role == RoleTeacher,
		Admin:   role == RoleAdmin,
	}
}

// Identity is the resolved profile of the authenticated user.
type Identity struct {
	ID               int       `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email,omitempty"`
	Roles            RoleFlags `json:"roles"`
	StudentProfileID *int      `json:"student_profile_id"`
	TeacherProfileID *int      `json:"teacher_profile_id"`
}

// Role is computed from the flags every time it is asked for.
func (i Identity) Role() Role {
	return i.Roles.Primary()
}

func identityFromLogin(usr LoginUser) Identity {
	return Identity{
		ID:               usr.ID,
		Username:         usr.Username,
		Roles:            flagsFromRole(Role(usr.Role)),
		StudentProfileID: usr.StudentProfileID,
		TeacherProfileID: usr.TeacherProfileID,
	}
}

func identityFromCurrentUser(cu CurrentUser) Identity {
	return Identity{
		ID:               cu.ID,
		Username:         cu.Username,
		Email:            cu.Email,
		Roles:            cu.Roles,
		StudentProfileID: cu.StudentProfileID,
		TeacherProfileID: cu.TeacherProfileID,
	}
}

func identityFromRegistration(res RegistrationResult) Identity {
	id := Identity{
		ID:       res.User.ID,
		Username: res.User.Username,
		Email:    res.User.Email,
		Roles:    RoleFlags{Student: true},
	}
	if res.StudentProfile != nil {
		profileID := res.StudentProfile.ID
		id.StudentProfileID = &profileID
	}
	return id
}
