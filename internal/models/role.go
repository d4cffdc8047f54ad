package models

// Role is a participant's role within a session.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleAudience    Role = "audience"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleParticipant, RoleAudience:
		return true
	}
	return false
}

// CanPublish reports whether the role may send media.
func (r Role) CanPublish() bool {
	return r == RoleHost || r == RoleParticipant
}
