package auth

// Role is the dashboard access level carried in a token. Viewers read
// replay data and watch playback sessions, operators additionally export
// reports and manage the site registry, admins are unrestricted.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// ParseRole maps a token role claim onto a known Role.
func ParseRole(value string) (Role, bool) {
	role := Role(value)
	if _, known := roleRank[role]; !known {
		return "", false
	}
	return role, true
}

// Allows reports whether the role covers the required access level.
func (r Role) Allows(required Role) bool {
	return roleRank[r] >= roleRank[required]
}
