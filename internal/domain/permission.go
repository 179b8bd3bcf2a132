package domain

// Role is the participant role within a session. Roles form a strict
// hierarchy: viewer < editor < admin < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Action enumerates every permission-gated operation. The set is closed:
// new operations must be added here, not expressed as free-form strings.
type Action string

const (
	ActionView           Action = "view"
	ActionEdit           Action = "edit"
	ActionInvite         Action = "invite"
	ActionRemove         Action = "remove"
	ActionChangeRoles    Action = "changeRoles"
	ActionDelete         Action = "delete"
	ActionTransfer       Action = "transfer"
	ActionManageSettings Action = "manageSettings"
)

// roleLevels maps each role to its position in the hierarchy. An unknown
// role is absent from the map and resolves to -1, below viewer.
var roleLevels = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// permissionTable is the single source of truth for role capabilities.
var permissionTable = map[Role]map[Action]bool{
	RoleViewer: {
		ActionView: true,
	},
	RoleEditor: {
		ActionView: true,
		ActionEdit: true,
	},
	RoleAdmin: {
		ActionView:        true,
		ActionEdit:        true,
		ActionInvite:      true,
		ActionRemove:      true,
		ActionChangeRoles: true,
	},
	RoleOwner: {
		ActionView:           true,
		ActionEdit:           true,
		ActionInvite:         true,
		ActionRemove:         true,
		ActionChangeRoles:    true,
		ActionDelete:         true,
		ActionTransfer:       true,
		ActionManageSettings: true,
	},
}

// Level returns the hierarchy level of r, or -1 for an unknown role.
func (r Role) Level() int {
	level, ok := roleLevels[r]
	if !ok {
		return -1
	}
	return level
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether r sits at or above other in the hierarchy.
// An unknown role is below every known role.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level() && r.Level() >= 0
}

// HasPermission reports whether role may perform action. Unknown roles
// resolve to the lowest privilege (nothing allowed beyond the empty set).
func HasPermission(role Role, action Action) bool {
	perms, ok := permissionTable[role]
	if !ok {
		return false
	}
	return perms[action]
}

// AssignableRoles returns the roles that a holder of role may grant to
// others. A role can only grant roles strictly below its own level, so no
// identity can escalate itself or a peer to its own level or above.
func AssignableRoles(role Role) []Role {
	switch role {
	case RoleOwner:
		return []Role{RoleViewer, RoleEditor, RoleAdmin}
	case RoleAdmin:
		return []Role{RoleViewer, RoleEditor}
	default:
		return nil
	}
}

// CanAssign reports whether grantor may assign target to another
// participant. The owner role itself is never assignable; ownership moves
// only through the transfer operation.
func CanAssign(grantor, target Role) bool {
	for _, r := range AssignableRoles(grantor) {
		if r == target {
			return true
		}
	}
	return false
}
