package client

import "strings"

// AdminControls lists which management affordances a member may see.
type AdminControls struct {
	EditWorkspace   bool
	DeleteWorkspace bool
	Invite          bool
	NewJoinCode     bool
	CreateChannel   bool
	EditChannel     bool
	DeleteChannel   bool
}

// ControlsFor grants every control to a resolved admin and nothing to
// anyone else, including while the member is still loading.
func ControlsFor(member Result[Member]) AdminControls {
	m, ok := member.Value()
	if !ok || m.Role != RoleAdmin {
		return AdminControls{}
	}
	return AdminControls{
		EditWorkspace:   true,
		DeleteWorkspace: true,
		Invite:          true,
		NewJoinCode:     true,
		CreateChannel:   true,
		EditChannel:     true,
		DeleteChannel:   true,
	}
}

func InviteLink(origin, workspaceID string) string {
	return strings.TrimRight(origin, "/") + "/join/" + workspaceID
}
