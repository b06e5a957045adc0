package approval

import "github.com/okian/acolyte/internal/domain/model"

// Action is a privileged workflow capability.
type Action string

const (
	ActionSubmit     Action = "submit"
	ActionApprove    Action = "approve"
	ActionEditOthers Action = "edit-others"
	ActionAdminister Action = "administer"
)

var permissions = map[model.Role]map[Action]bool{ //nolint:gochecknoglobals // static permission table
	model.RoleParticipant: {
		ActionSubmit: true,
	},
	model.RoleModerator: {
		ActionSubmit:     true,
		ActionApprove:    true,
		ActionEditOthers: true,
	},
	model.RoleAdministrator: {
		ActionSubmit:     true,
		ActionApprove:    true,
		ActionEditOthers: true,
		ActionAdminister: true,
	},
}

// Allowed reports whether role may perform action. Unknown roles may do nothing.
func Allowed(role model.Role, action Action) bool {
	return permissions[role][action]
}
