package constants

const (
	// Local settings keys
	SettingSessionSecret = "session_secret"
	SettingLastProgram   = "last_program"
	SettingLastFilter    = "last_filter"

	// Default credentials. These gate the operator and admin surfaces of a
	// shared workstation; they are not an authentication system.
	DefaultOperatorUser = "operador"
	DefaultOperatorPass = "filiales2025"
	DefaultAdminUser    = "admin"
	DefaultAdminPass    = "admin2025"
)
