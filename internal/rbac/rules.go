package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"exam:lookup",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"violation:report",
	},
	"teacher": {
		"exam:create",
		"exam:publish",
		"exam:view",
		"exam:view-keys",
		"attempt:view-all",
		"attempt:grade",
		"attempt:flag",
		"attempt:cancel",
		"users:roster",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
