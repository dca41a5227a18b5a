package rbac

// Permissions.
const (
	PermQuestionCreate      = "question:create"
	PermQuestionView        = "question:view"
	PermAttemptCreate       = "attempt:create"
	PermAttemptSubmit       = "attempt:submit"
	PermAttemptViewOwn      = "attempt:view-own"
	PermAttemptViewAll      = "attempt:view-all"
	PermTestcasesViewHidden = "testcases:view-hidden"
	PermEventsView          = "events:view"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermQuestionView,
		PermAttemptCreate,
		PermAttemptSubmit,
		PermAttemptViewOwn,
	},
	RoleTeacher: {
		"question:*",
		"attempt:*",
		PermTestcasesViewHidden,
		PermEventsView,
	},
	RoleAdmin: {
		"*", // everything
	},
}
