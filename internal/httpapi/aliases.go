package httpapi

import (
	"strings"

	"campusauth/internal/account"
)

// tokenAliases lists the extra response keys that repeat the token for
// clients keyed on role. Roles not listed get defaultTokenAliases.
var tokenAliases = map[string][]string{
	account.RoleStudent: {"student_token"},
	account.RoleHOD:     nil,
	account.RoleTeacher: nil,
}

var defaultTokenAliases = []string{"admin_token"}

func aliasesFor(role string) []string {
	if a, ok := tokenAliases[strings.ToLower(role)]; ok {
		return a
	}
	return defaultTokenAliases
}
