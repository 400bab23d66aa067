package rbac

import (
	"fmt"
	"strconv"
	"strings"
)

// Id prefixes for roles and permissions.
const (
	RoleIDPrefix       = "role"
	PermissionIDPrefix = "perm"
)

// NextID returns the id following last, e.g. "role-007" after "role-006".
// A last id that does not carry prefix restarts at 001. Numbers past 999
// simply grow wider.
func NextID(prefix, last string) string {
	n, ok := parseID(prefix, last)
	if !ok {
		n = 0
	}
	return FormatID(prefix, n+1)
}

// FormatID renders prefix and n as "prefix-NNN".
func FormatID(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

func parseID(prefix, id string) (int, bool) {
	digits, found := strings.CutPrefix(id, prefix+"-")
	if !found || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
