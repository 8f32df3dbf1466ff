package models

import (
	"regexp"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Session is the resolved identity of one authenticated actor. House is
// set only for teachers and names their home house.
type Session struct {
	Role     Role   `json:"role"`
	Username string `json:"username"`
	House    string `json:"house,omitempty"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// NormalizeActor lowercases a username and strips all whitespace, so that
// "  Sunny Yang" and "sunnyyang" address the same roster entry and quota
// counters.
func NormalizeActor(username string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(username), "")
}
