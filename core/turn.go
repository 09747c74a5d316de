package core

import (
	"fmt"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Turn is one message in a conversation window.
// Turns are immutable once appended; Seq is assigned by the window and is
// never reused or renumbered. The system anchor always has Seq 0.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Seq     int    `json:"seq"`
}

// SeqRange is the inclusive range of turn sequence numbers a record was built from.
type SeqRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Len returns the number of sequence positions covered by the range.
func (r SeqRange) Len() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

func (r SeqRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}
