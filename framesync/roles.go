// Package framesync aligns the per-stream tables of an episode onto a single
// backbone timeline and assembles synchronized observation/action frames.
package framesync

import (
	"strings"

	"github.com/pkg/errors"
)

// Role identifies one of the four stream roles an episode carries.
type Role int

// The supported alignment roles.
const (
	RoleState Role = iota
	RoleAction
	RoleCameraDown
	RoleCameraUp
)

// Roles lists every supported role in declaration order.
func Roles() []Role {
	return []Role{RoleState, RoleAction, RoleCameraDown, RoleCameraUp}
}

func (r Role) String() string {
	switch r {
	case RoleState:
		return "state"
	case RoleAction:
		return "action"
	case RoleCameraDown:
		return "camera-down"
	case RoleCameraUp:
		return "camera-up"
	default:
		return "unknown"
	}
}

// RoleFromString parses an alignment-stream selector, failing fast on
// anything outside the supported set.
func RoleFromString(s string) (Role, error) {
	for _, r := range Roles() {
		if s == r.String() {
			return r, nil
		}
	}
	valid := make([]string, 0, len(Roles()))
	for _, r := range Roles() {
		valid = append(valid, r.String())
	}
	return 0, errors.Errorf("invalid alignment stream %q; valid options are: %s", s, strings.Join(valid, ", "))
}

// ActionMode selects how the per-frame action vector is resolved.
type ActionMode int

const (
	// ActionModeColumn reads the action off the merged row: trajectory
	// waypoints are flattened to absolute timestamps and backward-joined
	// like any other stream.
	ActionModeColumn ActionMode = iota
	// ActionModeSampled joins whole trajectory messages and resolves the
	// action per frame with a zero-order hold against the most recent one.
	ActionModeSampled
)
