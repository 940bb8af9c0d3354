package auth

import (
	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util"
)

// Action names an operation subject to the role gate.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionList         Action = "list"
	ActionUpdate       Action = "update"
	ActionChangeStatus Action = "changeStatus"
	ActionComment      Action = "comment"
	ActionListComments Action = "listComments"
	ActionAssign       Action = "assign"
	ActionDelete       Action = "delete"
	ActionStats        Action = "stats"
)

var adminOnly = map[Action]struct{}{
	ActionAssign: {},
	ActionDelete: {},
}

// identityRequired lists actions that cannot be performed anonymously.
var identityRequired = map[Action]struct{}{
	ActionCreate:  {},
	ActionComment: {},
	ActionAssign:  {},
	ActionDelete:  {},
}

var knownActions = map[Action]struct{}{
	ActionCreate:       {},
	ActionRead:         {},
	ActionList:         {},
	ActionUpdate:       {},
	ActionChangeStatus: {},
	ActionComment:      {},
	ActionListComments: {},
	ActionAssign:       {},
	ActionDelete:       {},
	ActionStats:        {},
}

// Authorize decides whether role may perform action. Unknown roles and
// unknown actions are denied.
func Authorize(role domain.Role, action Action) bool {
	if _, ok := knownActions[action]; !ok {
		return false
	}
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		_, restricted := adminOnly[action]
		return !restricted
	default:
		return false
	}
}

// RequiresIdentity reports whether action needs an authenticated actor.
func RequiresIdentity(action Action) bool {
	_, ok := identityRequired[action]
	return ok
}

// Check applies the gate to an optional actor. A nil actor is
// unauthenticated: it may perform anonymous actions only.
func Check(actor *domain.Actor, action Action) error {
	if actor == nil {
		if RequiresIdentity(action) {
			return apperrors.NewUnauthorized("missing user identity")
		}
		return nil
	}
	if !Authorize(actor.Role, action) {
		return apperrors.NewForbidden("insufficient permissions")
	}
	return nil
}
