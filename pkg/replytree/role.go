package replytree

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the participant that authored an utterance.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role in a fixed order.
var Roles = []Role{RoleInterviewer, RoleCandidate}

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleInterviewer:
		return RoleInterviewer, nil
	case RoleCandidate:
		return RoleCandidate, nil
	}
	return "", errors.Wrapf(ErrUnknownRole, "%q", s)
}

// Next returns the role that speaks after r.
func (r Role) Next() Role {
	if r == RoleInterviewer {
		return RoleCandidate
	}
	return RoleInterviewer
}

func (r Role) Valid() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Label is the display name used in prompts and printed trees.
func (r Role) Label() string {
	switch r {
	case RoleInterviewer:
		return "面接官"
	case RoleCandidate:
		return "学生"
	default:
		return string(r)
	}
}

func (r Role) String() string {
	return string(r)
}

// DialogueTag marks an utterance relative to the role that is about to speak.
type DialogueTag string

const (
	TagSelf  DialogueTag = "self"
	TagOther DialogueTag = "other"
)

func (r Role) DialogueTag(perspective Role) DialogueTag {
	if r == perspective {
		return TagSelf
	}
	return TagOther
}

// ChatRole maps the dialogue tag onto chat completion roles: the speaker's
// own lines are "assistant", everything else is "user".
func (r Role) ChatRole(perspective Role) string {
	if r.DialogueTag(perspective) == TagSelf {
		return "assistant"
	}
	return "user"
}
