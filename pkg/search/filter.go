package search

import (
	"sort"
	"strings"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
)

var ErrInvalidFilter = errors.New("invalid role filter")

// RoleFilter is the non-empty set of roles a query may return.
type RoleFilter struct {
	allowed map[replytree.Role]bool
}

func NewRoleFilter(roles ...replytree.Role) (RoleFilter, error) {
	f := RoleFilter{allowed: map[replytree.Role]bool{}}
	for _, r := range roles {
		if !r.Valid() {
			return RoleFilter{}, errors.Wrapf(ErrInvalidFilter, "unknown role %q", r)
		}
		f.allowed[r] = true
	}
	if len(f.allowed) == 0 {
		return RoleFilter{}, errors.Wrap(ErrInvalidFilter, "no role allowed")
	}
	return f, nil
}

// AllRoles allows both interviewer and candidate utterances.
func AllRoles() RoleFilter {
	f, _ := NewRoleFilter(replytree.Roles...)
	return f
}

// FilterFromFlags maps the --only-candidate / --only-interviewer switches.
// Setting both is a caller error; setting neither allows every role.
func FilterFromFlags(onlyCandidate, onlyInterviewer bool) (RoleFilter, error) {
	switch {
	case onlyCandidate && onlyInterviewer:
		return RoleFilter{}, errors.Wrap(ErrInvalidFilter, "only-candidate and only-interviewer are mutually exclusive")
	case onlyCandidate:
		return NewRoleFilter(replytree.RoleCandidate)
	case onlyInterviewer:
		return NewRoleFilter(replytree.RoleInterviewer)
	default:
		return AllRoles(), nil
	}
}

// ParseRoleFilter reads a comma separated role list, "" meaning every role.
func ParseRoleFilter(s string) (RoleFilter, error) {
	if strings.TrimSpace(s) == "" {
		return AllRoles(), nil
	}
	var roles []replytree.Role
	for _, part := range strings.Split(s, ",") {
		r, err := replytree.ParseRole(part)
		if err != nil {
			return RoleFilter{}, errors.Wrap(ErrInvalidFilter, err.Error())
		}
		roles = append(roles, r)
	}
	return NewRoleFilter(roles...)
}

func (f RoleFilter) Allows(r replytree.Role) bool {
	return f.allowed[r]
}

func (f RoleFilter) IsZero() bool {
	return len(f.allowed) == 0
}

func (f RoleFilter) Roles() []replytree.Role {
	ret := make([]replytree.Role, 0, len(f.allowed))
	for r := range f.allowed {
		ret = append(ret, r)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

func (f RoleFilter) String() string {
	parts := make([]string, 0, len(f.allowed))
	for _, r := range f.Roles() {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}
