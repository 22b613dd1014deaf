package resolve

import (
	"errors"
	"fmt"

	"github.com/VanDung-dev/arraybridge/schema"
)

// Kind selects which array of a schema node a role asks for.
type Kind uint8

const (
	Starts Kind = iota
	Stops
	Data
)

func (k Kind) String() string {
	switch k {
	case Starts:
		return "starts"
	case Stops:
		return "stops"
	case Data:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Role is a request for one array of one schema node. Roles are comparable
// and used as map keys.
type Role struct {
	Kind    Kind
	Locator schema.Locator
	Node    schema.Node
}

// StartsRole asks for the start offsets of l.
func StartsRole(l *schema.List) Role { return Role{Kind: Starts, Locator: l.Starts, Node: l} }

// StopsRole asks for the stop offsets of l.
func StopsRole(l *schema.List) Role { return Role{Kind: Stops, Locator: l.Stops, Node: l} }

// DataRole asks for the flat values of p.
func DataRole(p *schema.Primitive) Role { return Role{Kind: Data, Locator: p.Data, Node: p} }

// Paired returns the stops role for a starts role and vice versa. Data
// roles are their own pair.
func (r Role) Paired() Role {
	l, _ := r.Node.(*schema.List)
	switch r.Kind {
	case Starts:
		loc := r.Locator
		if l != nil {
			loc = l.Stops
		}
		return Role{Kind: Stops, Locator: loc, Node: r.Node}
	case Stops:
		loc := r.Locator
		if l != nil {
			loc = l.Starts
		}
		return Role{Kind: Starts, Locator: loc, Node: r.Node}
	}
	return r
}

func (r Role) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Locator)
}

// RolesOf lists every role of the tree rooted at n in pre-order. Lists
// without locators (the root entry list) contribute no roles.
func RolesOf(n schema.Node) []Role {
	var roles []Role
	schema.Walk(n, func(_ string, node schema.Node) bool {
		switch t := node.(type) {
		case *schema.List:
			if t.Starts != "" {
				roles = append(roles, StartsRole(t), StopsRole(t))
			}
		case *schema.Primitive:
			roles = append(roles, DataRole(t))
		}
		return true
	})
	return roles
}

// ErrInvariant marks a disagreement between the schema and the physical
// source: a requested role could not be produced.
var ErrInvariant = errors.New("role resolution invariant violated")

// InvariantError names the role that could not be resolved.
type InvariantError struct {
	Role   Role
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", ErrInvariant, e.Role)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvariant, e.Role, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
