package scope

import (
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/grammar"
)

var ErrStackUnderflow = errors.Base("scope stack underflow")

// Stack is an immutable frame of a scope stack. Push and Pop return other
// frames and never modify the receiver, so a *Stack doubles as a snapshot
// that can be handed out while the scanner keeps going.
//
// Frames hold rule ids into their grammar's arena rather than the rules
// themselves.
type Stack struct {
	parent *Stack
	rule   grammar.RuleID
	name   string
	depth  int
}

// Root returns the bottom frame of a stack, named after the grammar scope.
func Root(name string) *Stack {
	return &Stack{rule: grammar.NoRule, name: name}
}

// Push returns a new frame on top of s.
func (s *Stack) Push(rule grammar.RuleID, name string) *Stack {
	return &Stack{parent: s, rule: rule, name: name, depth: s.depth + 1}
}

// Pop returns the frame below s. Popping the root is an error.
func (s *Stack) Pop() (*Stack, error) {
	if s == nil || s.parent == nil {
		return nil, errors.WithStack(ErrStackUnderflow)
	}
	return s.parent, nil
}

func (s *Stack) Parent() *Stack       { return s.parent }
func (s *Stack) Rule() grammar.RuleID { return s.rule }
func (s *Stack) Name() string         { return s.name }

// Depth is 0 for the root frame.
func (s *Stack) Depth() int { return s.depth }

// Equal reports whether both stacks resolve to the same scope names.
func (s *Stack) Equal(o *Stack) bool {
	for s != nil && o != nil {
		if s == o {
			return true
		}
		if s.name != o.name || s.depth != o.depth {
			return false
		}
		s, o = s.parent, o.parent
	}
	return s == o
}

func (s *Stack) String() string {
	return strings.Join(Resolve(s), " ")
}
