package scanner

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrUnterminatedRegion = errors.Base("unterminated region")
	ErrMatchTimeout       = errors.Base("match timeout")
	ErrInvalidEndPattern  = errors.Base("invalid end pattern")
)

type WarningKind int

const (
	// WarningUnterminatedRegion is reported for each region still open at
	// the end of the input. The region is closed implicitly.
	WarningUnterminatedRegion WarningKind = iota + 1
	// WarningMatchTimeout is reported the first time a rule exceeds the
	// grammar's match timeout. The rule is skipped for the rest of the scan.
	WarningMatchTimeout
	// WarningInvalidEndPattern is reported when an end pattern built from
	// begin captures does not compile. The region then runs to the end of input.
	WarningInvalidEndPattern
)

func (k WarningKind) String() string {
	switch k {
	case WarningUnterminatedRegion:
		return "unterminated-region"
	case WarningMatchTimeout:
		return "match-timeout"
	case WarningInvalidEndPattern:
		return "invalid-end-pattern"
	default:
		return fmt.Sprintf("warning(%d)", int(k))
	}
}

// Warning is a recoverable problem found while scanning. Output is still
// produced for the whole input.
type Warning struct {
	Kind WarningKind
	// Offset is the byte offset the warning refers to, for regions the
	// offset of their begin match.
	Offset int
	// Scope is the name of the rule involved, if any.
	Scope string
	Err   error
}

func (w Warning) Error() string {
	return w.Err.Error()
}

func (w Warning) Unwrap() error {
	return w.Err
}
