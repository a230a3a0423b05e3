package grammar

import (
	"time"

	"github.com/dlclark/regexp2"
)

// RuleID addresses a Rule inside a Table's arena.
type RuleID int32

// RuleSetID addresses a RuleSet inside a Table's arena.
type RuleSetID int32

// NoRule marks an absent rule reference.
const NoRule RuleID = -1

// Kind tags the variant of a compiled rule.
type Kind uint8

const (
	// KindMatch scopes a single match and leaves the stack unchanged.
	KindMatch Kind = iota + 1
	// KindBegin opens a region and pushes its child rule set.
	KindBegin
	// KindEnd closes the region of the begin rule that owns it.
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindBegin:
		return "begin"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Rule is one compiled grammar rule. Rules are owned by their Table and must
// not be modified after Load returns.
type Rule struct {
	ID   RuleID
	Kind Kind

	// Name is the scope assigned to the matched text (and, for regions, to
	// the delimiters and everything in between).
	Name string
	// ContentName is assigned to the text between begin and end only.
	ContentName string

	Pattern *regexp2.Regexp
	Source  string

	// Captures holds the scope per capture group; an empty string assigns none.
	Captures []string

	// Children is the rule set active inside a region (KindBegin only).
	Children RuleSetID
	// End is the rule closing this region, NoRule for begin/while regions.
	End RuleID
	// Owner is the begin rule an end rule belongs to (KindEnd only).
	Owner RuleID
	// Backrefs reports that Source refers to begin captures (KindEnd only).
	Backrefs bool

	While         *regexp2.Regexp
	WhileCaptures []string
}

// RuleSet is the priority-ordered list of rules tried at a scan position.
type RuleSet struct {
	ID    RuleSetID
	Rules []RuleID
}

// Table is an immutable compiled grammar. It is safe for concurrent use by
// any number of scans.
type Table struct {
	ScopeName string
	Name      string
	FileTypes []string
	FirstLine *regexp2.Regexp

	// MatchTimeout applies to patterns compiled while scanning, such as end
	// patterns carrying begin captures.
	MatchTimeout time.Duration

	Root RuleSetID

	rules []Rule
	sets  []RuleSet
}

// Rule returns the rule with the given id. The result is read-only.
func (t *Table) Rule(id RuleID) *Rule {
	return &t.rules[id]
}

// RuleSet returns the rule set with the given id. The result is read-only.
func (t *Table) RuleSet(id RuleSetID) *RuleSet {
	return &t.sets[id]
}

// NumRules reports the arena size.
func (t *Table) NumRules() int {
	return len(t.rules)
}

// MatchesFirstLine reports whether line satisfies the grammar's firstLineMatch.
func (t *Table) MatchesFirstLine(line string) bool {
	if t.FirstLine == nil {
		return false
	}
	ok, err := t.FirstLine.MatchString(line)
	return err == nil && ok
}
