// Package tmlanguage models the tmLanguage grammar format (JSON or YAML).
//
// To parse and unparse this data:
//
//	grammar, err := UnmarshalGrammar(bytes)
//	bytes, err = grammar.Marshal()
package tmlanguage

import (
	"encoding/json"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

func UnmarshalGrammar(data []byte) (Grammar, error) {
	var r Grammar
	err := json.Unmarshal(data, &r)
	return r, err
}

func UnmarshalGrammarYAML(data []byte) (Grammar, error) {
	var r Grammar
	err := yaml.Unmarshal(data, &r)
	return r, err
}

func (r *Grammar) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

type Grammar struct {
	Patterns []Pattern `json:"patterns" yaml:"patterns"`
	// a dictionary (i.e. key/value pairs) of rules which can be included from other places in
	// the grammar. The key is the name of the rule and the value is the actual rule.
	Repository map[string]Pattern `json:"repository,omitempty" yaml:"repository,omitempty"`
	// this is an array of file type extensions that the grammar should (by default) be used
	// with.
	FileTypes []string `json:"fileTypes,omitempty" yaml:"fileTypes,omitempty"`
	// matched against the first line of a document when no file type applies
	FirstLineMatch *string `json:"firstLineMatch,omitempty" yaml:"firstLineMatch,omitempty"`
	Name           *string `json:"name,omitempty" yaml:"name,omitempty"`
	// this should be a unique name for the grammar, following the convention of being a
	// dot-separated name where each new (left-most) part specializes the name.
	ScopeName string  `json:"scopeName" yaml:"scopeName"`
	UUID      *string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
}

type Pattern struct {
	// when set, the end pattern is tried after the nested patterns instead of before them
	ApplyEndPatternLast Flag `json:"applyEndPatternLast,omitempty" yaml:"applyEndPatternLast,omitempty"`
	// begin is the pattern that starts the block and end is the pattern which ends the block.
	// Captures from the begin pattern can be referenced in the end pattern by using normal
	// regular expression back-references.
	Begin *string `json:"begin,omitempty" yaml:"begin,omitempty"`
	// allows you to assign attributes to the captures of the begin pattern.
	BeginCaptures Captures `json:"beginCaptures,omitempty" yaml:"beginCaptures,omitempty"`
	// allows you to assign attributes to the captures of the match pattern. Using the captures
	// key for a begin/end rule is short-hand for giving both beginCaptures and endCaptures with
	// same values.
	Captures Captures `json:"captures,omitempty" yaml:"captures,omitempty"`
	Comment  *string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	// this key is similar to the name key but only assigns the name to the text between what is
	// matched by the begin/end patterns.
	ContentName *string `json:"contentName,omitempty" yaml:"contentName,omitempty"`
	// set this property to 1 to disable the current pattern
	Disabled    Flag     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	End         *string  `json:"end,omitempty" yaml:"end,omitempty"`
	EndCaptures Captures `json:"endCaptures,omitempty" yaml:"endCaptures,omitempty"`
	// this allows you to reference a different language, recursively reference the grammar
	// itself or a rule declared in this file's repository.
	Include *string `json:"include,omitempty" yaml:"include,omitempty"`
	// a regular expression which is used to identify the portion of text to which the name
	// should be assigned. Example: '\b(true|false)\b'.
	Match *string `json:"match,omitempty" yaml:"match,omitempty"`
	// the name which gets assigned to the portion matched.
	Name *string `json:"name,omitempty" yaml:"name,omitempty"`
	// applies to the region between the begin and end matches
	Patterns []Pattern `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	// begin is the pattern that starts the block and while continues it.
	While         *string  `json:"while,omitempty" yaml:"while,omitempty"`
	WhileCaptures Captures `json:"whileCaptures,omitempty" yaml:"whileCaptures,omitempty"`
}

// Captures maps a capture group index ("0", "1", ...) to the scope it receives.
type Captures map[string]Capture

type Capture struct {
	Name     *string   `json:"name,omitempty" yaml:"name,omitempty"`
	Patterns []Pattern `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

// Indexed returns the captures keyed by group number.
func (c Captures) Indexed() (map[int]Capture, error) {
	if len(c) == 0 {
		return nil, nil
	}
	out := make(map[int]Capture, len(c))
	for k, v := range c {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, errors.Errorf("capture key %q is not a group number", k)
		}
		out[i] = v
	}
	return out, nil
}

// Flag is a boolean that grammars write as true/false or 1/0.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	v, err := parseFlag(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseFlag(node.Value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func parseFlag(s string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "null":
		return false, nil
	case "1", "true":
		return true, nil
	}
	return false, errors.Errorf("invalid flag value %q", s)
}

// Str returns the value of an optional string field.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
