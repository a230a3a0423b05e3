package grammar

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/gen/jsonschema/go/tmlanguage"
)

var ErrMalformedGrammar = errors.Base("malformed grammar")

// Resolver looks up another grammar by scope name for cross-grammar includes
// such as "source.css" or "source.css#rule".
type Resolver func(scopeName string) (*tmlanguage.Grammar, bool)

type Option func(*options)

type options struct {
	resolver     Resolver
	matchTimeout time.Duration
}

// WithResolver enables includes of other grammars.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithMatchTimeout bounds the time a single pattern may spend matching.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) { o.matchTimeout = d }
}

var backrefPattern = regexp2.MustCompile(`(?<!\\)(?:\\\\)*\\[1-9]`, regexp2.None)

// Load compiles a grammar definition into an immutable Table.
//
// Every problem found in the definition is reported, each wrapping
// ErrMalformedGrammar.
func Load(ctx context.Context, def *tmlanguage.Grammar, opts ...Option) (*Table, error) {
	if def == nil {
		return nil, errors.Errorf("%w: nil definition", ErrMalformedGrammar)
	}

	c := &compiler{
		table: &Table{
			ScopeName: def.ScopeName,
			Name:      tmlanguage.Str(def.Name),
			FileTypes: def.FileTypes,
		},
		units: make(map[string]*unit),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	c.table.MatchTimeout = c.opts.matchTimeout

	if def.FirstLineMatch != nil && *def.FirstLineMatch != "" {
		c.table.FirstLine = c.regex(*def.FirstLineMatch, "firstLineMatch")
	}

	main := c.newUnit(def.ScopeName, def)
	c.main = main

	root := c.newSet()
	c.table.sets[root].Rules = c.rootRules(main)
	c.table.Root = root

	// region bodies are expanded after the root so that $self sees every top level rule
	c.drain()

	// repository entries nothing includes are still validated
	for _, key := range slices.Sorted(maps.Keys(main.def.Repository)) {
		c.repoRules(main, key, "repository."+key)
	}
	c.drain()

	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("scope", c.table.ScopeName).
		Int("rules", len(c.table.rules)).
		Int("rule_sets", len(c.table.sets)).
		Msg("compiled grammar")

	return c.table, nil
}

type compiler struct {
	table *Table
	opts  options
	errs  *multierror.Error

	main  *unit
	units map[string]*unit
	queue []bodyJob

	// cuts counts include cycles broken while expanding; partial expansions are not memoised
	cuts int
}

type bodyJob struct {
	unit     *unit
	set      RuleSetID
	end      RuleID
	endLast  bool
	patterns []tmlanguage.Pattern
	where    string
}

// unit is one grammar definition taking part in a compilation.
type unit struct {
	scope string
	def   *tmlanguage.Grammar
	repo  map[string]*entry
	root  entry
}

type entry struct {
	pattern   tmlanguage.Pattern
	rule      RuleID
	rules     []RuleID
	done      bool
	failed    bool
	expanding bool
}

func (c *compiler) drain() {
	for len(c.queue) > 0 {
		job := c.queue[0]
		c.queue = c.queue[1:]
		rules := make([]RuleID, 0, len(job.patterns)+1)
		if job.end != NoRule && !job.endLast {
			rules = append(rules, job.end)
		}
		rules = appendUnique(rules, c.expand(job.unit, job.patterns, job.where)...)
		if job.end != NoRule && job.endLast {
			rules = append(rules, job.end)
		}
		c.table.sets[job.set].Rules = rules
	}
}

func (c *compiler) newUnit(scope string, def *tmlanguage.Grammar) *unit {
	u := &unit{
		scope: scope,
		def:   def,
		repo:  make(map[string]*entry, len(def.Repository)),
		root:  entry{rule: NoRule, pattern: tmlanguage.Pattern{Patterns: def.Patterns}},
	}
	for k, p := range def.Repository {
		u.repo[k] = &entry{pattern: p, rule: NoRule}
	}
	c.units[scope] = u
	return u
}

func (c *compiler) fail(format string, args ...any) {
	c.errs = multierror.Append(c.errs, errors.Errorf("%w: "+format, append([]any{ErrMalformedGrammar}, args...)...))
}

func (c *compiler) newSet() RuleSetID {
	id := RuleSetID(len(c.table.sets))
	c.table.sets = append(c.table.sets, RuleSet{ID: id})
	return id
}

func (c *compiler) alloc() RuleID {
	id := RuleID(len(c.table.rules))
	c.table.rules = append(c.table.rules, Rule{ID: id, End: NoRule, Owner: NoRule})
	return id
}

func (c *compiler) regex(src, where string) *regexp2.Regexp {
	re, err := regexp2.Compile(src, regexp2.None)
	if err != nil {
		c.fail("%s: invalid pattern %q: %v", where, src, err)
		return nil
	}
	if c.opts.matchTimeout > 0 {
		re.MatchTimeout = c.opts.matchTimeout
	}
	return re
}

func (c *compiler) expand(u *unit, patterns []tmlanguage.Pattern, where string) []RuleID {
	var out []RuleID
	for i, p := range patterns {
		if p.Disabled {
			continue
		}
		out = appendUnique(out, c.expandOne(u, p, fmt.Sprintf("%s.patterns[%d]", where, i))...)
	}
	return out
}

func (c *compiler) expandOne(u *unit, p tmlanguage.Pattern, where string) []RuleID {
	switch {
	case p.Include != nil:
		return c.include(u, *p.Include, where)
	case p.Match != nil, p.Begin != nil:
		id := c.alloc()
		if !c.fill(u, id, p, where) {
			return nil
		}
		return []RuleID{id}
	case p.End != nil, p.While != nil:
		c.fail("%s: end/while pattern without begin", where)
		return nil
	default:
		return c.expand(u, p.Patterns, where)
	}
}

func (c *compiler) include(u *unit, ref, where string) []RuleID {
	switch {
	case ref == "$self":
		return c.rootRules(u)
	case ref == "$base":
		return c.rootRules(c.main)
	case strings.HasPrefix(ref, "#"):
		return c.repoRules(u, ref[1:], where)
	}

	scope, key, _ := strings.Cut(ref, "#")
	other, ok := c.units[scope]
	if !ok {
		var def *tmlanguage.Grammar
		if c.opts.resolver != nil {
			def, ok = c.opts.resolver(scope)
		}
		if !ok || def == nil {
			c.fail("%s: include of unknown grammar %q", where, scope)
			return nil
		}
		other = c.newUnit(scope, def)
	}
	if key == "" {
		return c.rootRules(other)
	}
	return c.repoRules(other, key, where)
}

func (c *compiler) rootRules(u *unit) []RuleID {
	return c.container(u, &u.root, u.scope)
}

func (c *compiler) repoRules(u *unit, key, where string) []RuleID {
	e, ok := u.repo[key]
	if !ok {
		c.fail("%s: include of undefined repository rule %q", where, key)
		return nil
	}
	p := e.pattern
	if p.Disabled {
		return nil
	}
	if p.Match != nil || p.Begin != nil {
		if e.rule == NoRule {
			e.rule = c.alloc()
			e.failed = !c.fill(u, e.rule, p, "repository."+key)
		}
		if e.failed {
			return nil
		}
		return []RuleID{e.rule}
	}
	if p.Include != nil {
		if e.expanding {
			c.cuts++
			return nil
		}
		e.expanding = true
		out := c.include(u, *p.Include, "repository."+key)
		e.expanding = false
		return out
	}
	if p.End != nil || p.While != nil {
		if !e.failed {
			e.failed = true
			c.fail("repository.%s: end/while pattern without begin", key)
		}
		return nil
	}
	return c.container(u, e, "repository."+key)
}

func (c *compiler) container(u *unit, e *entry, where string) []RuleID {
	if e.done {
		return e.rules
	}
	if e.expanding {
		c.cuts++
		return nil
	}
	e.expanding = true
	before := c.cuts
	rules := c.expand(u, e.pattern.Patterns, where)
	e.expanding = false
	if c.cuts == before {
		e.rules = rules
		e.done = true
	}
	return rules
}

// fill compiles p into the already allocated rule id.
func (c *compiler) fill(u *unit, id RuleID, p tmlanguage.Pattern, where string) bool {
	before := len(c.errs.WrappedErrors())
	r := Rule{
		ID:          id,
		Name:        tmlanguage.Str(p.Name),
		ContentName: tmlanguage.Str(p.ContentName),
		End:         NoRule,
		Owner:       NoRule,
	}

	switch {
	case p.Match != nil:
		r.Kind = KindMatch
		r.Source = *p.Match
		r.Pattern = c.regex(r.Source, where+".match")
		r.Captures = c.captures(p.Captures, r.Pattern, where+".captures")
	case p.Begin != nil && p.End != nil:
		r.Kind = KindBegin
		r.Source = *p.Begin
		r.Pattern = c.regex(r.Source, where+".begin")
		r.Captures = c.captures(pick(p.BeginCaptures, p.Captures), r.Pattern, where+".beginCaptures")
		r.End = c.endRule(id, r.Name, *p.End, pick(p.EndCaptures, p.Captures), where)
		r.Children = c.newSet()
		c.queue = append(c.queue, bodyJob{
			unit: u, set: r.Children, end: r.End, endLast: bool(p.ApplyEndPatternLast),
			patterns: p.Patterns, where: where,
		})
	case p.Begin != nil && p.While != nil:
		r.Kind = KindBegin
		r.Source = *p.Begin
		r.Pattern = c.regex(r.Source, where+".begin")
		r.Captures = c.captures(pick(p.BeginCaptures, p.Captures), r.Pattern, where+".beginCaptures")
		r.While = c.regex(*p.While, where+".while")
		r.WhileCaptures = c.captures(pick(p.WhileCaptures, p.Captures), r.While, where+".whileCaptures")
		r.Children = c.newSet()
		c.queue = append(c.queue, bodyJob{unit: u, set: r.Children, end: NoRule, patterns: p.Patterns, where: where})
	default:
		c.fail("%s: unterminated begin/end pair: begin %q has no end or while", where, *p.Begin)
	}

	c.table.rules[id] = r
	return len(c.errs.WrappedErrors()) == before
}

func (c *compiler) endRule(owner RuleID, name, src string, caps tmlanguage.Captures, where string) RuleID {
	id := c.alloc()
	r := Rule{
		ID:     id,
		Kind:   KindEnd,
		Name:   name,
		Source: src,
		End:    NoRule,
		Owner:  owner,
	}
	if ok, _ := backrefPattern.MatchString(src); ok {
		// compiled per region once the begin captures are known
		r.Backrefs = true
		r.Captures = c.captures(caps, nil, where+".endCaptures")
	} else {
		r.Pattern = c.regex(src, where+".end")
		r.Captures = c.captures(caps, r.Pattern, where+".endCaptures")
	}
	c.table.rules[id] = r
	return id
}

func (c *compiler) captures(caps tmlanguage.Captures, re *regexp2.Regexp, where string) []string {
	indexed, err := caps.Indexed()
	if err != nil {
		c.fail("%s: %v", where, err)
		return nil
	}
	if len(indexed) == 0 {
		return nil
	}
	groups := -1
	if re != nil {
		for _, n := range re.GetGroupNumbers() {
			groups = max(groups, n)
		}
	}
	size := 0
	for i := range indexed {
		if groups >= 0 && i > groups {
			c.fail("%s: capture %d exceeds the %d groups of the pattern", where, i, groups)
			continue
		}
		size = max(size, i+1)
	}
	out := make([]string, size)
	for i, cp := range indexed {
		if i < size {
			out[i] = tmlanguage.Str(cp.Name)
		}
	}
	return out
}

func pick(specific, shared tmlanguage.Captures) tmlanguage.Captures {
	if len(specific) > 0 {
		return specific
	}
	return shared
}

func appendUnique(dst []RuleID, ids ...RuleID) []RuleID {
	for _, id := range ids {
		dup := false
		for _, have := range dst {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, id)
		}
	}
	return dst
}
