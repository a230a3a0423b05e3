// Package scanner walks text with a compiled grammar table and produces
// spans annotated with the scope stack in effect for each of them.
//
// Spans are contiguous, non-overlapping, and together cover every byte of
// the input in order.
package scanner

import (
	"context"
	"iter"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/scope"
)

// maxStalls bounds consecutive steps that change the stack without consuming
// input before the scanner forces progress.
const maxStalls = 256

// Span is a byte range of the input together with its scope stack.
type Span struct {
	Start int
	End   int
	Stack *scope.Stack
}

// Scopes returns the scope names of the span, outermost first.
func (s Span) Scopes() []string {
	return scope.Resolve(s.Stack)
}

func (s Span) Len() int {
	return s.End - s.Start
}

type frame struct {
	rule grammar.RuleID
	set  grammar.RuleSetID
	// node carries the rule name and scopes the delimiters
	node *scope.Stack
	// content additionally carries the contentName and scopes the interior
	content *scope.Stack
	end     *regexp2.Regexp
	while   *regexp2.Regexp
	begin   int
}

// Scanner produces spans lazily. A Scanner is not safe for concurrent use,
// but any number of scanners may share a Table.
type Scanner struct {
	table  *grammar.Table
	text   string
	frames []frame

	// current line as runes, offs[i] is the byte offset of line[i] in text
	// and offs[len(line)] the offset just past the line
	line      []rune
	offs      []int
	lineStart int
	loaded    bool
	pos       int
	stalls    int

	held     Span
	holding  bool
	queue    []Span
	cur      Span
	finished bool
	emitted  int

	skip     map[grammar.RuleID]bool
	warnings []Warning
	err      error
}

// New returns a scanner over text positioned before the first span.
func New(table *grammar.Table, text string) *Scanner {
	root := scope.Root(table.ScopeName)
	return &Scanner{
		table: table,
		text:  text,
		frames: []frame{{
			rule:    grammar.NoRule,
			set:     table.Root,
			node:    root,
			content: root,
			begin:   0,
		}},
		skip: make(map[grammar.RuleID]bool),
	}
}

// Scan tokenizes the whole text.
func Scan(ctx context.Context, table *grammar.Table, text string) ([]Span, []Warning, error) {
	s := New(table, text)
	var spans []Span
	for s.Next(ctx) {
		spans = append(spans, s.Span())
	}
	return spans, s.Warnings(), s.Err()
}

// Next advances to the next span. It returns false at the end of the input
// or once ctx is done, in which case Err reports the cancellation. Spans
// returned before that point remain valid.
func (s *Scanner) Next(ctx context.Context) bool {
	for len(s.queue) == 0 {
		if s.finished || s.err != nil {
			return false
		}
		if err := ctx.Err(); err != nil {
			s.err = errors.WithStack(err)
			return false
		}
		s.step(ctx)
	}
	s.cur = s.queue[0]
	s.queue = s.queue[1:]
	return true
}

// Span returns the span produced by the last call to Next.
func (s *Scanner) Span() Span {
	return s.cur
}

func (s *Scanner) Err() error {
	return s.err
}

// Warnings returns the warnings found so far. Unterminated regions are only
// known once the scanner reached the end of the input.
func (s *Scanner) Warnings() []Warning {
	return s.warnings
}

// All yields the remaining spans.
func (s *Scanner) All(ctx context.Context) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		for s.Next(ctx) {
			if !yield(s.Span()) {
				return
			}
		}
	}
}

// Stack returns the scope stack inside the innermost open region.
func (s *Scanner) Stack() *scope.Stack {
	return s.top().content
}

func (s *Scanner) top() *frame {
	return &s.frames[len(s.frames)-1]
}

func (s *Scanner) step(ctx context.Context) {
	if !s.loaded {
		if s.lineStart >= len(s.text) {
			s.finish(ctx)
			return
		}
		s.load(ctx)
		return
	}
	if s.pos >= len(s.line) {
		s.lineStart = s.offs[len(s.line)]
		s.loaded = false
		return
	}
	s.match(ctx)
}

func (s *Scanner) load(ctx context.Context) {
	end := len(s.text)
	for i := s.lineStart; i < len(s.text); i++ {
		if s.text[i] == '\n' {
			end = i + 1
			break
		}
	}
	s.line = s.line[:0]
	s.offs = s.offs[:0]
	for i, r := range s.text[s.lineStart:end] {
		s.line = append(s.line, r)
		s.offs = append(s.offs, s.lineStart+i)
	}
	s.offs = append(s.offs, end)
	s.pos = 0
	s.stalls = 0
	s.loaded = true
	s.checkWhile(ctx)
}

// checkWhile re-validates begin/while regions at the start of a line, from
// the outermost inwards. A failing region closes together with everything
// opened inside it.
func (s *Scanner) checkWhile(ctx context.Context) {
	for i := 1; i < len(s.frames); i++ {
		f := s.frames[i]
		if f.while == nil {
			continue
		}
		m := s.find(ctx, f.rule, f.while)
		if m == nil || m.Index != s.pos {
			zerolog.Ctx(ctx).Trace().Int("offset", s.offs[s.pos]).Int("depth", i).Msg("while region closed")
			s.frames = s.frames[:i]
			return
		}
		end := m.Index + m.Length
		s.captures(f.node, f.rule, m, s.table.Rule(f.rule).WhileCaptures)
		s.pos = end
	}
}

func (s *Scanner) find(ctx context.Context, id grammar.RuleID, re *regexp2.Regexp) *regexp2.Match {
	if re == nil || s.skip[id] {
		return nil
	}
	m, err := re.FindRunesMatchStartingAt(s.line, s.pos)
	if err != nil {
		s.skip[id] = true
		name := ""
		if id != grammar.NoRule {
			name = s.table.Rule(id).Name
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("rule", int(id)).Msg("pattern exceeded match timeout")
		s.warnings = append(s.warnings, Warning{
			Kind:   WarningMatchTimeout,
			Offset: s.offs[s.pos],
			Scope:  name,
			Err:    errors.Errorf("%w: rule %d (%s): %v", ErrMatchTimeout, id, name, err),
		})
		return nil
	}
	return m
}

// match applies the best candidate of the active rule set at the current
// position: the leftmost match wins, ties go to the earlier rule.
func (s *Scanner) match(ctx context.Context) {
	top := s.top()
	var (
		best   *regexp2.Match
		bestID = grammar.NoRule
	)
	for _, id := range s.table.RuleSet(top.set).Rules {
		r := s.table.Rule(id)
		re := r.Pattern
		if r.Kind == grammar.KindEnd {
			re = top.end
		}
		m := s.find(ctx, id, re)
		if m == nil {
			continue
		}
		if best == nil || m.Index < best.Index {
			best, bestID = m, id
			if m.Index == s.pos {
				break
			}
		}
	}

	if best == nil {
		s.emit(s.pos, len(s.line), top.content)
		s.pos = len(s.line)
		return
	}

	s.emit(s.pos, best.Index, top.content)
	s.pos = best.Index
	start, end := best.Index, best.Index+best.Length
	r := s.table.Rule(bestID)

	switch r.Kind {
	case grammar.KindMatch:
		if start == end {
			s.advance(top.content)
			return
		}
		node := top.content
		if r.Name != "" {
			node = node.Push(bestID, r.Name)
		}
		s.captures(node, bestID, best, r.Captures)

	case grammar.KindBegin:
		if start == end && top.rule == bestID && top.begin == s.offs[start] {
			s.advance(top.content)
			return
		}
		node := top.content.Push(bestID, r.Name)
		s.captures(node, bestID, best, r.Captures)
		content := node
		if r.ContentName != "" {
			content = node.Push(bestID, r.ContentName)
		}
		f := frame{
			rule:    bestID,
			set:     r.Children,
			node:    node,
			content: content,
			while:   r.While,
			begin:   s.offs[start],
		}
		if r.End != grammar.NoRule {
			f.end = s.endPattern(ctx, s.table.Rule(r.End), best)
		}
		s.frames = append(s.frames, f)
		zerolog.Ctx(ctx).Trace().Int("offset", f.begin).Str("scope", r.Name).Int("depth", len(s.frames)-1).Msg("region opened")

	case grammar.KindEnd:
		s.captures(top.node, bestID, best, r.Captures)
		if len(s.frames) == 1 {
			_, err := top.node.Pop()
			s.err = errors.Errorf("end rule %d outside of any region: %w", bestID, err)
			return
		}
		s.frames = s.frames[:len(s.frames)-1]
		zerolog.Ctx(ctx).Trace().Int("offset", s.offs[end]).Str("scope", r.Name).Int("depth", len(s.frames)).Msg("region closed")
	}

	if end == s.pos {
		s.stalls++
		if s.stalls > maxStalls {
			s.advance(s.top().content)
		}
		return
	}
	s.stalls = 0
	s.pos = end
}

func (s *Scanner) endPattern(ctx context.Context, end *grammar.Rule, begin *regexp2.Match) *regexp2.Regexp {
	if !end.Backrefs {
		return end.Pattern
	}
	re, err := compileBackrefs(end.Source, begin, s.table.MatchTimeout)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("pattern", end.Source).Msg("end pattern with backreferences does not compile")
		s.warnings = append(s.warnings, Warning{
			Kind:   WarningInvalidEndPattern,
			Offset: s.offs[begin.Index],
			Scope:  end.Name,
			Err:    errors.Errorf("%w: %q: %v", ErrInvalidEndPattern, end.Source, err),
		})
		return nil
	}
	return re
}

// advance consumes one grapheme cluster without changing the stack.
func (s *Scanner) advance(node *scope.Stack) {
	n := graphemeRunes(s.text[s.offs[s.pos]:s.offs[len(s.line)]])
	end := min(s.pos+n, len(s.line))
	s.emit(s.pos, end, node)
	s.pos = end
	s.stalls = 0
}

// emit records the rune range [start, end) of the current line. Ranges
// continuing the previous span with the same stack extend it.
func (s *Scanner) emit(start, end int, node *scope.Stack) {
	if start >= end {
		return
	}
	b0, b1 := s.offs[start], s.offs[end]
	if s.holding && s.held.End == b0 && s.held.Stack == node {
		s.held.End = b1
		return
	}
	if s.holding {
		s.queue = append(s.queue, s.held)
		s.emitted++
	}
	s.held = Span{Start: b0, End: b1, Stack: node}
	s.holding = true
}

func (s *Scanner) finish(ctx context.Context) {
	for i := len(s.frames) - 1; i >= 1; i-- {
		f := s.frames[i]
		if f.while != nil {
			continue
		}
		name := s.table.Rule(f.rule).Name
		s.warnings = append(s.warnings, Warning{
			Kind:   WarningUnterminatedRegion,
			Offset: f.begin,
			Scope:  name,
			Err:    errors.Errorf("%w: %q opened at offset %d", ErrUnterminatedRegion, name, f.begin),
		})
	}
	s.frames = s.frames[:1]
	if s.holding {
		s.queue = append(s.queue, s.held)
		s.emitted++
		s.holding = false
	}
	s.finished = true

	zerolog.Ctx(ctx).Debug().
		Str("scope", s.table.ScopeName).
		Int("bytes", len(s.text)).
		Int("spans", s.emitted).
		Int("warnings", len(s.warnings)).
		Msg("scan finished")
}
