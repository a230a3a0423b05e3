// Package position converts byte offsets of scanned text into line and
// column places. Columns count grapheme clusters, so "é" composed of two
// code points still occupies a single column.
package position

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
)

// Place is a zero-based line and column.
type Place struct {
	Line      int
	Character int
}

// String renders the place one-based, the way editors and compilers print it.
func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

type Range struct {
	Start Place
	End   Place
}

func (r Range) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Index answers offset queries over one text. It is immutable and safe for
// concurrent use.
type Index struct {
	text string
	// lines[i] is the byte offset at which line i starts
	lines []int
}

func NewIndex(text string) *Index {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Index{text: text, lines: lines}
}

// LineCount reports the number of lines, counting a trailing partial line.
func (x *Index) LineCount() int {
	return len(x.lines)
}

// Place converts a byte offset. Offsets are clamped to the text, and an
// offset inside a grapheme cluster maps to the column of that cluster.
func (x *Index) Place(offset int) Place {
	offset = max(0, min(offset, len(x.text)))
	line := sort.Search(len(x.lines), func(i int) bool { return x.lines[i] > offset }) - 1
	return Place{Line: line, Character: columns(x.text[x.lines[line]:offset])}
}

func (x *Index) Range(start, end int) Range {
	return Range{Start: x.Place(start), End: x.Place(end)}
}

// Offset converts a place back to a byte offset. Columns past the end of the
// line clamp to the line break.
func (x *Index) Offset(p Place) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(x.lines) {
		return len(x.text)
	}
	start := x.lines[p.Line]
	end := len(x.text)
	if p.Line+1 < len(x.lines) {
		end = x.lines[p.Line+1] - 1
	}
	line := x.text[start:end]
	for col := 0; col < p.Character && line != ""; col++ {
		adv, _, _ := textseg.ScanGraphemeClusters([]byte(line), true)
		if adv == 0 {
			break
		}
		line = line[adv:]
	}
	return end - len(line)
}

// Line returns the text of a line without its line break.
func (x *Index) Line(n int) string {
	if n < 0 || n >= len(x.lines) {
		return ""
	}
	start := x.lines[n]
	end := len(x.text)
	if n+1 < len(x.lines) {
		end = x.lines[n+1]
	}
	return strings.TrimRight(x.text[start:end], "\r\n")
}

func columns(s string) int {
	if s == "" {
		return 0
	}
	n, err := textseg.TokenCount([]byte(s), textseg.ScanGraphemeClusters)
	if err != nil {
		return len([]rune(s))
	}
	return n
}
