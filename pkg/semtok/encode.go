package semtok

import (
	"unicode/utf16"
	"unicode/utf8"
)

type cursor struct {
	text string
	pos  int
	line int
	// col counts UTF-16 code units since the start of the line
	col int
}

func (c *cursor) advance(to int) {
	for c.pos < to {
		r, size := utf8.DecodeRuneInString(c.text[c.pos:])
		if r == '\n' {
			c.line++
			c.col = 0
		} else {
			c.col += max(utf16.RuneLen(r), 1)
		}
		c.pos += size
	}
}

func (c *cursor) lineEnd(limit int) int {
	for i := c.pos; i < limit; i++ {
		if c.text[i] == '\n' {
			return i
		}
	}
	return limit
}

// Encode produces the relative encoding of tokens over text: five integers
// per token (line delta, start character delta, length, type, modifiers).
// Tokens must be sorted and must not overlap. A token spanning several lines
// is split at the line breaks.
func Encode(text string, tokens []Token) []uint32 {
	var (
		c                  = cursor{text: text}
		data               []uint32
		prevLine, prevChar int
	)
	for _, tok := range tokens {
		if tok.Start < c.pos || tok.End > len(text) {
			continue
		}
		c.advance(tok.Start)
		for c.pos < tok.End {
			if text[c.pos] == '\n' {
				c.advance(c.pos + 1)
				continue
			}
			line, char := c.line, c.col
			c.advance(c.lineEnd(tok.End))

			deltaChar := char
			if line == prevLine {
				deltaChar = char - prevChar
			}
			data = append(data,
				uint32(line-prevLine),
				uint32(deltaChar),
				uint32(c.col-char),
				uint32(tok.Type),
				uint32(tok.Modifier),
			)
			prevLine, prevChar = line, char
		}
	}
	return data
}
