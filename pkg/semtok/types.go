package semtok

// TokenType is the index of a token type in the legend.
type TokenType uint32

const (
	TokenNamespace TokenType = iota
	TokenType_
	TokenFunction
	TokenParameter
	TokenVariable
	TokenProperty
	TokenKeyword
	TokenOperator
	TokenString
	TokenRegexp
	TokenNumber
	TokenComment
)

var tokenTypeNames = []string{
	TokenNamespace: "namespace",
	TokenType_:     "type",
	TokenFunction:  "function",
	TokenParameter: "parameter",
	TokenVariable:  "variable",
	TokenProperty:  "property",
	TokenKeyword:   "keyword",
	TokenOperator:  "operator",
	TokenString:    "string",
	TokenRegexp:    "regexp",
	TokenNumber:    "number",
	TokenComment:   "comment",
}

// String returns the protocol name of the token type
func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// TokenModifier is a bit set over the modifiers of the legend.
type TokenModifier uint32

const (
	ModifierNone TokenModifier = 0

	// ModifierDeclaration marks the name being declared
	ModifierDeclaration TokenModifier = 1 << (iota - 1)

	// ModifierReadonly marks constants
	ModifierReadonly

	// ModifierDefaultLibrary marks names the language provides
	ModifierDefaultLibrary
)

var tokenModifierNames = []string{"declaration", "readonly", "defaultLibrary"}

// String returns the protocol names of the set modifiers, space separated
func (m TokenModifier) String() string {
	if m == ModifierNone {
		return "none"
	}
	out := ""
	for i, name := range tokenModifierNames {
		if m&(1<<i) == 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += name
	}
	return out
}

// Legend lists the token types and modifiers the encoded data refers to.
type Legend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

func DefaultLegend() Legend {
	return Legend{
		TokenTypes:     append([]string(nil), tokenTypeNames...),
		TokenModifiers: append([]string(nil), tokenModifierNames...),
	}
}

// Token is a classified byte range of the input.
type Token struct {
	Start    int
	End      int
	Type     TokenType
	Modifier TokenModifier
}
