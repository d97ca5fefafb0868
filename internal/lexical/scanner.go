// Package lexical classifies every byte offset of a script into a lexical
// region. It is the shared primitive behind every rewrite pass: a pass may
// only touch offsets tagged Code unless removing comments or templates is
// its documented purpose.
//
// The recognized grammar is intentionally shallow (delimiters and escapes
// only), so the scanner is a single left-to-right state machine with one
// byte of lookahead rather than a parser. It never fails: unterminated
// literals classify the remainder of the text as the unterminated region,
// because the output feeds best-effort rewriting, not validation.
package lexical

// Region tags the lexical classification of a single byte offset.
type Region uint8

const (
	Code Region = iota
	StringSingle
	StringDouble
	Template
	TemplateExpr
	Regex
	RegexCharClass
	LineComment
	BlockComment
)

func (r Region) String() string {
	switch r {
	case Code:
		return "code"
	case StringSingle:
		return "string-single"
	case StringDouble:
		return "string-double"
	case Template:
		return "template"
	case TemplateExpr:
		return "template-expr"
	case Regex:
		return "regex"
	case RegexCharClass:
		return "regex-class"
	case LineComment:
		return "line-comment"
	case BlockComment:
		return "block-comment"
	default:
		return "unknown"
	}
}

// IsString reports whether the region is inside any string-like literal.
func (r Region) IsString() bool {
	return r == StringSingle || r == StringDouble || r == Template
}

// IsComment reports whether the region is inside a comment.
func (r Region) IsComment() bool {
	return r == LineComment || r == BlockComment
}

// IsRegex reports whether the region is inside a regex literal.
func (r Region) IsRegex() bool {
	return r == Regex || r == RegexCharClass
}

// keywords after which a '/' begins a regex literal rather than division.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true,
	"of": true, "new": true, "delete": true, "void": true, "case": true,
	"do": true, "else": true, "throw": true, "yield": true,
}

// scanState is one frame of the scanner's nesting stack. Template
// expressions can nest whole templates, so plain single-state tracking is
// not enough; everything else needs only the top frame.
type scanState struct {
	region     Region
	braceDepth int // TemplateExpr: unmatched '{' inside the expression
}

// Scan returns one Region tag per byte of src. Delimiters are tagged as
// part of the region they open or close.
func Scan(src string) []Region {
	tags := make([]Region, len(src))
	if len(src) == 0 {
		return tags
	}

	stack := []scanState{{region: Code}}
	top := func() *scanState { return &stack[len(stack)-1] }

	// Expression-position tracking for regex-vs-division. lastSig is the
	// last significant code byte; lastWord the last identifier-ish token.
	var lastSig byte
	var lastWord []byte
	escaped := false

	push := func(r Region) { stack = append(stack, scanState{region: r}) }
	pop := func() {
		if len(stack) > 1 {
			stack = stack[:len(stack)-1]
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		var next byte
		if i+1 < len(src) {
			next = src[i+1]
		}
		st := top()
		tags[i] = st.region

		if escaped {
			// An escape sequence never changes region.
			escaped = false
			continue
		}

		switch st.region {
		case Code, TemplateExpr:
			tags[i] = st.region
			switch {
			case c == '\\':
				escaped = true
			case c == '\'':
				push(StringSingle)
				tags[i] = StringSingle
			case c == '"':
				push(StringDouble)
				tags[i] = StringDouble
			case c == '`':
				push(Template)
				tags[i] = Template
			case c == '/' && next == '/':
				push(LineComment)
				tags[i] = LineComment
			case c == '/' && next == '*':
				push(BlockComment)
				tags[i] = BlockComment
			case c == '/' && regexPosition(lastSig, lastWord):
				push(Regex)
				tags[i] = Regex
			case c == '{' && st.region == TemplateExpr:
				st.braceDepth++
			case c == '}' && st.region == TemplateExpr:
				if st.braceDepth == 0 {
					// Closing the interpolation; the '}' belongs to it.
					pop()
				} else {
					st.braceDepth--
				}
			}
			if tags[i] == Code || tags[i] == TemplateExpr {
				trackSignificant(c, &lastSig, &lastWord)
			}

		case StringSingle:
			switch c {
			case '\\':
				escaped = true
			case '\'':
				pop()
				lastSig, lastWord = 'x', nil // a string literal is a value
			case '\n':
				// Unterminated single-line string: fail open, stay in
				// region until the quote or EOF. A raw newline is already
				// broken input; the rewrite passes must still see it as
				// string content.
			}

		case StringDouble:
			switch c {
			case '\\':
				escaped = true
			case '"':
				pop()
				lastSig, lastWord = 'x', nil
			}

		case Template:
			switch {
			case c == '\\':
				escaped = true
			case c == '`':
				pop()
				lastSig, lastWord = 'x', nil
			case c == '$' && next == '{':
				push(TemplateExpr)
				tags[i] = TemplateExpr
				i++
				tags[i] = TemplateExpr
				lastSig, lastWord = 0, nil
			}

		case Regex:
			switch c {
			case '\\':
				escaped = true
			case '[':
				st.region = RegexCharClass
			case '/':
				pop()
				lastSig, lastWord = 'x', nil // a regex literal is a value
			case '\n':
				// Unterminated regex; remain fail-open.
			}

		case RegexCharClass:
			switch c {
			case '\\':
				escaped = true
			case ']':
				st.region = Regex
			}

		case LineComment:
			if c == '\n' {
				pop()
				tags[i] = Code
			}

		case BlockComment:
			if c == '*' && next == '/' {
				tags[i+1] = BlockComment
				i++
				pop()
			}
		}
	}
	return tags
}

// regexPosition reports whether a '/' at the current position starts a
// regex literal, judged from the preceding significant token.
func regexPosition(lastSig byte, lastWord []byte) bool {
	if len(lastWord) > 0 && regexKeywords[string(lastWord)] {
		return true
	}
	switch lastSig {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';',
		'+', '-', '*', '%', '~', '^', '<', '>':
		return true
	}
	return false
}

func trackSignificant(c byte, lastSig *byte, lastWord *[]byte) {
	switch {
	case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		return
	case isWordByte(c):
		if isWordByte(*lastSig) {
			*lastWord = append(*lastWord, c)
		} else {
			*lastWord = append((*lastWord)[:0], c)
		}
	default:
		*lastWord = (*lastWord)[:0]
	}
	*lastSig = c
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '$'
}
