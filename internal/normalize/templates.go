package normalize

import (
	"strings"

	"docforge/internal/lexical"
)

const noteTemplates = "desugared template literals to concatenation"

// maxTemplatePasses bounds the desugaring loop. Interpolated expressions
// may contain further template literals; each pass rewrites one level of
// nesting, and generated scripts never nest deeper than this in practice.
const maxTemplatePasses = 4

// desugarTemplates rewrites delimited interpolated-string literals into
// equivalent concatenation expressions the host engine can parse.
func desugarTemplates(code string) Result {
	changed := false
	for pass := 0; pass < maxTemplatePasses; pass++ {
		next, did := desugarOnce(code)
		if !did {
			break
		}
		code = next
		changed = true
	}
	res := Result{Code: code, Changed: changed}
	if changed {
		res.Notes = []string{noteTemplates}
	}
	return res
}

// desugarOnce rewrites every top-level template literal in code once.
// Templates nested inside interpolations survive verbatim into the
// rewritten expression and are handled by the next pass.
func desugarOnce(code string) (string, bool) {
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i := 0; i < len(code); i++ {
		if code[i] != '`' || regions[i] != lexical.Template {
			b.WriteByte(code[i])
			continue
		}
		// Only rewrite templates opened from code position; an opening
		// backtick is tagged Template with the preceding byte outside it.
		if i > 0 && regions[i-1] == lexical.Template {
			b.WriteByte(code[i])
			continue
		}
		expr, end, ok := parseTemplate(code, i)
		if !ok {
			b.WriteByte(code[i])
			continue
		}
		b.WriteString(expr)
		i = end - 1
		changed = true
	}
	return b.String(), changed
}

// parseTemplate parses the template literal opening at code[start] and
// returns the equivalent concatenation expression plus the index just
// past the closing backtick.
func parseTemplate(code string, start int) (string, int, bool) {
	var pieces []string
	var lit strings.Builder
	sawExpr := false

	flushLit := func(force bool) {
		if lit.Len() == 0 && !force {
			return
		}
		pieces = append(pieces, quoteJS(lit.String()))
		lit.Reset()
	}

	i := start + 1
	for i < len(code) {
		c := code[i]
		switch {
		case c == '\\' && i+1 < len(code):
			// Template escapes for the backtick and interpolation opener
			// drop the backslash; everything else stays a valid escape in
			// the double-quoted output.
			switch code[i+1] {
			case '`', '$':
				lit.WriteByte(code[i+1])
			default:
				lit.WriteByte(c)
				lit.WriteByte(code[i+1])
			}
			i += 2
		case c == '`':
			flushLit(len(pieces) == 0)
			if !sawExpr && len(pieces) == 1 {
				return pieces[0], i + 1, true
			}
			return "(" + strings.Join(pieces, " + ") + ")", i + 1, true
		case c == '$' && i+1 < len(code) && code[i+1] == '{':
			exprEnd, ok := matchInterpolationEnd(code, i+2)
			if !ok {
				return "", 0, false
			}
			expr := strings.TrimSpace(code[i+2 : exprEnd])
			flushLit(false)
			if len(pieces) == 0 {
				// Force string semantics when the literal starts with an
				// interpolation.
				pieces = append(pieces, `""`)
			}
			if expr == "" {
				pieces = append(pieces, `""`)
			} else {
				pieces = append(pieces, "("+expr+")")
			}
			sawExpr = true
			i = exprEnd + 1
		default:
			lit.WriteByte(c)
			i++
		}
	}
	// Unterminated template: leave it for the safety gate to reject.
	return "", 0, false
}

// matchInterpolationEnd finds the '}' closing an interpolation whose
// expression starts at i, skipping nested braces, strings, and nested
// template literals.
func matchInterpolationEnd(code string, i int) (int, bool) {
	depth := 0
	for i < len(code) {
		switch code[i] {
		case '\\':
			i += 2
			continue
		case '\'', '"':
			end, ok := skipQuoted(code, i)
			if !ok {
				return 0, false
			}
			i = end
			continue
		case '`':
			end, ok := skipNestedTemplate(code, i)
			if !ok {
				return 0, false
			}
			i = end
			continue
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, true
			}
			depth--
		}
		i++
	}
	return 0, false
}

// skipQuoted returns the index just past a quoted string starting at i.
func skipQuoted(code string, i int) (int, bool) {
	quote := code[i]
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case quote:
			return j + 1, true
		}
	}
	return 0, false
}

// skipNestedTemplate returns the index just past a template literal
// starting at i, recursing through its interpolations.
func skipNestedTemplate(code string, i int) (int, bool) {
	j := i + 1
	for j < len(code) {
		switch code[j] {
		case '\\':
			j += 2
			continue
		case '`':
			return j + 1, true
		case '$':
			if j+1 < len(code) && code[j+1] == '{' {
				end, ok := matchInterpolationEnd(code, j+2)
				if !ok {
					return 0, false
				}
				j = end + 1
				continue
			}
		}
		j++
	}
	return 0, false
}

// quoteJS renders raw template text as a double-quoted ES5 string.
// Backslash escapes carried over from the template stay as written.
func quoteJS(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 2)
	b.WriteByte('"')
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '\\':
			b.WriteByte('\\')
			if i+1 < len(raw) {
				i++
				b.WriteByte(raw[i])
			} else {
				b.WriteByte('\\')
			}
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
