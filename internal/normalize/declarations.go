package normalize

import (
	"strings"

	"docforge/internal/lexical"
)

const noteDowngrade = "downgraded block-scoped declarations to var"

// downgradeDeclarations rewrites `let` and `const` to `var`. The host
// engine has no block scoping, so the function-scoped form is the closest
// executable equivalent. Purely lexical and scanner-gated: keyword-shaped
// text inside strings, comments, or regexes is untouched.
func downgradeDeclarations(code string) Result {
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i := 0; i < len(code); i++ {
		if regions[i] != lexical.Code && regions[i] != lexical.TemplateExpr {
			b.WriteByte(code[i])
			continue
		}
		if word, n := declKeywordAt(code, regions, i); word != "" {
			b.WriteString("var")
			i += n - 1
			changed = true
			continue
		}
		b.WriteByte(code[i])
	}

	res := Result{Code: b.String(), Changed: changed}
	if changed {
		res.Notes = []string{noteDowngrade}
	}
	return res
}

// declKeywordAt reports the declaration keyword starting at i, if any,
// and its length. A match requires word boundaries on both sides and a
// following declaration target (identifier or destructuring opener).
func declKeywordAt(code string, regions []lexical.Region, i int) (string, int) {
	for _, kw := range [...]string{"let", "const"} {
		if !strings.HasPrefix(code[i:], kw) {
			continue
		}
		if i > 0 && isIdentByte(code[i-1]) {
			continue
		}
		after := i + len(kw)
		if after < len(code) && isIdentByte(code[after]) {
			continue
		}
		// The whole keyword must sit in code position.
		inCode := true
		for j := i; j < after; j++ {
			if regions[j] != lexical.Code && regions[j] != lexical.TemplateExpr {
				inCode = false
				break
			}
		}
		if !inCode {
			continue
		}
		j := after
		for j < len(code) && (code[j] == ' ' || code[j] == '\t') {
			j++
		}
		if j >= len(code) {
			continue
		}
		c := code[j]
		if isIdentStartByte(c) || c == '[' || c == '{' {
			// `const enum Color {` is a typed-dialect declaration, not a
			// binding; the enum rewrite consumes the whole header later.
			if wordAt(code, j, "enum") {
				continue
			}
			return kw, len(kw)
		}
	}
	return "", 0
}

// wordAt reports whether the identifier word starts at i in code.
func wordAt(code string, i int, word string) bool {
	if !strings.HasPrefix(code[i:], word) {
		return false
	}
	after := i + len(word)
	return after >= len(code) || !isIdentByte(code[after])
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '$'
}

func isIdentStartByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}
