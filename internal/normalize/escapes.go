package normalize

import (
	"strings"

	"docforge/internal/lexical"
)

const noteEscapes = "promoted literal \\n tokens to line breaks"

// repairStrayEscapes promotes literal two-character "\n" tokens appearing
// in code position into real line breaks. Generators that double-escape
// their output leak these between statements; a backslash is never valid
// ES5 in code position, so promotion is safe when the token sits next to
// a statement separator.
func repairStrayEscapes(code string) Result {
	if !strings.Contains(code, `\n`) {
		return Result{Code: code}
	}
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i := 0; i < len(code); i++ {
		if code[i] == '\\' && i+1 < len(code) && code[i+1] == 'n' &&
			regions[i] == lexical.Code && regions[i+1] == lexical.Code &&
			nearStatementSeparator(code, i) {
			// Promote the whole run: the tokens after the first have
			// no separator of their own.
			for i+1 < len(code) && code[i] == '\\' && code[i+1] == 'n' &&
				regions[i] == lexical.Code {
				b.WriteByte('\n')
				i += 2
			}
			i--
			changed = true
			continue
		}
		b.WriteByte(code[i])
	}

	res := Result{Code: b.String(), Changed: changed}
	if changed {
		res.Notes = []string{noteEscapes}
	}
	return res
}

// nearStatementSeparator reports whether the token at i is adjacent
// (ignoring spaces and further stray tokens) to a statement separator.
func nearStatementSeparator(code string, i int) bool {
	j := i - 1
	for j >= 0 && (code[j] == ' ' || code[j] == '\t') {
		j--
	}
	if j < 0 {
		return true
	}
	switch code[j] {
	case ';', '{', '}', ')', '\n':
		return true
	}
	k := i + 2
	for k < len(code) {
		switch {
		case code[k] == ' ' || code[k] == '\t':
			k++
		case code[k] == '\\' && k+1 < len(code) && code[k+1] == 'n':
			k += 2
		default:
			switch code[k] {
			case ';', '}', '{':
				return true
			}
			return false
		}
	}
	return true
}
