package normalize

import (
	"strings"

	"docforge/internal/lexical"
)

const noteComments = "removed comments"

// DirectivePrefix marks single-line comments that carry out-of-band hints
// (block id, anchor placement) and must survive comment stripping.
const DirectivePrefix = "//@"

// stripComments removes comments from the body. Directive comments are
// kept verbatim. Block comments collapse to an equal run of newlines so
// later diagnostics still point at the right lines.
func stripComments(code string) Result {
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i := 0; i < len(code); i++ {
		r := regions[i]
		switch r {
		case lexical.LineComment:
			end := i
			for end < len(code) && code[end] != '\n' {
				end++
			}
			comment := code[i:end]
			if strings.HasPrefix(comment, DirectivePrefix) {
				b.WriteString(comment)
			} else {
				changed = true
			}
			i = end - 1
		case lexical.BlockComment:
			end := i
			for end < len(code) && regions[end] == lexical.BlockComment {
				end++
			}
			b.WriteString(strings.Repeat("\n", strings.Count(code[i:end], "\n")))
			changed = true
			i = end - 1
		default:
			b.WriteByte(code[i])
		}
	}

	res := Result{Code: b.String(), Changed: changed}
	if changed {
		res.Notes = []string{noteComments}
	}
	return res
}
