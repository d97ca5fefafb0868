package normalize

import (
	"regexp"
	"strings"

	"docforge/internal/lexical"
)

const noteHostCalls = "rewrote table cell accessor to the host's two-step indexer"

// tableBinding recognizes a variable statically bound to a host table
// collection: `var t = document.tables.item(0)`, `t = body.addTable(...)`
// and similar. Only receivers recognized this way are rewritten, to avoid
// false positives on unrelated .cell methods.
var tableBinding = regexp.MustCompile(
	`(?m)\b(?:var\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*[^;\n]*\b(?:tables\s*\.\s*item|getTable|addTable)\s*\(`)

// rewriteHostCalls applies deterministic repairs to known-wrong-but-
// guessable host call shapes. The host exposes a table cell only through
// rows.item(r).cells.item(c); generators routinely guess a flat
// cell(r, c) accessor instead.
func rewriteHostCalls(code string) Result {
	bound := map[string]bool{}
	for _, m := range tableBinding.FindAllStringSubmatch(code, -1) {
		bound[m[1]] = true
	}
	if len(bound) == 0 {
		return Result{Code: code}
	}

	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i := 0; i < len(code); i++ {
		if regions[i] != lexical.Code || !isIdentStartByte(code[i]) {
			b.WriteByte(code[i])
			continue
		}
		name, rewritten, end, ok := rewriteCellCall(code, regions, i, bound)
		if !ok {
			b.WriteString(name)
			i += len(name) - 1
			continue
		}
		b.WriteString(rewritten)
		i = end - 1
		changed = true
	}

	res := Result{Code: b.String(), Changed: changed}
	if changed {
		res.Notes = []string{noteHostCalls}
	}
	return res
}

// rewriteCellCall attempts to rewrite `name.cell(r, c)` starting at i.
// It returns the identifier at i regardless, so the caller can skip it
// atomically (identifiers must never be rescanned mid-word).
func rewriteCellCall(code string, regions []lexical.Region, i int, bound map[string]bool) (name, rewritten string, end int, ok bool) {
	j := i
	for j < len(code) && isIdentByte(code[j]) {
		j++
	}
	name = code[i:j]
	if i > 0 && (isIdentByte(code[i-1]) || code[i-1] == '.') {
		return name, "", 0, false
	}
	if !bound[name] {
		return name, "", 0, false
	}
	rest := code[j:]
	const accessor = ".cell("
	if !strings.HasPrefix(rest, accessor) {
		return name, "", 0, false
	}
	argStart := j + len(accessor)
	argEnd, found := matchCallEnd(code, regions, argStart)
	if !found {
		return name, "", 0, false
	}
	row, col, split := splitTwoArgs(code[argStart:argEnd])
	if !split {
		return name, "", 0, false
	}
	rewritten = name + ".rows.item(" + row + ").cells.item(" + col + ")"
	return name, rewritten, argEnd + 1, true
}

// matchCallEnd finds the ')' closing the argument list starting at i.
func matchCallEnd(code string, regions []lexical.Region, i int) (int, bool) {
	depth := 0
	for ; i < len(code); i++ {
		if regions[i] != lexical.Code {
			continue
		}
		switch code[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i, true
			}
			depth--
		}
	}
	return 0, false
}

// splitTwoArgs splits an argument list at its single top-level comma.
func splitTwoArgs(args string) (string, string, bool) {
	depth := 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				left := strings.TrimSpace(args[:i])
				right := strings.TrimSpace(args[i+1:])
				if left == "" || right == "" || topLevelComma(right) {
					return "", "", false
				}
				return left, right, true
			}
		}
	}
	return "", "", false
}

// topLevelComma reports whether s contains a comma outside brackets.
func topLevelComma(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}
