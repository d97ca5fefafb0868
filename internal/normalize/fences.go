package normalize

import (
	"regexp"
	"strings"
)

const noteFences = "stripped markdown code fences"

// fenceLine matches a residual markdown fence delimiter occupying a whole
// line, with an optional language tag on the opener.
var fenceLine = regexp.MustCompile("^\\s*(```|~~~)[A-Za-z0-9_+-]*\\s*$")

// stripFences removes markdown fence delimiter lines that leaked into the
// body. The line itself is kept empty rather than deleted so diagnostics
// keep their line numbers.
func stripFences(code string) Result {
	if !strings.Contains(code, "```") && !strings.Contains(code, "~~~") {
		return Result{Code: code}
	}
	lines := strings.Split(code, "\n")
	changed := false
	for i, line := range lines {
		if fenceLine.MatchString(line) {
			lines[i] = ""
			changed = true
		}
	}
	res := Result{Code: strings.Join(lines, "\n"), Changed: changed}
	if changed {
		res.Notes = []string{noteFences}
	}
	return res
}
