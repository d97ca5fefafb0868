package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"docforge/internal/lexical"
)

const (
	noteTypeAnnotations = "stripped type annotations"
	noteTypeDecls       = "removed interface/type declarations"
	noteModuleSyntax    = "removed import/export module syntax"
	noteEnums           = "rewrote enum declarations to plain objects"
	noteCasts           = "removed cast and non-null operators"
)

var (
	// Whole-line ES-module syntax. The host has no module system; these
	// lines can only be leakage from a typed dialect.
	importLine = regexp.MustCompile(`(?m)^\s*import\s+[^\n]*$`)
	exportFrom = regexp.MustCompile(`(?m)^\s*export\s+\{[^}]*\}\s*(?:from\s+[^\n]*)?;?\s*$`)
	exportKw   = regexp.MustCompile(`(?m)^(\s*)export\s+(default\s+)?`)

	// `x as SomeType` casts; the type is a dotted identifier path with
	// optional array suffixes.
	asCast = regexp.MustCompile(`\s+as\s+[A-Za-z_$][A-Za-z0-9_$.]*(?:\[\])*`)

	// `var name: Type` declaration annotations.
	varAnn = regexp.MustCompile(
		`\b(var|let|const)(\s+[A-Za-z_$][A-Za-z0-9_$]*)\s*:\s*[A-Za-z_$][A-Za-z0-9_$.]*(?:<[^<>]*>)?(?:\[\])*(\s*[=;,)\n])`)

	typeAlias = regexp.MustCompile(`(?m)^\s*(?:declare\s+)?type\s+[A-Za-z_$][A-Za-z0-9_$]*\s*=[^;\n]*;?\s*$`)

	enumHeader = regexp.MustCompile(`\b(?:const\s+)?\benum\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\{`)
)

// stripTypeSurface conservatively removes a statically-typed dialect's
// surface syntax when the body still carries it. Annotations are only
// matched when followed by a safe delimiter, so legitimate object-literal
// keys are untouched.
func stripTypeSurface(code string) Result {
	if !looksTyped(code) {
		return Result{Code: code}
	}

	var notes []string
	changed := false
	mark := func(n string, did bool) {
		if !did {
			return
		}
		changed = true
		for _, have := range notes {
			if have == n {
				return
			}
		}
		notes = append(notes, n)
	}

	out := code
	var did bool

	out, did = replaceAllTracked(importLine, out, "")
	mark(noteModuleSyntax, did)
	out, did = replaceAllTracked(exportFrom, out, "")
	mark(noteModuleSyntax, did)
	out, did = replaceAllTracked(exportKw, out, "$1")
	mark(noteModuleSyntax, did)

	out, did = removeInterfaceBlocks(out)
	mark(noteTypeDecls, did)
	out, did = replaceAllTracked(typeAlias, out, "")
	mark(noteTypeDecls, did)

	out, did = rewriteEnums(out)
	mark(noteEnums, did)

	out, did = replaceAllTracked(varAnn, out, "$1$2$3")
	mark(noteTypeAnnotations, did)

	out, did = stripAnnotations(out)
	mark(noteTypeAnnotations, did)

	out, did = stripCastOperators(out)
	mark(noteCasts, did)

	return Result{Code: out, Changed: changed, Notes: notes}
}

// looksTyped is a cheap pre-filter so plain scripts skip the pass.
func looksTyped(code string) bool {
	for _, marker := range [...]string{
		"interface ", ": string", ": number", ": boolean", ": any",
		"import ", "export ", "enum ", " as ", "): ",
	} {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return regexp.MustCompile(`\)\s*:\s*[A-Za-z_$]`).MatchString(code)
}

// replaceAllTracked replaces matches whose start offset sits in code
// position; matches inside strings, comments, or regexes are content.
func replaceAllTracked(re *regexp.Regexp, code, repl string) (string, bool) {
	changed := false
	for searched := 0; ; {
		loc := re.FindStringSubmatchIndex(code[searched:])
		if loc == nil {
			break
		}
		start, end := searched+loc[0], searched+loc[1]
		regions := lexical.Scan(code)
		if regions[start] != lexical.Code {
			searched = end
			continue
		}
		expanded := string(re.ExpandString(nil, repl, code[searched:], loc))
		code = code[:start] + expanded + code[end:]
		searched = start + len(expanded)
		changed = true
	}
	return code, changed
}

// removeInterfaceBlocks drops `interface X { ... }` declarations,
// replacing them with an equal run of newlines.
func removeInterfaceBlocks(code string) (string, bool) {
	re := regexp.MustCompile(`\binterface\s+[A-Za-z_$][A-Za-z0-9_$]*(?:\s+extends\s+[A-Za-z_$][A-Za-z0-9_$.,\s]*)?\s*\{`)
	changed := false
	for {
		loc := re.FindStringIndex(code)
		if loc == nil {
			break
		}
		end, ok := matchBraceEnd(code, loc[1])
		if !ok {
			break
		}
		removed := code[loc[0] : end+1]
		code = code[:loc[0]] + strings.Repeat("\n", strings.Count(removed, "\n")) + code[end+1:]
		changed = true
	}
	return code, changed
}

// rewriteEnums turns `enum Color { Red, Green = 5, Blue }` into a plain
// object with the same member values, the closest runtime equivalent.
func rewriteEnums(code string) (string, bool) {
	changed := false
	for {
		m := enumHeader.FindStringSubmatchIndex(code)
		if m == nil {
			break
		}
		end, ok := matchBraceEnd(code, m[1])
		if !ok {
			break
		}
		name := code[m[2]:m[3]]
		body, ok := enumObjectBody(code[m[1]:end])
		if !ok {
			// Computed or string members: drop the declaration rather
			// than guess wrong values.
			body = ""
		}
		var repl string
		if body == "" {
			repl = strings.Repeat("\n", strings.Count(code[m[0]:end+1], "\n"))
		} else {
			repl = "var " + name + " = {" + body + "};"
		}
		code = code[:m[0]] + repl + code[end+1:]
		changed = true
	}
	return code, changed
}

func enumObjectBody(members string) (string, bool) {
	var parts []string
	next := 0
	for _, raw := range strings.Split(members, ",") {
		member := strings.TrimSpace(raw)
		if member == "" {
			continue
		}
		name, value, hasValue := strings.Cut(member, "=")
		name = strings.TrimSpace(name)
		if !identOnly(name) {
			return "", false
		}
		if hasValue {
			v := strings.TrimSpace(value)
			n := 0
			if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
				return "", false
			}
			next = n
		}
		parts = append(parts, fmt.Sprintf("%s: %d", name, next))
		next++
	}
	return strings.Join(parts, ", "), true
}

func identOnly(s string) bool {
	if s == "" || !isIdentStartByte(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// stripAnnotations removes `: Type` annotations in function parameter
// lists and return positions. A match requires the annotation to be
// followed by one of `,`, `)`, `=`, `{` so object-literal entries are
// never touched.
func stripAnnotations(code string) (string, bool) {
	regions := lexical.Scan(code)
	changed := false

	// Return annotations: `) : Type {` or `) : Type =`.
	retAnn := regexp.MustCompile(`\)\s*:\s*([A-Za-z_$][A-Za-z0-9_$.<>,\s]*?(?:\[\])*)\s*([{=])`)
	for {
		loc := retAnn.FindStringSubmatchIndex(code)
		if loc == nil || regions[loc[0]] != lexical.Code {
			break
		}
		code = code[:loc[0]] + ") " + code[loc[4]:]
		regions = lexical.Scan(code)
		changed = true
	}

	// Parameter annotations inside `function (...)` parameter lists only.
	fnRe := regexp.MustCompile(`\bfunction\b[^(\n]*\(`)
	for searched := 0; ; {
		loc := fnRe.FindStringIndex(code[searched:])
		if loc == nil {
			break
		}
		open := searched + loc[1] - 1
		if regions[open] != lexical.Code {
			searched += loc[1]
			continue
		}
		closeIdx, ok := matchCallEnd(code, regions, open+1)
		if !ok {
			searched += loc[1]
			continue
		}
		params := code[open+1 : closeIdx]
		stripped := stripParamAnnotations(params)
		if stripped != params {
			code = code[:open+1] + stripped + code[closeIdx:]
			regions = lexical.Scan(code)
			changed = true
		}
		searched = open + 1 + len(stripped) + 1
	}
	return code, changed
}

var paramAnn = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$]*)\s*\??\s*:\s*[A-Za-z_$][A-Za-z0-9_$.]*(?:<[^<>]*>)?(?:\[\])*\s*([,=)]|$)`)

func stripParamAnnotations(params string) string {
	return paramAnn.ReplaceAllString(params, "$1$2")
}

// stripCastOperators drops postfix non-null `!` operators. `x!` is not
// valid ES5, so one appearing right after an identifier (and not part of
// `!=`) can only be dialect leakage. `as Type` casts go with it.
func stripCastOperators(code string) (string, bool) {
	regions := lexical.Scan(code)
	changed := false

	out, did := replaceAllTracked(asCast, code, "")
	if did {
		changed = true
		code = out
		regions = lexical.Scan(code)
	}

	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		if code[i] == '!' && regions[i] == lexical.Code &&
			i > 0 && (isIdentByte(code[i-1]) || code[i-1] == ')' || code[i-1] == ']') &&
			i+1 < len(code) && code[i+1] != '=' &&
			(code[i+1] == '.' || code[i+1] == ')' || code[i+1] == ',' || code[i+1] == ';' || code[i+1] == ' ') {
			changed = true
			continue
		}
		b.WriteByte(code[i])
	}
	return b.String(), changed
}

// matchBraceEnd finds the '}' matching the '{' just before index i.
func matchBraceEnd(code string, i int) (int, bool) {
	depth := 0
	for ; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, true
			}
			depth--
		}
	}
	return 0, false
}
