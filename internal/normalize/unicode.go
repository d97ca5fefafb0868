package normalize

import (
	"strings"

	"docforge/internal/lexical"
)

const (
	noteInvisibles  = "removed invisible control characters"
	noteLineSeps    = "folded unicode line separators to newlines"
	noteWideSpaces  = "folded exotic unicode spaces to ASCII"
	notePunctuation = "normalized smart punctuation to ASCII"
)

// invisible characters that generation pipelines leak into code. They are
// removed in every region: a BOM or bidi override inside a string literal
// is as corrupting (and as invisible to a reviewer) as one in code.
var invisibleRunes = map[rune]bool{
	'\uFEFF': true, // BOM / zero-width no-break space
	'​': true, // zero width space
	'‌': true, // zero width non-joiner
	'‍': true, // zero width joiner
	'⁠': true, // word joiner
	'‎': true, // LRM
	'‏': true, // RLM
	'‪': true, '‫': true, '‬': true, '‭': true, '‮': true,
	'⁦': true, '⁧': true, '⁨': true, '⁩': true,
}

// exotic space characters folded to a plain space, but only in code
// position: inside a string they are content.
var exoticSpaces = map[rune]bool{
	' ': true, ' ': true,
	' ': true, ' ': true, ' ': true, ' ': true,
	' ': true, ' ': true, ' ': true, ' ': true,
	' ': true, ' ': true, ' ': true,
	' ': true, ' ': true, '　': true,
}

// normalizeControl strips invisible control characters everywhere and
// folds exotic whitespace. U+2028/U+2029 are folded in every region
// because the host parser treats them as line terminators even inside
// string literals, which makes them unrepresentable in source text.
func normalizeControl(code string) Result {
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	var notes []string
	changed := false

	note := func(n string) {
		for _, have := range notes {
			if have == n {
				return
			}
		}
		notes = append(notes, n)
	}

	for i, r := range code {
		switch {
		case invisibleRunes[r]:
			changed = true
			note(noteInvisibles)
		case r == ' ' || r == ' ' || r == '':
			b.WriteByte('\n')
			changed = true
			note(noteLineSeps)
		case exoticSpaces[r]:
			if regions[i] == lexical.Code || regions[i] == lexical.TemplateExpr {
				b.WriteByte(' ')
				changed = true
				note(noteWideSpaces)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return Result{Code: b.String(), Changed: changed, Notes: notes}
}

// smartPunct maps "smart" and full-width punctuation to the ASCII forms
// the host parser understands.
var smartPunct = map[rune]string{
	'‘': "'", '’': "'", '‚': "'", '‛': "'",
	'“': `"`, '”': `"`, '„': `"`, '‟': `"`,
	'«': `"`, '»': `"`, '‹': "'", '›': "'",
	'‐': "-", '‑': "-", '‒': "-", '–': "-",
	'—': "-", '―': "-", '−': "-",
	'…': "...",
	'⁄': "/",
	// Full-width forms.
	'＂': `"`, '＇': "'", '（': "(", '）': ")", '［': "[", '］': "]",
	'｛': "{", '｝': "}", '＜': "<", '＞': ">", '，': ",", '；': ";",
	'：': ":", '！': "!", '？': "?", '＝': "=", '＋': "+", '－': "-",
	'＊': "*", '／': "/", '％': "%", '＆': "&", '｜': "|", '．': ".",
}

// normalizePunctuation maps smart punctuation to ASCII outside
// string/comment/regex regions. Regex character classes suppress the
// mapping entirely so character ranges are never corrupted.
func normalizePunctuation(code string) Result {
	regions := lexical.Scan(code)
	var b strings.Builder
	b.Grow(len(code))
	changed := false

	for i, r := range code {
		rep, ok := smartPunct[r]
		if !ok || !punctuationRewritable(regions[i]) {
			b.WriteRune(r)
			continue
		}
		b.WriteString(rep)
		changed = true
	}

	res := Result{Code: b.String(), Changed: changed}
	if changed {
		res.Notes = []string{notePunctuation}
	}
	return res
}

func punctuationRewritable(r lexical.Region) bool {
	return r == lexical.Code || r == lexical.TemplateExpr
}
