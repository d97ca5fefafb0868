// Package wrap assembles the final runnable unit: the host shim preamble,
// the optional idempotent-block envelope, and the sanitized body.
package wrap

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"docforge/internal/blocks"
	"docforge/internal/lexical"
)

// Directives are the out-of-band hints carried by reserved comments.
type Directives struct {
	BlockID      string
	Anchor       string // "cursor" or "end"
	Backup       *bool
	ForceMarkers bool
	Found        bool
}

var (
	directiveLine = regexp.MustCompile(`(?m)^\s*//@\s*(.+?)\s*$`)
	directivePair = regexp.MustCompile(`([A-Za-z][A-Za-z0-9]*)\s*=\s*([^\s]+)`)
)

// ParseDirectives extracts reserved directive comments from the body.
// Later directives win over earlier ones.
func ParseDirectives(code string) Directives {
	var d Directives
	for _, line := range directiveLine.FindAllStringSubmatch(code, -1) {
		for _, pair := range directivePair.FindAllStringSubmatch(line[1], -1) {
			d.Found = true
			key, value := pair[1], pair[2]
			switch key {
			case "blockId":
				d.BlockID = value
			case "anchor":
				if value == "cursor" || value == "end" {
					d.Anchor = value
				}
			case "backup":
				on := value == "on"
				d.Backup = &on
			case "markers":
				d.ForceMarkers = value == "force"
			}
		}
	}
	return d
}

// Preamble is the host shim evaluated before the body. Plain ES5 only:
// it must survive the same engine that runs the body. The upsertBlock
// facade and the document object are bound by the executor; the shim
// fills in helpers generated code tends to assume.
const Preamble = `
if (typeof console === "undefined" || !console) {
	var console = { log: function () {}, warn: function () {}, error: function () {} };
}
if (typeof String.prototype.trim !== "function") {
	String.prototype.trim = function () { return this.replace(/^\s+|\s+$/g, ""); };
}
`

// insertionShape conservatively recognizes bodies whose effect is content
// insertion; only such bodies get the idempotent envelope by default.
var insertionShape = regexp.MustCompile(
	`\.(insertText|insertParagraph|insertTable|writeText|writeParagraph|writeTable)\s*\(`)

// Unit is the assembled execution unit.
type Unit struct {
	Code    string
	Wrapped bool
	BlockID string
}

// Assemble builds the runnable unit from the sanitized body. The body is
// wrapped in an upsert envelope when it does not already invoke the
// upsert facade and either looks like an insertion or carries a block-id
// directive.
func Assemble(body string, d Directives) Unit {
	blockID := blocks.SanitizeID(d.BlockID)
	if d.BlockID == "" {
		blockID = "auto-" + uuid.NewString()[:8]
	}

	wrapNeeded := !invokesUpsert(body) &&
		(looksLikeInsertion(body) || (d.Found && d.BlockID != ""))

	if !wrapNeeded {
		return Unit{Code: Preamble + "\n" + body, Wrapped: false, BlockID: d.BlockID}
	}

	var b strings.Builder
	b.WriteString(Preamble)
	b.WriteString("\nupsertBlock(")
	b.WriteString(quoteJSString(blockID))
	b.WriteString(", function (block) {\n")
	b.WriteString(body)
	b.WriteString("\n}, ")
	b.WriteString(envelopeOptions(d))
	b.WriteString(");\n")
	return Unit{Code: b.String(), Wrapped: true, BlockID: blockID}
}

func envelopeOptions(d Directives) string {
	var opts []string
	anchor := d.Anchor
	if anchor == "" {
		anchor = "cursor"
	}
	opts = append(opts, `anchor: `+quoteJSString(anchor))
	if d.Backup != nil && !*d.Backup {
		opts = append(opts, "backup: false")
	}
	if d.ForceMarkers {
		opts = append(opts, "markers: true")
	}
	return "{ " + strings.Join(opts, ", ") + " }"
}

// invokesUpsert reports whether the body already calls the upsert facade
// in code position.
func invokesUpsert(body string) bool {
	regions := lexical.Scan(body)
	for from := 0; ; {
		idx := strings.Index(body[from:], "upsertBlock")
		if idx < 0 {
			return false
		}
		at := from + idx
		if regions[at] == lexical.Code {
			return true
		}
		from = at + 1
	}
}

func looksLikeInsertion(body string) bool {
	regions := lexical.Scan(body)
	for _, loc := range insertionShape.FindAllStringIndex(body, -1) {
		if regions[loc[0]] == lexical.Code {
			return true
		}
	}
	return false
}

func quoteJSString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
