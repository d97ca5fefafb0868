// Package gate rejects disallowed payload shapes and capabilities before
// a script reaches the host engine. Failing here is cheap: it saves a
// full execute-observe-repair cycle and tells the repair loop precisely
// what class of answer the generator produced.
package gate

import (
	"encoding/json"
	"strings"

	"docforge/internal/faults"
	"docforge/internal/lexical"
)

// PlanAction is one step of a recognized structured plan.
type PlanAction struct {
	Op      string `json:"op"`
	BlockID string `json:"blockId,omitempty"`
	Text    string `json:"text,omitempty"`
	Anchor  string `json:"anchor,omitempty"`
}

// Plan is the structured-plan schema some generators answer with instead
// of code. A whole payload matching it short-circuits to the plan
// executor rather than being forced through a lossy rewrite.
type Plan struct {
	Actions []PlanAction `json:"actions"`
}

// DetectPayload inspects a whole payload that parses as bare JSON.
// It returns a Plan when the payload matches the plan schema, a
// modality-mismatch SyntaxDefect when it is JSON but not a plan, and
// (nil, nil) when the payload is not a JSON document at all.
func DetectPayload(body string) (*Plan, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, nil
	}
	first := trimmed[0]
	if first != '{' && first != '[' {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		// Code can legally start with '{'; leave it to normalization.
		return nil, nil
	}
	if first == '{' {
		var plan Plan
		if err := json.Unmarshal([]byte(trimmed), &plan); err == nil && len(plan.Actions) > 0 {
			if planShaped(plan) {
				return &plan, nil
			}
		}
		return nil, faults.ModalityMismatch("JSON object")
	}
	return nil, faults.ModalityMismatch("JSON array")
}

func planShaped(plan Plan) bool {
	for _, a := range plan.Actions {
		if a.Op == "" {
			return false
		}
	}
	return true
}

// capability names a disallowed primitive and the token that reveals it.
type capability struct {
	token  string
	reason string
}

var disallowed = []capability{
	{"eval(", "dynamic evaluation via eval"},
	{"new Function", "dynamic evaluation via Function constructor"},
	{"Function(", "dynamic evaluation via Function constructor"},
	{"XMLHttpRequest", "outbound network via XMLHttpRequest"},
	{"fetch(", "outbound network via fetch"},
	{"WebSocket", "outbound network via WebSocket"},
	{"importScripts", "outbound network via importScripts"},
	{"ActiveXObject", "host automation via ActiveXObject"},
}

// ScanCapabilities scans the sanitized body for disallowed capabilities
// and returns every matched reason. Tokens inside strings, comments, and
// regexes are inert content and do not count.
func ScanCapabilities(code string) []string {
	regions := lexical.Scan(code)
	var reasons []string
	seen := map[string]bool{}
	for _, c := range disallowed {
		if indexInCode(code, regions, c.token, 0) < 0 || seen[c.reason] {
			continue
		}
		seen[c.reason] = true
		reasons = append(reasons, c.reason)
	}
	return reasons
}

// Capabilities rejects the body when any disallowed capability matches,
// listing every reason at once so the repair loop fixes them together.
func Capabilities(code string) error {
	if reasons := ScanCapabilities(code); len(reasons) > 0 {
		return faults.Security(reasons)
	}
	return nil
}

// forbidden syntax the host engine cannot parse. Anything still present
// after normalization means the rewrite passes could not repair the
// construct, so the run would fail at parse time anyway.
type residual struct {
	name  string
	probe func(code string, regions []lexical.Region) bool
}

var residuals = []residual{
	{"template literal", func(code string, regions []lexical.Region) bool {
		return indexInRegion(code, regions, "`", lexical.Template) >= 0
	}},
	{"arrow function", func(code string, regions []lexical.Region) bool {
		return indexInCode(code, regions, "=>", 0) >= 0
	}},
	{"class declaration", func(code string, regions []lexical.Region) bool {
		return wordInCode(code, regions, "class")
	}},
	{"async function", func(code string, regions []lexical.Region) bool {
		return wordInCode(code, regions, "async")
	}},
	{"await expression", func(code string, regions []lexical.Region) bool {
		return wordInCode(code, regions, "await")
	}},
}

// ResidualSyntax rejects the body if forbidden syntax survived
// normalization, naming the offending construct.
func ResidualSyntax(code string) error {
	regions := lexical.Scan(code)
	var found []string
	for _, r := range residuals {
		if r.probe(code, regions) {
			found = append(found, r.name)
		}
	}
	if len(found) == 0 {
		return nil
	}
	e := faults.New(faults.KindSyntax, faults.VariantForbiddenSyntax,
		"host engine cannot parse: %s", strings.Join(found, ", "))
	e.Suspicious = found
	return e
}

// indexInCode finds token at a code-position offset, or -1.
func indexInCode(code string, regions []lexical.Region, token string, from int) int {
	for {
		idx := strings.Index(code[from:], token)
		if idx < 0 {
			return -1
		}
		at := from + idx
		if regions[at] == lexical.Code || regions[at] == lexical.TemplateExpr {
			return at
		}
		from = at + 1
	}
}

func indexInRegion(code string, regions []lexical.Region, token string, want lexical.Region) int {
	for from := 0; ; {
		idx := strings.Index(code[from:], token)
		if idx < 0 {
			return -1
		}
		at := from + idx
		if regions[at] == want {
			return at
		}
		from = at + 1
	}
}

// wordInCode finds a whole-word keyword in code position.
func wordInCode(code string, regions []lexical.Region, word string) bool {
	for from := 0; ; {
		idx := strings.Index(code[from:], word)
		if idx < 0 {
			return false
		}
		at := from + idx
		end := at + len(word)
		boundedLeft := at == 0 || !identByte(code[at-1])
		boundedRight := end >= len(code) || !identByte(code[end])
		if boundedLeft && boundedRight && regions[at] == lexical.Code {
			return true
		}
		from = at + 1
	}
}

func identByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '$'
}
