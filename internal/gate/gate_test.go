package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docforge/internal/faults"
)

func TestDetectPayload_Plan(t *testing.T) {
	body := `{"actions":[{"op":"upsert_block","blockId":"b1","text":"hi"},{"op":"insert_text","text":"tail"}]}`
	plan, err := DetectPayload(body)
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "upsert_block", plan.Actions[0].Op)
	assert.Equal(t, "b1", plan.Actions[0].BlockID)
	assert.Equal(t, "hi", plan.Actions[0].Text)
	assert.Equal(t, "insert_text", plan.Actions[1].Op)
}

func TestDetectPayload_ModalityMismatch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		snippet string
	}{
		{"plain object", `{"note": "hello"}`, "JSON object"},
		{"array", `[1, 2, 3]`, "JSON array"},
		{"actions without op", `{"actions":[{"blockId":"b1"}]}`, "JSON object"},
		{"empty actions", `{"actions":[]}`, "JSON object"},
		{"leading whitespace", "  \n\t{\"a\": 1}", "JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := DetectPayload(tt.body)
			assert.Nil(t, plan)
			require.Error(t, err)
			var fe *faults.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, faults.KindSyntax, fe.Kind)
			assert.Equal(t, faults.VariantModalityMismatch, fe.Variant)
			assert.Equal(t, tt.snippet, fe.Snippet)
		})
	}
}

func TestDetectPayload_NotJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"plain code", `var x = 1;`},
		{"empty", ""},
		{"whitespace only", "  \n  "},
		{"block statement", "{ var x = 1; }"},
		{"truncated object", `{"actions": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := DetectPayload(tt.body)
			assert.Nil(t, plan)
			assert.NoError(t, err)
		})
	}
}

func TestScanCapabilities(t *testing.T) {
	t.Run("each token is caught", func(t *testing.T) {
		tests := []struct {
			code   string
			reason string
		}{
			{`eval("x");`, "dynamic evaluation via eval"},
			{`var f = new Function("return 1");`, "dynamic evaluation via Function constructor"},
			{`Function("return 1")();`, "dynamic evaluation via Function constructor"},
			{`var r = new XMLHttpRequest();`, "outbound network via XMLHttpRequest"},
			{`fetch("https://example.com");`, "outbound network via fetch"},
			{`var ws = new WebSocket(url);`, "outbound network via WebSocket"},
			{`importScripts("lib.js");`, "outbound network via importScripts"},
			{`new ActiveXObject("Shell.Application");`, "host automation via ActiveXObject"},
		}
		for _, tt := range tests {
			reasons := ScanCapabilities(tt.code)
			require.Len(t, reasons, 1, "code: %s", tt.code)
			assert.Equal(t, tt.reason, reasons[0])
		}
	})

	t.Run("reasons deduplicated and collected together", func(t *testing.T) {
		code := `eval("a"); fetch(u); var g = new Function("x"); Function("y");`
		reasons := ScanCapabilities(code)
		assert.Equal(t, []string{
			"dynamic evaluation via eval",
			"dynamic evaluation via Function constructor",
			"outbound network via fetch",
		}, reasons)
	})

	t.Run("tokens inside literals are inert", func(t *testing.T) {
		tests := []string{
			`var s = "call eval(x) later";`,
			`// eval(x) would be bad`,
			`/* fetch(url) */ var x = 1;`,
			`var re = /eval\(/;`,
		}
		for _, code := range tests {
			assert.Empty(t, ScanCapabilities(code), "code: %s", code)
		}
	})

	t.Run("clean script", func(t *testing.T) {
		assert.Empty(t, ScanCapabilities(`var x = doc.getText(); f(x);`))
	})
}

func TestCapabilities(t *testing.T) {
	t.Run("rejects with all reasons", func(t *testing.T) {
		err := Capabilities(`eval("a"); fetch(u);`)
		require.Error(t, err)
		var fe *faults.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, faults.KindSecurity, fe.Kind)
		assert.Len(t, fe.Suspicious, 2)
	})
	t.Run("clean passes", func(t *testing.T) {
		assert.NoError(t, Capabilities(`var x = 1;`))
	})
}

func TestResidualSyntax(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"template literal", "var s = `still here`;", "template literal"},
		{"arrow function", "var f = (x) => x + 1;", "arrow function"},
		{"class declaration", "class Point {}", "class declaration"},
		{"async function", "async function f() {}", "async function"},
		{"await expression", "var v = await p;", "await expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ResidualSyntax(tt.code)
			require.Error(t, err)
			var fe *faults.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, faults.KindSyntax, fe.Kind)
			assert.Equal(t, faults.VariantForbiddenSyntax, fe.Variant)
			assert.Contains(t, fe.Suspicious, tt.want)
		})
	}

	t.Run("multiple constructs named together", func(t *testing.T) {
		err := ResidualSyntax("class A {}\nvar f = () => 1;")
		require.Error(t, err)
		var fe *faults.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, []string{"arrow function", "class declaration"}, fe.Suspicious)
	})

	t.Run("keywords inside literals do not trigger", func(t *testing.T) {
		tests := []string{
			`var s = "class async await =>";`,
			`// await the class => done`,
			"var s = 'a `tick` b';",
		}
		for _, code := range tests {
			assert.NoError(t, ResidualSyntax(code), "code: %s", code)
		}
	})

	t.Run("identifier substrings do not trigger", func(t *testing.T) {
		assert.NoError(t, ResidualSyntax("var classy = 1; var awaited = 2; var asyncish = 3;"))
	})

	t.Run("clean es5", func(t *testing.T) {
		assert.NoError(t, ResidualSyntax(`function f(x) { return x >= 1; }`))
	})
}
