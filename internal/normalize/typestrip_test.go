package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTypeSurface_ModuleSyntax(t *testing.T) {
	t.Run("import lines removed", func(t *testing.T) {
		r := stripTypeSurface("import { a } from \"mod\";\nvar x = 1;")
		assert.NotContains(t, r.Code, "import")
		assert.Contains(t, r.Code, "var x = 1;")
		assert.Contains(t, r.Notes, noteModuleSyntax)
	})
	t.Run("export keyword dropped, body kept", func(t *testing.T) {
		r := stripTypeSurface("export function f() { return 1; }")
		assert.Equal(t, "function f() { return 1; }", r.Code)
	})
	t.Run("export default", func(t *testing.T) {
		r := stripTypeSurface("export default function f() {}")
		assert.Equal(t, "function f() {}", r.Code)
	})
	t.Run("import inside string kept", func(t *testing.T) {
		src := "var s = \"keep\";\nvar t = 'import x from y';"
		r := stripTypeSurface(src)
		assert.Contains(t, r.Code, "'import x from y'")
	})
}

func TestStripTypeSurface_Declarations(t *testing.T) {
	t.Run("interface block removed", func(t *testing.T) {
		src := "interface Row {\n  name: string;\n  n: number;\n}\nvar x = 1;"
		r := stripTypeSurface(src)
		assert.NotContains(t, r.Code, "interface")
		assert.NotContains(t, r.Code, "name: string")
		assert.Contains(t, r.Code, "var x = 1;")
		assert.Contains(t, r.Notes, noteTypeDecls)
	})
	t.Run("type alias removed", func(t *testing.T) {
		r := stripTypeSurface("type Pair = [number, number];\nvar x: number = 1;")
		assert.NotContains(t, r.Code, "type Pair")
		assert.Contains(t, r.Code, "var x = 1;")
	})
}

func TestStripTypeSurface_Enums(t *testing.T) {
	t.Run("numeric enum becomes object", func(t *testing.T) {
		r := stripTypeSurface("enum Color { Red, Green = 5, Blue }\nvar c = Color.Green;")
		assert.Contains(t, r.Code, "var Color = {Red: 0, Green: 5, Blue: 6};")
		assert.Contains(t, r.Code, "var c = Color.Green;")
		assert.Contains(t, r.Notes, noteEnums)
	})
	t.Run("string enum dropped", func(t *testing.T) {
		r := stripTypeSurface("enum Mode { A = \"a\" }\nvar x = 1;")
		assert.NotContains(t, r.Code, "enum")
		assert.NotContains(t, r.Code, "Mode")
		assert.Contains(t, r.Code, "var x = 1;")
	})
}

func TestStripTypeSurface_Annotations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"variable annotation",
			`var msg: string = "hi";`,
			`var msg = "hi";`,
		},
		{
			"parameter annotations",
			"function add(a: number, b: number) { return a + b; }",
			"function add(a, b) { return a + b; }",
		},
		{
			"return annotation",
			"function f(): number { return 1; }",
			"function f() { return 1; }",
		},
		{
			"optional parameter",
			"function f(a?: string) { return a; }",
			"function f(a) { return a; }",
		},
		{
			"object literal keys untouched",
			`var o = { name: "x", n: 1 }; var k: number = 2;`,
			`var o = { name: "x", n: 1 }; var k = 2;`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripTypeSurface(tt.src).Code)
		})
	}
}

func TestStripTypeSurface_Casts(t *testing.T) {
	t.Run("as cast removed", func(t *testing.T) {
		r := stripTypeSurface("var n = value as number;")
		assert.Equal(t, "var n = value;", r.Code)
		assert.Contains(t, r.Notes, noteCasts)
	})
	t.Run("non-null operator removed", func(t *testing.T) {
		r := stripTypeSurface("var v = maybe!.length as number;")
		assert.Equal(t, "var v = maybe.length;", r.Code)
	})
	t.Run("inequality untouched", func(t *testing.T) {
		r := stripTypeSurface("if (a as number != 2) { f(); }")
		assert.Contains(t, r.Code, "a != 2")
	})
	t.Run("as inside string kept", func(t *testing.T) {
		r := stripTypeSurface("var s = \"save as PDF\"; var n = x as number;")
		assert.Contains(t, r.Code, `"save as PDF"`)
		assert.Contains(t, r.Code, "var n = x;")
	})
}

func TestStripTypeSurface_PlainScriptSkipped(t *testing.T) {
	src := "var x = 1;\nf(x);"
	r := stripTypeSurface(src)
	assert.Equal(t, src, r.Code)
	assert.False(t, r.Changed)
	assert.Empty(t, r.Notes)
}
