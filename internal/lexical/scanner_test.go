package lexical

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// regionOf is a test helper: the region of the first occurrence of
// needle in src.
func regionOf(t *testing.T, src, needle string) Region {
	t.Helper()
	idx := strings.Index(src, needle)
	require.GreaterOrEqual(t, idx, 0, "needle %q not in %q", needle, src)
	return Scan(src)[idx]
}

func TestScan_Strings(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		needle string
		want   Region
	}{
		{"double quoted content", `var s = "hello";`, "hello", StringDouble},
		{"single quoted content", `var s = 'hello';`, "hello", StringSingle},
		{"slashes inside string are content", `var s = "a // b";`, "// b", StringDouble},
		{"escaped quote stays inside", `var s = "a\"b";`, "b", StringDouble},
		{"code after string closes", `var s = "x"; done();`, "done", Code},
		{"quote inside single string", `var s = 'say "hi"';`, `"hi"`, StringSingle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, regionOf(t, tt.src, tt.needle))
		})
	}
}

func TestScan_FullSequence(t *testing.T) {
	t.Run("string then line comment", func(t *testing.T) {
		src := `a="x"//c`
		want := []Region{
			Code, Code, StringDouble, StringDouble, StringDouble,
			LineComment, LineComment, LineComment,
		}
		if diff := cmp.Diff(want, Scan(src)); diff != "" {
			t.Errorf("region sequence mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("template with interpolation", func(t *testing.T) {
		src := "`a${b}c`"
		want := []Region{
			Template, Template, TemplateExpr, TemplateExpr, TemplateExpr,
			TemplateExpr, Template, Template,
		}
		if diff := cmp.Diff(want, Scan(src)); diff != "" {
			t.Errorf("region sequence mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestScan_Comments(t *testing.T) {
	src := "a(); // trailing\nb(); /* mid */ c();"
	tags := Scan(src)

	assert.Equal(t, LineComment, regionOf(t, src, "// trailing"))
	assert.Equal(t, BlockComment, regionOf(t, src, "/* mid */"))
	assert.Equal(t, Code, regionOf(t, src, "b();"))
	assert.Equal(t, Code, regionOf(t, src, "c();"))

	// The newline terminating a line comment belongs to code again.
	nl := strings.Index(src, "\n")
	assert.Equal(t, Code, tags[nl])

	// The closing '/' of the block comment is part of it.
	end := strings.Index(src, "*/") + 1
	assert.Equal(t, BlockComment, tags[end])
}

func TestScan_RegexVersusDivision(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		needle string
		want   Region
	}{
		{"regex after assign", `var re = /ab+c/;`, "ab+c", Regex},
		{"regex after return", `return /x/.test(s);`, "x", Regex},
		{"regex after open paren", `match(/y/)`, "y", Regex},
		{"division after identifier", `var r = total / count;`, "/", Code},
		{"division after close paren", `var r = f(x) / 2;`, "/ 2", Code},
		{"char class slash", `var re = /a[/]b/; next();`, "next", Code},
		{"comment-like inside regex", `var re = /ab\/\/cd/; go();`, "go", Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, regionOf(t, tt.src, tt.needle))
		})
	}
}

func TestScan_Templates(t *testing.T) {
	src := "var s = `a${b}c`;"
	tags := Scan(src)

	assert.Equal(t, Template, regionOf(t, src, "a$"))
	assert.Equal(t, TemplateExpr, tags[strings.Index(src, "${")])
	assert.Equal(t, TemplateExpr, regionOf(t, src, "b}"))
	assert.Equal(t, Template, regionOf(t, src, "c`"))
	assert.Equal(t, Code, tags[len(src)-1])
}

func TestScan_TemplateExprNesting(t *testing.T) {
	// An object literal inside the interpolation must not close it.
	src := "var s = `v${f({a: 1})}w`; done();"
	assert.Equal(t, TemplateExpr, regionOf(t, src, "a: 1"))
	assert.Equal(t, Template, regionOf(t, src, "w`"))
	assert.Equal(t, Code, regionOf(t, src, "done"))

	// A whole template nested in an interpolation.
	src = "var s = `x${`inner${y}`}z`; done();"
	assert.Equal(t, Template, regionOf(t, src, "inner"))
	assert.Equal(t, Code, regionOf(t, src, "done"))
}

func TestScan_FailOpenUnterminated(t *testing.T) {
	t.Run("unterminated double string", func(t *testing.T) {
		src := `var s = "never closed`
		tags := Scan(src)
		assert.Equal(t, StringDouble, tags[len(src)-1])
	})
	t.Run("unterminated template", func(t *testing.T) {
		src := "var s = `open"
		tags := Scan(src)
		assert.Equal(t, Template, tags[len(src)-1])
	})
	t.Run("unterminated block comment", func(t *testing.T) {
		src := "a(); /* open"
		tags := Scan(src)
		assert.Equal(t, BlockComment, tags[len(src)-1])
	})
}

func TestScan_ValueThenSlashIsDivision(t *testing.T) {
	// After a closed string, template, or regex literal, '/' divides.
	for _, src := range []string{
		`var a = "s" / 2;`,
		"var a = `s` / 2;",
		`var a = /s/ / 2;`,
	} {
		tags := Scan(src)
		idx := strings.LastIndex(src, "/ 2")
		assert.Equal(t, Code, tags[idx], "in %q", src)
	}
}

func TestScan_EmptyAndLengths(t *testing.T) {
	assert.Empty(t, Scan(""))
	src := "var x = 1;"
	assert.Len(t, Scan(src), len(src))
}

func TestRegionPredicates(t *testing.T) {
	assert.True(t, StringSingle.IsString())
	assert.True(t, StringDouble.IsString())
	assert.True(t, Template.IsString())
	assert.False(t, TemplateExpr.IsString())
	assert.True(t, LineComment.IsComment())
	assert.True(t, BlockComment.IsComment())
	assert.True(t, Regex.IsRegex())
	assert.True(t, RegexCharClass.IsRegex())
	assert.False(t, Code.IsString())
	assert.Equal(t, "code", Code.String())
	assert.Equal(t, "template-expr", TemplateExpr.String())
}
