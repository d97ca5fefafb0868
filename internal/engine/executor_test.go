package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docforge/internal/guard"
	"docforge/internal/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newExecutor() *Executor {
	return New(nil, Settings{Limits: guard.DefaultLimits()}, nil)
}

func execute(t *testing.T, e *Executor, doc host.Document, src string) Result {
	t.Helper()
	return e.Execute(context.Background(), doc, nil, Request{Source: src})
}

func TestExecuteComputation(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, "1 + 1")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "2", res.Value)
	assert.False(t, res.Wrapped)
	assert.Empty(t, doc.String())
}

func TestExecuteInsertionIdempotent(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	e := newExecutor()
	src := "//@ blockId=greeting\nblock.insertText(\"Hello World\");"

	first := execute(t, e, doc, src)
	require.True(t, first.Success, first.Message)
	assert.True(t, first.Wrapped)
	assert.Equal(t, "greeting", first.BlockID)
	assert.GreaterOrEqual(t, first.OpsUsed, 2)
	assert.True(t, first.Event.Success)
	assert.Contains(t, first.Event.Ops, "block_upsert")

	second := execute(t, e, doc, src)
	require.True(t, second.Success, second.Message)

	assert.Equal(t, 1, strings.Count(doc.String(), "Hello World"))
}

func TestExecuteNormalizesBeforeRunning(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	src := "```javascript\nlet msg = “Hello”;\nblock.insertText(msg);\n```"

	res := execute(t, newExecutor(), doc, src)
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Changed)
	assert.NotEmpty(t, res.Notes)
	assert.Contains(t, doc.String(), "Hello")
}

func TestExecuteCleanSourcePassesThrough(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, "function f(){ return 1+1 } f()")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "2", res.Value)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Notes)
	assert.False(t, res.Wrapped)
}

func TestExecuteDesugaredTemplateInterpolates(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	src := "var name = \"World\";\n`Hello ${name}`;"

	res := execute(t, newExecutor(), doc, src)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Hello World", res.Value)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Notes, "desugared template literals to concatenation")
}

func TestExecuteDowngradedDeclarationsRun(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	src := "let x = 1;\nconst y = 2;\nx + y;"

	res := execute(t, newExecutor(), doc, src)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "3", res.Value)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Notes, "downgraded block-scoped declarations to var")
}

func TestExecuteInsertTableRows(t *testing.T) {
	t.Run("homogeneous string rows", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		src := "//@ blockId=tbl\nblock.insertTable([[\"a\",\"b\"],[\"c\",\"d\"]]);"

		res := execute(t, newExecutor(), doc, src)
		require.True(t, res.Success, res.Message)
		assert.Contains(t, doc.String(), "a\tb\nc\td\n")
	})

	t.Run("mixed-type cells stringified", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		src := "//@ blockId=tbl\nblock.insertTable([[\"n\", 1]]);"

		res := execute(t, newExecutor(), doc, src)
		require.True(t, res.Success, res.Message)
		assert.Contains(t, doc.String(), "n\t1")
	})

	t.Run("non-array argument rejected", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		src := "//@ blockId=tbl\nblock.insertTable(\"oops\");"

		res := execute(t, newExecutor(), doc, src)
		assert.False(t, res.Success)
		assert.Equal(t, "SyntaxDefect", res.ErrorKind)
	})
}

func TestExecuteContentFaultSurvivesScriptCatch(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	src := "try { upsertBlock(\"memo\", function (block) {}, {}); } catch (e) {}"

	res := execute(t, newExecutor(), doc, src)
	assert.False(t, res.Success)
	assert.Equal(t, "ContentNotProduced", res.ErrorKind)
	assert.Equal(t, "content", res.ErrorType)
}

func TestExecuteReplacesBlockInPlace(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	e := newExecutor()

	first := execute(t, e, doc, "//@ blockId=report1\nblock.insertText(\"Q1 results\");")
	require.True(t, first.Success, first.Message)
	assert.Contains(t, doc.String(), "Q1 results")

	second := execute(t, e, doc, "//@ blockId=report1\nblock.insertText(\"Q2 results\");")
	require.True(t, second.Success, second.Message)
	assert.Equal(t, 1, strings.Count(doc.String(), "Q2 results"))
	assert.NotContains(t, doc.String(), "Q1 results")
}

func TestExecutePlan(t *testing.T) {
	t.Run("upsert action", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`{"actions":[{"op":"upsert_block","blockId":"b1","text":"hi"}]}`)

		require.True(t, res.Success, res.Message)
		assert.Equal(t, "plan applied", res.Message)
		assert.Equal(t, "b1", res.BlockID)
		assert.Contains(t, doc.String(), "hi")
	})

	t.Run("insert action lands at selection", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "ab")
		require.NoError(t, doc.SetSelection(host.Span{Start: 1, End: 1}))
		res := execute(t, newExecutor(), doc,
			`{"actions":[{"op":"insert_text","text":"X"}]}`)

		require.True(t, res.Success, res.Message)
		assert.Equal(t, "aXb", doc.String())
	})

	t.Run("plan applied in order", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`{"actions":[{"op":"insert_text","text":"one "},{"op":"insert_text","text":"two"}]}`)

		require.True(t, res.Success, res.Message)
		assert.Equal(t, "one two", doc.String())
	})

	t.Run("upsert without blockId", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`{"actions":[{"op":"upsert_block","text":"hi"}]}`)

		assert.False(t, res.Success)
		assert.Equal(t, "SyntaxDefect", res.ErrorKind)
	})

	t.Run("unknown op", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`{"actions":[{"op":"explode"}]}`)

		assert.False(t, res.Success)
		assert.Equal(t, "SyntaxDefect", res.ErrorKind)
		assert.Contains(t, res.Message, "explode")
	})
}

func TestExecuteModalityMismatch(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, `{"note": "hello"}`)

	assert.False(t, res.Success)
	assert.Equal(t, "SyntaxDefect", res.ErrorKind)
	assert.Equal(t, "syntax", res.ErrorType)
	assert.Contains(t, res.Message, "JSON object")
	assert.Empty(t, doc.String())
}

func TestExecuteSecurityGate(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, `fetch("https://example.com/exfil");`)

	assert.False(t, res.Success)
	assert.Equal(t, "SecurityViolation", res.ErrorKind)
	assert.Equal(t, "security", res.ErrorType)
	assert.Empty(t, doc.String())
}

func TestExecuteResidualSyntax(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, "var f = (x) => x + 1;")

	assert.False(t, res.Success)
	assert.Equal(t, "SyntaxDefect", res.ErrorKind)
	assert.Contains(t, res.Message, "arrow function")
}

func TestExecuteExplicitUpsertCall(t *testing.T) {
	t.Run("returned text materialized", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`upsertBlock("memo", function (block) { return "memo body"; }, { anchor: "end" });`)

		require.True(t, res.Success, res.Message)
		assert.False(t, res.Wrapped, "body already invokes the facade")
		assert.Contains(t, doc.String(), "memo body")
	})

	t.Run("script options force markers", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		res := execute(t, newExecutor(), doc,
			`upsertBlock("m", function (block) { block.insertText("x"); }, { markers: true });`)

		require.True(t, res.Success, res.Message)
		assert.Contains(t, doc.String(), "[[df:m]]")
	})
}

func TestExecuteContentNotProduced(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
	res := execute(t, newExecutor(), doc, "//@ blockId=note\nvar unused = 1;")

	assert.False(t, res.Success)
	assert.Equal(t, "ContentNotProduced", res.ErrorKind)
	assert.Equal(t, "content", res.ErrorType)
}

func TestExecuteGuardBudget(t *testing.T) {
	limits := guard.Limits{MaxOps: 2, MaxTextLen: 1000, MaxTableCells: 100}

	t.Run("ops budget aborts the run", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		e := New(nil, Settings{Limits: limits}, nil)
		src := "//@ blockId=b\nfor (var i = 0; i < 10; i++) { block.insertText(\"x\"); }"

		res := execute(t, e, doc, src)
		assert.False(t, res.Success)
		assert.Equal(t, "GuardExceeded", res.ErrorKind)
		assert.Equal(t, "environment", res.ErrorType)
		assert.Equal(t, 2, res.OpsUsed)
	})

	t.Run("script catch cannot absorb a breach", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		e := New(nil, Settings{Limits: limits}, nil)
		src := `try {
	for (var i = 0; i < 10; i++) { document.getText(); }
} catch (e) {}
"done";`

		res := execute(t, e, doc, src)
		assert.False(t, res.Success)
		assert.Equal(t, "GuardExceeded", res.ErrorKind)
		assert.Equal(t, 2, res.OpsUsed)
	})
}

func TestExecuteCancellation(t *testing.T) {
	t.Run("context already done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")

		res := newExecutor().Execute(ctx, doc, nil, Request{Source: "1 + 1"})
		assert.False(t, res.Success)
		assert.Equal(t, "GuardExceeded", res.ErrorKind)
		assert.Equal(t, 0, res.OpsUsed)
	})

	t.Run("cooperative flag polls on guarded ops", func(t *testing.T) {
		var flag guard.Flag
		flag.Cancel()
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		e := New(nil, Settings{Limits: guard.DefaultLimits()}, &flag)

		res := execute(t, e, doc, "//@ blockId=b\nblock.insertText(\"x\");")
		assert.False(t, res.Success)
		assert.Equal(t, "GuardExceeded", res.ErrorKind)
		assert.Contains(t, res.Message, "cancelled")
		assert.Empty(t, doc.String())
	})
}

func TestExecuteNoDocument(t *testing.T) {
	res := newExecutor().Execute(context.Background(), nil, nil, Request{Source: "1 + 1"})
	assert.False(t, res.Success)
	assert.Equal(t, "EnvironmentUnavailable", res.ErrorKind)
}

func TestExecuteSettingsFlowIntoUpserts(t *testing.T) {
	t.Run("executor-level marker forcing", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "")
		e := New(nil, Settings{Limits: guard.DefaultLimits(), ForceMarkers: true}, nil)

		res := execute(t, e, doc, "//@ blockId=b\nblock.insertText(\"x\");")
		require.True(t, res.Success, res.Message)
		assert.Contains(t, doc.String(), "[[df:b]]")
	})

	t.Run("executor-level end anchoring", func(t *testing.T) {
		doc := host.NewMemDoc(host.FlavorDocument, "doc1", "prefix")
		require.NoError(t, doc.SetSelection(host.Span{Start: 0, End: 0}))
		e := New(nil, Settings{Limits: guard.DefaultLimits(), AnchorEnd: true}, nil)

		res := e.Execute(context.Background(), doc, nil,
			Request{Source: `{"actions":[{"op":"upsert_block","blockId":"b","text":"tail"}]}`})
		require.True(t, res.Success, res.Message)
		assert.True(t, strings.HasPrefix(doc.String(), "prefix"))
		assert.Contains(t, doc.String(), "tail")
	})
}

func TestExecuteBestEffortFallbackSurfaces(t *testing.T) {
	doc := host.NewMemDoc(host.FlavorPresentation, "slides", "")
	src := "//@ blockId=tbl\nblock.insertTable([[\"a\", \"b\"]]);"

	res := execute(t, newExecutor(), doc, src)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, doc.String(), "a\tb")

	var tags []string
	for _, ex := range res.Exceptions {
		tags = append(tags, ex.Tag)
	}
	assert.Contains(t, tags, "document.insert_table")
}
