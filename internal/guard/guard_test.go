package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docforge/internal/audit"
	"docforge/internal/faults"
)

func TestGuardCount_OpsBudget(t *testing.T) {
	g := New(Limits{MaxOps: 3}, nil, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Count("write_text"))
	}
	assert.Equal(t, 3, g.OpsUsed())

	err := g.Count("write_text")
	require.Error(t, err)
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.KindGuard, fe.Kind)
	assert.Equal(t, faults.VariantOps, fe.Variant)

	// A breach is not charged: the budget stays at the limit.
	assert.Equal(t, 3, g.OpsUsed())
}

func TestGuardCount_UnlimitedOps(t *testing.T) {
	g := New(Limits{}, nil, nil)
	for i := 0; i < 1000; i++ {
		require.NoError(t, g.Count("op"))
	}
	assert.Equal(t, 1000, g.OpsUsed())
}

func TestGuardCount_Deadline(t *testing.T) {
	g := New(Limits{MaxOps: 10, DeadlineMs: 100}, nil, nil)

	require.NoError(t, g.Count("op"))

	g.now = func() time.Time { return g.startedAt.Add(101 * time.Millisecond) }
	err := g.Count("op")
	require.Error(t, err)
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.VariantDeadline, fe.Variant)
	assert.Equal(t, 1, g.OpsUsed())
}

func TestGuardCount_DeadlineBoundary(t *testing.T) {
	g := New(Limits{MaxOps: 10, DeadlineMs: 100}, nil, nil)
	g.now = func() time.Time { return g.startedAt.Add(100 * time.Millisecond) }
	assert.NoError(t, g.Count("op"), "exactly at the deadline is still inside budget")
}

func TestGuardCount_Cancellation(t *testing.T) {
	var flag Flag
	g := New(Limits{MaxOps: 10}, &flag, nil)

	require.NoError(t, g.Count("op"))

	flag.Cancel()
	err := g.Count("op")
	require.Error(t, err)
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.VariantCancelled, fe.Variant)

	flag.Reset()
	assert.NoError(t, g.Count("op"))
}

func TestGuardCount_CancellationBeatsOtherChecks(t *testing.T) {
	var flag Flag
	flag.Cancel()
	g := New(Limits{MaxOps: 1, DeadlineMs: 1}, &flag, nil)
	g.now = func() time.Time { return g.startedAt.Add(time.Hour) }

	err := g.Count("op")
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.VariantCancelled, fe.Variant)
}

func TestGuardCount_RecordsOps(t *testing.T) {
	rec := audit.NewRecorder(nil, 0, 0)
	g := New(Limits{MaxOps: 10}, nil, rec)

	require.NoError(t, g.Count("write_text"))
	require.NoError(t, g.Count("block_upsert"))
	require.NoError(t, g.Count("write_text"))

	assert.Equal(t, []string{"write_text", "block_upsert"}, rec.Ops())
}

func TestCheckText(t *testing.T) {
	g := New(Limits{MaxTextLen: 10}, nil, nil)

	assert.NoError(t, g.CheckText("short"))
	assert.NoError(t, g.CheckText("exactly10!"))

	err := g.CheckText("eleven chars")
	require.Error(t, err)
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.VariantTextLen, fe.Variant)

	// Size checks never consume the op budget.
	assert.Equal(t, 0, g.OpsUsed())
}

func TestCheckTableCells(t *testing.T) {
	g := New(Limits{MaxTableCells: 4}, nil, nil)

	assert.NoError(t, g.CheckTableCells(4))

	err := g.CheckTableCells(5)
	require.Error(t, err)
	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, faults.VariantTableCells, fe.Variant)
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 500, l.MaxOps)
	assert.Equal(t, 100_000, l.MaxTextLen)
	assert.Equal(t, 2_500, l.MaxTableCells)
	assert.Equal(t, 30*time.Second, l.Deadline())
}
