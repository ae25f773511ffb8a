package engine_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin   = engine.Actor{ID: "u-admin", Name: "Alice Reyes", Role: "admin"}
	encoder = engine.Actor{ID: "u-enc", Name: "Ben Cruz", Role: "encoder"}
)

// newTestEngine returns an engine over the in-memory store with a
// deterministic clock and sequential ids.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(store.NewMemory())
	eng.Logger = log.New(io.Discard, "", 0)

	var seq int
	eng.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return eng
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	w, err := decimal.NewFromString(want)
	require.NoError(t, err)
	require.True(t, w.Equal(got), "want %s, got %s", want, got)
}

// seedHierarchy builds the canonical three-level fixture:
//
//	item (1,000,000 allocated, auto)
//	  project A (600,000, auto)
//	    breakdown A1: allocated 300,000, utilized 100,000
//	    breakdown A2: allocated 100,000, utilized  50,000
//	  project B (400,000, auto)
//	    breakdown B1: allocated 400,000, utilized 200,000
func seedHierarchy(t *testing.T, eng *engine.Engine) {
	t.Helper()
	ctx := context.Background()

	_, err := eng.CreateBudgetItem(ctx, admin, budget.BudgetItem{
		ID:                   "item-1",
		Particulars:          "General Infrastructure",
		TotalBudgetAllocated: dec(1_000_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateProject(ctx, admin, budget.Project{
		ID:              "proj-a",
		BudgetItemID:    "item-1",
		Title:           "Road Widening",
		AllocatedBudget: dec(600_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateProject(ctx, admin, budget.Project{
		ID:              "proj-b",
		BudgetItemID:    "item-1",
		Title:           "Drainage Upgrade",
		AllocatedBudget: dec(400_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateBreakdown(ctx, admin, budget.Breakdown{
		ID:              "bd-a1",
		ProjectID:       "proj-a",
		Description:     "Phase 1 earthworks",
		AllocatedBudget: dec(300_000),
		BudgetUtilized:  dec(100_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateBreakdown(ctx, admin, budget.Breakdown{
		ID:              "bd-a2",
		ProjectID:       "proj-a",
		Description:     "Phase 2 paving",
		AllocatedBudget: dec(100_000),
		BudgetUtilized:  dec(50_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateBreakdown(ctx, admin, budget.Breakdown{
		ID:              "bd-b1",
		ProjectID:       "proj-b",
		Description:     "Culvert installation",
		AllocatedBudget: dec(400_000),
		BudgetUtilized:  dec(200_000),
	}, "")
	require.NoError(t, err)
}
