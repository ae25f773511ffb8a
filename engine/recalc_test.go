package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
)

// =============================================================================
// THREE-LEVEL RECALCULATION TESTS
// =============================================================================

func TestRecalculate_ThreeLevelScenario(t *testing.T) {
	// GIVEN: item (1,000,000) -> projects A (600,000) and B (400,000)
	//        with breakdowns utilizing 100k+50k and 200k
	// WHEN: The hierarchy is seeded (each create retriggers the chain)
	// THEN: Every level's derived fields are consistent

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	projA, err := eng.GetProject(ctx, "proj-a")
	require.NoError(t, err)
	requireDec(t, "150000", projA.TotalBudgetUtilized)
	requireDec(t, "25", projA.UtilizationRate)
	requireDec(t, "450000", projA.Balance)
	assert.Equal(t, budget.StatusOnTrack, projA.Status)

	projB, err := eng.GetProject(ctx, "proj-b")
	require.NoError(t, err)
	requireDec(t, "200000", projB.TotalBudgetUtilized)
	requireDec(t, "50", projB.UtilizationRate)

	item, err := eng.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	requireDec(t, "350000", item.TotalBudgetUtilized)
	requireDec(t, "35", item.UtilizationRate)
	assert.Equal(t, 2, item.ProjectsOnTrack)
}

func TestRecalculate_LeafChange_PropagatesUpward(t *testing.T) {
	// GIVEN: The seeded hierarchy
	// WHEN: A breakdown's utilized amount changes
	// THEN: Project and budget item both reflect the new figure

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	utilized := dec(300_000)
	_, err := eng.UpdateBreakdown(ctx, admin, "bd-b1", budget.BreakdownPatch{
		BudgetUtilized: &utilized,
	}, "")
	require.NoError(t, err)

	projB, err := eng.GetProject(ctx, "proj-b")
	require.NoError(t, err)
	requireDec(t, "300000", projB.TotalBudgetUtilized)
	requireDec(t, "75", projB.UtilizationRate)

	item, err := eng.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	requireDec(t, "450000", item.TotalBudgetUtilized)
	requireDec(t, "45", item.UtilizationRate)
}

func TestRecalculate_Idempotent(t *testing.T) {
	// GIVEN: A fully consistent hierarchy
	// WHEN: Recalculate runs again with no intervening writes
	// THEN: No level persists anything

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	res, err := eng.Recalculate(ctx, budget.TypeBreakdown, "bd-a1")
	require.NoError(t, err)
	assert.False(t, res.Changed(), "second pass must be a no-op")

	// Steps still report the visited chain: breakdown, project, item.
	assert.Len(t, res.Steps, 3)
}

func TestRecalculate_UnknownType(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Recalculate(context.Background(), budget.EntityType("mystery"), "x")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestRecalculate_NotFound(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Recalculate(context.Background(), budget.TypeProject, "nope")

	assert.True(t, engine.IsNotFound(err))
	var nf *engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ID)
}

func TestRecalculate_TrashedEntity_LeftFrozen(t *testing.T) {
	// GIVEN: A trashed project
	// WHEN: Recalculate targets it directly
	// THEN: Its stored values stay exactly as trashed; restore must bring
	//       back what the user deleted, not a recomputed variant

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, admin, budget.TypeProject, "proj-a", true, "")
	require.NoError(t, err)

	before, err := eng.GetProject(ctx, "proj-a")
	require.NoError(t, err)

	res, err := eng.Recalculate(ctx, budget.TypeProject, "proj-a")
	require.NoError(t, err)
	assert.False(t, res.Changed())

	after, err := eng.GetProject(ctx, "proj-a")
	require.NoError(t, err)
	requireDec(t, before.TotalBudgetUtilized.String(), after.TotalBudgetUtilized)
	requireDec(t, before.Balance.String(), after.Balance)
}

func TestRecalculate_ClimbStopsAtTrashedParent(t *testing.T) {
	// GIVEN: Project A trashed, its breakdowns trashed with it
	// WHEN: The surviving project B's breakdown changes
	// THEN: The climb still reaches the live budget item

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, admin, budget.TypeProject, "proj-a", true, "")
	require.NoError(t, err)

	// Item aggregates only the surviving project now.
	item, err := eng.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	requireDec(t, "200000", item.TotalBudgetUtilized)
	assert.Equal(t, 1, item.ProjectsOnTrack)

	utilized := dec(250_000)
	_, err = eng.UpdateBreakdown(ctx, admin, "bd-b1", budget.BreakdownPatch{BudgetUtilized: &utilized}, "")
	require.NoError(t, err)

	item, err = eng.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	requireDec(t, "250000", item.TotalBudgetUtilized)
}

func TestRecalculate_UnlinkedProject_IsItsOwnRoot(t *testing.T) {
	// GIVEN: A project with no budget item
	// WHEN: Its breakdown changes
	// THEN: Recalculation succeeds and stops at the project

	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateProject(ctx, admin, budget.Project{
		ID:              "orphan",
		Title:           "Standalone Survey",
		AllocatedBudget: dec(50_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateBreakdown(ctx, admin, budget.Breakdown{
		ID:              "orphan-bd",
		ProjectID:       "orphan",
		Description:     "Field work",
		AllocatedBudget: dec(50_000),
		BudgetUtilized:  dec(10_000),
	}, "")
	require.NoError(t, err)

	p, err := eng.GetProject(ctx, "orphan")
	require.NoError(t, err)
	requireDec(t, "10000", p.TotalBudgetUtilized)
	requireDec(t, "20", p.UtilizationRate)
}
