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

func saveRef(t *testing.T, eng *engine.Engine, kind budget.RefKind, id, name string, active bool) {
	t.Helper()
	err := eng.Store.SaveReference(context.Background(), budget.Reference{
		Kind: kind, ID: id, Name: name, Active: active,
	})
	require.NoError(t, err)
}

func refCount(t *testing.T, eng *engine.Engine, kind budget.RefKind, id string) int {
	t.Helper()
	ref, err := eng.Store.Reference(context.Background(), kind, id)
	require.NoError(t, err)
	return ref.UsageCount
}

// =============================================================================
// PERMISSION GATE TESTS
// =============================================================================

func TestMutations_GateDeniesViewer(t *testing.T) {
	// GIVEN: A role gate where the actor is only a viewer
	// WHEN: Any mutation is attempted
	// THEN: Rejected before any write

	eng := newTestEngine(t)
	eng.Gate = &engine.RoleGate{Roles: map[string]string{"u-view": "viewer"}}
	ctx := context.Background()
	viewer := engine.Actor{ID: "u-view"}

	_, err := eng.CreateBudgetItem(ctx, viewer, budget.BudgetItem{Particulars: "Nope"}, "")
	assert.True(t, errors.Is(err, engine.ErrUnauthorized))

	var ue *engine.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "create", ue.Action)

	items, err := eng.Store.List(ctx, budget.TypeBudgetItem, true)
	require.NoError(t, err)
	assert.Empty(t, items, "denied mutation must leave no trace")
}

func TestMutations_EncoderCannotDelete(t *testing.T) {
	// GIVEN: An encoder role (create/update only)
	// WHEN: A cascade delete is attempted
	// THEN: The gate denies it even with confirmation

	eng := newTestEngine(t)
	eng.Gate = &engine.RoleGate{Roles: map[string]string{admin.ID: "admin", encoder.ID: "encoder"}}
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, encoder, budget.TypeProject, "proj-a", true, "")

	assert.True(t, errors.Is(err, engine.ErrUnauthorized))
}

// =============================================================================
// REFERENCE VALIDATION TESTS
// =============================================================================

func TestCreateProject_InactiveReference_Rejected(t *testing.T) {
	// GIVEN: A decommissioned office
	// WHEN: A project is created pointing at it
	// THEN: Validation fails before any write

	eng := newTestEngine(t)
	saveRef(t, eng, budget.RefOffice, "o-old", "Closed Office", false)
	ctx := context.Background()

	_, err := eng.CreateProject(ctx, admin, budget.Project{
		Title: "Stale", OfficeID: "o-old", AllocatedBudget: dec(1_000),
	}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestCreateProject_MissingReference_Rejected(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CreateProject(context.Background(), admin, budget.Project{
		Title: "Phantom", CategoryID: "c-none",
	}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestCreateProject_MissingParent_Rejected(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CreateProject(context.Background(), admin, budget.Project{
		Title: "Orphaned", BudgetItemID: "item-ghost",
	}, "")

	assert.True(t, engine.IsNotFound(err))
}

func TestCreateProject_TrashedParent_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, admin, budget.TypeBudgetItem, "item-1", true, "")
	require.NoError(t, err)

	_, err = eng.CreateProject(ctx, admin, budget.Project{
		Title: "Late arrival", BudgetItemID: "item-1",
	}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

// =============================================================================
// UPDATE AND MOVE TESTS
// =============================================================================

func TestUpdateBreakdown_Move_RecalculatesBothProjects(t *testing.T) {
	// GIVEN: The seeded hierarchy
	// WHEN: Breakdown A1 moves from project A to project B
	// THEN: Both projects' rollups reflect the move

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	newProject := "proj-b"
	_, err := eng.UpdateBreakdown(ctx, admin, "bd-a1", budget.BreakdownPatch{ProjectID: &newProject}, "")
	require.NoError(t, err)

	projA, err := eng.GetProject(ctx, "proj-a")
	require.NoError(t, err)
	requireDec(t, "50000", projA.TotalBudgetUtilized)

	projB, err := eng.GetProject(ctx, "proj-b")
	require.NoError(t, err)
	requireDec(t, "300000", projB.TotalBudgetUtilized)

	// The item total is unchanged; money just moved between projects.
	item, err := eng.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	requireDec(t, "350000", item.TotalBudgetUtilized)
}

func TestUpdate_TrashedEntity_Rejected(t *testing.T) {
	// GIVEN: A trashed project
	// WHEN: An update is attempted
	// THEN: Rejected; it must be restored first

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, admin, budget.TypeProject, "proj-a", true, "")
	require.NoError(t, err)

	title := "Renamed"
	_, err = eng.UpdateProject(ctx, admin, "proj-a", budget.ProjectPatch{Title: &title}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestUpdateProject_MoveToTrashedParent_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.CreateBudgetItem(ctx, admin, budget.BudgetItem{
		ID: "item-2", Particulars: "Second Item", TotalBudgetAllocated: dec(10_000),
	}, "")
	require.NoError(t, err)
	_, err = eng.ExecuteCascadeDelete(ctx, admin, budget.TypeBudgetItem, "item-2", true, "")
	require.NoError(t, err)

	dest := "item-2"
	_, err = eng.UpdateProject(ctx, admin, "proj-a", budget.ProjectPatch{BudgetItemID: &dest}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
}

// =============================================================================
// REFERENCE COUNTER SYMMETRY TESTS
// =============================================================================

func TestReferenceCounters_MoveDeleteRestoreSymmetry(t *testing.T) {
	// GIVEN: Two active offices and a project counted against the first
	// WHEN: The project moves offices, is trashed, and is restored
	// THEN: Counters stay symmetric at every step

	eng := newTestEngine(t)
	saveRef(t, eng, budget.RefOffice, "o-1", "City Engineering", true)
	saveRef(t, eng, budget.RefOffice, "o-2", "City Planning", true)
	ctx := context.Background()

	_, err := eng.CreateProject(ctx, admin, budget.Project{
		ID: "p-ref", Title: "Counted", OfficeID: "o-1", AllocatedBudget: dec(5_000),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, refCount(t, eng, budget.RefOffice, "o-1"))
	assert.Equal(t, 0, refCount(t, eng, budget.RefOffice, "o-2"))

	// Move: old decremented, new incremented.
	dest := "o-2"
	_, err = eng.UpdateProject(ctx, admin, "p-ref", budget.ProjectPatch{OfficeID: &dest}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, refCount(t, eng, budget.RefOffice, "o-1"))
	assert.Equal(t, 1, refCount(t, eng, budget.RefOffice, "o-2"))

	// Trash: released.
	_, err = eng.ExecuteCascadeDelete(ctx, admin, budget.TypeProject, "p-ref", true, "")
	require.NoError(t, err)
	assert.Equal(t, 0, refCount(t, eng, budget.RefOffice, "o-2"))

	// Restore: reacquired.
	_, err = eng.Restore(ctx, admin, budget.TypeProject, "p-ref")
	require.NoError(t, err)
	assert.Equal(t, 1, refCount(t, eng, budget.RefOffice, "o-2"))
}

// =============================================================================
// DEFAULTS AND VALIDATION TESTS
// =============================================================================

func TestCreateBudgetItem_Defaults(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateBudgetItem(ctx, admin, budget.BudgetItem{
		Particulars: "Defaults", TotalBudgetAllocated: dec(100),
	}, "")
	require.NoError(t, err)

	assert.Equal(t, budget.ModeAuto, item.Mode)
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestCreateProject_DefaultsAndStatusValidation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	p, err := eng.CreateProject(ctx, admin, budget.Project{Title: "Defaults"}, "")
	require.NoError(t, err)
	assert.Equal(t, budget.StatusOnTrack, p.Status)
	assert.Equal(t, budget.ModeAuto, p.Mode)

	_, err = eng.CreateProject(ctx, admin, budget.Project{
		Title: "Bad", Status: budget.ProjectStatus("paused"),
	}, "")
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestCreateBreakdown_RequiresDescription(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CreateBreakdown(context.Background(), admin, budget.Breakdown{}, "")

	assert.True(t, errors.Is(err, engine.ErrValidation))
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "description", ve.Field)
}

func TestFundChain_CreateRollupAndCascade(t *testing.T) {
	// GIVEN: A fund with two fund breakdowns
	// WHEN: Created, then one breakdown is trashed
	// THEN: The fund's rollup tracks the live set

	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateFund(ctx, admin, budget.Fund{
		ID: "df-1", Title: "Development Fund", AllocatedBudget: dec(500_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateFundBreakdown(ctx, admin, budget.FundBreakdown{
		ID: "fb-1", FundID: "df-1", Description: "Community center",
		AllocatedBudget: dec(300_000), BudgetUtilized: dec(150_000),
	}, "")
	require.NoError(t, err)

	_, err = eng.CreateFundBreakdown(ctx, admin, budget.FundBreakdown{
		ID: "fb-2", FundID: "df-1", Description: "Street lighting",
		AllocatedBudget: dec(200_000), BudgetUtilized: dec(50_000),
	}, "")
	require.NoError(t, err)

	fund, err := eng.GetFund(ctx, "df-1")
	require.NoError(t, err)
	requireDec(t, "200000", fund.TotalBudgetUtilized)
	requireDec(t, "40", fund.UtilizationRate)

	_, err = eng.ExecuteCascadeDelete(ctx, admin, budget.TypeFundBreakdown, "fb-1", true, "")
	require.NoError(t, err)

	fund, err = eng.GetFund(ctx, "df-1")
	require.NoError(t, err)
	requireDec(t, "50000", fund.TotalBudgetUtilized)
	requireDec(t, "10", fund.UtilizationRate)
}
