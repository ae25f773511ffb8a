package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
)

// latestEntry fetches the newest audit record for one entity.
func latestEntry(t *testing.T, eng *engine.Engine, et budget.EntityType, id string) budget.ActivityLog {
	t.Helper()
	entries, err := eng.Activity(context.Background(), budget.ActivityFilter{EntityType: &et, EntityID: &id, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}

// =============================================================================
// DIFF ACCURACY TESTS
// =============================================================================

func TestActivity_UtilizedChange_DiffShowsOnlyUtilized(t *testing.T) {
	// GIVEN: The seeded hierarchy
	// WHEN: A breakdown's utilized amount is updated
	// THEN: The diff names exactly the user-entered field; the rate and
	//       balance recomputed by the same mutation stay out

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	utilized := dec(120_000)
	_, err := eng.UpdateBreakdown(ctx, admin, "bd-a1", budget.BreakdownPatch{BudgetUtilized: &utilized}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeBreakdown, "bd-a1")
	assert.Equal(t, budget.ActionUpdated, entry.Action)
	assert.Equal(t, []string{"budget_utilized"}, entry.ChangedFields)
}

func TestActivity_RollupFallout_NeverInParentDiff(t *testing.T) {
	// GIVEN: The seeded hierarchy
	// WHEN: A breakdown change ripples into the project's rollup
	// THEN: The project gets NO new audit entry at all; recalculation is
	//       silent on the audit trail

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	projType := budget.TypeProject
	projID := "proj-a"
	before, err := eng.Activity(ctx, budget.ActivityFilter{EntityType: &projType, EntityID: &projID})
	require.NoError(t, err)

	utilized := dec(175_000)
	_, err = eng.UpdateBreakdown(ctx, admin, "bd-a1", budget.BreakdownPatch{BudgetUtilized: &utilized}, "")
	require.NoError(t, err)

	after, err := eng.Activity(ctx, budget.ActivityFilter{EntityType: &projType, EntityID: &projID})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestActivity_DenylistExcludesStampsAndDerived(t *testing.T) {
	// GIVEN: A breakdown update touching allocated budget
	// WHEN: The diff is computed
	// THEN: updated_at/updated_by and the recomputed rate/balance are
	//       absent even though they changed in storage

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	allocated := dec(500_000)
	_, err := eng.UpdateBreakdown(ctx, admin, "bd-a1", budget.BreakdownPatch{AllocatedBudget: &allocated}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeBreakdown, "bd-a1")
	assert.Equal(t, []string{"allocated_budget"}, entry.ChangedFields)
	assert.NotContains(t, entry.ChangedFields, "utilization_rate")
	assert.NotContains(t, entry.ChangedFields, "balance")
	assert.NotContains(t, entry.ChangedFields, "updated_at")
}

func TestChangedFields_UnionOfBothSnapshots(t *testing.T) {
	// GIVEN: Snapshots where a field exists on only one side
	// WHEN: Diffed
	// THEN: The field counts as changed

	prev := budget.Fields{"title": "old", "office_id": "o-1"}
	next := budget.Fields{"title": "old"}

	changed := engine.ChangedFields(prev, next)

	assert.Equal(t, []string{"office_id"}, changed)
}

// =============================================================================
// CHANGE SUMMARY TESTS
// =============================================================================

func TestActivity_AllocationChangeSummary(t *testing.T) {
	// GIVEN: A project whose allocation is revised
	// WHEN: The summary is built
	// THEN: It highlights the before/after allocation

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	allocated := dec(750_000)
	_, err := eng.UpdateProject(ctx, admin, "proj-a", budget.ProjectPatch{AllocatedBudget: &allocated}, "supplemental budget")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeProject, "proj-a")
	require.NotNil(t, entry.ChangeSummary)
	assert.Equal(t, true, entry.ChangeSummary["allocation_changed"])
	assert.Equal(t, "supplemental budget", entry.Reason)
}

func TestActivity_StatusChangeSummary(t *testing.T) {
	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	status := budget.StatusOnHold
	_, err := eng.UpdateProject(ctx, admin, "proj-a", budget.ProjectPatch{Status: &status}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeProject, "proj-a")
	require.NotNil(t, entry.ChangeSummary)
	assert.Equal(t, true, entry.ChangeSummary["status_changed"])
	assert.Equal(t, "on_track", entry.ChangeSummary["previous_status"])
	assert.Equal(t, "on_hold", entry.ChangeSummary["new_status"])
}

func TestActivity_RestoreSummaryMarker(t *testing.T) {
	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	_, err := eng.ExecuteCascadeDelete(ctx, admin, budget.TypeProject, "proj-b", true, "")
	require.NoError(t, err)
	_, err = eng.Restore(ctx, admin, budget.TypeProject, "proj-b")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeProject, "proj-b")
	require.NotNil(t, entry.ChangeSummary)
	assert.Equal(t, true, entry.ChangeSummary["restored"])
	assert.Equal(t, 1, entry.ChangeSummary["cascade_restored"])
}

// =============================================================================
// LOGGER BEHAVIOR TESTS
// =============================================================================

func TestActivity_NoFieldChange_EntryStillWritten(t *testing.T) {
	// GIVEN: An update that sets a field to its current value
	// WHEN: The mutation completes
	// THEN: The audit entry exists with an empty diff; a touch is still
	//       an auditable act

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	title := "Road Widening" // unchanged
	_, err := eng.UpdateProject(ctx, admin, "proj-a", budget.ProjectPatch{Title: &title}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeProject, "proj-a")
	assert.Equal(t, budget.ActionUpdated, entry.Action)
	assert.Empty(t, entry.ChangedFields)
}

func TestActivity_MissingActorName_RecordedAsUnknown(t *testing.T) {
	// GIVEN: An actor with only an id and no directory configured
	// WHEN: A mutation is logged
	// THEN: The audit row says "Unknown" rather than blank

	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBudgetItem(ctx, engine.Actor{ID: "u-anon"}, budget.BudgetItem{
		ID: "item-x", Particulars: "Misc", TotalBudgetAllocated: dec(1_000),
	}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeBudgetItem, "item-x")
	assert.Equal(t, "u-anon", entry.ActorID)
	assert.Equal(t, "Unknown", entry.ActorName)
}

type staticDirectory map[string][2]string

func (d staticDirectory) Lookup(_ context.Context, id string) (string, string, bool) {
	v, ok := d[id]
	return v[0], v[1], ok
}

func TestActivity_ActorBackfilledFromDirectory(t *testing.T) {
	eng := newTestEngine(t)
	eng.Actors = staticDirectory{"u-9": {"Carla Santos", "encoder"}}
	ctx := context.Background()

	_, err := eng.CreateBudgetItem(ctx, engine.Actor{ID: "u-9"}, budget.BudgetItem{
		ID: "item-y", Particulars: "Supplies", TotalBudgetAllocated: dec(2_000),
	}, "")
	require.NoError(t, err)

	entry := latestEntry(t, eng, budget.TypeBudgetItem, "item-y")
	assert.Equal(t, "Carla Santos", entry.ActorName)
	assert.Equal(t, "encoder", entry.ActorRole)
}

func TestActivity_QueryFiltersAndOrder(t *testing.T) {
	// GIVEN: Several mutations by two actors
	// WHEN: Queried by actor with a limit
	// THEN: Only that actor's entries return, newest first

	eng := newTestEngine(t)
	seedHierarchy(t, eng)
	ctx := context.Background()

	utilized := dec(60_000)
	_, err := eng.UpdateBreakdown(ctx, encoder, "bd-a2", budget.BreakdownPatch{BudgetUtilized: &utilized}, "")
	require.NoError(t, err)

	actorID := encoder.ID
	entries, err := eng.Activity(ctx, budget.ActivityFilter{ActorID: &actorID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bd-a2", entries[0].EntityID)

	all, err := eng.Activity(ctx, budget.ActivityFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "entries must be newest first")
	}
}
