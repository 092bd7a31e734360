package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ecodcluster/internal/infra/persistence/memory"
	"ecodcluster/internal/schema/sqlbundle"
	"ecodcluster/pkg/domain"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "nested", "clusters.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Import(context.Background(), memory.ScenarioSnapshot()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	return store
}

func TestNewStoreAppliesSchema(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "clusters.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, table := range sqlbundle.Tables(sqlbundle.SQLite()) {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
	}
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters on empty db: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no clusters, got %d", len(recs))
	}
}

func TestStoreMatchesMemoryDerivation(t *testing.T) {
	store := newSeededStore(t)
	mem := memory.NewStoreFromSnapshot(memory.ScenarioSnapshot())
	ctx := context.Background()

	for _, filter := range []domain.ClusterFilter{{}, {MinSize: 2}, {ClusterSetID: 1}, {ClusterID: 4}, {ClusterSetID: 9}} {
		got, err := store.ListClusters(ctx, filter)
		if err != nil {
			t.Fatalf("sqlite ListClusters(%+v): %v", filter, err)
		}
		want, err := mem.ListClusters(ctx, filter)
		if err != nil {
			t.Fatalf("memory ListClusters(%+v): %v", filter, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("filter %+v mismatch (-memory +sqlite):\n%s", filter, diff)
		}
	}

	gotMembers, err := store.ClusterMembers(ctx, 3)
	if err != nil {
		t.Fatalf("ClusterMembers: %v", err)
	}
	wantMembers, _ := mem.ClusterMembers(ctx, 3)
	if diff := cmp.Diff(wantMembers, gotMembers); diff != "" {
		t.Fatalf("members mismatch (-memory +sqlite):\n%s", diff)
	}

	gotSets, err := store.ListClusterSets(ctx)
	if err != nil {
		t.Fatalf("ListClusterSets: %v", err)
	}
	wantSets, _ := mem.ListClusterSets(ctx)
	if diff := cmp.Diff(wantSets, gotSets); diff != "" {
		t.Fatalf("sets mismatch (-memory +sqlite):\n%s", diff)
	}
}

func TestRepresentativeTieBreakMatchesMemory(t *testing.T) {
	store := newSeededStore(t)
	snap := memory.Snapshot{
		ClusterSets: []domain.ClusterSet{{ID: 1, Name: "ecod-70"}},
		TGroupNames: map[string]string{"1.1.1": "first", "9.9.9": "last"},
		Clusters: []memory.FixtureCluster{{
			ID: 1, ClusterNumber: 1, ClusterSetID: 1,
			Members: []domain.ClusterMember{
				{DomainID: "b", TGroup: "1.1.1", IsRepresentative: true},
				{DomainID: "a", TGroup: "9.9.9", IsRepresentative: true},
				{DomainID: "c", TGroup: "0.0.0"},
			},
		}},
	}
	if err := store.Import(context.Background(), snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	got, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	want, _ := memory.NewStoreFromSnapshot(snap).ListClusters(context.Background(), domain.ClusterFilter{})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-memory +sqlite):\n%s", diff)
	}
	rep := got[0].Representative
	if rep == nil || rep.DomainID != "a" || rep.TGroup != "9.9.9" || rep.TGroupName != "last" {
		t.Fatalf("representative must come from one member, got %+v", rep)
	}
}

func TestPriorityScenarioOverSQLite(t *testing.T) {
	store := newSeededStore(t)
	q := domain.DefaultPriorityQuery()
	recs, err := store.ListClusters(context.Background(), q.Filter())
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	page := domain.BuildPriorityPage(recs, q)
	var ids []int64
	for _, c := range page.Clusters {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]int64{3, 2, 4}, ids); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	want := domain.CategoryTotals{Unclassified: 1, Flagged: 0, Reclassification: 1, Diverse: 1, All: 3}
	if diff := cmp.Diff(want, page.Totals); diff != "" {
		t.Fatalf("unexpected totals (-want +got):\n%s", diff)
	}
	d := page.Clusters[2]
	if d.RepresentativeDomain != "e4d00A0" || d.TGroup != "2004.1.1" || d.StructuralDiversity == nil || *d.StructuralDiversity != 0.9 {
		t.Fatalf("unexpected diverse cluster %+v", d)
	}
}

func TestImportReplacesContents(t *testing.T) {
	store := newSeededStore(t)
	snap := memory.Snapshot{
		ClusterSets: []domain.ClusterSet{{ID: 5, Name: "only"}},
		Clusters: []memory.FixtureCluster{{
			ID: 50, ClusterNumber: 1, ClusterSetID: 5,
			Analysis: &domain.ClusterAnalysis{AnalysisNotes: "flagged by curator"},
			Members:  []domain.ClusterMember{{DomainID: "x1", IsRepresentative: true}, {DomainID: "x2"}},
		}},
	}
	if err := store.Import(context.Background(), snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	if len(recs) != 1 || recs[0].Cluster.ID != 50 || recs[0].Cluster.Size != 2 {
		t.Fatalf("expected only the imported cluster, got %+v", recs)
	}
	if domain.Categorize(recs[0].Analysis) != domain.CategoryFlagged {
		t.Fatalf("expected flagged analysis, got %+v", recs[0].Analysis)
	}
	if recs[0].Representative == nil || recs[0].Representative.TGroup != "" {
		t.Fatalf("representative without t_group expected, got %+v", recs[0].Representative)
	}
}

func TestImportRollsBackOnFailure(t *testing.T) {
	store := newSeededStore(t)
	dup := memory.Snapshot{Clusters: []memory.FixtureCluster{{ID: 1}, {ID: 1}}}
	if err := store.Import(context.Background(), dup); err == nil {
		t.Fatalf("expected duplicate cluster id to fail")
	}
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("failed import must leave previous data, got %d clusters", len(recs))
	}
}

func TestClosedStoreReturnsError(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "clusters.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() == "" {
		t.Fatalf("expected path")
	}
	_ = store.Close()
	if _, err := store.ListClusters(context.Background(), domain.ClusterFilter{}); err == nil {
		t.Fatalf("expected error from closed store")
	}
}
