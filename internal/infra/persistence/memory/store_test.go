package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ecodcluster/pkg/domain"
)

func TestListClustersDerivesSizeAndRepresentative(t *testing.T) {
	store := NewStoreFromSnapshot(ScenarioSnapshot())
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 clusters, got %d", len(recs))
	}
	sizes := []int{recs[0].Cluster.Size, recs[1].Cluster.Size, recs[2].Cluster.Size, recs[3].Cluster.Size}
	if diff := cmp.Diff([]int{1, 5, 3, 10}, sizes); diff != "" {
		t.Fatalf("unexpected sizes (-want +got):\n%s", diff)
	}
	if recs[1].Representative != nil || recs[1].Analysis != nil {
		t.Fatalf("cluster B must have no analysis and no representative: %+v", recs[1])
	}
	want := &domain.Representative{DomainID: "e4d00A0", TGroup: "2004.1.1", TGroupName: "Immunoglobulin-like beta-sandwich"}
	if diff := cmp.Diff(want, recs[3].Representative); diff != "" {
		t.Fatalf("unexpected representative (-want +got):\n%s", diff)
	}
}

func TestListClustersFilter(t *testing.T) {
	store := NewStoreFromSnapshot(ScenarioSnapshot())
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{MinSize: 2})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	if len(recs) != 3 || recs[0].Cluster.ID != 2 {
		t.Fatalf("singleton not filtered: %+v", recs)
	}
	recs, err = store.ListClusters(context.Background(), domain.ClusterFilter{ClusterID: 3})
	if err != nil || len(recs) != 1 || recs[0].Cluster.ID != 3 {
		t.Fatalf("cluster id filter: %v %+v", err, recs)
	}
}

func TestRepresentativeTieBreak(t *testing.T) {
	store := NewStore()
	store.PutTGroupName("1.1.1", "first")
	store.PutTGroupName("9.9.9", "last")
	store.PutCluster(FixtureCluster{ID: 1, ClusterNumber: 1, Members: []domain.ClusterMember{
		{DomainID: "z", TGroup: "2.2.2", IsRepresentative: true},
		{DomainID: "m", TGroup: "1.1.1", IsRepresentative: true},
		{DomainID: "a", TGroup: "0.0.0"},
	}})
	// The lowest domain id carries the highest T-group; its own T-group must win.
	store.PutCluster(FixtureCluster{ID: 2, ClusterNumber: 2, Members: []domain.ClusterMember{
		{DomainID: "b", TGroup: "1.1.1", IsRepresentative: true},
		{DomainID: "a", TGroup: "9.9.9", IsRepresentative: true},
	}})
	recs, err := store.ListClusters(context.Background(), domain.ClusterFilter{})
	if err != nil {
		t.Fatalf("ListClusters: %v", err)
	}
	want := []*domain.Representative{
		{DomainID: "m", TGroup: "1.1.1", TGroupName: "first"},
		{DomainID: "a", TGroup: "9.9.9", TGroupName: "last"},
	}
	for i, rec := range recs {
		if diff := cmp.Diff(want[i], rec.Representative); diff != "" {
			t.Fatalf("cluster %d representative (-want +got):\n%s", rec.Cluster.ID, diff)
		}
	}
}

func TestClusterMembersRepresentativeFirst(t *testing.T) {
	store := NewStore()
	store.PutCluster(FixtureCluster{ID: 7, Members: []domain.ClusterMember{
		{DomainID: "b"}, {DomainID: "c", IsRepresentative: true}, {DomainID: "a"},
	}})
	got, err := store.ClusterMembers(context.Background(), 7)
	if err != nil {
		t.Fatalf("ClusterMembers: %v", err)
	}
	order := []string{got[0].DomainID, got[1].DomainID, got[2].DomainID}
	if diff := cmp.Diff([]string{"c", "a", "b"}, order); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	missing, err := store.ClusterMembers(context.Background(), 99)
	if err != nil || missing == nil || len(missing) != 0 {
		t.Fatalf("missing cluster should yield empty members: %v %v", missing, err)
	}
}

func TestListClusterSetsCounts(t *testing.T) {
	store := NewStoreFromSnapshot(ScenarioSnapshot())
	store.PutClusterSet(domain.ClusterSet{ID: 2, Name: "ecod-40"})
	store.PutClusterSet(domain.ClusterSet{ID: 1, Name: "ecod-70-renamed"})
	sets, err := store.ListClusterSets(context.Background())
	if err != nil {
		t.Fatalf("ListClusterSets: %v", err)
	}
	if len(sets) != 2 || sets[0].Name != "ecod-70-renamed" || sets[0].ClusterCount != 4 || sets[1].ClusterCount != 0 {
		t.Fatalf("unexpected sets %+v", sets)
	}
}

func TestFailWithAndCancelledContext(t *testing.T) {
	store := NewStoreFromSnapshot(ScenarioSnapshot())
	boom := errors.New("boom")
	store.FailWith(boom)
	if _, err := store.ListClusters(context.Background(), domain.ClusterFilter{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := store.ListClusterSets(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	store.FailWith(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.ClusterMembers(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestExportStateRoundTrip(t *testing.T) {
	store := NewStoreFromSnapshot(ScenarioSnapshot())
	snap := store.ExportState()
	snap.Clusters[0].Members[0].DomainID = "mutated"
	again := store.ExportState()
	if again.Clusters[0].Members[0].DomainID == "mutated" {
		t.Fatalf("ExportState must return a copy")
	}
	if diff := cmp.Diff(ScenarioSnapshot(), again); diff != "" {
		t.Fatalf("state drifted (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot(strings.NewReader(`{"cluster_sets":[{"id":1,"name":"s"}],"clusters":[{"id":5,"cluster_number":9,"cluster_set_id":1,"members":[{"domain_id":"d","is_representative":true}]}]}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(snap.Clusters) != 1 || snap.Clusters[0].Members[0].DomainID != "d" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, err := DecodeSnapshot(strings.NewReader(`{"unknown":1}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(`{"cluster_sets":[],"clusters":[]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSnapshotFile(path); err != nil {
		t.Fatalf("LoadSnapshotFile: %v", err)
	}
	if _, err := LoadSnapshotFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
