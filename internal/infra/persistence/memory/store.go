// Package memory provides an in-memory cluster source used for tests and
// ephemeral environments. It derives sizes and representatives from member
// lists the same way the SQL backends do.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"ecodcluster/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ClusterSource = (*Store)(nil)

// FixtureCluster is one cluster row with its optional analysis and its members.
type FixtureCluster struct {
	ID            int64                   `json:"id"`
	ClusterNumber int64                   `json:"cluster_number"`
	ClusterSetID  int64                   `json:"cluster_set_id"`
	Analysis      *domain.ClusterAnalysis `json:"analysis,omitempty"`
	Members       []domain.ClusterMember  `json:"members"`
}

// Snapshot is the serialized state of the store. It is also the seed format
// accepted by the sqlite backend.
type Snapshot struct {
	ClusterSets []domain.ClusterSet `json:"cluster_sets"`
	TGroupNames map[string]string   `json:"tgroup_names,omitempty"`
	Clusters    []FixtureCluster    `json:"clusters"`
}

// DecodeSnapshot reads a JSON snapshot.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// LoadSnapshotFile reads a JSON snapshot from path.
func LoadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied fixture path
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeSnapshot(f)
}

// Store implements domain.ClusterSource over process memory.
type Store struct {
	mu       sync.RWMutex
	sets     []domain.ClusterSet
	tgroups  map[string]string
	clusters map[int64]FixtureCluster
	failure  error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tgroups: map[string]string{}, clusters: map[int64]FixtureCluster{}}
}

// NewStoreFromSnapshot returns a store hydrated from snap.
func NewStoreFromSnapshot(snap Snapshot) *Store {
	s := NewStore()
	s.ImportState(snap)
	return s
}

// ImportState replaces the store contents with snap.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append([]domain.ClusterSet(nil), snap.ClusterSets...)
	s.tgroups = make(map[string]string, len(snap.TGroupNames))
	for k, v := range snap.TGroupNames {
		s.tgroups[k] = v
	}
	s.clusters = make(map[int64]FixtureCluster, len(snap.Clusters))
	for _, c := range snap.Clusters {
		s.clusters[c.ID] = cloneCluster(c)
	}
}

// ExportState returns a copy of the store contents with clusters ordered by id.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ClusterSets: append([]domain.ClusterSet(nil), s.sets...),
		TGroupNames: make(map[string]string, len(s.tgroups)),
	}
	for k, v := range s.tgroups {
		snap.TGroupNames[k] = v
	}
	for _, id := range s.sortedIDs() {
		snap.Clusters = append(snap.Clusters, cloneCluster(s.clusters[id]))
	}
	return snap
}

// PutClusterSet inserts or replaces a cluster set.
func (s *Store) PutClusterSet(set domain.ClusterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sets {
		if s.sets[i].ID == set.ID {
			s.sets[i] = set
			return
		}
	}
	s.sets = append(s.sets, set)
}

// PutCluster inserts or replaces a cluster.
func (s *Store) PutCluster(c FixtureCluster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[c.ID] = cloneCluster(c)
}

// PutTGroupName records the display name of a T-group.
func (s *Store) PutTGroupName(tgroup, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tgroups[tgroup] = name
}

// FailWith makes every subsequent read return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Close implements domain.ClusterSource.
func (s *Store) Close() error { return nil }

func (s *Store) readErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failure
}

// ListClusters implements domain.ClusterSource.
func (s *Store) ListClusters(ctx context.Context, filter domain.ClusterFilter) ([]domain.ClusterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readErr(ctx); err != nil {
		return nil, err
	}
	var out []domain.ClusterRecord
	for _, id := range s.sortedIDs() {
		rec := s.record(s.clusters[id])
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ClusterMembers implements domain.ClusterSource.
func (s *Store) ClusterMembers(ctx context.Context, clusterID int64) ([]domain.ClusterMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readErr(ctx); err != nil {
		return nil, err
	}
	c, ok := s.clusters[clusterID]
	if !ok {
		return []domain.ClusterMember{}, nil
	}
	members := append([]domain.ClusterMember{}, c.Members...)
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].IsRepresentative != members[j].IsRepresentative {
			return members[i].IsRepresentative
		}
		return members[i].DomainID < members[j].DomainID
	})
	return members, nil
}

// ListClusterSets implements domain.ClusterSource.
func (s *Store) ListClusterSets(ctx context.Context) ([]domain.ClusterSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readErr(ctx); err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, c := range s.clusters {
		counts[c.ClusterSetID]++
	}
	out := make([]domain.ClusterSet, 0, len(s.sets))
	for _, set := range s.sets {
		set.ClusterCount = counts[set.ID]
		out = append(out, set)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.clusters))
	for id := range s.clusters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// record mirrors the SQL read: size is the member count and the representative
// is the flagged member with the lowest domain id, T-group included.
func (s *Store) record(c FixtureCluster) domain.ClusterRecord {
	rec := domain.ClusterRecord{
		Cluster: domain.Cluster{
			ID:            c.ID,
			ClusterNumber: c.ClusterNumber,
			ClusterSetID:  c.ClusterSetID,
			Size:          len(c.Members),
		},
	}
	if c.Analysis != nil {
		a := *c.Analysis
		rec.Analysis = &a
	}
	var rep *domain.Representative
	for _, m := range c.Members {
		if !m.IsRepresentative || m.DomainID == "" {
			continue
		}
		if rep == nil || m.DomainID < rep.DomainID {
			rep = &domain.Representative{DomainID: m.DomainID, TGroup: m.TGroup}
		}
	}
	if rep != nil {
		rep.TGroupName = s.tgroups[rep.TGroup]
		rec.Representative = rep
	}
	return rec
}

func cloneCluster(c FixtureCluster) FixtureCluster {
	if c.Analysis != nil {
		a := *c.Analysis
		c.Analysis = &a
	}
	c.Members = append([]domain.ClusterMember(nil), c.Members...)
	return c
}
