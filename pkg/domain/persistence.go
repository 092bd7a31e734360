package domain

import "context"

// ClusterFilter narrows a cluster read. Zero values disable each restriction.
type ClusterFilter struct {
	// MinSize drops clusters with fewer members.
	MinSize      int
	ClusterSetID int64
	ClusterID    int64
}

// Match reports whether rec passes the filter. Backends that cannot push a
// restriction down to the store apply it with Match.
func (f ClusterFilter) Match(rec ClusterRecord) bool {
	if f.MinSize > 0 && rec.Cluster.Size < f.MinSize {
		return false
	}
	if f.ClusterSetID > 0 && rec.Cluster.ClusterSetID != f.ClusterSetID {
		return false
	}
	if f.ClusterID > 0 && rec.Cluster.ID != f.ClusterID {
		return false
	}
	return true
}

// ClusterSource is the read-only data-access handle the service is built on.
// Implementations hold their own connection pool; it is created once at
// process start, shared by all requests, and released with Close.
type ClusterSource interface {
	// ListClusters returns every cluster matching filter, ordered by id.
	ListClusters(ctx context.Context, filter ClusterFilter) ([]ClusterRecord, error)
	// ClusterMembers returns the members of one cluster, representative first.
	ClusterMembers(ctx context.Context, clusterID int64) ([]ClusterMember, error)
	// ListClusterSets returns all cluster sets with their cluster counts, ordered by id.
	ListClusterSets(ctx context.Context) ([]ClusterSet, error)
	Close() error
}
