package domain

import "sort"

// Limits applied to the priority listing.
const (
	DefaultPriorityLimit = 10
	MaxPriorityLimit     = 500
)

// PriorityQuery parameterizes the priority listing.
type PriorityQuery struct {
	Limit             int      `json:"limit"`
	Category          Category `json:"category"`
	ExcludeSingletons bool     `json:"exclude_singletons"`
	// ClusterSetID restricts the listing to one cluster set; 0 means all sets.
	ClusterSetID int64 `json:"cluster_set_id,omitempty"`
}

// DefaultPriorityQuery returns limit 10, every category, singletons excluded.
func DefaultPriorityQuery() PriorityQuery {
	return PriorityQuery{
		Limit:             DefaultPriorityLimit,
		Category:          CategoryAll,
		ExcludeSingletons: true,
	}
}

// Validate rejects malformed queries. An empty category is read as CategoryAll.
func (q PriorityQuery) Validate() error {
	const op = "priority query"
	if q.Limit <= 0 {
		return InvalidArgument(op, "limit must be a positive integer, got %d", q.Limit)
	}
	if q.Limit > MaxPriorityLimit {
		return InvalidArgument(op, "limit must not exceed %d, got %d", MaxPriorityLimit, q.Limit)
	}
	if q.Category != "" && !q.Category.Valid() {
		return InvalidArgument(op, "unknown category %q", string(q.Category))
	}
	if q.ClusterSetID < 0 {
		return InvalidArgument(op, "cluster_set_id must not be negative, got %d", q.ClusterSetID)
	}
	return nil
}

// Filter returns the source filter matching the query.
func (q PriorityQuery) Filter() ClusterFilter {
	f := ClusterFilter{ClusterSetID: q.ClusterSetID}
	if q.ExcludeSingletons {
		f.MinSize = 2
	}
	return f
}

// PriorityPage is the result of the priority listing.
type PriorityPage struct {
	Clusters []PriorityCluster `json:"clusters"`
	Totals   CategoryTotals    `json:"totals"`
}

// BuildPriorityPage derives the page and the per-category totals from a single
// set of records. Totals cover every category regardless of q.Category; the
// returned list is filtered, sorted by category priority then descending cluster
// number, and truncated to q.Limit. The query is assumed valid.
func BuildPriorityPage(records []ClusterRecord, q PriorityQuery) PriorityPage {
	want := q.Category
	if want == "" {
		want = CategoryAll
	}
	page := PriorityPage{Clusters: []PriorityCluster{}}
	for _, rec := range records {
		if q.ExcludeSingletons && rec.Cluster.Size <= 1 {
			continue
		}
		if q.ClusterSetID > 0 && rec.Cluster.ClusterSetID != q.ClusterSetID {
			continue
		}
		category := Categorize(rec.Analysis)
		page.Totals.Add(category)
		if want != CategoryAll && category != want {
			continue
		}
		page.Clusters = append(page.Clusters, NewPriorityCluster(rec, category))
	}
	SortPriority(page.Clusters)
	if q.Limit >= 0 && len(page.Clusters) > q.Limit {
		page.Clusters = page.Clusters[:q.Limit]
	}
	return page
}

// SortPriority orders clusters by category priority, then by descending
// cluster number, then by descending id.
func SortPriority(clusters []PriorityCluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if pa, pb := a.Category.Priority(), b.Category.Priority(); pa != pb {
			return pa < pb
		}
		if a.ClusterNumber != b.ClusterNumber {
			return a.ClusterNumber > b.ClusterNumber
		}
		return a.ID > b.ID
	})
}
