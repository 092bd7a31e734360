package domain

import (
	"math"
	"sort"
)

// DashboardSummary carries the headline statistics shown on the dashboard.
type DashboardSummary struct {
	ClusterSetID             int64          `json:"cluster_set_id,omitempty"`
	TotalClusterSets         int            `json:"total_cluster_sets"`
	TotalClusters            int            `json:"total_clusters"`
	TotalDomains             int            `json:"total_domains"`
	SingletonClusters        int            `json:"singleton_clusters"`
	AnalyzedClusters         int            `json:"analyzed_clusters"`
	RequiresReclassification int            `json:"requires_reclassification"`
	LargestClusterSize       int            `json:"largest_cluster_size"`
	MeanTaxonomicDiversity   *float64       `json:"mean_taxonomic_diversity"`
	MeanStructureConsistency *float64       `json:"mean_structure_consistency"`
	PriorityTotals           CategoryTotals `json:"priority_totals"`
}

// Summarize computes the dashboard summary. PriorityTotals exclude singletons,
// matching the default priority listing.
func Summarize(records []ClusterRecord, setCount int) DashboardSummary {
	s := DashboardSummary{TotalClusterSets: setCount}
	var taxSum, structSum float64
	var taxN, structN int
	for _, rec := range records {
		size := rec.Cluster.Size
		s.TotalClusters++
		s.TotalDomains += size
		if size <= 1 {
			s.SingletonClusters++
		}
		if size > s.LargestClusterSize {
			s.LargestClusterSize = size
		}
		if a := rec.Analysis; a != nil {
			s.AnalyzedClusters++
			if a.RequiresNewClassification {
				s.RequiresReclassification++
			}
			if a.TaxonomicDiversity != nil {
				taxSum += *a.TaxonomicDiversity
				taxN++
			}
			if a.StructureConsistency != nil {
				structSum += *a.StructureConsistency
				structN++
			}
		}
		if size > 1 {
			s.PriorityTotals.Add(Categorize(rec.Analysis))
		}
	}
	s.MeanTaxonomicDiversity = mean(taxSum, taxN)
	s.MeanStructureConsistency = mean(structSum, structN)
	return s
}

func mean(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// Limits applied to the taxonomy breakdown.
const (
	DefaultTaxonomyLimit = 20
	MaxTaxonomyLimit     = 500
)

// TaxonomyQuery parameterizes the T-group breakdown.
type TaxonomyQuery struct {
	Limit             int   `json:"limit"`
	ClusterSetID      int64 `json:"cluster_set_id,omitempty"`
	ExcludeSingletons bool  `json:"exclude_singletons"`
}

// DefaultTaxonomyQuery returns limit 20 over all sets with singletons excluded.
func DefaultTaxonomyQuery() TaxonomyQuery {
	return TaxonomyQuery{Limit: DefaultTaxonomyLimit, ExcludeSingletons: true}
}

// Validate rejects malformed breakdown queries.
func (q TaxonomyQuery) Validate() error {
	const op = "taxonomy query"
	if q.Limit <= 0 || q.Limit > MaxTaxonomyLimit {
		return InvalidArgument(op, "limit must be between 1 and %d, got %d", MaxTaxonomyLimit, q.Limit)
	}
	if q.ClusterSetID < 0 {
		return InvalidArgument(op, "cluster_set_id must not be negative, got %d", q.ClusterSetID)
	}
	return nil
}

// Filter returns the source filter matching the query.
func (q TaxonomyQuery) Filter() ClusterFilter {
	f := ClusterFilter{ClusterSetID: q.ClusterSetID}
	if q.ExcludeSingletons {
		f.MinSize = 2
	}
	return f
}

// TGroupCount is one row of the taxonomy breakdown.
type TGroupCount struct {
	TGroup   string `json:"t_group"`
	Name     string `json:"name"`
	Clusters int    `json:"clusters"`
	Domains  int    `json:"domains"`
}

// TaxonomyBreakdown groups clusters by the T-group of their representative.
// Clusters without one are counted under UnknownPlaceholder.
func TaxonomyBreakdown(records []ClusterRecord, q TaxonomyQuery) []TGroupCount {
	f := q.Filter()
	byGroup := make(map[string]*TGroupCount)
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		key, name := UnknownPlaceholder, UnknownPlaceholder
		if r := rec.Representative; r != nil && r.TGroup != "" {
			key = r.TGroup
			name = r.TGroupName
			if name == "" {
				name = UnknownPlaceholder
			}
		}
		row, ok := byGroup[key]
		if !ok {
			row = &TGroupCount{TGroup: key, Name: name}
			byGroup[key] = row
		}
		row.Clusters++
		row.Domains += rec.Cluster.Size
	}
	out := make([]TGroupCount, 0, len(byGroup))
	for _, row := range byGroup {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clusters != out[j].Clusters {
			return out[i].Clusters > out[j].Clusters
		}
		return out[i].TGroup < out[j].TGroup
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// QualityBins is the number of equal-width bins over [0,1].
const QualityBins = 10

// Histogram counts scores per bin. Missing counts clusters without a value.
type Histogram struct {
	Bins    [QualityBins]int `json:"bins"`
	Missing int              `json:"missing"`
}

func (h *Histogram) observe(v *float64) {
	if v == nil || math.IsNaN(*v) {
		h.Missing++
		return
	}
	idx := int(math.Floor(*v * QualityBins))
	if idx < 0 {
		idx = 0
	}
	if idx >= QualityBins {
		idx = QualityBins - 1
	}
	h.Bins[idx]++
}

// QualityDistribution feeds the structural quality charts.
type QualityDistribution struct {
	BinEdges             [QualityBins + 1]float64 `json:"bin_edges"`
	StructureConsistency Histogram                `json:"structure_consistency"`
	TaxonomicDiversity   Histogram                `json:"taxonomic_diversity"`
}

// Distribute bins structure consistency and taxonomic diversity scores.
func Distribute(records []ClusterRecord) QualityDistribution {
	var d QualityDistribution
	for i := range d.BinEdges {
		d.BinEdges[i] = float64(i) / QualityBins
	}
	for _, rec := range records {
		var structure, taxonomy *float64
		if rec.Analysis != nil {
			structure = rec.Analysis.StructureConsistency
			taxonomy = rec.Analysis.TaxonomicDiversity
		}
		d.StructureConsistency.observe(structure)
		d.TaxonomicDiversity.observe(taxonomy)
	}
	return d
}
