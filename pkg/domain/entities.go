// Package domain defines the cluster review entities, the priority
// categorization rule, and the pure aggregations the dashboard is built on.
package domain

import "fmt"

// UnknownPlaceholder is rendered wherever an optional label is absent so that
// consumers never receive a null string.
const UnknownPlaceholder = "Unknown"

// ClusterSet groups the clusters produced by one run of the upstream clustering pipeline.
type ClusterSet struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Method           string   `json:"method,omitempty"`
	SequenceIdentity *float64 `json:"sequence_identity,omitempty"`
	ClusterCount     int      `json:"cluster_count"`
}

// Cluster is a grouping of domain records. Size is the number of membership rows.
type Cluster struct {
	ID            int64 `json:"id"`
	ClusterNumber int64 `json:"cluster_number"`
	ClusterSetID  int64 `json:"cluster_set_id"`
	Size          int   `json:"size"`
}

// ClusterAnalysis holds the precomputed analysis columns for a cluster.
// Scores are in [0,1] and may be null upstream.
type ClusterAnalysis struct {
	TaxonomicDiversity        *float64 `json:"taxonomic_diversity,omitempty"`
	StructureConsistency      *float64 `json:"structure_consistency,omitempty"`
	RequiresNewClassification bool     `json:"requires_new_classification"`
	AnalysisNotes             string   `json:"analysis_notes,omitempty"`
}

// Representative is the member flagged as the canonical example of a cluster.
type Representative struct {
	DomainID   string `json:"domain_id"`
	TGroup     string `json:"t_group,omitempty"`
	TGroupName string `json:"t_group_name,omitempty"`
}

// ClusterRecord is one cluster together with its optional analysis row and
// optional representative. A nil Analysis means no analysis row exists.
type ClusterRecord struct {
	Cluster        Cluster          `json:"cluster"`
	Analysis       *ClusterAnalysis `json:"analysis,omitempty"`
	Representative *Representative  `json:"representative,omitempty"`
}

// Name returns the display name of the cluster.
func (r ClusterRecord) Name() string {
	return fmt.Sprintf("Cluster %d", r.Cluster.ClusterNumber)
}

// RepresentativeDomain returns the representative domain id or UnknownPlaceholder.
func (r ClusterRecord) RepresentativeDomain() string {
	if r.Representative == nil || r.Representative.DomainID == "" {
		return UnknownPlaceholder
	}
	return r.Representative.DomainID
}

// ClusterMember is a single domain assigned to a cluster.
type ClusterMember struct {
	DomainID         string `json:"domain_id"`
	TGroup           string `json:"t_group,omitempty"`
	IsRepresentative bool   `json:"is_representative"`
}

// ClusterDetail is the full view of one cluster used by the detail lookup.
type ClusterDetail struct {
	ClusterRecord
	Name                 string          `json:"name"`
	Category             Category        `json:"category"`
	RepresentativeDomain string          `json:"representativeDomain"`
	Members              []ClusterMember `json:"members"`
}

// NewClusterDetail assembles a detail view, categorizing the record and
// normalizing an absent member list to an empty slice.
func NewClusterDetail(rec ClusterRecord, members []ClusterMember) ClusterDetail {
	if members == nil {
		members = []ClusterMember{}
	}
	return ClusterDetail{
		ClusterRecord:        rec,
		Name:                 rec.Name(),
		Category:             Categorize(rec.Analysis),
		RepresentativeDomain: rec.RepresentativeDomain(),
		Members:              members,
	}
}

// PriorityCluster is the read-only projection returned by the priority listing.
// It is derived fresh on every query and never persisted.
type PriorityCluster struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	ClusterNumber        int64    `json:"cluster_number"`
	Size                 int      `json:"size"`
	Category             Category `json:"category"`
	RepresentativeDomain string   `json:"representativeDomain"`
	TaxonomicDiversity   float64  `json:"taxonomicDiversity"`
	StructuralDiversity  *float64 `json:"structuralDiversity,omitempty"`
	TGroup               string   `json:"t_group,omitempty"`
	TGroupName           string   `json:"t_group_name,omitempty"`
}

// NewPriorityCluster projects a record that has already been categorized.
func NewPriorityCluster(rec ClusterRecord, category Category) PriorityCluster {
	pc := PriorityCluster{
		ID:                   rec.Cluster.ID,
		Name:                 rec.Name(),
		ClusterNumber:        rec.Cluster.ClusterNumber,
		Size:                 rec.Cluster.Size,
		Category:             category,
		RepresentativeDomain: rec.RepresentativeDomain(),
	}
	if rec.Analysis != nil {
		if rec.Analysis.TaxonomicDiversity != nil {
			pc.TaxonomicDiversity = *rec.Analysis.TaxonomicDiversity
		}
		if rec.Analysis.StructureConsistency != nil {
			v := *rec.Analysis.StructureConsistency
			pc.StructuralDiversity = &v
		}
	}
	if rec.Representative != nil {
		pc.TGroup = rec.Representative.TGroup
		pc.TGroupName = rec.Representative.TGroupName
	}
	return pc
}

// Float returns a pointer to v. It keeps fixtures for optional scores terse.
func Float(v float64) *float64 { return &v }
