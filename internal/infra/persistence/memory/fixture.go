package memory

import (
	"fmt"

	"ecodcluster/pkg/domain"
)

// ScenarioSnapshot returns the reference review data set: cluster A is a
// singleton, B has no analysis row or representative, C awaits
// reclassification, and D is structurally consistent. Backend and adapter
// tests share it so every layer is checked against the same expectations.
func ScenarioSnapshot() Snapshot {
	return Snapshot{
		ClusterSets: []domain.ClusterSet{
			{ID: 1, Name: "ecod-70", Method: "mmseqs2", SequenceIdentity: domain.Float(0.7)},
		},
		TGroupNames: map[string]string{
			"2004.1.1": "Immunoglobulin-like beta-sandwich",
			"11.1.1":   "Rossmann-like",
		},
		Clusters: []FixtureCluster{
			{
				ID: 1, ClusterNumber: 101, ClusterSetID: 1,
				Members: members("e1a00A1", 1, "11.1.1", true),
			},
			{
				ID: 2, ClusterNumber: 102, ClusterSetID: 1,
				Members: members("e2b00A", 5, "", false),
			},
			{
				ID: 3, ClusterNumber: 103, ClusterSetID: 1,
				Analysis: &domain.ClusterAnalysis{RequiresNewClassification: true, AnalysisNotes: "split candidate"},
				Members:  members("e3c00A", 3, "11.1.1", true),
			},
			{
				ID: 4, ClusterNumber: 104, ClusterSetID: 1,
				Analysis: &domain.ClusterAnalysis{StructureConsistency: domain.Float(0.9), TaxonomicDiversity: domain.Float(0.4)},
				Members:  members("e4d00A", 10, "2004.1.1", true),
			},
		},
	}
}

// members builds n members named prefix0..prefixN-1; the first is the
// representative when rep is set.
func members(prefix string, n int, tgroup string, rep bool) []domain.ClusterMember {
	out := make([]domain.ClusterMember, n)
	for i := range out {
		out[i] = domain.ClusterMember{
			DomainID:         fmt.Sprintf("%s%d", prefix, i),
			TGroup:           tgroup,
			IsRepresentative: rep && i == 0,
		}
	}
	return out
}
