package domain

import (
	"fmt"
	"strings"
)

// Category is the review bucket a cluster is assigned to.
type Category string

// Review categories. CategoryAll is only valid as a query filter.
const (
	CategoryAll              Category = "all"
	CategoryUnclassified     Category = "unclassified"
	CategoryFlagged          Category = "flagged"
	CategoryReclassification Category = "reclassification"
	CategoryDiverse          Category = "diverse"
)

// Thresholds at or above which a cluster counts as diverse.
const (
	DiverseStructureConsistency = 0.8
	DiverseTaxonomicDiversity   = 0.7
)

const flaggedMarker = "flagged"

// Categories lists the assignable categories in priority order.
var Categories = []Category{
	CategoryReclassification,
	CategoryFlagged,
	CategoryUnclassified,
	CategoryDiverse,
}

// Categorize assigns exactly one category. Rules are evaluated top to bottom and
// the first match wins:
//
//  1. no analysis row -> unclassified
//  2. requires_new_classification -> reclassification
//  3. structure_consistency >= 0.8 or taxonomic_diversity >= 0.7 -> diverse
//  4. notes contain "flagged" -> flagged
//  5. otherwise -> unclassified
//
// Rule 3 precedes rule 4, so a high-scoring cluster with "flagged" notes is diverse.
// Null scores never satisfy a threshold.
func Categorize(analysis *ClusterAnalysis) Category {
	switch {
	case analysis == nil:
		return CategoryUnclassified
	case analysis.RequiresNewClassification:
		return CategoryReclassification
	case atLeast(analysis.StructureConsistency, DiverseStructureConsistency),
		atLeast(analysis.TaxonomicDiversity, DiverseTaxonomicDiversity):
		return CategoryDiverse
	case strings.Contains(analysis.AnalysisNotes, flaggedMarker):
		return CategoryFlagged
	default:
		return CategoryUnclassified
	}
}

func atLeast(v *float64, threshold float64) bool {
	return v != nil && *v >= threshold
}

// Priority returns the sort rank of a category; lower sorts first.
func (c Category) Priority() int {
	switch c {
	case CategoryReclassification:
		return 1
	case CategoryFlagged:
		return 2
	case CategoryUnclassified:
		return 3
	case CategoryDiverse:
		return 4
	default:
		return 5
	}
}

// Valid reports whether c is accepted as a query filter.
func (c Category) Valid() bool {
	switch c {
	case CategoryAll, CategoryUnclassified, CategoryFlagged, CategoryReclassification, CategoryDiverse:
		return true
	default:
		return false
	}
}

// ParseCategory parses a filter value. The empty string selects CategoryAll.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c == "" {
		return CategoryAll, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// CategoryTotals counts clusters per category. All is the sum of the four buckets.
type CategoryTotals struct {
	Unclassified     int `json:"unclassified"`
	Flagged          int `json:"flagged"`
	Reclassification int `json:"reclassification"`
	Diverse          int `json:"diverse"`
	All              int `json:"all"`
}

// Add counts one cluster in category c.
func (t *CategoryTotals) Add(c Category) {
	switch c {
	case CategoryUnclassified:
		t.Unclassified++
	case CategoryFlagged:
		t.Flagged++
	case CategoryReclassification:
		t.Reclassification++
	case CategoryDiverse:
		t.Diverse++
	default:
		return
	}
	t.All++
}

// Count returns the total for c. CategoryAll returns the overall total.
func (t CategoryTotals) Count(c Category) int {
	switch c {
	case CategoryUnclassified:
		return t.Unclassified
	case CategoryFlagged:
		return t.Flagged
	case CategoryReclassification:
		return t.Reclassification
	case CategoryDiverse:
		return t.Diverse
	case CategoryAll:
		return t.All
	default:
		return 0
	}
}
