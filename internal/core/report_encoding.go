package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ecodcluster/pkg/domain"
)

// ReportFormat selects the encoding of an exported priority report.
type ReportFormat string

// Supported report formats.
const (
	ReportJSON ReportFormat = "json"
	ReportCSV  ReportFormat = "csv"
)

// ParseReportFormat parses a case-insensitive format name. Empty means JSON.
func ParseReportFormat(raw string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReportJSON:
		return ReportJSON, nil
	case ReportCSV:
		return ReportCSV, nil
	default:
		return "", domain.InvalidArgument("report format", "unknown format %q (want json or csv)", raw)
	}
}

// Extension returns the file extension for f.
func (f ReportFormat) Extension() string { return string(f) }

// ContentType returns the MIME type for f.
func (f ReportFormat) ContentType() string {
	if f == ReportCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// PriorityReport is the JSON document written for a priority export.
type PriorityReport struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Query       domain.PriorityQuery     `json:"query"`
	Clusters    []domain.PriorityCluster `json:"clusters"`
	Totals      domain.CategoryTotals    `json:"totals"`
}

// CSVHeader lists the columns of a CSV priority report.
var CSVHeader = []string{
	"id",
	"name",
	"cluster_number",
	"size",
	"category",
	"representative_domain",
	"taxonomic_diversity",
	"structural_diversity",
	"t_group",
	"t_group_name",
}

// WritePriority encodes page in format f.
func WritePriority(w io.Writer, f ReportFormat, page domain.PriorityPage, q domain.PriorityQuery, generatedAt time.Time) error {
	switch f {
	case ReportCSV:
		return WritePriorityCSV(w, page)
	case ReportJSON, "":
		return WritePriorityJSON(w, page, q, generatedAt)
	default:
		return fmt.Errorf("unsupported report format %q", f)
	}
}

// WritePriorityJSON writes an indented PriorityReport.
func WritePriorityJSON(w io.Writer, page domain.PriorityPage, q domain.PriorityQuery, generatedAt time.Time) error {
	clusters := page.Clusters
	if clusters == nil {
		clusters = []domain.PriorityCluster{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(PriorityReport{
		GeneratedAt: generatedAt.UTC(),
		Query:       q,
		Clusters:    clusters,
		Totals:      page.Totals,
	})
}

// WritePriorityCSV writes a header row and one row per cluster. A null
// structural diversity is an empty cell.
func WritePriorityCSV(w io.Writer, page domain.PriorityPage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range page.Clusters {
		structural := ""
		if c.StructuralDiversity != nil {
			structural = formatScore(*c.StructuralDiversity)
		}
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			strconv.FormatInt(c.ClusterNumber, 10),
			strconv.Itoa(c.Size),
			string(c.Category),
			c.RepresentativeDomain,
			formatScore(c.TaxonomicDiversity),
			structural,
			c.TGroup,
			c.TGroupName,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
