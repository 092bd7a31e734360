// Package sqlsource implements domain.ClusterSource over database/sql. The
// sqlite and postgres packages open the connection and pick the dialect.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ecodcluster/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ClusterSource = (*Source)(nil)

// Dialect renders the n-th (1-based) bind placeholder.
type Dialect func(n int) string

// Question renders "?" placeholders (SQLite).
func Question(int) string { return "?" }

// Dollar renders "$n" placeholders (Postgres).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Source reads clusters from the cluster review schema.
type Source struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle. The Source owns db and closes it.
func New(db *sql.DB, dialect Dialect) *Source {
	if dialect == nil {
		dialect = Question
	}
	return &Source{db: db, dialect: dialect}
}

// DB exposes the underlying handle for adapters that seed or migrate.
func (s *Source) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Source) Close() error { return s.db.Close() }

// Member counts and the representative are derived in subqueries so the outer
// query needs no GROUP BY. A cluster is expected to flag one representative;
// if several are flagged the lowest domain id wins.
const selectClusters = `SELECT c.id,
       c.cluster_number,
       c.cluster_set_id,
       COALESCE(sz.size, 0) AS size,
       ca.cluster_id IS NOT NULL AS has_analysis,
       ca.taxonomic_diversity,
       ca.structure_consistency,
       COALESCE(ca.requires_new_classification, FALSE) AS requires_new_classification,
       COALESCE(ca.analysis_notes, '') AS analysis_notes,
       rep.domain_id,
       rep.t_group,
       tg.name
FROM clusters c
LEFT JOIN (
    SELECT cluster_id, COUNT(*) AS size
    FROM cluster_members
    GROUP BY cluster_id
) sz ON sz.cluster_id = c.id
LEFT JOIN cluster_analysis ca ON ca.cluster_id = c.id
LEFT JOIN (
    SELECT cluster_id, domain_id, t_group
    FROM (
        SELECT cm.cluster_id, d.domain_id, d.t_group,
               ROW_NUMBER() OVER (PARTITION BY cm.cluster_id ORDER BY d.domain_id) AS rn
        FROM cluster_members cm
        JOIN domains d ON d.id = cm.domain_id
        WHERE cm.is_representative = TRUE
    ) ranked
    WHERE rn = 1
) rep ON rep.cluster_id = c.id
LEFT JOIN tgroup_names tg ON tg.t_group = rep.t_group`

// ClustersQuery renders the cluster read for filter and returns its arguments.
func ClustersQuery(dialect Dialect, filter domain.ClusterFilter) (string, []any) {
	var where []string
	var args []any
	bind := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, dialect(len(args))))
	}
	if filter.MinSize > 0 {
		bind("COALESCE(sz.size, 0) >= %s", filter.MinSize)
	}
	if filter.ClusterSetID > 0 {
		bind("c.cluster_set_id = %s", filter.ClusterSetID)
	}
	if filter.ClusterID > 0 {
		bind("c.id = %s", filter.ClusterID)
	}
	var b strings.Builder
	b.WriteString(selectClusters)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\nORDER BY c.id")
	return b.String(), args
}

// ListClusters implements domain.ClusterSource.
func (s *Source) ListClusters(ctx context.Context, filter domain.ClusterFilter) ([]domain.ClusterRecord, error) {
	query, args := ClustersQuery(s.dialect, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ClusterRecord
	for rows.Next() {
		rec, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return out, nil
}

func scanCluster(rows *sql.Rows) (domain.ClusterRecord, error) {
	var (
		rec         domain.ClusterRecord
		size        int64
		hasAnalysis bool
		taxonomic   sql.NullFloat64
		structure   sql.NullFloat64
		requiresNew bool
		notes       string
		repDomain   sql.NullString
		repTGroup   sql.NullString
		tgroupName  sql.NullString
	)
	if err := rows.Scan(
		&rec.Cluster.ID,
		&rec.Cluster.ClusterNumber,
		&rec.Cluster.ClusterSetID,
		&size,
		&hasAnalysis,
		&taxonomic,
		&structure,
		&requiresNew,
		&notes,
		&repDomain,
		&repTGroup,
		&tgroupName,
	); err != nil {
		return domain.ClusterRecord{}, fmt.Errorf("scan cluster: %w", err)
	}
	rec.Cluster.Size = int(size)
	if hasAnalysis {
		rec.Analysis = &domain.ClusterAnalysis{
			TaxonomicDiversity:        nullFloat(taxonomic),
			StructureConsistency:      nullFloat(structure),
			RequiresNewClassification: requiresNew,
			AnalysisNotes:             notes,
		}
	}
	if repDomain.Valid && repDomain.String != "" {
		rec.Representative = &domain.Representative{
			DomainID:   repDomain.String,
			TGroup:     repTGroup.String,
			TGroupName: tgroupName.String,
		}
	}
	return rec, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// ClusterMembers implements domain.ClusterSource.
func (s *Source) ClusterMembers(ctx context.Context, clusterID int64) ([]domain.ClusterMember, error) {
	query := `SELECT d.domain_id, COALESCE(d.t_group, ''), cm.is_representative
FROM cluster_members cm
JOIN domains d ON d.id = cm.domain_id
WHERE cm.cluster_id = ` + s.dialect(1) + `
ORDER BY cm.is_representative DESC, d.domain_id`
	rows, err := s.db.QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.ClusterMember{}
	for rows.Next() {
		var m domain.ClusterMember
		if err := rows.Scan(&m.DomainID, &m.TGroup, &m.IsRepresentative); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

const selectClusterSets = `SELECT cs.id, cs.name, COALESCE(cs.method, ''), cs.sequence_identity, COUNT(c.id)
FROM cluster_sets cs
LEFT JOIN clusters c ON c.cluster_set_id = cs.id
GROUP BY cs.id, cs.name, cs.method, cs.sequence_identity
ORDER BY cs.id`

// ListClusterSets implements domain.ClusterSource.
func (s *Source) ListClusterSets(ctx context.Context) ([]domain.ClusterSet, error) {
	rows, err := s.db.QueryContext(ctx, selectClusterSets)
	if err != nil {
		return nil, fmt.Errorf("select cluster sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.ClusterSet{}
	for rows.Next() {
		var (
			set      domain.ClusterSet
			identity sql.NullFloat64
			count    int64
		)
		if err := rows.Scan(&set.ID, &set.Name, &set.Method, &identity, &count); err != nil {
			return nil, fmt.Errorf("scan cluster set: %w", err)
		}
		set.SequenceIdentity = nullFloat(identity)
		set.ClusterCount = int(count)
		out = append(out, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster sets: %w", err)
	}
	return out, nil
}
