// Package sqlite provides a SQLite-backed cluster source. It applies the
// embedded review schema on open and can be seeded from a fixture snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ecodcluster/internal/infra/persistence/memory"
	"ecodcluster/internal/infra/persistence/sqlsource"
	"ecodcluster/internal/schema/sqlbundle"
	"ecodcluster/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ domain.ClusterSource = (*Store)(nil)

const defaultPath = "ecod-clusters.db"

// Store reads clusters from a SQLite database file.
type Store struct {
	*sqlsource.Source
	path string
}

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)
	if err := applyDDL(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Source: sqlsource.New(db, sqlsource.Question), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func applyDDL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// importTables lists the tables cleared by Import, children first.
var importTables = []string{"cluster_analysis", "cluster_members", "domains", "clusters", "tgroup_names", "cluster_sets"}

// Import replaces the database contents with snap in one transaction.
func (s *Store) Import(ctx context.Context, snap memory.Snapshot) (retErr error) {
	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range importTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, set := range snap.ClusterSets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_sets(id, name, method, sequence_identity) VALUES(?,?,?,?)`,
			set.ID, set.Name, set.Method, nullable(set.SequenceIdentity)); err != nil {
			return fmt.Errorf("insert cluster set %d: %w", set.ID, err)
		}
	}
	for tgroup, name := range snap.TGroupNames {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tgroup_names(t_group, name) VALUES(?,?)`, tgroup, name); err != nil {
			return fmt.Errorf("insert tgroup %s: %w", tgroup, err)
		}
	}
	domainIDs := map[string]int64{}
	for _, c := range snap.Clusters {
		if err := insertCluster(ctx, tx, c, domainIDs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertCluster(ctx context.Context, tx *sql.Tx, c memory.FixtureCluster, domainIDs map[string]int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO clusters(id, cluster_set_id, cluster_number) VALUES(?,?,?)`,
		c.ID, c.ClusterSetID, c.ClusterNumber); err != nil {
		return fmt.Errorf("insert cluster %d: %w", c.ID, err)
	}
	if a := c.Analysis; a != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_analysis(cluster_id, taxonomic_diversity, structure_consistency, requires_new_classification, analysis_notes) VALUES(?,?,?,?,?)`,
			c.ID, nullable(a.TaxonomicDiversity), nullable(a.StructureConsistency), a.RequiresNewClassification, a.AnalysisNotes); err != nil {
			return fmt.Errorf("insert analysis %d: %w", c.ID, err)
		}
	}
	for _, m := range c.Members {
		rowID, ok := domainIDs[m.DomainID]
		if !ok {
			res, err := tx.ExecContext(ctx, `INSERT INTO domains(domain_id, t_group) VALUES(?,?)`, m.DomainID, nullableString(m.TGroup))
			if err != nil {
				return fmt.Errorf("insert domain %s: %w", m.DomainID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("domain id %s: %w", m.DomainID, err)
			}
			domainIDs[m.DomainID] = rowID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_members(cluster_id, domain_id, is_representative) VALUES(?,?,?)`,
			c.ID, rowID, m.IsRepresentative); err != nil {
			return fmt.Errorf("insert member %s: %w", m.DomainID, err)
		}
	}
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
