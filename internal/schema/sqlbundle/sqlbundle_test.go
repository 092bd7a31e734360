package sqlbundle

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		stmts := SplitStatements(ddl)
		if len(stmts) == 0 {
			t.Fatalf("%s: expected statements", name)
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(stmt, "--") {
				t.Fatalf("%s: statement starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(stmt, ";") {
				t.Fatalf("%s: statement missing terminator: %q", name, stmt)
			}
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	got := SplitStatements("-- header\nSELECT 1;\n\nSELECT 2")
	if diff := cmp.Diff([]string{"SELECT 1;", "SELECT 2"}, got); diff != "" {
		t.Fatalf("unexpected statements (-want +got):\n%s", diff)
	}
}

func TestBundlesDeclareSameTables(t *testing.T) {
	want := []string{"cluster_sets", "clusters", "tgroup_names", "domains", "cluster_members", "cluster_analysis"}
	if diff := cmp.Diff(want, Tables(SQLite())); diff != "" {
		t.Fatalf("sqlite tables (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, Tables(Postgres())); diff != "" {
		t.Fatalf("postgres tables (-want +got):\n%s", diff)
	}
}
