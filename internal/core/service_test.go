package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ecodcluster/pkg/domain"
)

func TestListPriorityClustersScenario(t *testing.T) {
	src := newCountingSource()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewService(src, WithMetricsRecorder(metrics), WithTracer(tracer))

	page, err := svc.ListPriorityClusters(context.Background(), domain.DefaultPriorityQuery())
	if err != nil {
		t.Fatalf("ListPriorityClusters: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 2, 4}, clusterIDs(page.Clusters)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	wantTotals := domain.CategoryTotals{Unclassified: 1, Reclassification: 1, Diverse: 1, All: 3}
	if diff := cmp.Diff(wantTotals, page.Totals); diff != "" {
		t.Fatalf("unexpected totals (-want +got):\n%s", diff)
	}
	if src.readCount() != 1 {
		t.Fatalf("expected a single source read, got %d", src.readCount())
	}
	b := page.Clusters[1]
	if b.Name != "Cluster 102" || b.RepresentativeDomain != domain.UnknownPlaceholder || b.TaxonomicDiversity != 0 || b.StructuralDiversity != nil {
		t.Fatalf("unexpected projection of cluster without analysis: %+v", b)
	}
	if !metrics.has(OpListPriorityClusters, true) || len(metrics.totals) != 1 || metrics.totals[0] != wantTotals {
		t.Fatalf("expected success metrics and totals, got %+v %+v", metrics.calls, metrics.totals)
	}
	if len(tracer.ended) != 1 || tracer.ended[0].op != OpListPriorityClusters || tracer.ended[0].err != nil {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
}

func TestListPriorityClustersFilters(t *testing.T) {
	svc := NewService(newCountingSource())
	ctx := context.Background()

	q := domain.DefaultPriorityQuery()
	q.Category = domain.CategoryDiverse
	page, err := svc.ListPriorityClusters(ctx, q)
	if err != nil {
		t.Fatalf("diverse: %v", err)
	}
	if diff := cmp.Diff([]int64{4}, clusterIDs(page.Clusters)); diff != "" {
		t.Fatalf("diverse filter (-want +got):\n%s", diff)
	}
	if page.Totals.All != 3 {
		t.Fatalf("totals must ignore the category filter: %+v", page.Totals)
	}

	q = domain.PriorityQuery{Limit: 2, ExcludeSingletons: false}
	page, err = svc.ListPriorityClusters(ctx, q)
	if err != nil {
		t.Fatalf("with singletons: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 2}, clusterIDs(page.Clusters)); diff != "" {
		t.Fatalf("limit (-want +got):\n%s", diff)
	}
	if page.Totals.Unclassified != 2 || page.Totals.All != 4 {
		t.Fatalf("singleton must be counted when included: %+v", page.Totals)
	}

	q = domain.DefaultPriorityQuery()
	q.Category = domain.CategoryFlagged
	page, err = svc.ListPriorityClusters(ctx, q)
	if err != nil {
		t.Fatalf("flagged: %v", err)
	}
	if page.Clusters == nil || len(page.Clusters) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", page.Clusters)
	}

	q = domain.DefaultPriorityQuery()
	q.ClusterSetID = 9
	page, err = svc.ListPriorityClusters(ctx, q)
	if err != nil || len(page.Clusters) != 0 || page.Totals.All != 0 {
		t.Fatalf("unknown set should be empty: %+v %v", page, err)
	}
}

func TestListPriorityClustersRejectsBeforeRead(t *testing.T) {
	cases := []domain.PriorityQuery{
		{Limit: 0, Category: domain.CategoryAll},
		{Limit: -3, Category: domain.CategoryAll},
		{Limit: domain.MaxPriorityLimit + 1, Category: domain.CategoryAll},
		{Limit: 10, Category: "bogus"},
		{Limit: 10, ClusterSetID: -1},
	}
	for _, q := range cases {
		src := newCountingSource()
		log := &captureLogger{}
		svc := NewService(src, WithLogger(log))
		_, err := svc.ListPriorityClusters(context.Background(), q)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("query %+v: expected invalid argument, got %v", q, err)
		}
		if src.readCount() != 0 {
			t.Fatalf("query %+v: source read before validation", q)
		}
		if _, ok := log.find("warn", OpListPriorityClusters); !ok {
			t.Fatalf("query %+v: expected rejection to be logged", q)
		}
	}
}

func TestListPriorityClustersDataSourceFailure(t *testing.T) {
	src := newCountingSource()
	boom := errors.New("connection refused")
	src.FailWith(boom)
	log := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	svc := NewService(src, WithLogger(log), WithMetricsRecorder(metrics))

	page, err := svc.ListPriorityClusters(context.Background(), domain.DefaultPriorityQuery())
	if domain.KindOf(err) != domain.KindDataSource || !errors.Is(err, boom) {
		t.Fatalf("expected data source failure wrapping cause, got %v", err)
	}
	if page.Clusters != nil || page.Totals.All != 0 {
		t.Fatalf("failure must not return a partial page: %+v", page)
	}
	call, ok := log.find("error", OpListPriorityClusters)
	if !ok {
		t.Fatalf("expected error log")
	}
	if call.kv["limit"] != 10 || call.kv["category"] != "all" || call.kv["exclude_singletons"] != true {
		t.Fatalf("log must carry query parameters: %+v", call.kv)
	}
	if !metrics.has(OpListPriorityClusters, false) || len(metrics.totals) != 0 {
		t.Fatalf("expected failure metric without totals: %+v", metrics)
	}
}

func TestEmptyCategoryMeansAll(t *testing.T) {
	svc := NewService(newCountingSource())
	page, err := svc.ListPriorityClusters(context.Background(), domain.PriorityQuery{Limit: 10, ExcludeSingletons: true})
	if err != nil {
		t.Fatalf("ListPriorityClusters: %v", err)
	}
	if len(page.Clusters) != 3 {
		t.Fatalf("expected all categories, got %d", len(page.Clusters))
	}
}

func TestGetCluster(t *testing.T) {
	svc := NewService(newCountingSource())
	ctx := context.Background()

	detail, err := svc.GetCluster(ctx, 4)
	if err != nil {
		t.Fatalf("GetCluster: %v", err)
	}
	if detail.Name != "Cluster 104" || detail.Category != domain.CategoryDiverse || detail.RepresentativeDomain != "e4d00A0" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if len(detail.Members) != 10 || !detail.Members[0].IsRepresentative {
		t.Fatalf("expected representative first among 10 members, got %+v", detail.Members)
	}

	b, err := svc.GetCluster(ctx, 2)
	if err != nil {
		t.Fatalf("GetCluster(2): %v", err)
	}
	if b.Category != domain.CategoryUnclassified || b.Analysis != nil {
		t.Fatalf("unexpected detail %+v", b)
	}

	if _, err := svc.GetCluster(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetCluster(ctx, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(newCountingSource())
	ctx := context.Background()

	s, err := svc.Summary(ctx, 0)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := domain.DashboardSummary{
		TotalClusterSets:         1,
		TotalClusters:            4,
		TotalDomains:             19,
		SingletonClusters:        1,
		AnalyzedClusters:         2,
		RequiresReclassification: 1,
		LargestClusterSize:       10,
		MeanTaxonomicDiversity:   domain.Float(0.4),
		MeanStructureConsistency: domain.Float(0.9),
		PriorityTotals:           domain.CategoryTotals{Unclassified: 1, Reclassification: 1, Diverse: 1, All: 3},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	s, err = svc.Summary(ctx, 1)
	if err != nil || s.ClusterSetID != 1 || s.TotalClusterSets != 1 || s.TotalClusters != 4 {
		t.Fatalf("set summary: %+v %v", s, err)
	}
	if _, err := svc.Summary(ctx, 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown set, got %v", err)
	}
	if _, err := svc.Summary(ctx, -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestListClusterSets(t *testing.T) {
	svc := NewService(newCountingSource())
	sets, err := svc.ListClusterSets(context.Background())
	if err != nil {
		t.Fatalf("ListClusterSets: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "ecod-70" || sets[0].ClusterCount != 4 {
		t.Fatalf("unexpected sets %+v", sets)
	}
}

func TestTaxonomyBreakdown(t *testing.T) {
	svc := NewService(newCountingSource())
	rows, err := svc.TaxonomyBreakdown(context.Background(), domain.DefaultTaxonomyQuery())
	if err != nil {
		t.Fatalf("TaxonomyBreakdown: %v", err)
	}
	want := []domain.TGroupCount{
		{TGroup: "11.1.1", Name: "Rossmann-like", Clusters: 1, Domains: 3},
		{TGroup: "2004.1.1", Name: "Immunoglobulin-like beta-sandwich", Clusters: 1, Domains: 10},
		{TGroup: domain.UnknownPlaceholder, Name: domain.UnknownPlaceholder, Clusters: 1, Domains: 5},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("breakdown mismatch (-want +got):\n%s", diff)
	}

	rows, err = svc.TaxonomyBreakdown(context.Background(), domain.TaxonomyQuery{Limit: 1})
	if err != nil {
		t.Fatalf("with singletons: %v", err)
	}
	if len(rows) != 1 || rows[0].TGroup != "11.1.1" || rows[0].Clusters != 2 || rows[0].Domains != 4 {
		t.Fatalf("singleton A must join 11.1.1: %+v", rows)
	}
	if _, err := svc.TaxonomyBreakdown(context.Background(), domain.TaxonomyQuery{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestQualityDistribution(t *testing.T) {
	svc := NewService(newCountingSource())
	d, err := svc.QualityDistribution(context.Background(), 0)
	if err != nil {
		t.Fatalf("QualityDistribution: %v", err)
	}
	if d.StructureConsistency.Bins[9] != 1 || d.StructureConsistency.Missing != 3 {
		t.Fatalf("unexpected structure histogram %+v", d.StructureConsistency)
	}
	if d.TaxonomicDiversity.Bins[4] != 1 || d.TaxonomicDiversity.Missing != 3 {
		t.Fatalf("unexpected taxonomy histogram %+v", d.TaxonomicDiversity)
	}
	if d.BinEdges[0] != 0 || d.BinEdges[domain.QualityBins] != 1 {
		t.Fatalf("unexpected edges %v", d.BinEdges)
	}
	if _, err := svc.QualityDistribution(context.Background(), -2); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewService(newCountingSource(), nil, WithClock(nil), WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithClock(fixedClock()))
	if got := svc.Now(); got.Year() != 2024 {
		t.Fatalf("expected fixed clock, got %v", got)
	}
	if _, err := svc.ListClusterSets(context.Background()); err != nil {
		t.Fatalf("noop collaborators must work: %v", err)
	}
	if svc.Source() == nil {
		t.Fatalf("expected source")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCancelledContextIsDataSourceFailure(t *testing.T) {
	svc := NewService(newCountingSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ListPriorityClusters(ctx, domain.DefaultPriorityQuery())
	if domain.KindOf(err) != domain.KindDataSource || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped cancellation, got %v", err)
	}
}
