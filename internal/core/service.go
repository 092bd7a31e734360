// Package core implements the cluster review service: the priority listing,
// the dashboard aggregates, and report export on top of a domain.ClusterSource.
package core

import (
	"context"
	"time"

	"ecodcluster/pkg/domain"
)

// Operation names used for logging, metrics and spans.
const (
	OpListPriorityClusters = "list_priority_clusters"
	OpSummary              = "dashboard_summary"
	OpGetCluster           = "get_cluster"
	OpListClusterSets      = "list_cluster_sets"
	OpTaxonomyBreakdown    = "taxonomy_breakdown"
	OpQualityDistribution  = "quality_distribution"
)

// Service answers read-only queries over a cluster source. It is safe for
// concurrent use as long as the source is.
type Service struct {
	source  domain.ClusterSource
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service over source.
func NewService(source domain.ClusterSource, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Service{
		source:  source,
		clock:   o.clock,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
	}
}

// Source returns the underlying cluster source.
func (s *Service) Source() domain.ClusterSource { return s.source }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// Close releases the cluster source.
func (s *Service) Close() error { return s.source.Close() }

// run wraps fn with a span, a metrics observation and failure logging.
// Rejected arguments are logged at warn level, everything else at error.
func (s *Service) run(ctx context.Context, op string, params []any, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err == nil {
		s.logger.Debug("service operation", append([]any{"operation", op, "duration", elapsed}, params...)...)
		return nil
	}
	kv := append([]any{"operation", op, "kind", string(domain.KindOf(err)), "error", err.Error()}, params...)
	if domain.KindOf(err) == domain.KindInvalidArgument {
		s.logger.Warn("service operation rejected", kv...)
	} else {
		s.logger.Error("service operation failed", kv...)
	}
	return err
}

func priorityParams(q domain.PriorityQuery) []any {
	return []any{
		"limit", q.Limit,
		"category", string(q.Category),
		"exclude_singletons", q.ExcludeSingletons,
		"cluster_set_id", q.ClusterSetID,
	}
}

// ListPriorityClusters returns the prioritized cluster list and the
// per-category totals computed from one read of the source. The query is
// validated before the source is touched; an empty category means all.
func (s *Service) ListPriorityClusters(ctx context.Context, q domain.PriorityQuery) (domain.PriorityPage, error) {
	if q.Category == "" {
		q.Category = domain.CategoryAll
	}
	var page domain.PriorityPage
	err := s.run(ctx, OpListPriorityClusters, priorityParams(q), func(ctx context.Context) error {
		var err error
		page, err = s.listPriority(ctx, OpListPriorityClusters, q)
		return err
	})
	if err != nil {
		return domain.PriorityPage{}, err
	}
	if rec, ok := s.metrics.(TotalsRecorder); ok {
		rec.RecordTotals(page.Totals)
	}
	return page, nil
}

// listPriority validates q and builds the page from one source read. It is
// not instrumented; callers wrap it in run under their own operation.
func (s *Service) listPriority(ctx context.Context, op string, q domain.PriorityQuery) (domain.PriorityPage, error) {
	if err := q.Validate(); err != nil {
		return domain.PriorityPage{}, err
	}
	records, err := s.source.ListClusters(ctx, q.Filter())
	if err != nil {
		return domain.PriorityPage{}, domain.DataSourceFailure(op, err)
	}
	return domain.BuildPriorityPage(records, q), nil
}

func validateSetID(op string, id int64) error {
	if id < 0 {
		return domain.InvalidArgument(op, "cluster_set_id must not be negative, got %d", id)
	}
	return nil
}

// Summary computes the dashboard headline statistics, optionally for a
// single cluster set. An unknown cluster set is reported as not found.
func (s *Service) Summary(ctx context.Context, clusterSetID int64) (domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	err := s.run(ctx, OpSummary, []any{"cluster_set_id", clusterSetID}, func(ctx context.Context) error {
		if err := validateSetID(OpSummary, clusterSetID); err != nil {
			return err
		}
		sets, err := s.source.ListClusterSets(ctx)
		if err != nil {
			return domain.DataSourceFailure(OpSummary, err)
		}
		setCount := len(sets)
		if clusterSetID > 0 {
			setCount = 0
			for _, set := range sets {
				if set.ID == clusterSetID {
					setCount = 1
					break
				}
			}
			if setCount == 0 {
				return domain.NotFound(OpSummary, "cluster set", clusterSetID)
			}
		}
		records, err := s.source.ListClusters(ctx, domain.ClusterFilter{ClusterSetID: clusterSetID})
		if err != nil {
			return domain.DataSourceFailure(OpSummary, err)
		}
		summary = domain.Summarize(records, setCount)
		summary.ClusterSetID = clusterSetID
		return nil
	})
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	return summary, nil
}

// GetCluster returns one cluster with its category and members.
func (s *Service) GetCluster(ctx context.Context, id int64) (domain.ClusterDetail, error) {
	var detail domain.ClusterDetail
	err := s.run(ctx, OpGetCluster, []any{"cluster_id", id}, func(ctx context.Context) error {
		if id <= 0 {
			return domain.InvalidArgument(OpGetCluster, "cluster id must be positive, got %d", id)
		}
		records, err := s.source.ListClusters(ctx, domain.ClusterFilter{ClusterID: id})
		if err != nil {
			return domain.DataSourceFailure(OpGetCluster, err)
		}
		if len(records) == 0 {
			return domain.NotFound(OpGetCluster, "cluster", id)
		}
		members, err := s.source.ClusterMembers(ctx, id)
		if err != nil {
			return domain.DataSourceFailure(OpGetCluster, err)
		}
		detail = domain.NewClusterDetail(records[0], members)
		return nil
	})
	if err != nil {
		return domain.ClusterDetail{}, err
	}
	return detail, nil
}

// ListClusterSets returns every cluster set with its cluster count.
func (s *Service) ListClusterSets(ctx context.Context) ([]domain.ClusterSet, error) {
	var sets []domain.ClusterSet
	err := s.run(ctx, OpListClusterSets, nil, func(ctx context.Context) error {
		var err error
		if sets, err = s.source.ListClusterSets(ctx); err != nil {
			return domain.DataSourceFailure(OpListClusterSets, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sets == nil {
		sets = []domain.ClusterSet{}
	}
	return sets, nil
}

// TaxonomyBreakdown groups clusters by the T-group of their representative.
func (s *Service) TaxonomyBreakdown(ctx context.Context, q domain.TaxonomyQuery) ([]domain.TGroupCount, error) {
	var rows []domain.TGroupCount
	params := []any{"limit", q.Limit, "cluster_set_id", q.ClusterSetID, "exclude_singletons", q.ExcludeSingletons}
	err := s.run(ctx, OpTaxonomyBreakdown, params, func(ctx context.Context) error {
		if err := q.Validate(); err != nil {
			return err
		}
		records, err := s.source.ListClusters(ctx, q.Filter())
		if err != nil {
			return domain.DataSourceFailure(OpTaxonomyBreakdown, err)
		}
		rows = domain.TaxonomyBreakdown(records, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QualityDistribution bins structure consistency and taxonomic diversity
// scores across every cluster, singletons included.
func (s *Service) QualityDistribution(ctx context.Context, clusterSetID int64) (domain.QualityDistribution, error) {
	var dist domain.QualityDistribution
	err := s.run(ctx, OpQualityDistribution, []any{"cluster_set_id", clusterSetID}, func(ctx context.Context) error {
		if err := validateSetID(OpQualityDistribution, clusterSetID); err != nil {
			return err
		}
		records, err := s.source.ListClusters(ctx, domain.ClusterFilter{ClusterSetID: clusterSetID})
		if err != nil {
			return domain.DataSourceFailure(OpQualityDistribution, err)
		}
		dist = domain.Distribute(records)
		return nil
	})
	if err != nil {
		return domain.QualityDistribution{}, err
	}
	return dist, nil
}
