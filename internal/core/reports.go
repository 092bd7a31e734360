package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecodcluster/internal/blob"
	"ecodcluster/pkg/domain"
)

// Report operation names.
const (
	OpExportPriority = "export_priority_report"
	OpListReports    = "list_reports"
	OpOpenReport     = "open_report"
	OpReportURL      = "report_url"
	OpDeleteReport   = "delete_report"
)

// Report key layout.
const (
	ReportRoot     = "reports/"
	PriorityPrefix = ReportRoot + "priority/"
	reportStamp    = "20060102T150405Z"
)

// ReportService exports priority listings to a blob store and serves them back.
type ReportService struct {
	svc   *Service
	store blob.Store
	newID func() string
}

// NewReportService exports through svc into store.
func NewReportService(svc *Service, store blob.Store) *ReportService {
	return &ReportService{svc: svc, store: store, newID: uuid.NewString}
}

// Store returns the underlying blob store.
func (r *ReportService) Store() blob.Store { return r.store }

// ExportPriority runs the priority listing for q and stores the encoded
// result under reports/priority/<timestamp>-<uuid>.<ext>.
func (r *ReportService) ExportPriority(ctx context.Context, q domain.PriorityQuery, format ReportFormat) (blob.Info, error) {
	if q.Category == "" {
		q.Category = domain.CategoryAll
	}
	var info blob.Info
	params := append(priorityParams(q), "format", string(format))
	err := r.svc.run(ctx, OpExportPriority, params, func(ctx context.Context) error {
		if format != ReportJSON && format != ReportCSV {
			return domain.InvalidArgument(OpExportPriority, "unknown format %q (want json or csv)", string(format))
		}
		page, err := r.svc.listPriority(ctx, OpExportPriority, q)
		if err != nil {
			return err
		}
		generatedAt := r.svc.Now().UTC()
		var buf bytes.Buffer
		if err := WritePriority(&buf, format, page, q, generatedAt); err != nil {
			return &domain.Error{Kind: domain.KindInternal, Op: OpExportPriority, Message: "encode report", Err: err}
		}
		key := PriorityPrefix + generatedAt.Format(reportStamp) + "-" + r.newID() + "." + format.Extension()
		info, err = r.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{
			ContentType: format.ContentType(),
			Metadata: map[string]string{
				"category":           string(q.Category),
				"limit":              strconv.Itoa(q.Limit),
				"exclude_singletons": strconv.FormatBool(q.ExcludeSingletons),
				"cluster_set_id":     strconv.FormatInt(q.ClusterSetID, 10),
				"format":             string(format),
				"clusters":           strconv.Itoa(len(page.Clusters)),
			},
		})
		if err != nil {
			return blobFailure(OpExportPriority, key, err)
		}
		return nil
	})
	if err != nil {
		return blob.Info{}, err
	}
	return info, nil
}

// ListReports returns every stored report ordered by key, oldest first.
func (r *ReportService) ListReports(ctx context.Context) ([]blob.Info, error) {
	var infos []blob.Info
	err := r.svc.run(ctx, OpListReports, nil, func(ctx context.Context) error {
		var err error
		if infos, err = r.store.List(ctx, ReportRoot); err != nil {
			return domain.DataSourceFailure(OpListReports, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	return infos, nil
}

// OpenReport streams a stored report. The caller closes the reader.
func (r *ReportService) OpenReport(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	var (
		info blob.Info
		body io.ReadCloser
	)
	err := r.svc.run(ctx, OpOpenReport, []any{"key", key}, func(ctx context.Context) error {
		if err := validateReportKey(OpOpenReport, key); err != nil {
			return err
		}
		var err error
		if info, body, err = r.store.Get(ctx, key); err != nil {
			return blobFailure(OpOpenReport, key, err)
		}
		return nil
	})
	if err != nil {
		return blob.Info{}, nil, err
	}
	return info, body, nil
}

// ReportURL returns a time-limited download URL. Backends that cannot sign
// return blob.ErrUnsupported.
func (r *ReportService) ReportURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	var url string
	err := r.svc.run(ctx, OpReportURL, []any{"key", key, "expiry", expiry}, func(ctx context.Context) error {
		if err := validateReportKey(OpReportURL, key); err != nil {
			return err
		}
		var err error
		url, err = r.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, blob.ErrUnsupported):
			return err
		default:
			return blobFailure(OpReportURL, key, err)
		}
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// DeleteReport removes a stored report.
func (r *ReportService) DeleteReport(ctx context.Context, key string) error {
	return r.svc.run(ctx, OpDeleteReport, []any{"key", key}, func(ctx context.Context) error {
		if err := validateReportKey(OpDeleteReport, key); err != nil {
			return err
		}
		existed, err := r.store.Delete(ctx, key)
		if err != nil {
			return blobFailure(OpDeleteReport, key, err)
		}
		if !existed {
			return domain.NotFound(OpDeleteReport, "report", key)
		}
		return nil
	})
}

func validateReportKey(op, key string) error {
	if !strings.HasPrefix(key, ReportRoot) || len(key) == len(ReportRoot) || strings.Contains(key, "..") {
		return domain.InvalidArgument(op, "invalid report key %q", key)
	}
	return nil
}

func blobFailure(op, key string, err error) error {
	if errors.Is(err, blob.ErrNotFound) {
		return domain.NotFound(op, "report", key)
	}
	return domain.DataSourceFailure(op, err)
}
