package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ecodcluster/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	body := "id,name\n1,Cluster 1\n"
	info, err := store.Put(ctx, "reports/priority/a.csv", strings.NewReader(body), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"category": "all", "limit": "10"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len(body)) || info.ContentType != "text/csv" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if diff := cmp.Diff(map[string]string{"category": "all", "limit": "10"}, info.Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	_, rc, err := store.Get(ctx, "reports/priority/a.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != body {
		t.Fatalf("body mismatch: %q", got)
	}

	if _, err := store.Put(ctx, "reports/priority/a.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestMockStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	existed, err := store.Delete(ctx, "missing")
	if err != nil || existed {
		t.Fatalf("Delete missing: %v %v", existed, err)
	}
}

func TestMockStoreListPagesAndDeletes(t *testing.T) {
	ctx := context.Background()
	store := newMockStore(1)
	for _, k := range []string{"reports/b.json", "reports/a.json", "other/c.json"} {
		if _, err := store.Put(ctx, k, strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}
	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var keys []string
	for _, inf := range infos {
		keys = append(keys, inf.Key)
		if inf.ContentType != "application/json" {
			t.Fatalf("list entries must carry head metadata: %+v", inf)
		}
	}
	if diff := cmp.Diff([]string{"reports/a.json", "reports/b.json"}, keys); diff != "" {
		t.Fatalf("unexpected keys (-want +got):\n%s", diff)
	}
	existed, err := store.Delete(ctx, "reports/a.json")
	if err != nil || !existed {
		t.Fatalf("Delete: %v %v", existed, err)
	}
	if infos, _ = store.List(ctx, "reports/"); len(infos) != 1 {
		t.Fatalf("expected one report after delete, got %d", len(infos))
	}
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	url, err := store.PresignURL(ctx, "reports/a.json", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.Contains(url, "mock-bucket/reports/a.json") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected url %s", url)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	store, err := New(context.Background(), Config{
		Bucket: "reports", Endpoint: "http://localhost:9000", PathStyle: true,
		AccessKeyID: "minio", SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.bucket != "reports" {
		t.Fatalf("unexpected bucket %s", store.bucket)
	}
}

func TestDecodeChunked(t *testing.T) {
	payload := "5;chunk-signature=abc\r\nhe\r\nl\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeChunked([]byte(payload))
	if err != nil {
		t.Fatalf("decodeChunked: %v", err)
	}
	if string(got) != "he\r\nl" {
		t.Fatalf("unexpected decode %q", got)
	}
	if _, err := decodeChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected size error")
	}
}
