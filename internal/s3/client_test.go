package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type request struct {
	Method      string
	Path        string
	Prefix      string
	ContentType string
}

type fakeBucket struct {
	mu       sync.Mutex
	requests []request
	listXML  string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Prefix:      r.URL.Query().Get("prefix"),
		ContentType: r.Header.Get("Content-Type"),
	})
	b.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, b.listXML)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, bucket *fakeBucket) *Client {
	t.Helper()
	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "alerts", "us-east-1", server.URL, "AK", "SK", "/charts/", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestUpload(t *testing.T) {
	bucket := &fakeBucket{}
	client := newTestClient(t, bucket)

	key, err := client.Upload(context.Background(), "graph-42_20240101000000.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if key != "charts/graph-42_20240101000000.png" {
		t.Errorf("unexpected key %q", key)
	}

	if len(bucket.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(bucket.requests))
	}
	got := bucket.requests[0]
	if got.Method != http.MethodPut || got.Path != "/alerts/charts/graph-42_20240101000000.png" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.ContentType != "image/png" {
		t.Errorf("expected image/png content type, got %q", got.ContentType)
	}
}

func TestList(t *testing.T) {
	bucket := &fakeBucket{listXML: `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>alerts</Name>
  <Prefix>charts/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>charts/graph-42_20240101000000.png</Key><Size>3</Size></Contents>
  <Contents><Key>charts/graph-7_20240102000000.png</Key><Size>3</Size></Contents>
</ListBucketResult>`}
	client := newTestClient(t, bucket)

	keys, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"charts/graph-42_20240101000000.png", "charts/graph-7_20240102000000.png"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if len(bucket.requests) != 1 || bucket.requests[0].Prefix != "charts/" {
		t.Errorf("expected a single listing scoped to charts/, got %+v", bucket.requests)
	}
}

func TestDelete(t *testing.T) {
	bucket := &fakeBucket{}
	client := newTestClient(t, bucket)

	if err := client.Delete(context.Background(), "charts/graph-42_20240101000000.png"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(bucket.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(bucket.requests))
	}
	if got := bucket.requests[0]; got.Method != http.MethodDelete || got.Path != "/alerts/charts/graph-42_20240101000000.png" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
}
