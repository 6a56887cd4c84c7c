package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/storage"
)

type fakeClient struct {
	objects map[string][]byte
	buckets map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeClient) Put(_ context.Context, _ string, key string, reader io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) Get(_ context.Context, _ string, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeClient) Stat(_ context.Context, _ string, key string) (storage.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) List(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var infos []storage.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (f *fakeClient) Delete(_ context.Context, _ string, key string) error {
	if _, ok := f.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeClient) CreateBucket(_ context.Context, bucket, _ string) error {
	f.buckets[bucket] = true
	return nil
}

func TestStorePutGetRoundTrip(t *testing.T) {
	fc := newFakeClient()
	store, err := NewWithClient("bucket", "env", fc)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	body := []byte("parquet bytes")
	info, err := store.Put(context.Background(), "datasets/cities.parquet", bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "datasets/cities.parquet" {
		t.Fatalf("Put() key = %q, want prefix-relative key", info.Key)
	}
	if _, ok := fc.objects["env/datasets/cities.parquet"]; !ok {
		t.Fatalf("object stored under %v, want env/datasets/cities.parquet", fc.objects)
	}

	reader, err := store.Get(context.Background(), "datasets/cities.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Fatalf("Get() = %q, want %q", data, body)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, err := NewWithClient("bucket", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStoreListStripsPrefix(t *testing.T) {
	fc := newFakeClient()
	fc.objects["env/datasets/a.parquet"] = []byte("a")
	fc.objects["env/datasets/b.parquet"] = []byte("bb")
	fc.objects["env/other/c.parquet"] = []byte("c")

	store, err := NewWithClient("bucket", "env", fc)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	infos, err := store.List(context.Background(), "datasets")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d objects, want 2", len(infos))
	}
	if infos[0].Key != "datasets/a.parquet" || infos[1].Key != "datasets/b.parquet" {
		t.Fatalf("List() keys = %q, %q", infos[0].Key, infos[1].Key)
	}
}

func TestStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewWithClient("bucket", "env", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"", "  ", "../secret", "a/../../b"} {
		if _, err := store.Get(context.Background(), key); err == nil {
			t.Fatalf("Get(%q) error = nil, want error", key)
		}
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	fc := newFakeClient()
	fc.objects["datasets/a.parquet"] = []byte("a")
	store, err := NewWithClient("bucket", "", fc)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Delete(context.Background(), "datasets/a.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(context.Background(), "datasets/a.parquet"); err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(context.Background(), Config{Bucket: "b"}); err == nil {
		t.Fatal("New() without endpoint error = nil")
	}
	if _, err := New(context.Background(), Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("New() without bucket error = nil")
	}
	if _, err := NewWithClient("", "", newFakeClient()); err == nil {
		t.Fatal("NewWithClient() without bucket error = nil")
	}
	if _, err := NewWithClient("bucket", "", nil); err == nil {
		t.Fatal("NewWithClient() without client error = nil")
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "localhost:9000", useSSL: false, wantHost: "localhost:9000", wantSecure: false},
		{raw: "https://s3.example.com", useSSL: false, wantHost: "s3.example.com", wantSecure: true},
		{raw: "http://localhost:9000", useSSL: false, wantHost: "localhost:9000", wantSecure: false},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		host, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) error = nil, want error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("parseEndpoint(%q) = (%q, %v)", tc.raw, host, secure)
		}
	}
}
