package ncbi

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func resetCache(t *testing.T) {
	t.Helper()
	SetCacheFilePath(filepath.Join(t.TempDir(), "ncbi_cache.json"))
	t.Cleanup(func() { SetCacheFilePath("") })
}

func TestFetchFasta(t *testing.T) {
	payload := ">FAKE_ACC.1 test record\nACGTN\nacgt\n"
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if !strings.Contains(r.URL.RawQuery, "rettype=fasta") {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(payload)),
			Header:     make(http.Header),
		}, nil
	})}
	resetCache(t)

	got, err := FetchFasta(context.Background(), "FAKE_ACC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, ">FAKE_ACC.1") || !strings.Contains(got, "ACGTN") {
		t.Fatalf("unexpected payload: %q", got)
	}

	// second call should hit the cache and not invoke the transport
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("HTTP should not be called on cached fetch")
		return nil, nil
	})}
	got2, err := FetchFasta(context.Background(), "FAKE_ACC")
	if err != nil {
		t.Fatalf("unexpected error on cached fetch: %v", err)
	}
	if got2 != got {
		t.Fatalf("cached fetch diverged: %q vs %q", got2, got)
	}
}

func TestFetchFastaNonFastaPayload(t *testing.T) {
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("Supplied id parameter is empty.")),
			Header:     make(http.Header),
		}, nil
	})}
	resetCache(t)

	if _, err := FetchFasta(context.Background(), "BROKEN"); err == nil {
		t.Fatalf("expected an error for a non-FASTA payload")
	}
}

func TestFetchFastaServerError(t *testing.T) {
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 500,
			Body:       io.NopCloser(strings.NewReader("internal error")),
			Header:     make(http.Header),
		}, nil
	})}
	resetCache(t)

	_, err := FetchFasta(context.Background(), "ERR_ACC")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected a status error, got %v", err)
	}
}

func TestFetchFastasBatchMapping(t *testing.T) {
	payload := ">ACC1.1 first\nAAAA\n>ACC2.3 second\nCCCC\n"
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(payload)),
			Header:     make(http.Header),
		}, nil
	})}
	resetCache(t)

	got, err := FetchFastas(context.Background(), []string{"ACC1", "ACC2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := got["ACC1"]; !ok || !strings.Contains(v, "AAAA") {
		t.Fatalf("expected ACC1 record, got %v", got)
	}
	if v, ok := got["ACC2"]; !ok || !strings.Contains(v, "CCCC") {
		t.Fatalf("expected ACC2 record, got %v", got)
	}
}

func TestFetchFastaRetryAndRetryAfter(t *testing.T) {
	calls := 0
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			h := make(http.Header)
			h.Set("Retry-After", "1")
			return &http.Response{StatusCode: 429, Body: io.NopCloser(strings.NewReader("")), Header: h}, nil
		}
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(">RACC.1\nGGGG\n")),
			Header:     make(http.Header),
		}, nil
	})}
	resetCache(t)

	start := time.Now()
	got, err := FetchFasta(context.Background(), "RACC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "GGGG") {
		t.Fatalf("unexpected payload: %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if time.Since(start) < time.Second {
		t.Fatalf("expected at least 1s wait due to Retry-After, elapsed %v", time.Since(start))
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	resetCache(t)
	cacheMu.Lock()
	cache = map[string]cachedEntry{
		"OLDACC": {Fasta: ">OLDACC.1\nAAAA\n", RetrievedAt: time.Now().Unix() - 100000},
	}
	cacheLoaded = true
	cacheMu.Unlock()
	SetCacheTTLSeconds(1)
	t.Cleanup(func() { SetCacheTTLSeconds(-1) })

	if v, ok := getCached("OLDACC"); ok || v != "" {
		t.Fatalf("expected OLDACC to be expired and not returned, got %v (ok=%v)", v, ok)
	}
}
