package ncbi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// httpClient performs requests; tests may replace it with a mock transport.
var httpClient = &http.Client{Timeout: 30 * time.Second}

const efetchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// Cache structures
type cachedEntry struct {
	Fasta       string `json:"fasta"`
	RetrievedAt int64  `json:"retrieved_at"`
}

var (
	cacheMu       sync.RWMutex
	cache         map[string]cachedEntry
	cacheLoaded   bool
	cacheFilePath string
	cacheTTLSecs  int64 = -1
)

// SetCacheTTLSeconds overrides the cache TTL. 0 means entries never expire;
// a negative value restores the default (env or 7 days).
func SetCacheTTLSeconds(s int64) {
	cacheTTLSecs = s
}

// SetCacheFilePath overrides the on-disk cache location and drops any cache
// state already loaded. An empty path restores the default location.
func SetCacheFilePath(path string) {
	cacheMu.Lock()
	cacheFilePath = path
	cache = nil
	cacheLoaded = false
	cacheMu.Unlock()
}

// FlushCache writes the in-memory cache to disk.
func FlushCache() {
	saveCache()
}

// cache TTL in seconds (default 7 days)
func cacheTTL() int64 {
	if cacheTTLSecs >= 0 {
		return cacheTTLSecs
	}
	if s := os.Getenv("NCBI_CACHE_TTL_SECONDS"); s != "" {
		if v, err := time.ParseDuration(s + "s"); err == nil {
			return int64(v.Seconds())
		}
	}
	return int64(7 * 24 * 3600)
}

func defaultCachePath() string {
	if cacheFilePath != "" {
		return cacheFilePath
	}
	if dir, err := os.UserCacheDir(); err == nil {
		p := filepath.Join(dir, "fasta-cleaner")
		_ = os.MkdirAll(p, 0o755)
		return filepath.Join(p, "ncbi_cache.json")
	}
	return filepath.Join(os.TempDir(), "fasta_cleaner_ncbi_cache.json")
}

func loadCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cacheLoaded {
		return
	}
	path := defaultCachePath()
	cache = make(map[string]cachedEntry)
	data, err := os.ReadFile(path)
	if err != nil {
		cacheLoaded = true
		return
	}
	_ = json.Unmarshal(data, &cache)
	cacheLoaded = true
}

func saveCache() {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	path := defaultCachePath()
	b, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, b, 0o644)
}

func getCached(acc string) (string, bool) {
	loadCache()
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	e, ok := cache[acc]
	if !ok {
		return "", false
	}
	ttl := cacheTTL()
	if ttl > 0 && time.Now().Unix()-e.RetrievedAt > ttl {
		return "", false
	}
	return e.Fasta, true
}

func setCached(acc, fa string) {
	if acc == "" || fa == "" {
		return
	}
	loadCache()
	cacheMu.Lock()
	cache[acc] = cachedEntry{Fasta: fa, RetrievedAt: time.Now().Unix()}
	cacheMu.Unlock()
	saveCache()
}

// FetchFasta fetches the nucleotide FASTA record for the given accession
// from the NCBI E-utilities, consulting the on-disk cache first.
func FetchFasta(ctx context.Context, accession string) (string, error) {
	if accession == "" {
		return "", nil
	}
	if v, ok := getCached(accession); ok {
		return v, nil
	}
	body, err := efetchFasta(ctx, accession)
	if err != nil {
		return "", err
	}
	setCached(accession, body)
	return body, nil
}

// FetchFastas fetches several accessions in a single efetch request and maps
// each requested accession to its record. Cached accessions are not
// re-requested. Accessions the payload does not contain are absent from the
// result.
func FetchFastas(ctx context.Context, accessions []string) (map[string]string, error) {
	out := make(map[string]string, len(accessions))
	var missing []string
	for _, acc := range accessions {
		if acc == "" {
			continue
		}
		if v, ok := getCached(acc); ok {
			out[acc] = v
			continue
		}
		missing = append(missing, acc)
	}
	if len(missing) == 0 {
		return out, nil
	}
	body, err := efetchFasta(ctx, strings.Join(missing, ","))
	if err != nil {
		return nil, err
	}
	for _, rec := range splitRecords(body) {
		acc := recordAccession(rec)
		for _, want := range missing {
			// payload headers usually carry a version suffix (NM_1.2)
			if acc == want || strings.HasPrefix(acc, want+".") {
				out[want] = rec
				setCached(want, rec)
				break
			}
		}
	}
	return out, nil
}

func efetchFasta(ctx context.Context, ids string) (string, error) {
	reqURL := efetchBase + "?db=nuccore&rettype=fasta&retmode=text&id=" + url.QueryEscape(ids)
	if apiKey := os.Getenv("NCBI_API_KEY"); apiKey != "" {
		reqURL += "&api_key=" + apiKey
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", "fasta-cleaner/1.0 (+https://github.com/sebschmi/fasta-cleaner)")
		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			if err := sleepCtx(ctx, time.Duration(attempt*300)*time.Millisecond); err != nil {
				return "", err
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("ncbi efetch returned 429")
			wait := time.Duration(attempt*500) * time.Millisecond
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return "", err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("ncbi efetch returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("read efetch response: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if !strings.HasPrefix(text, ">") {
			return "", fmt.Errorf("ncbi efetch returned no fasta for %q", ids)
		}
		return text + "\n", nil
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitRecords splits a concatenated FASTA payload into single records,
// each with its leading '>' and a trailing newline.
func splitRecords(fasta string) []string {
	var recs []string
	for _, chunk := range strings.Split(fasta, "\n>") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if !strings.HasPrefix(chunk, ">") {
			chunk = ">" + chunk
		}
		recs = append(recs, chunk+"\n")
	}
	return recs
}

// recordAccession extracts the accession token from a record's header line.
func recordAccession(rec string) string {
	rec = strings.TrimPrefix(rec, ">")
	if i := strings.IndexAny(rec, " \t\n"); i >= 0 {
		rec = rec[:i]
	}
	return rec
}
