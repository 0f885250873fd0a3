package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/transform"

	"github.com/sebschmi/fasta-cleaner/internal/config"
	"github.com/sebschmi/fasta-cleaner/internal/fasta"
)

// maxUploadBytes caps the request body accepted by the normalize endpoint.
const maxUploadBytes = 128 << 20

// RunsPage is used to render the index and history pages
type RunsPage struct {
	Title string
	Runs  []Run
}

var templates *template.Template

func loadTemplates(dir string) error {
	t := template.New("")
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".html") {
			if _, err := t.ParseFiles(path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	templates = t
	return nil
}

// statusResponseWriter captures status and bytes written for logging
type statusResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// loggingMiddleware logs each request with method, path, status, size and duration
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(srw, r)
		if srw.status == 0 {
			srw.status = http.StatusOK
		}
		duration := time.Since(start)
		logger.Printf("%s - %s %s %d %dB %s %q",
			r.RemoteAddr, r.Method, r.URL.RequestURI(), srw.status, srw.written, duration, r.UserAgent())
	})
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	runs, err := listRuns()
	if err != nil {
		log.Printf("warning: failed to read runs for index: %v", err)
		runs = nil
	}
	if len(runs) > 10 {
		runs = runs[:10]
	}
	page := RunsPage{Title: "FASTA cleaner", Runs: runs}
	if err := templates.ExecuteTemplate(w, "index.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// normalizeHandler accepts a multipart FASTA upload, pipes it through the
// normalizer and returns the cleaned file as an attachment. Every request is
// recorded as a run, failed ones included.
func normalizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("fasta")
	if err != nil {
		http.Error(w, "missing fasta upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var norm fasta.Normalizer
	var buf bytes.Buffer
	_, err = io.Copy(&buf, transform.NewReader(file, &norm))
	st := norm.Stats()
	run := Run{
		ID:        fmt.Sprintf("run-%d", time.Now().UnixNano()),
		Filename:  hdr.Filename,
		Records:   st.Records,
		Width:     st.Width,
		Kept:      st.Kept,
		Dropped:   st.Dropped,
		Status:    "ok",
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		run.Status = "failed"
		run.Message = err.Error()
		status := http.StatusInternalServerError
		var formatErr *fasta.FormatError
		if errors.As(err, &formatErr) {
			status = http.StatusUnprocessableEntity
		}
		if serr := appendRun(run); serr != nil {
			log.Printf("warning: failed to record run: %v", serr)
		}
		http.Error(w, err.Error(), status)
		return
	}
	if serr := appendRun(run); serr != nil {
		log.Printf("warning: failed to record run: %v", serr)
	}

	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "sequences.fasta"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cleaned_"+name))
	w.Header().Set("X-Fasta-Records", strconv.Itoa(st.Records))
	w.Header().Set("X-Fasta-Width", strconv.Itoa(st.Width))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("warning: failed to write response: %v", err)
	}
}

func runsHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := listRuns()
	if err != nil {
		http.Error(w, "failed to read runs", http.StatusInternalServerError)
		return
	}
	page := RunsPage{Title: "Run history", Runs: runs}
	if err := templates.ExecuteTemplate(w, "runs.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// apiRunsHandler returns the JSON list of recorded runs, newest first
func apiRunsHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := listRuns()
	if err != nil {
		http.Error(w, "failed to read runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(runs)
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP address to serve on")
	store := flag.String("store", "", "run store backend: json or sqlite (overrides config)")
	storePath := flag.String("runs", "", "path to the run store, json file or sqlite database (overrides config)")
	templatesDir := flag.String("templates", "web/templates", "directory with HTML templates")
	configPath := flag.String("config", "", "path to a JSON config file")
	logFile := flag.String("log", "", "path to write access logs (optional). If empty, logs go to stdout only")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr == ":8080" && cfg.WebAddr != "" {
		*addr = cfg.WebAddr
	}
	if *store == "" {
		*store = cfg.RunsStore
	}
	if *store == "" {
		*store = "json"
	}
	if *storePath == "" {
		*storePath = cfg.RunsPath
	}
	if *storePath == "" {
		if *store == "sqlite" {
			*storePath = "runs.db"
		} else {
			*storePath = "runs.json"
		}
	}

	if err := loadTemplates(*templatesDir); err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}

	runsStore = *store
	runsPath = *storePath
	if err := initRunsStore(); err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	if runsDB != nil {
		defer runsDB.Close()
	}

	// prepare mux so we can wrap with middleware
	mux := http.NewServeMux()
	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("/", indexHandler)
	mux.HandleFunc("/normalize", normalizeHandler)
	mux.HandleFunc("/runs", runsHandler)
	mux.HandleFunc("/healthz", healthzHandler)
	// API endpoint for SPA-like interactions
	mux.HandleFunc("/api/runs", apiRunsHandler)

	// configure logger
	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		out = io.MultiWriter(os.Stdout, f)
	}
	logger := log.New(out, "fasta-cleaner: ", log.LstdFlags)

	// wrap mux with logging middleware
	handler := loggingMiddleware(logger, mux)

	srv := &http.Server{Addr: *addr, Handler: handler, ReadTimeout: 30 * time.Second, WriteTimeout: 60 * time.Second}
	fmt.Printf("serving FASTA cleaner UI at http://%s/ (store=%s, runs=%s)\n", *addr, runsStore, runsPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
