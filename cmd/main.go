package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sebschmi/fasta-cleaner/internal/config"
	"github.com/sebschmi/fasta-cleaner/internal/fasta"
	"github.com/sebschmi/fasta-cleaner/internal/ncbi"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write buffers bytes until a newline is found; for each full line, write a timestamped
// line to the underlying writer. Partial lines are kept in the buffer.
func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	total := n
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			break
		}
		ts := time.Now().Format(time.RFC3339)
		if _, err := t.w.Write([]byte(ts + " " + line)); err != nil {
			return total, err
		}
	}
	return total, nil
}

// terminalWriter wraps an io.Writer and exposes an Fd method so libraries that
// inspect the file descriptor (for TTY detection) can work with wrapped writers.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }

// Fd exposes the underlying file descriptor (e.g., os.Stderr.Fd()).
func (tw *terminalWriter) Fd() uintptr { return tw.fd }

// readCloser couples a wrapped reader with the closers that release it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openInput resolves the input stream: a path, or "-"/empty for stdin, with
// transparent decompression when the stream starts with the gzip magic.
func openInput(path string) (io.ReadCloser, string, error) {
	var raw io.Reader
	var closers []io.Closer
	name := path
	if path == "" || path == "-" {
		raw = os.Stdin
		name = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		raw = f
		closers = append(closers, f)
	}
	br := bufio.NewReader(raw)
	if sig, err := br.Peek(2); err == nil && sig[0] == 0x1f && sig[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, "", fmt.Errorf("open gzip input: %w", err)
		}
		return &readCloser{Reader: zr, closers: append([]io.Closer{zr}, closers...)}, name, nil
	}
	return &readCloser{Reader: br, closers: closers}, name, nil
}

// openOutput resolves the output sink: a path, or "-"/empty for stdout, with
// gzip compression when the path ends in .gz. The returned close function
// must complete before the run is reported successful.
func openOutput(path string) (io.Writer, func() error, string, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, "stdout", nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, "", err
	}
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		closeAll := func() error {
			if err := zw.Close(); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		}
		return zw, closeAll, path, nil
	}
	return f, f.Close, path, nil
}

// fetchAccessions resolves -accession input into FASTA text, preserving the
// requested order.
func fetchAccessions(logger *log.Logger, spec string) (string, error) {
	var accs []string
	for _, a := range strings.Split(spec, ",") {
		if a = strings.TrimSpace(a); a != "" {
			accs = append(accs, a)
		}
	}
	if len(accs) == 0 {
		return "", fmt.Errorf("no accessions given")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if len(accs) == 1 {
		return ncbi.FetchFasta(ctx, accs[0])
	}
	m, err := ncbi.FetchFastas(ctx, accs)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, acc := range accs {
		rec, ok := m[acc]
		if !ok {
			logger.Warn("accession missing from efetch payload", "accession", acc)
			continue
		}
		b.WriteString(rec)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("none of the requested accessions were returned")
	}
	return b.String(), nil
}

func main() {
	// CLI flags
	inputFlag := flag.String("in", "", "input FASTA file path (empty or - for stdin; .gz detected)")
	outputFlag := flag.String("out", "", "output FASTA file path (empty or - for stdout; .gz compresses)")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	accessionFlag := flag.String("accession", "", "fetch input from NCBI by accession (comma separated) instead of -in")
	dryRun := flag.Bool("dry-run", false, "parse and report the input without writing output")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("fasta-cleaner", version)
		return
	}

	// load config (optional file)
	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	// merge CLI flags into config (flags override config when provided)
	if *inputFlag != "" {
		cfg.Input = *inputFlag
	}
	if *outputFlag != "" {
		cfg.Output = *outputFlag
	}

	// configure logger output
	var loggerOut io.Writer = os.Stderr
	var logFileHandle *os.File
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			// write to both stderr and file so running interactively still shows logs
			loggerOut = io.MultiWriter(os.Stderr, f)
			logFileHandle = f
			// keep file handle open until program exit
			defer func() { _ = logFileHandle.Close() }()
		}
	}
	// If stderr is a terminal-like device, force colors for libraries that honor FORCE_COLOR.
	if fi, err := os.Stderr.Stat(); err == nil {
		if fi.Mode()&os.ModeCharDevice != 0 {
			_ = os.Setenv("FORCE_COLOR", "1")
		}
	}
	// create logger backed by the timestamping writer and expose Fd so charm.log can detect TTY
	tw := &timestampWriter{w: loggerOut}
	termW := &terminalWriter{w: tw, fd: os.Stderr.Fd()}
	logger := log.New(termW)

	// apply log level from flags/config (flags override config)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			logger.SetLevel(log.DebugLevel)
		case "info", "":
			logger.SetLevel(log.InfoLevel)
		case "warn", "warning":
			logger.SetLevel(log.WarnLevel)
		case "error":
			logger.SetLevel(log.ErrorLevel)
		default:
			logger.SetLevel(log.InfoLevel)
			logger.Warn("unknown log_level in config.json, defaulting to info", "provided", cfg.LogLevel)
		}
	}

	logger.Debug("logging initialised")
	if cfg.LogFile != "" && logFileHandle == nil {
		logger.Warn("log_file specified but could not be opened; logging to stderr only", "path", cfg.LogFile)
	}
	logger.Info("starting fasta-cleaner", "input", cfg.Input, "output", cfg.Output, "log_file", cfg.LogFile)

	// apply ncbi config
	if cfg.NcbiCachePath != "" {
		if absPath, aerr := filepath.Abs(cfg.NcbiCachePath); aerr == nil {
			ncbi.SetCacheFilePath(absPath)
			logger.Debug("ncbi cache path set from config", "path", absPath)
		} else {
			ncbi.SetCacheFilePath(cfg.NcbiCachePath)
		}
		defer ncbi.FlushCache()
	}
	if cfg.NcbiApiKey != "" {
		// set the API key directly from config.json (config-only mode)
		os.Setenv("NCBI_API_KEY", cfg.NcbiApiKey)
		logger.Debug("ncbi api key provided in config (not logged)")
	}
	if cfg.NcbiCacheTTLSecs > 0 {
		ncbi.SetCacheTTLSeconds(cfg.NcbiCacheTTLSecs)
	}

	// resolve the input stream
	var in io.ReadCloser
	inputName := ""
	if *accessionFlag != "" {
		logger.Info("fetching input from ncbi", "accession", *accessionFlag)
		body, err := fetchAccessions(logger, *accessionFlag)
		if err != nil {
			logger.Fatal("ncbi fetch failed", "accession", *accessionFlag, "err", err)
		}
		in = io.NopCloser(strings.NewReader(body))
		inputName = "ncbi:" + *accessionFlag
	} else {
		var err error
		in, inputName, err = openInput(cfg.Input)
		if err != nil {
			logger.Fatal("failed to open input", "path", cfg.Input, "err", err)
		}
	}
	defer in.Close()
	logger.Info("opening input", "source", inputName)

	if *dryRun {
		records, err := fasta.ParseFasta(in)
		if err != nil {
			logger.Fatal("failed to parse input", "source", inputName, "err", err)
		}
		var total int
		for _, r := range records {
			total += r.Len()
		}
		logger.Info("dry-run: input parsed, no output written", "records", len(records), "total_bases", total)
		return
	}

	out, closeOut, outputName, err := openOutput(cfg.Output)
	if err != nil {
		logger.Fatal("failed to open output", "path", cfg.Output, "err", err)
	}
	logger.Info("opening output", "sink", outputName)

	logger.Info("cleaning...")
	st, err := fasta.Clean(in, out)
	if err != nil {
		_ = closeOut()
		logger.Fatal("cleaning failed", "source", inputName, "err", err)
	}
	// flush and close the sink before reporting success
	if err := closeOut(); err != nil {
		logger.Fatal("failed to finalize output", "sink", outputName, "err", err)
	}
	logger.Debug("derived line width", "width", st.Width)
	logger.Info("done.", "records", st.Records, "width", st.Width, "kept", st.Kept, "dropped", st.Dropped)
}
