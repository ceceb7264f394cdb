// Package filereader feeds traces from disk into the viewer. FileSource
// imports OTLP JSONL files written by the OpenTelemetry Collector's file
// exporter into the live span store; Watch reports changes to a native
// trace JSON file so hosts can reload it.
package filereader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

const (
	// OTLP JSON lines can be large for batches with many attributes.
	jsonlBufferInitial = 1 * 1024 * 1024
	jsonlBufferMax     = 10 * 1024 * 1024
)

// SpanReceiver accepts decoded OTLP spans. storage.SpanStore implements it.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error
}

// Config holds configuration for a FileSource.
type Config struct {
	// Directory holds the exporter output. JSONL files are read from its
	// traces/ subdirectory when present, otherwise from Directory itself.
	Directory string
	Verbose   bool

	// ActiveOnly loads only traces.jsonl and skips rotated archives such as
	// traces-2025-12-09T13-10-56.jsonl.
	ActiveOnly bool

	// OnLoad is called after new spans were read from a file.
	OnLoad func(lines int)
}

// FileSource tails OTLP trace JSONL files into a SpanReceiver.
type FileSource struct {
	directory  string
	traceDir   string
	receiver   SpanReceiver
	verbose    bool
	activeOnly bool
	onLoad     func(int)

	watcher *fsnotify.Watcher

	mu          sync.Mutex
	fileOffsets map[string]int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a FileSource for cfg.Directory.
func New(cfg Config, receiver SpanReceiver) (*FileSource, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if receiver == nil {
		return nil, fmt.Errorf("span receiver cannot be nil")
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %w", cfg.Directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Directory)
	}

	traceDir := cfg.Directory
	if sub := filepath.Join(cfg.Directory, "traces"); isDir(sub) {
		traceDir = sub
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileSource{
		directory:   cfg.Directory,
		traceDir:    traceDir,
		receiver:    receiver,
		verbose:     cfg.Verbose,
		activeOnly:  cfg.ActiveOnly,
		onLoad:      cfg.OnLoad,
		watcher:     watcher,
		fileOffsets: make(map[string]int64),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Start loads the existing files and then tails them in the background.
func (fs *FileSource) Start(ctx context.Context) error {
	if fs.verbose {
		log.Printf("📁 FileSource: reading traces from %s\n", fs.traceDir)
	}

	if err := fs.watcher.Add(fs.traceDir); err != nil {
		log.Printf("⚠️  FileSource: could not watch %s: %v\n", fs.traceDir, err)
	}

	files, err := fs.findJSONLFiles()
	if err != nil {
		return fmt.Errorf("initial data load failed: %w", err)
	}
	total := 0
	for _, file := range files {
		n, err := fs.loadTraceFile(ctx, file)
		if err != nil {
			log.Printf("⚠️  FileSource: error loading %s: %v\n", file, err)
			continue
		}
		total += n
		if fs.verbose && n > 0 {
			log.Printf("📁 FileSource: loaded %d batches from %s\n", n, filepath.Base(file))
		}
	}
	fs.notify(total)

	fs.wg.Add(1)
	go fs.watchLoop()

	return nil
}

// Stop stops tailing and waits for the watcher goroutine.
func (fs *FileSource) Stop() {
	fs.cancel()
	fs.watcher.Close()
	fs.wg.Wait()
}

// Directory returns the configured base directory.
func (fs *FileSource) Directory() string {
	return fs.directory
}

func (fs *FileSource) notify(n int) {
	if n > 0 && fs.onLoad != nil {
		fs.onLoad(n)
	}
}

func isJSONL(name string) bool {
	return strings.HasSuffix(name, ".jsonl") || strings.Contains(name, ".jsonl.")
}

// findJSONLFiles lists trace files oldest first.
func (fs *FileSource) findJSONLFiles() ([]string, error) {
	entries, err := os.ReadDir(fs.traceDir)
	if err != nil {
		return nil, err
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isJSONL(name) {
			continue
		}
		if fs.activeOnly && name != "traces.jsonl" {
			if fs.verbose {
				log.Printf("📁 FileSource: skipping archived file %s\n", name)
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(fs.traceDir, name), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	result := make([]string, len(files))
	for i, f := range files {
		result[i] = f.path
	}
	return result, nil
}

// loadTraceFile decodes each new line as a TracesData document.
func (fs *FileSource) loadTraceFile(ctx context.Context, path string) (int, error) {
	return fs.processFile(ctx, path, func(line []byte) error {
		var data tracepb.TracesData
		if err := protojson.Unmarshal(line, &data); err != nil {
			return fmt.Errorf("parse trace JSON: %w", err)
		}
		if len(data.ResourceSpans) == 0 {
			return nil
		}
		fixHexIDs(data.ResourceSpans)
		return fs.receiver.ReceiveSpans(ctx, data.ResourceSpans)
	})
}

// fixHexIDs repairs IDs written as hex strings. protojson expects base64
// for bytes fields, so a 32-char hex trace ID decodes to 24 bytes and a
// 16-char span ID to 12; re-encoding recovers the original text.
func fixHexIDs(resourceSpans []*tracepb.ResourceSpans) {
	for _, rs := range resourceSpans {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				span.TraceId = hexID(span.TraceId, 16)
				span.SpanId = hexID(span.SpanId, 8)
				span.ParentSpanId = hexID(span.ParentSpanId, 8)
			}
		}
	}
}

func hexID(id []byte, size int) []byte {
	if len(id) != size*3/2 {
		return id
	}
	decoded, err := hex.DecodeString(base64.StdEncoding.EncodeToString(id))
	if err != nil || len(decoded) != size {
		return id
	}
	return decoded
}

// processFile reads path from its last known offset and returns the
// number of lines handled. A file that shrank is read from the start.
func (fs *FileSource) processFile(ctx context.Context, path string, handler func([]byte) error) (int, error) {
	fs.mu.Lock()
	offset := fs.fileOffsets[path]
	fs.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() < offset {
		offset = 0
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			offset = 0
		}
	}

	reader := bufio.NewReaderSize(file, jsonlBufferInitial)
	count := 0
	read := offset
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		line, err := reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			line, err = readLongLine(reader, line)
		}
		if err == io.EOF {
			// A partial trailing line is left for the next write event.
			break
		}
		if err != nil {
			return count, fmt.Errorf("reading %s: %w", path, err)
		}
		read += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := handler(line); err != nil {
			if fs.verbose {
				log.Printf("⚠️  FileSource: error processing line in %s: %v\n", filepath.Base(path), err)
			}
			continue
		}
		count++
	}

	fs.mu.Lock()
	fs.fileOffsets[path] = read
	fs.mu.Unlock()

	return count, nil
}

// readLongLine finishes a line longer than the reader buffer, up to
// jsonlBufferMax bytes.
func readLongLine(reader *bufio.Reader, head []byte) ([]byte, error) {
	line := append([]byte(nil), head...)
	for {
		more, err := reader.ReadSlice('\n')
		line = append(line, more...)
		if len(line) > jsonlBufferMax {
			return nil, fmt.Errorf("line exceeds %d bytes", jsonlBufferMax)
		}
		if err != bufio.ErrBufferFull {
			return line, err
		}
	}
}

func (fs *FileSource) watchLoop() {
	defer fs.wg.Done()

	for {
		select {
		case <-fs.ctx.Done():
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isJSONL(filepath.Base(event.Name)) {
				continue
			}
			if fs.activeOnly && filepath.Base(event.Name) != "traces.jsonl" {
				continue
			}

			n, err := fs.loadTraceFile(fs.ctx, event.Name)
			if err != nil {
				log.Printf("⚠️  FileSource: error reading %s: %v\n", event.Name, err)
				continue
			}
			if fs.verbose && n > 0 {
				log.Printf("📁 FileSource: loaded %d new batches from %s\n", n, filepath.Base(event.Name))
			}
			fs.notify(n)

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  FileSource: watcher error: %v\n", err)
		}
	}
}

// Stats describes what the file source is tracking.
type Stats struct {
	Directory    string   `json:"directory"`
	WatchedDirs  []string `json:"watched_dirs"`
	FilesTracked int      `json:"files_tracked"`
}

// Stats returns current statistics.
func (fs *FileSource) Stats() Stats {
	fs.mu.Lock()
	filesTracked := len(fs.fileOffsets)
	fs.mu.Unlock()

	return Stats{
		Directory:    fs.directory,
		WatchedDirs:  fs.watcher.WatchList(),
		FilesTracked: filesTracked,
	}
}
