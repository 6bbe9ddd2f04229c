// Package persistence implements Component D: an asynchronous durable
// writer with size-based rotation, retention and startup replay.
//
// The writer loop and rotate/prune shape are grounded on the original
// C++ PersistenceManager (original_source/cpp/versions/mvp5-irc/src/Persistence.cpp):
// a single writer goroutine drains a queue, flushes after every line, and
// rotates once the file crosses max_file_size. Directory/file ownership
// and the single-lock-per-owner shape follow the teacher's
// internal/storage.AtomicWriter (per-resource lock held only around I/O).
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/pkg/logentry"
)

const currentFileName = "current.log"

// defaultQueueBound caps the in-memory enqueue channel. spec.md §5 notes
// the persistence queue is "bounded only by memory" but implementations
// "must document and should enforce an upper bound" -- this is that bound.
const defaultQueueBound = 65536

// Config configures a Manager.
type Config struct {
	Directory   string
	MaxFileSize int64
	MaxFiles    int
}

// Stats is a snapshot of the manager's counters.
type Stats struct {
	QueuedLogs   uint64
	PersistedLogs uint64
	FailedLogs   uint64
}

type job struct {
	message   string
	timestamp time.Time
}

// Manager is LogCrafter's durable log writer.
type Manager struct {
	cfg    Config
	log    logging.Logger
	queue  chan job
	done   chan struct{}
	wg     sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     atomic.Bool

	queuedLogs    atomic.Uint64
	persistedLogs atomic.Uint64
	failedLogs    atomic.Uint64

	// fileMu guards current.log and current size; it is held for each
	// line's write+flush and for the file handle swap during rotation.
	fileMu      sync.Mutex
	file        *os.File
	currentSize int64
}

var rotatedNamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.log$`)

// Init creates the persistence directory if needed, opens current.log for
// append, seeds currentSize from the file's existing length, and starts
// the writer goroutine. Failure to create the directory or open the file
// is fatal to Init, per §4.D / §7 "Initialization error".
func Init(cfg Config, log logging.Logger) (*Manager, error) {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}

	if err := os.MkdirAll(cfg.Directory, 0o775); err != nil {
		return nil, fmt.Errorf("persistence: create directory %s: %w", cfg.Directory, err)
	}

	path := filepath.Join(cfg.Directory, currentFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("persistence: stat %s: %w", path, err)
	}

	m := &Manager{
		cfg:         cfg,
		log:         log,
		queue:       make(chan job, defaultQueueBound),
		done:        make(chan struct{}),
		file:        f,
		currentSize: info.Size(),
	}

	m.wg.Add(1)
	go m.writerLoop()

	return m, nil
}

// ReplayExisting enumerates every *.log file in the directory (rotated
// files in lexical -- i.e. chronological -- order, current.log last) and
// invokes callback(message, timestamp) for each non-empty line, in file
// order. Lines without a parseable "[YYYY-MM-DD HH:MM:SS] " prefix are
// still delivered, stamped with the current time. Must complete before the ingest listener starts accepting
// (§5 "Startup replay completes before the ingest listener begins
// accepting").
func ReplayExisting(directory string, callback func(message string, timestamp time.Time)) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persistence: read directory %s: %w", directory, err)
	}

	var rotated []string
	hasCurrent := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".log" {
			continue
		}
		if name == currentFileName {
			hasCurrent = true
			continue
		}
		rotated = append(rotated, name)
	}
	sort.Strings(rotated)

	files := rotated
	if hasCurrent {
		files = append(files, currentFileName)
	}

	for _, name := range files {
		if err := replayFile(filepath.Join(directory, name), callback); err != nil {
			return err
		}
	}
	return nil
}

var linePrefixPattern = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (.*)$`)

func replayFile(path string, callback func(message string, timestamp time.Time)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persistence: open %s for replay: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := linePrefixPattern.FindStringSubmatch(line)
		if m == nil {
			callback(line, time.Now())
			continue
		}
		ts, err := time.ParseInLocation(logentry.TimeLayout, m[1], time.Local)
		if err != nil {
			callback(m[2], time.Now())
			continue
		}
		callback(m[2], ts)
	}
	return scanner.Err()
}

// Enqueue appends (message, timestamp) to the writer's FIFO. Returns false
// if the manager has already been shut down.
func (m *Manager) Enqueue(message string, timestamp time.Time) bool {
	if m.shutdown.Load() {
		return false
	}
	select {
	case m.queue <- job{message: message, timestamp: timestamp}:
		m.queuedLogs.Add(1)
		return true
	default:
		// Queue is at its documented bound; drop and count as failed
		// rather than block the ingest producer indefinitely.
		m.failedLogs.Add(1)
		return false
	}
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		QueuedLogs:    m.queuedLogs.Load(),
		PersistedLogs: m.persistedLogs.Load(),
		FailedLogs:    m.failedLogs.Load(),
	}
}

// Shutdown stops accepting new entries, drains whatever is already
// queued, and closes the file.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.shutdown.Store(true)
		close(m.done)
		m.wg.Wait()
	})
}

func (m *Manager) writerLoop() {
	defer m.wg.Done()
	for {
		select {
		case j := <-m.queue:
			m.writeOne(j)
		case <-m.done:
			m.drainQueue()
			m.closeFile()
			return
		}
	}
}

func (m *Manager) drainQueue() {
	for {
		select {
		case j := <-m.queue:
			m.writeOne(j)
		default:
			return
		}
	}
}

func (m *Manager) writeOne(j job) {
	line := fmt.Sprintf("[%s] %s\n", j.timestamp.Local().Format(logentry.TimeLayout), j.message)

	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	if m.file == nil {
		m.failedLogs.Add(1)
		return
	}

	n, err := m.file.WriteString(line)
	if err != nil {
		m.failedLogs.Add(1)
		if m.log != nil {
			m.log.WithField("error", err).Error("persistence write failed", err)
		}
		return
	}
	if err := m.file.Sync(); err != nil {
		if m.log != nil {
			m.log.WithField("error", err).Error("persistence flush failed", err)
		}
	}

	m.persistedLogs.Add(1)
	m.currentSize += int64(n)

	if m.currentSize >= m.cfg.MaxFileSize {
		m.rotate()
	}
}

// rotate closes current.log, renames it to a local-time-stamped name,
// reopens a fresh current.log, and prunes old rotated files. Caller must
// hold m.fileMu.
func (m *Manager) rotate() {
	if err := m.file.Close(); err != nil && m.log != nil {
		m.log.Error("persistence rotate: close current.log failed", err)
	}

	oldPath := filepath.Join(m.cfg.Directory, currentFileName)
	rotatedName := time.Now().Local().Format(logentry.TimeLayout) + ".log"
	newPath := filepath.Join(m.cfg.Directory, rotatedName)

	if err := os.Rename(oldPath, newPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		if m.log != nil {
			m.log.Error("persistence rotate: rename failed, will retry next cycle", err)
		}
		// Abort this rotation: reopen current.log but keep currentSize,
		// so the next write attempts the rotation again.
		f, err := os.OpenFile(oldPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			if m.log != nil {
				m.log.Error("persistence rotate: reopen current.log failed", err)
			}
			m.file = nil
			return
		}
		m.file = f
		return
	}

	f, err := os.OpenFile(oldPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		if m.log != nil {
			m.log.Error("persistence rotate: reopen current.log failed", err)
		}
		m.file = nil
		return
	}
	m.file = f
	m.currentSize = 0

	if err := m.prune(); err != nil && m.log != nil {
		m.log.Error("persistence prune failed", err)
	}
}

// prune removes the lexicographically smallest rotated files until the
// count of rotated files is <= MaxFiles. Failure is non-fatal.
func (m *Manager) prune() error {
	entries, err := os.ReadDir(m.cfg.Directory)
	if err != nil {
		return err
	}

	var rotated []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == currentFileName {
			continue
		}
		if !rotatedNamePattern.MatchString(name) {
			continue
		}
		rotated = append(rotated, name)
	}
	sort.Strings(rotated)

	for len(rotated) > m.cfg.MaxFiles {
		victim := rotated[0]
		rotated = rotated[1:]
		if err := os.Remove(filepath.Join(m.cfg.Directory, victim)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (m *Manager) closeFile() {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	if m.file != nil {
		m.file.Close()
		m.file = nil
	}
}
