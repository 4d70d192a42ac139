package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RotationConfig controls how a RotateWriter rolls its file over.
type RotationConfig struct {
	// MaxSize is the size, in megabytes, past which the file rotates.
	// Zero disables size-based rotation.
	MaxSize int `json:"max_size"`
	// MaxAge is how many days a rotated backup is kept before deletion.
	// Zero disables age-based cleanup.
	MaxAge int `json:"max_age"`
	// MaxBackups caps how many rotated backups are kept, oldest first.
	// Zero disables the cap.
	MaxBackups int `json:"max_backups"`
	LocalTime  bool `json:"local_time"`
	Compress   bool `json:"compress"`
}

// RotateWriter is an io.Writer over a single log file that renames the
// file out of the way and reopens it once it crosses MaxSize or
// midnight passes, then prunes old backups per MaxBackups/MaxAge.
type RotateWriter struct {
	filename   string
	config     RotationConfig
	size       int64
	file       *os.File
	mu         sync.Mutex
	startTime  time.Time
	lastRotate time.Time
}

// NewRotateWriter opens filename for append, creating its directory if
// needed, and prunes any backups left over from a previous run.
func NewRotateWriter(filename string, config RotationConfig) (*RotateWriter, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %v", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	w := &RotateWriter{
		filename:   filename,
		config:     config,
		size:       info.Size(),
		file:       file,
		startTime:  time.Now(),
		lastRotate: time.Now(),
	}

	if err := w.cleanup(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write implements io.Writer, rotating the file after the write if it
// now needs to.
func (w *RotateWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	if err != nil {
		return n, err
	}
	w.size += int64(n)

	if w.shouldRotate() {
		if err := w.rotate(); err != nil {
			return n, err
		}
	}

	return n, nil
}

// Close closes the underlying file.
func (w *RotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

func (w *RotateWriter) shouldRotate() bool {
	if w.config.MaxSize > 0 && w.size > int64(w.config.MaxSize*1024*1024) {
		return true
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.After(midnight) && w.lastRotate.Before(midnight) {
		return true
	}

	return false
}

func (w *RotateWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	now := time.Now()
	newFilename := w.backupName(now)

	if err := os.Rename(w.filename, newFilename); err != nil {
		return err
	}

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.file = file
	w.size = 0
	w.lastRotate = now

	return w.cleanup()
}

// backupName timestamps filename's base name with t, e.g.
// app.log -> app-2026-07-31-093000.log.
func (w *RotateWriter) backupName(t time.Time) string {
	dir := filepath.Dir(w.filename)
	filename := filepath.Base(w.filename)
	ext := filepath.Ext(filename)
	prefix := filename[:len(filename)-len(ext)]
	timestamp := t.Format("2006-01-02-150405")

	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", prefix, timestamp, ext))
}

// cleanup removes backups past MaxBackups (oldest first) and any
// backup older than MaxAge days.
func (w *RotateWriter) cleanup() error {
	if w.config.MaxBackups == 0 && w.config.MaxAge == 0 {
		return nil
	}

	// Backups are named by backupName: <prefix>-<timestamp><ext>.
	base := filepath.Base(w.filename)
	ext := filepath.Ext(base)
	pattern := filepath.Join(filepath.Dir(w.filename), base[:len(base)-len(ext)]+"-*"+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}
	files := make([]backupFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, backupFile{path, info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	if w.config.MaxBackups > 0 && len(files) > w.config.MaxBackups {
		for _, f := range files[w.config.MaxBackups:] {
			os.Remove(f.path)
		}
		files = files[:w.config.MaxBackups]
	}

	if w.config.MaxAge > 0 {
		cutoff := time.Now().Add(-time.Duration(w.config.MaxAge) * 24 * time.Hour)
		for _, file := range files {
			if file.modTime.Before(cutoff) {
				os.Remove(file.path)
			}
		}
	}

	return nil
}

// MultiWriter fans writes out to every wrapped writer, stopping at the
// first error or short write.
type MultiWriter struct {
	writers []io.Writer
}

// NewMultiWriter wraps writers.
func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements io.Writer.
func (w *MultiWriter) Write(p []byte) (n int, err error) {
	for _, writer := range w.writers {
		n, err := writer.Write(p)
		if err != nil {
			return n, err
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}
