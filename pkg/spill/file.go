package spill

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SpillFile is a write-once, length-prefixed binary stream of Rows backed
// by a temporary file under a configured spill directory. Framing matches
// the WAL's on-disk convention (spec.md §6.2) minus the checksum: spilled
// data is transient and re-derivable, so a torn write simply fails the
// operator (Resource.Spill, §7) rather than needing recovery.
type SpillFile struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create makes a new spill file under dir (created if missing), named with
// the given prefix plus a unique suffix.
func Create(dir, prefix string) (*SpillFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spill: create dir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, prefix+"-*.spill")
	if err != nil {
		return nil, fmt.Errorf("spill: create temp file: %w", err)
	}
	return &SpillFile{path: f.Name(), f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the file's location on disk.
func (s *SpillFile) Path() string { return s.path }

// WriteRow appends one encoded row to the stream.
func (s *SpillFile) WriteRow(row Row) error {
	payload, err := encodeRow(row)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("spill: write length: %w", err)
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("spill: write payload: %w", err)
	}
	return nil
}

// Close flushes buffered writes and closes the underlying file, without
// deleting it (a reader may still open Path()).
func (s *SpillFile) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("spill: flush %s: %w", s.path, err)
	}
	return s.f.Close()
}

// Remove deletes the spill file from disk; called on operator completion
// or database close per spec.md §4.10.
func (s *SpillFile) Remove() error {
	return os.Remove(s.path)
}

// Reader opens path for sequential row reads.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spill: open %s: %w", path, err)
	}
	return &Reader{path: path, f: f, r: bufio.NewReader(f)}, nil
}

// Reader streams Rows back out of a SpillFile in write order.
type Reader struct {
	path string
	f    *os.File
	r    *bufio.Reader
}

// ReadRow returns the next row, or io.EOF once the stream is exhausted.
func (r *Reader) ReadRow() (Row, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("spill: short read in %s: %w", r.path, err)
	}
	return decodeRow(payload)
}

// Close closes the underlying file without removing it.
func (r *Reader) Close() error { return r.f.Close() }

// RemoveAll deletes path, ignoring a not-exist error (best-effort cleanup
// on operator completion/database close).
func RemoveAll(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
