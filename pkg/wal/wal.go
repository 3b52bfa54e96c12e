package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// SyncMode selects how aggressively Append forces data to stable storage,
// per spec.md §4.4's durability trichotomy.
type SyncMode int

const (
	// SyncAlways calls Sync() after every Append; strongest durability,
	// slowest throughput.
	SyncAlways SyncMode = iota
	// SyncBatch defers fsync to a background ticker (BatchInterval); a
	// crash can lose the last partial batch.
	SyncBatch
	// SyncNever never calls Sync() explicitly, relying on OS page-cache
	// flush; fastest, weakest durability.
	SyncNever
)

func (m SyncMode) String() string {
	switch m {
	case SyncAlways:
		return "sync-always"
	case SyncBatch:
		return "sync-batch"
	case SyncNever:
		return "sync-never"
	default:
		return "unknown"
	}
}

// Config controls WAL behavior, mirroring the reference storage engine's
// WALConfig/DefaultWALConfig shape.
type Config struct {
	Path          string
	Mode          SyncMode
	BatchInterval time.Duration

	// EncryptionKey, when non-nil, must be exactly
	// chacha20poly1305.KeySize (32) bytes. When set, every record payload
	// is sealed before framing, encrypting the WAL at rest; recovery must
	// then be performed with RecoverEncrypted using the same key.
	EncryptionKey []byte
}

func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		Mode:          SyncBatch,
		BatchInterval: 50 * time.Millisecond,
	}
}

// Stats reports cumulative WAL activity, mirroring the reference engine's
// WAL Stats() method.
type Stats struct {
	RecordsAppended uint64
	BytesWritten    uint64
	SyncCount       uint64
	LastSyncAt      time.Time
}

// WAL is an append-only, length-prefixed, CRC32-checksummed binary log of
// Record values (spec.md §4.4/§6.2). A single *WAL is safe for concurrent
// Append calls from multiple goroutines; it serializes them behind mu the
// same way the reference engine's WAL does.
type WAL struct {
	mu     sync.Mutex
	cfg    Config
	file   *os.File
	writer *bufio.Writer
	stats  Stats

	closing  chan struct{}
	closed   bool
	tickerWG sync.WaitGroup
}

// Open creates or appends to the WAL file at cfg.Path, starting the
// background batch-sync goroutine when cfg.Mode is SyncBatch.
func Open(cfg Config) (*WAL, error) {
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 50 * time.Millisecond
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", cfg.Path, err)
	}
	w := &WAL{
		cfg:     cfg,
		file:    f,
		writer:  bufio.NewWriter(f),
		closing: make(chan struct{}),
	}
	if cfg.Mode == SyncBatch {
		w.tickerWG.Add(1)
		go w.batchSyncLoop()
	}
	return w, nil
}

func (w *WAL) batchSyncLoop() {
	defer w.tickerWG.Done()
	ticker := time.NewTicker(w.cfg.BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			_ = w.syncLocked()
			w.mu.Unlock()
		case <-w.closing:
			return
		}
	}
}

// Append encodes rec, frames it as u32-LE length || payload || u32-LE
// crc32(payload), and writes the frame to the log. Durability follows
// cfg.Mode: SyncAlways fsyncs before returning, SyncBatch relies on the
// background ticker, SyncNever never fsyncs explicitly.
func (w *WAL) Append(rec Record) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("wal: encode record: %w", err)
	}
	if w.cfg.EncryptionKey != nil {
		payload, err = sealPayload(w.cfg.EncryptionKey, payload)
		if err != nil {
			return err
		}
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	checksum := crc32.ChecksumIEEE(payload)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], checksum)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("wal: append on closed log")
	}

	if _, err := w.writer.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wal: write length prefix: %w", err)
	}
	if _, err := w.writer.Write(payload); err != nil {
		return fmt.Errorf("wal: write payload: %w", err)
	}
	if _, err := w.writer.Write(crcBuf[:]); err != nil {
		return fmt.Errorf("wal: write checksum: %w", err)
	}

	w.stats.RecordsAppended++
	w.stats.BytesWritten += uint64(4 + len(payload) + 4)

	if w.cfg.Mode == SyncAlways {
		return w.syncLocked()
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	return nil
}

// Flush pushes buffered bytes to the OS without forcing an fsync.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Flush()
}

// Sync flushes and fsyncs the log file.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush before sync: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	w.stats.SyncCount++
	w.stats.LastSyncAt = time.Now()
	return nil
}

// Checkpoint appends a Checkpoint record and forces a sync, regardless of
// cfg.Mode, so recovery can trust a checkpoint as a durable low-water mark.
func (w *WAL) Checkpoint(tx value.TxId, epoch value.EpochId) error {
	if err := w.Append(Checkpoint(tx, epoch)); err != nil {
		return err
	}
	return w.Sync()
}

// Stats returns a copy of the cumulative WAL activity counters. It does
// not log; Close logs the final byte count.
func (w *WAL) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *WAL) humanBytes() string {
	return humanize.Bytes(w.Stats().BytesWritten)
}

// Close stops the background sync goroutine (if any), flushes and syncs
// any buffered data, and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.closing)
	w.tickerWG.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		return err
	}
	log.Printf("wal: closing %s after writing %s (%d records)", w.cfg.Path, w.humanBytes(), w.stats.RecordsAppended)
	return w.file.Close()
}
