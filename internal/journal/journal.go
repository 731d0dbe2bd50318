package journal

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	BufferSize         = 512                    // Ring size
	MaxRecordsPerSec   = 200                    // Global rate limit
	MaxPayloadSize     = 64 * 1024              // Larger frames are journaled without payload
	BatchFlushSize     = 64                     // Records per batch write
	BatchFlushInterval = 250 * time.Millisecond // How often to flush
)

// Journal is a bounded ring of recent protocol records with an optional
// async JSONL writer. Snapshot frames arrive at the server tick rate, so the
// journal drops records beyond MaxRecordsPerSec rather than stalling callers.
type Journal struct {
	mu      sync.Mutex
	ring    [BufferSize]Record
	next    uint64 // sequence of the next record
	flushed uint64 // sequence up to which records were handed to the writer

	limiter *rate.Limiter

	// Async writer
	out      io.Writer
	file     *os.File
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writeErrors  atomic.Uint64
}

// New creates a journal that keeps records in memory only.
func New() *Journal {
	return &Journal{
		limiter:  rate.NewLimiter(MaxRecordsPerSec, MaxRecordsPerSec/4),
		stopChan: make(chan struct{}),
	}
}

// Start opens path for append and begins the async writer. An empty path
// keeps the journal in memory.
func (j *Journal) Start(path string) error {
	if path == "" {
		return j.StartWriter(nil)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	j.file = file
	return j.StartWriter(file)
}

// StartWriter begins the async writer on w. A nil w disables persistence.
func (j *Journal) StartWriter(w io.Writer) error {
	if j.running.Load() {
		return nil
	}
	j.out = w
	j.running.Store(true)
	if w != nil {
		j.writerWg.Add(1)
		go j.writerLoop()
	}
	return nil
}

// Stop flushes pending records and closes the file.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		if j.file != nil {
			j.file.Close()
		}
	})
}

// Append records a frame. It returns false if the record was rate limited
// or the journal is not running.
func (j *Journal) Append(r Record) bool {
	if !j.running.Load() {
		return false
	}
	if !j.limiter.Allow() {
		j.droppedCount.Add(1)
		return false
	}

	j.mu.Lock()
	r.Sequence = j.next
	j.ring[j.next%BufferSize] = r
	j.next++
	if j.out == nil {
		j.flushed = j.next
	} else if j.next-j.flushed > BufferSize {
		// The writer fell a full ring behind; the oldest records are lost
		j.droppedCount.Add(j.next - j.flushed - BufferSize)
		j.flushed = j.next - BufferSize
	}
	j.mu.Unlock()

	j.totalCount.Add(1)
	return true
}

// Record is a convenience wrapper around NewRecord and Append.
func (j *Journal) Record(dir Direction, event string, frame []byte) bool {
	return j.Append(NewRecord(dir, event, frame))
}

// Recent returns up to n of the newest records, oldest first.
func (j *Journal) Recent(n int) []Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	avail := j.next
	if avail > BufferSize {
		avail = BufferSize
	}
	if n <= 0 || uint64(n) > avail {
		n = int(avail)
	}

	out := make([]Record, 0, n)
	for seq := j.next - uint64(n); seq < j.next; seq++ {
		out = append(out, j.ring[seq%BufferSize])
	}
	return out
}

// writerLoop batches and writes records asynchronously
func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, BatchFlushSize)

	for {
		select {
		case <-j.stopChan:
			// Final flush
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}

		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

// collectBatch takes unflushed records from the ring
func (j *Journal) collectBatch(batch []Record) []Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	for j.flushed < j.next && len(batch) < BatchFlushSize {
		batch = append(batch, j.ring[j.flushed%BufferSize])
		j.flushed++
	}
	return batch
}

// flushBatch writes records as newline-delimited JSON
func (j *Journal) flushBatch(batch []Record) {
	for _, r := range batch {
		data, err := json.Marshal(r)
		if err != nil {
			j.writeErrors.Add(1)
			continue
		}
		if _, err := j.out.Write(append(data, '\n')); err != nil {
			j.writeErrors.Add(1)
		}
	}
}

// Stats is a point-in-time view of the journal counters
type Stats struct {
	Total       uint64 `json:"total"`
	Dropped     uint64 `json:"dropped"`
	Pending     uint64 `json:"pending"`
	WriteErrors uint64 `json:"writeErrors"`
	Running     bool   `json:"running"`
}

// GetStats returns journal counters
func (j *Journal) GetStats() Stats {
	j.mu.Lock()
	pending := j.next - j.flushed
	j.mu.Unlock()

	return Stats{
		Total:       j.totalCount.Load(),
		Dropped:     j.droppedCount.Load(),
		Pending:     pending,
		WriteErrors: j.writeErrors.Load(),
		Running:     j.running.Load(),
	}
}
