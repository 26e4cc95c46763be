package paper

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"buzzbot-go/internal/execution"
)

// JournalEntry is one paper fill together with the account it left behind.
type JournalEntry struct {
	Seq         int64          `json:"seq"`
	Fill        execution.Fill `json:"fill"`
	CashAfter   float64        `json:"cash_after"`
	RealizedPnL float64        `json:"realized_pnl"`
}

// Journal appends paper fills to a JSON-lines file so a session can be
// audited after the process exits.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	seq  int64
	err  error
}

// OpenJournal opens path for appending, creating parent directories. The
// sequence continues from the last entry already in the file.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fill journal dir: %w", err)
	}
	existing, err := ReadJournal(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fill journal: %w", err)
	}
	j := &Journal{file: file, enc: json.NewEncoder(file)}
	if n := len(existing); n > 0 {
		j.seq = existing[n-1].Seq
	}
	return j, nil
}

// Record appends entry with the next sequence number. The first write error
// is kept and returned by Close.
func (j *Journal) Record(entry JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil || j.err != nil {
		return
	}
	j.seq++
	entry.Seq = j.seq
	j.err = j.enc.Encode(entry)
}

// Close closes the file and reports any write error seen while recording.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return j.err
	}
	err := errors.Join(j.err, j.file.Close())
	j.file = nil
	return err
}

// ReadJournal loads every entry in path, oldest first.
func ReadJournal(path string) ([]JournalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []JournalEntry
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("fill journal %s line %d: %w", path, line, err)
		}
		out = append(out, entry)
	}
	return out, scanner.Err()
}
