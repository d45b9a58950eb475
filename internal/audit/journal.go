// Package audit keeps the run journal: an append-only JSONL file in which
// every record is chained to its predecessor by SHA-256.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/model"
)

// Journal appends run events to a JSONL file.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal returns a Journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal location.
func (j *Journal) Path() string {
	return j.path
}

// Append adds one event. The file is locked for the duration of the call so
// two processes never chain onto the same predecessor.
func (j *Journal) Append(event model.EventType, runID string, details map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastHash(file)
	if err != nil {
		return err
	}

	rec := &model.JournalRecord{
		Timestamp: time.Now().UTC(),
		Event:     event,
		RunID:     runID,
		Details:   details,
		PrevHash:  prevHash,
	}
	if rec.RecordHash, err = recordHash(rec); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return file.Sync()
}

// Records returns every well-formed record in file order. A missing journal
// has no records.
func (j *Journal) Records() ([]model.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var records []model.JournalRecord
	err = scan(file, func(_ int, rec *model.JournalRecord, err error) error {
		if err == nil {
			records = append(records, *rec)
		}
		return nil
	})
	return records, err
}

// Verify walks the chain and returns the number of records checked. Any
// malformed line, altered record or broken link is ErrJournalBroken.
func (j *Journal) Verify() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	count, prev := 0, ""
	err = scan(file, func(line int, rec *model.JournalRecord, err error) error {
		if err != nil {
			return errclass.ErrJournalBroken.Wrap(err, fmt.Sprintf("line %d", line))
		}
		if rec.PrevHash != prev {
			return errclass.ErrJournalBroken.WithMessagef("line %d: chain broken", line)
		}
		want, err := recordHash(rec)
		if err != nil {
			return err
		}
		if want != rec.RecordHash {
			return errclass.ErrJournalBroken.WithMessagef("line %d: record hash mismatch", line)
		}
		prev = rec.RecordHash
		count++
		return nil
	})
	return count, err
}

func scan(r io.Reader, fn func(line int, rec *model.JournalRecord, err error) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		var rec model.JournalRecord
		err := json.Unmarshal(scanner.Bytes(), &rec)
		if err := fn(line, &rec, err); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}
	return nil
}

func lastHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek journal: %w", err)
	}
	var last string
	// Malformed lines are skipped here; Verify reports them.
	err := scan(file, func(_ int, rec *model.JournalRecord, err error) error {
		if err == nil {
			last = rec.RecordHash
		}
		return nil
	})
	return last, err
}

func recordHash(rec *model.JournalRecord) (string, error) {
	unhashed := *rec
	unhashed.RecordHash = ""
	data, err := canonicalJSON(&unhashed)
	if err != nil {
		return "", fmt.Errorf("canonical marshal: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
