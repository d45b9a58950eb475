// Package doctor inspects a corpus for interrupted runs, stale locks and
// missing artifacts without modifying anything.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pubtracker/ackscan/internal/audit"
	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/extract"
	"github.com/pubtracker/ackscan/internal/ledger"
	"github.com/pubtracker/ackscan/internal/lock"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/model"
)

// Severity levels. Only critical findings make a corpus unhealthy.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Decision string    `json:"decision,omitempty"`
	Rows     int       `json:"rows"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityCritical {
		r.Healthy = false
	}
}

// Doctor performs corpus health checks.
type Doctor struct {
	corpus *corpus.Corpus
}

// NewDoctor creates a new doctor.
func NewDoctor(c *corpus.Corpus) *Doctor {
	return &Doctor{corpus: c}
}

// Check runs all diagnostic checks. strict adds the journal chain
// verification and a structural check of every PDF fulltext.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	entries := d.checkLedger(result)
	d.checkPartial(result)
	d.checkLock(result)
	d.checkArtifacts(result, entries)
	d.checkOrphanTmp(result)

	if strict {
		d.checkJournal(result)
		d.checkPDFs(result, entries)
	}
	return result, nil
}

func (d *Doctor) checkLedger(result *Result) []model.Entry {
	insp, err := ledger.NewManager(d.corpus, nil, nil).Inspect()
	if err != nil {
		result.add(Finding{
			Category:    "ledger",
			Description: err.Error(),
			Severity:    SeverityCritical,
			Path:        d.corpus.LedgerPath(),
		})
		return nil
	}

	result.Decision = insp.Decision.String()
	result.Rows = len(insp.Entries)

	switch insp.Decision {
	case ledger.DecisionStaleBackup:
		result.add(Finding{
			Category:    "ledger",
			Description: "previous run finished but left its backup; the next run discards it",
			Severity:    SeverityWarning,
			Path:        d.corpus.BackupPath(),
		})
	case ledger.DecisionRestoreBackup:
		desc := fmt.Sprintf("previous run was interrupted after %d of %d rows; the next run restores the backup",
			insp.CurrentRows, len(insp.Entries))
		if insp.CurrentErr != nil {
			desc += fmt.Sprintf(" (current ledger unreadable: %v)", insp.CurrentErr)
		}
		result.add(Finding{
			Category:    "ledger",
			Description: desc,
			Severity:    SeverityWarning,
			Path:        d.corpus.BackupPath(),
		})
	case ledger.DecisionBackupOnly:
		result.add(Finding{
			Category:    "ledger",
			Description: "only the backup ledger exists; the next run resumes from it",
			Severity:    SeverityWarning,
			Path:        d.corpus.BackupPath(),
		})
	}
	return insp.Entries
}

func (d *Doctor) checkPartial(result *Result) {
	path := d.corpus.PartialPath()
	if _, err := os.Stat(path); err == nil {
		result.add(Finding{
			Category:    "ledger",
			Description: "partial ledger kept from an interrupted run",
			Severity:    SeverityInfo,
			Path:        path,
		})
	}
}

func (d *Doctor) checkLock(result *Result) {
	state, rec, err := lock.NewManager(d.corpus, 0, nil).Status()
	if err != nil {
		result.add(Finding{
			Category:    "lock",
			Description: fmt.Sprintf("unreadable run lock: %v", err),
			Severity:    SeverityError,
			Path:        d.corpus.LockPath(),
		})
		return
	}
	switch state {
	case model.LockStateHeld:
		result.add(Finding{
			Category: "lock",
			Description: fmt.Sprintf("run %s (pid %d on %s) holds the corpus until %s",
				rec.RunID, rec.PID, rec.Hostname, rec.ExpiresAt.Format(time.RFC3339)),
			Severity: SeverityWarning,
			Path:     d.corpus.LockPath(),
		})
	case model.LockStateExpired:
		result.add(Finding{
			Category:    "lock",
			Description: fmt.Sprintf("expired lock of run %s (since %s)", rec.RunID, rec.ExpiresAt.Format(time.RFC3339)),
			Severity:    SeverityInfo,
			Path:        d.corpus.LockPath(),
		})
	}
}

func (d *Doctor) checkArtifacts(result *Result, entries []model.Entry) {
	for _, e := range entries {
		rec := model.NewRecord(e, d.corpus.Root)
		if !fsutil.Exists(d.corpus.EntryPath(e.FileName)) {
			result.add(Finding{
				Category:    "corpus",
				Description: fmt.Sprintf("entry file %s is missing", e.FileName),
				Severity:    SeverityWarning,
				Path:        d.corpus.EntryPath(e.FileName),
			})
		}
		if rec.HasFulltext() && !fsutil.Exists(rec.FulltextPath) {
			result.add(Finding{
				Category:    "fulltext",
				Description: fmt.Sprintf("%s fulltext of %s is missing", rec.Format, e.FileName),
				Severity:    SeverityWarning,
				Path:        rec.FulltextPath,
			})
		}
		if e.Acknowledged == model.FlagTrue && !fsutil.Exists(d.corpus.CitationPath(rec.Stem())) {
			result.add(Finding{
				Category:    "citation",
				Description: fmt.Sprintf("acknowledged %s has no citation file", e.FileName),
				Severity:    SeverityWarning,
				Path:        d.corpus.CitationPath(rec.Stem()),
			})
		}
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	for _, dir := range []string{d.corpus.Root, d.corpus.LogDir(), d.corpus.OutputDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), fsutil.TmpPrefix) {
				result.add(Finding{
					Category:    "tmp",
					Description: fmt.Sprintf("orphan temp file: %s", entry.Name()),
					Severity:    SeverityInfo,
					Path:        filepath.Join(dir, entry.Name()),
				})
			}
		}
	}
}

func (d *Doctor) checkJournal(result *Result) {
	if _, err := audit.NewJournal(d.corpus.JournalPath()).Verify(); err != nil {
		result.add(Finding{
			Category:    "journal",
			Description: err.Error(),
			Severity:    SeverityError,
			Path:        d.corpus.JournalPath(),
		})
	}
}

func (d *Doctor) checkPDFs(result *Result, entries []model.Entry) {
	for _, e := range entries {
		rec := model.NewRecord(e, d.corpus.Root)
		if rec.Format != model.FormatPDF || !fsutil.Exists(rec.FulltextPath) {
			continue
		}
		if _, err := extract.Preflight(rec.FulltextPath); err != nil {
			result.add(Finding{
				Category:    "fulltext",
				Description: fmt.Sprintf("PDF fulltext of %s fails validation: %v", e.FileName, err),
				Severity:    SeverityError,
				Path:        rec.FulltextPath,
			})
		}
	}
}
