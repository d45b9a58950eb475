// Package ledger maintains the publication ledger and the results transcript.
//
// A run replaces the ledger in two phases. Begin moves the prior ledger to
// its backup name and starts a fresh ledger holding only the header; each
// record is then appended durably; Commit deletes the backup once every row
// has been written. At any instant exactly one file is authoritative: the
// current ledger before Begin, the backup until Commit, the fresh ledger after.
package ledger

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/model"
	"github.com/pubtracker/ackscan/pkg/pathutil"
)

// Decision is how Begin treats the files it finds.
type Decision int

const (
	// DecisionMissing: neither ledger nor backup exists.
	DecisionMissing Decision = iota
	// DecisionCurrent: only the ledger exists.
	DecisionCurrent
	// DecisionStaleBackup: the ledger is complete and the backup is left over
	// from a run that stopped just before deleting it.
	DecisionStaleBackup
	// DecisionRestoreBackup: the ledger is partial; the backup is authoritative.
	DecisionRestoreBackup
	// DecisionBackupOnly: a run stopped between moving the ledger and writing
	// the fresh header.
	DecisionBackupOnly
)

func (d Decision) String() string {
	switch d {
	case DecisionCurrent:
		return "current"
	case DecisionStaleBackup:
		return "stale-backup"
	case DecisionRestoreBackup:
		return "restore-backup"
	case DecisionBackupOnly:
		return "backup-only"
	default:
		return "missing"
	}
}

// Inspection is the read-only view of the ledger files.
type Inspection struct {
	Decision      Decision
	Entries       []model.Entry // authoritative rows
	CurrentExists bool
	BackupExists  bool
	// CurrentErr is why a current ledger was not trusted, if it failed to decode.
	CurrentErr error
	// CurrentRows is the number of rows decoded from the current ledger.
	CurrentRows int
}

// Manager owns the ledger files of one corpus.
type Manager struct {
	corpus *corpus.Corpus
	terms  []string
	logger *logging.Logger
}

// NewManager returns a Manager. terms appear in the transcript header.
func NewManager(c *corpus.Corpus, terms []string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{corpus: c, terms: terms, logger: logger.Named("ledger")}
}

// TranscriptHeader is the first transcript line.
func (m *Manager) TranscriptHeader() string {
	return "# Results of parsing the publications for " + strings.Join(m.terms, ", ")
}

// Inspect reads the ledger and its backup completely without mutating
// anything and decides which one is authoritative.
func (m *Manager) Inspect() (*Inspection, error) {
	cur, curExists, curErr := ReadFile(m.corpus.LedgerPath())
	bak, bakExists, bakErr := ReadFile(m.corpus.BackupPath())

	insp := &Inspection{
		CurrentExists: curExists,
		BackupExists:  bakExists,
		CurrentRows:   len(cur),
	}

	switch {
	case !curExists && !bakExists:
		return insp, errclass.ErrLedgerMissing.WithMessagef("neither %s nor %s exists",
			m.corpus.LedgerPath(), m.corpus.BackupPath())
	case bakExists && bakErr != nil:
		// Without the backup there is no way to tell a complete ledger from
		// a truncated one, so both files are left for the operator.
		return insp, errclass.ErrLedgerCorrupt.Wrap(bakErr,
			"backup "+m.corpus.BackupPath()+" is unreadable; check "+m.corpus.LedgerPath()+" and remove the backup by hand")
	case !bakExists:
		if curErr != nil {
			return insp, curErr
		}
		insp.Decision, insp.Entries = DecisionCurrent, cur
	case !curExists:
		insp.Decision, insp.Entries = DecisionBackupOnly, bak
	case curErr == nil && sameNames(cur, bak):
		insp.Decision, insp.Entries = DecisionStaleBackup, cur
	default:
		insp.Decision, insp.Entries, insp.CurrentErr = DecisionRestoreBackup, bak, curErr
	}

	for _, e := range insp.Entries {
		if err := m.corpus.ValidateEntryName(e.FileName); err != nil {
			return insp, errclass.ErrLedgerCorrupt.Wrap(err, "ledger entry "+e.FileName)
		}
	}
	return insp, nil
}

func sameNames(a, b []model.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pathutil.SameName(a[i].FileName, b[i].FileName) {
			return false
		}
	}
	return true
}

// Begin recovers from any interrupted run, moves the authoritative ledger to
// the backup name, writes a fresh header-only ledger and resets the
// transcript. It returns the rows to process in ledger order.
func (m *Manager) Begin() (*Session, []model.Entry, error) {
	insp, err := m.Inspect()
	if err != nil {
		return nil, nil, err
	}

	ledgerPath, backupPath := m.corpus.LedgerPath(), m.corpus.BackupPath()
	switch insp.Decision {
	case DecisionCurrent:
		if err := fsutil.RenameAndSync(ledgerPath, backupPath); err != nil {
			return nil, nil, errclass.ErrLedgerWrite.Wrap(err, "move ledger to backup")
		}
	case DecisionStaleBackup:
		m.logger.Warn("previous run finished without deleting the backup; discarding it",
			zap.String("backup", backupPath))
		if err := fsutil.RenameAndSync(ledgerPath, backupPath); err != nil {
			return nil, nil, errclass.ErrLedgerWrite.Wrap(err, "replace stale backup")
		}
	case DecisionRestoreBackup:
		fields := []zap.Field{
			zap.String("backup", backupPath),
			zap.String("partial", m.corpus.PartialPath()),
			zap.Int("partial_rows", insp.CurrentRows),
			zap.Int("backup_rows", len(insp.Entries)),
		}
		if insp.CurrentErr != nil {
			fields = append(fields, zap.NamedError("partial_error", insp.CurrentErr))
		}
		m.logger.Warn("previous run was interrupted; restoring from backup", fields...)
		if err := fsutil.RenameAndSync(ledgerPath, m.corpus.PartialPath()); err != nil {
			return nil, nil, errclass.ErrLedgerWrite.Wrap(err, "move partial ledger aside")
		}
	case DecisionBackupOnly:
		m.logger.Warn("previous run stopped before writing a fresh ledger; resuming from backup",
			zap.String("backup", backupPath))
	}

	if err := fsutil.AtomicWrite(ledgerPath, EncodeHeader(), 0644); err != nil {
		return nil, nil, errclass.ErrLedgerWrite.Wrap(err, "write fresh ledger")
	}
	if err := fsutil.AtomicWrite(m.corpus.TranscriptPath(), []byte(m.TranscriptHeader()+"\n"), 0644); err != nil {
		return nil, nil, errclass.ErrLedgerWrite.Wrap(err, "reset transcript")
	}

	m.logger.Info("ledger opened",
		zap.Stringer("decision", insp.Decision),
		zap.Int("rows", len(insp.Entries)),
	)
	return &Session{m: m, expected: len(insp.Entries)}, insp.Entries, nil
}

// Session is one run's write phase.
type Session struct {
	m         *Manager
	mu        sync.Mutex
	expected  int
	appended  int
	committed bool
}

// Append writes one ledger row and one transcript line. Both are fsynced
// before Append returns.
func (s *Session) Append(entry model.Entry, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return errclass.ErrLedgerWrite.WithMessage("session already committed")
	}
	if err := fsutil.AppendExistingSync(s.m.corpus.LedgerPath(), EncodeRow(entry)); err != nil {
		return errclass.ErrLedgerWrite.Wrap(err, "append ledger row")
	}
	if err := fsutil.AppendSync(s.m.corpus.TranscriptPath(), []byte(message+"\n"), 0644); err != nil {
		return errclass.ErrLedgerWrite.Wrap(err, "append transcript")
	}
	s.appended++
	return nil
}

// Commit deletes the backup. It refuses while rows are missing.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return nil
	}
	if s.appended != s.expected {
		return errclass.ErrLedgerIncomplete.WithMessagef("%d of %d rows written", s.appended, s.expected)
	}
	if err := fsutil.RemoveAndSync(s.m.corpus.BackupPath()); err != nil {
		return errclass.ErrLedgerWrite.Wrap(err, "delete backup")
	}
	s.committed = true
	s.m.logger.Info("ledger committed", zap.Int("rows", s.appended))
	return nil
}

// Appended returns the number of rows written so far.
func (s *Session) Appended() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended
}

// Expected returns the number of rows Begin loaded.
func (s *Session) Expected() int {
	return s.expected
}
