package doctor_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/internal/audit"
	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/doctor"
	"github.com/pubtracker/ackscan/internal/ledger"
	"github.com/pubtracker/ackscan/internal/lock"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/model"
)

func setupCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	cfg := config.Default()
	cfg.CorpusRoot = t.TempDir()
	c, err := corpus.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(c.LogDir(), 0755))
	return c
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func healthyCorpus(t *testing.T) *corpus.Corpus {
	c := setupCorpus(t)
	write(t, c.EntryPath("a.txt"), "a")
	write(t, filepath.Join(c.Root, "a_full.xml"), "<article/>")
	write(t, c.CitationPath("a"), "ris")
	write(t, c.EntryPath("b.txt"), "b")
	write(t, c.LedgerPath(), string(ledger.Encode([]model.Entry{
		{FileName: "a.txt", AsXML: true, Acknowledged: model.FlagTrue},
		{FileName: "b.txt", Acknowledged: model.FlagFalse},
	})))
	return c
}

func categories(r *doctor.Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	c := healthyCorpus(t)

	result, err := doctor.NewDoctor(c).Check(true)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
	assert.Equal(t, "current", result.Decision)
	assert.Equal(t, 2, result.Rows)
}

func TestDoctor_Check_MissingLedger(t *testing.T) {
	c := setupCorpus(t)

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, doctor.SeverityCritical, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "E_LEDGER_MISSING")
}

func TestDoctor_Check_CorruptLedger(t *testing.T) {
	c := setupCorpus(t)
	write(t, c.LedgerPath(), "name,flag\n")

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Findings[0].Description, "E_LEDGER_CORRUPT")
}

func TestDoctor_Check_InterruptedRun(t *testing.T) {
	c := healthyCorpus(t)
	require.NoError(t, os.Rename(c.LedgerPath(), c.BackupPath()))
	write(t, c.LedgerPath(), string(ledger.EncodeHeader()))
	write(t, c.PartialPath(), "leftover")

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Equal(t, "restore-backup", result.Decision)
	assert.Equal(t, []string{"ledger", "ledger"}, categories(result))
	assert.Contains(t, result.Findings[0].Description, "after 0 of 2 rows")
	assert.Equal(t, c.PartialPath(), result.Findings[1].Path)

	// Nothing was touched.
	assert.FileExists(t, c.BackupPath())
	assert.Equal(t, string(ledger.EncodeHeader()), mustRead(t, c.LedgerPath()))
}

func TestDoctor_Check_BackupOnly(t *testing.T) {
	c := healthyCorpus(t)
	require.NoError(t, os.Rename(c.LedgerPath(), c.BackupPath()))

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.Equal(t, "backup-only", result.Decision)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, doctor.SeverityWarning, result.Findings[0].Severity)
}

func TestDoctor_Check_Locks(t *testing.T) {
	c := healthyCorpus(t)
	_, err := lock.NewManager(c, time.Hour, nil).Acquire("run-1", "scan")
	require.NoError(t, err)

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "lock", result.Findings[0].Category)
	assert.Equal(t, doctor.SeverityWarning, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "run-1")

	// Rewrite the record as long expired.
	rec := model.LockRecord{RunID: "run-1", HolderNonce: "n", ExpiresAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	write(t, c.LockPath(), string(data))

	result, err = doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, doctor.SeverityInfo, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "expired")
}

func TestDoctor_Check_MissingArtifacts(t *testing.T) {
	c := healthyCorpus(t)
	require.NoError(t, os.Remove(filepath.Join(c.Root, "a_full.xml")))
	require.NoError(t, os.Remove(c.CitationPath("a")))
	require.NoError(t, os.Remove(c.EntryPath("b.txt")))

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.ElementsMatch(t, []string{"fulltext", "citation", "corpus"}, categories(result))
}

func TestDoctor_Check_OrphanTmp(t *testing.T) {
	c := healthyCorpus(t)
	write(t, filepath.Join(c.LogDir(), fsutil.TmpPrefix+"123"), "")

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "tmp", result.Findings[0].Category)
	assert.Equal(t, doctor.SeverityInfo, result.Findings[0].Severity)
}

func TestDoctor_Check_StrictJournal(t *testing.T) {
	c := healthyCorpus(t)
	j := audit.NewJournal(c.JournalPath())
	require.NoError(t, j.Append(model.EventRunStarted, "run-1", nil))
	f, err := os.OpenFile(c.JournalPath(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	result, err := doctor.NewDoctor(c).Check(false)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)

	result, err = doctor.NewDoctor(c).Check(true)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "journal", result.Findings[0].Category)
	assert.Contains(t, result.Findings[0].Description, "E_JOURNAL_BROKEN")
}

func TestDoctor_Check_StrictPDF(t *testing.T) {
	c := healthyCorpus(t)
	write(t, c.EntryPath("p.txt"), "p")
	write(t, filepath.Join(c.Root, "p.pdf"), "this is not a pdf")
	write(t, c.LedgerPath(), string(ledger.Encode([]model.Entry{{FileName: "p.txt", AsPDF: true}})))

	result, err := doctor.NewDoctor(c).Check(true)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "fulltext", result.Findings[0].Category)
	assert.Equal(t, doctor.SeverityError, result.Findings[0].Severity)
	assert.True(t, result.Healthy)
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
