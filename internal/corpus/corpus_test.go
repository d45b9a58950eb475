package corpus_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/errclass"
)

func openCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	cfg := config.Default()
	cfg.CorpusRoot = t.TempDir()
	c, err := corpus.Open(cfg)
	require.NoError(t, err)
	return c
}

func TestOpen_Paths(t *testing.T) {
	c := openCorpus(t)
	root := c.Root

	assert.Equal(t, filepath.Join(root, "logs"), c.LogDir())
	assert.Equal(t, filepath.Join(root, "logs", "publications_log.csv"), c.LedgerPath())
	assert.Equal(t, filepath.Join(root, "logs", "publications_log.old"), c.BackupPath())
	assert.Equal(t, filepath.Join(root, "logs", "publications_log.csv.partial"), c.PartialPath())
	assert.Equal(t, filepath.Join(root, "logs", "results_log.txt"), c.TranscriptPath())
	assert.Equal(t, filepath.Join(root, "logs", ".ackscan.lock"), c.LockPath())
	assert.Equal(t, filepath.Join(root, "bic_acknowledged"), c.OutputDir())
	assert.Equal(t, filepath.Join(root, "123.txt"), c.EntryPath("123.txt"))
	assert.Equal(t, filepath.Join(root, "123_ack.txt"), c.SidecarPath("123"))
	assert.Equal(t, filepath.Join(root, "123.ris"), c.CitationPath("123"))
	assert.Equal(t, filepath.Join(root, "bic_acknowledged", "123.pdf"), c.OutputPath("123.pdf"))
}

func TestOpen_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.CorpusRoot = filepath.Join(t.TempDir(), "absent")
	_, err := corpus.Open(cfg)
	require.ErrorIs(t, err, errclass.ErrConfigInvalid)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	cfg.CorpusRoot = file
	_, err = corpus.Open(cfg)
	require.ErrorIs(t, err, errclass.ErrConfigInvalid)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logs", "publications_log.csv"), []byte("h\n"), 0644))
	nested := filepath.Join(root, "bic_acknowledged", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))

	c, err := corpus.Discover(nested, config.Default())
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(c.Root)
	assert.Equal(t, resolved, got)
}

func TestDiscover_FindsBackupOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logs", "publications_log.old"), []byte("h\n"), 0644))

	c, err := corpus.Discover(root, config.Default())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Root, "logs", "publications_log.old"), c.BackupPath())
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := corpus.Discover(t.TempDir(), config.Default())
	require.ErrorIs(t, err, errclass.ErrLedgerMissing)
}

func TestValidateEntryName(t *testing.T) {
	c := openCorpus(t)

	require.NoError(t, c.ValidateEntryName("PMC123.txt"))
	require.NoError(t, c.ValidateEntryName("Müller 2020.txt"))
	require.ErrorIs(t, c.ValidateEntryName("../escape.txt"), errclass.ErrNameInvalid)
	require.ErrorIs(t, c.ValidateEntryName(".."), errclass.ErrNameInvalid)
	require.ErrorIs(t, c.ValidateEntryName(""), errclass.ErrNameInvalid)
}

func TestValidateEntryName_SymlinkEscape(t *testing.T) {
	c := openCorpus(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(c.Root, "link.txt")))

	require.ErrorIs(t, c.ValidateEntryName("link.txt"), errclass.ErrPathEscape)
}

func TestEnsureOutputDir(t *testing.T) {
	c := openCorpus(t)
	require.NoError(t, c.EnsureOutputDir())
	require.NoError(t, c.EnsureOutputDir())
	assert.DirExists(t, c.OutputDir())
}
