// Package corpus derives every path of a publication corpus from its root and
// the configured layout.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/model"
	"github.com/pubtracker/ackscan/pkg/pathutil"
)

const (
	BackupExt     = config.BackupExt
	PartialSuffix = config.PartialSuffix
	// LockFile lives in the log directory while a run holds the corpus.
	LockFile    = config.LockFileName
	JournalFile = config.JournalFileName
)

// Corpus is an opened corpus directory.
type Corpus struct {
	Root string
	cfg  *config.Config
}

// Open resolves cfg.CorpusRoot and checks that it is a directory.
func Open(cfg *config.Config) (*Corpus, error) {
	root, err := filepath.Abs(cfg.CorpusRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.Wrap(err, "corpus root")
	}
	if !info.IsDir() {
		return nil, errclass.ErrConfigInvalid.WithMessagef("corpus root %s is not a directory", root)
	}
	return &Corpus{Root: root, cfg: cfg}, nil
}

// Discover walks up from start to the first directory holding a ledger or a
// ledger backup in its log subdirectory.
func Discover(start string, cfg *config.Config) (*Corpus, error) {
	path, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", start, err)
	}
	for {
		c := &Corpus{Root: path, cfg: cfg}
		if isFile(c.LedgerPath()) || isFile(c.BackupPath()) {
			return c, nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrLedgerMissing.WithMessagef(
				"no corpus found (no %s/%s in parent directories of %s)", cfg.LogSubdirectory, cfg.LedgerFile, start)
		}
		path = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Config returns the configuration the corpus was opened with.
func (c *Corpus) Config() *config.Config {
	return c.cfg
}

// LogDir holds the ledger, its backup, the transcript and the run lock.
func (c *Corpus) LogDir() string {
	return filepath.Join(c.Root, c.cfg.LogSubdirectory)
}

func (c *Corpus) LedgerPath() string {
	return filepath.Join(c.LogDir(), c.cfg.LedgerFile)
}

// BackupPath is the ledger path with its extension replaced by .old.
func (c *Corpus) BackupPath() string {
	return filepath.Join(c.LogDir(), pathutil.Stem(c.cfg.LedgerFile)+BackupExt)
}

func (c *Corpus) PartialPath() string {
	return c.LedgerPath() + PartialSuffix
}

func (c *Corpus) TranscriptPath() string {
	return filepath.Join(c.LogDir(), c.cfg.TranscriptFile)
}

func (c *Corpus) LockPath() string {
	return filepath.Join(c.LogDir(), LockFile)
}

func (c *Corpus) JournalPath() string {
	return filepath.Join(c.LogDir(), JournalFile)
}

// OutputDir is the bucket acknowledged publications are copied into.
func (c *Corpus) OutputDir() string {
	return filepath.Join(c.Root, c.cfg.OutputSubdirectory)
}

// EntryPath is the path of the ledger entry's own file.
func (c *Corpus) EntryPath(fileName string) string {
	return filepath.Join(c.Root, fileName)
}

// SidecarPath is the acknowledgment text file for stem.
func (c *Corpus) SidecarPath(stem string) string {
	return filepath.Join(c.Root, model.SidecarName(stem))
}

// CitationPath is the citation sidecar for stem.
func (c *Corpus) CitationPath(stem string) string {
	return filepath.Join(c.Root, stem+c.cfg.CitationExtension)
}

// OutputPath is where a file named name is published.
func (c *Corpus) OutputPath(name string) string {
	return filepath.Join(c.OutputDir(), name)
}

// ValidateEntryName checks a ledger file name and that its derived paths stay
// inside the corpus root.
func (c *Corpus) ValidateEntryName(name string) error {
	if err := pathutil.ValidateFileName(name); err != nil {
		return err
	}
	return pathutil.ValidatePathSafety(c.Root, c.EntryPath(name))
}

// EnsureOutputDir creates the output bucket if needed.
func (c *Corpus) EnsureOutputDir() error {
	if err := os.MkdirAll(c.OutputDir(), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
