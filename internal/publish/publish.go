// Package publish copies the artifacts of acknowledged publications into the
// corpus output bucket.
package publish

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/model"
)

// Result lists what a Publish call copied.
type Result struct {
	// Copied holds destination paths in copy order.
	Copied []string
	// Complete is true when every artifact was copied.
	Complete bool
}

// Publisher copies artifacts for one corpus.
type Publisher struct {
	corpus *corpus.Corpus
	logger *logging.Logger
}

// New returns a Publisher for c.
func New(c *corpus.Corpus, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Publisher{corpus: c, logger: logger.Named("publish")}
}

// Artifacts returns the source paths Publish copies for rec, in order: the
// acknowledgment sidecar, the entry file, the fulltext and the citation.
func (p *Publisher) Artifacts(rec *model.Record) []string {
	stem := rec.Stem()
	paths := []string{
		p.corpus.SidecarPath(stem),
		p.corpus.EntryPath(rec.FileName),
	}
	if rec.HasFulltext() {
		paths = append(paths, rec.FulltextPath)
	}
	return append(paths, p.corpus.CitationPath(stem))
}

// Publish copies every artifact of rec into the output directory, overwriting
// earlier copies. A failed copy does not stop the ones after it.
func (p *Publisher) Publish(rec *model.Record) (*Result, error) {
	res := &Result{}
	if err := p.corpus.EnsureOutputDir(); err != nil {
		return res, errclass.ErrPublishFailed.Wrap(err, rec.FileName)
	}

	var errs []error
	for _, src := range p.Artifacts(rec) {
		dst := p.corpus.OutputPath(filepath.Base(src))
		if err := fsutil.CopyFile(src, dst); err != nil {
			p.logger.Warn("copy failed", zap.String("file", rec.FileName), zap.String("src", src), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		res.Copied = append(res.Copied, dst)
	}

	if len(errs) > 0 {
		return res, errclass.ErrPublishFailed.Wrap(errors.Join(errs...),
			fmt.Sprintf("%d of %d artifacts of %s", len(errs), len(errs)+len(res.Copied), rec.FileName))
	}
	res.Complete = true
	p.logger.Debug("published", zap.String("file", rec.FileName), zap.Int("artifacts", len(res.Copied)))
	return res, nil
}
