// Package pipeline runs the acknowledgment audit over every ledger row.
//
// Records are processed one at a time in ledger order. Per-record failures
// (extraction, sidecar, publishing) are recorded in the transcript and the
// run continues; ledger failures stop the run before the backup is released.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/audit"
	"github.com/pubtracker/ackscan/internal/classify"
	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/extract"
	"github.com/pubtracker/ackscan/internal/ledger"
	"github.com/pubtracker/ackscan/internal/locate"
	"github.com/pubtracker/ackscan/internal/publish"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/metrics"
	"github.com/pubtracker/ackscan/pkg/model"
	"github.com/pubtracker/ackscan/pkg/progress"
	"github.com/pubtracker/ackscan/pkg/uuidutil"
)

// Publisher copies the artifacts of an acknowledged record.
type Publisher interface {
	Publish(rec *model.Record) (*publish.Result, error)
}

// PublishFailure is one record whose artifacts were not all copied.
type PublishFailure struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// Summary describes a finished or aborted run.
type Summary struct {
	RunID              string           `json:"run_id"`
	Total              int              `json:"total"`
	Processed          int              `json:"processed"`
	Acknowledged       int              `json:"acknowledged"`
	NotAcknowledged    int              `json:"not_acknowledged"`
	NoFulltext         int              `json:"no_fulltext"`
	ExtractionFailures int              `json:"extraction_failures"`
	SidecarFailures    int              `json:"sidecar_failures"`
	PublishFailures    []PublishFailure `json:"publish_failures,omitempty"`
	Committed          bool             `json:"committed"`
	Duration           time.Duration    `json:"duration_ns"`
}

// Processor wires the audit components for one corpus.
type Processor struct {
	corpus     *corpus.Corpus
	ledger     *ledger.Manager
	extractor  extract.Extractor
	locator    *locate.Locator
	classifier *classify.Classifier
	publisher  Publisher
	journal    *audit.Journal
	metrics    *metrics.Registry
	progress   progress.Callback
	label      string
	runID      string
	logger     *logging.Logger
}

// Option customizes a Processor.
type Option func(*Processor)

// WithPublisher replaces the default publisher.
func WithPublisher(p Publisher) Option {
	return func(pr *Processor) { pr.publisher = p }
}

// WithMetrics records run metrics in r instead of the process default.
func WithMetrics(r *metrics.Registry) Option {
	return func(pr *Processor) { pr.metrics = r }
}

// WithProgress reports per-record progress to cb.
func WithProgress(cb progress.Callback) Option {
	return func(pr *Processor) { pr.progress = cb }
}

// WithRunID fixes the run identifier, which is otherwise a fresh UUID.
func WithRunID(id string) Option {
	return func(pr *Processor) { pr.runID = id }
}

// New builds a Processor for c. Locator and classifier parameters come from
// the corpus configuration.
func New(c *corpus.Corpus, ex extract.Extractor, logger *logging.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg := c.Config()
	p := &Processor{
		corpus:     c,
		extractor:  ex,
		locator:    locate.New(cfg.PDFWindow, cfg.CuePhraseList),
		classifier: classify.New(cfg.TermList),
		journal:    audit.NewJournal(c.JournalPath()),
		label:      cfg.EntityLabel,
		runID:      uuidutil.NewV4(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.Named("pipeline").With(zap.String("run_id", p.runID))
	p.ledger = ledger.NewManager(c, cfg.TermList, p.logger)
	if p.publisher == nil {
		p.publisher = publish.New(c, p.logger)
	}
	if p.metrics == nil {
		p.metrics = metrics.Default()
	}
	if p.progress == nil {
		p.progress = progress.Noop
	}
	return p
}

// RunID returns the identifier stamped on this processor's logs and journal.
func (p *Processor) RunID() string {
	return p.runID
}

// Run processes every ledger row and commits the new ledger. On cancellation
// it returns ctx.Err() without committing; the backup stays authoritative and
// the next run starts over from it.
func (p *Processor) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: p.runID}

	session, entries, err := p.ledger.Begin()
	if err != nil {
		return sum, err
	}
	sum.Total = len(entries)
	p.journalEvent(model.EventRunStarted, map[string]any{"rows": len(entries)})
	p.logger.Info("run started", zap.Int("rows", len(entries)), zap.String("corpus", p.corpus.Root))

	prog := progress.New("scan", len(entries), p.progress)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return p.abort(sum, start, err)
		}

		rec, message, err := p.process(ctx, entry, sum)
		if err != nil {
			return p.abort(sum, start, err)
		}
		if err := session.Append(rec.Entry(), message); err != nil {
			return p.abort(sum, start, err)
		}
		sum.Processed++
		prog.Increment(rec.FileName)
	}

	if err := session.Commit(); err != nil {
		return p.abort(sum, start, err)
	}
	sum.Committed = true
	sum.Duration = time.Since(start)
	prog.Done("")

	p.journalEvent(model.EventRunCommitted, map[string]any{
		"rows":             sum.Processed,
		"acknowledged":     sum.Acknowledged,
		"not_acknowledged": sum.NotAcknowledged,
		"no_fulltext":      sum.NoFulltext,
		"publish_failures": len(sum.PublishFailures),
	})
	p.logger.Info("run committed",
		zap.Int("rows", sum.Processed),
		zap.Int("acknowledged", sum.Acknowledged),
		zap.Int("publish_failures", len(sum.PublishFailures)),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (p *Processor) abort(sum *Summary, start time.Time, err error) (*Summary, error) {
	sum.Duration = time.Since(start)
	p.journalEvent(model.EventRunAborted, map[string]any{
		"processed": sum.Processed,
		"error":     err.Error(),
	})
	p.logger.Error("run aborted; backup ledger left in place",
		zap.Int("processed", sum.Processed),
		zap.Int("total", sum.Total),
		zap.Error(err),
	)
	return sum, err
}

// The journal is informational; failing to write it never fails a run.
func (p *Processor) journalEvent(event model.EventType, details map[string]any) {
	if err := p.journal.Append(event, p.runID, details); err != nil {
		p.logger.Warn("journal append failed", zap.String("event", string(event)), zap.Error(err))
	}
}

// process handles one ledger row and returns the sealed record and its
// transcript line. Only cancellation during extraction is returned as an error.
func (p *Processor) process(ctx context.Context, entry model.Entry, sum *Summary) (*model.Record, string, error) {
	rec := model.NewRecord(entry, p.corpus.Root)
	log := p.logger.With(zap.String("file", rec.FileName), zap.Stringer("format", rec.Format))

	if !rec.HasFulltext() {
		if err := rec.SetVerdict(false); err != nil {
			return nil, "", err
		}
		sum.NoFulltext++
		p.metrics.RecordResult(rec.Format.String(), metrics.VerdictNoFulltext)
		log.Debug("no fulltext")
		return rec, fmt.Sprintf("%s has no fulltext to parse.", rec.FileName), nil
	}

	var failures string

	begin := time.Now()
	content, err := p.extractor.Extract(ctx, rec.FulltextPath, rec.Format)
	p.metrics.RecordExtraction(rec.Format.String(), time.Since(begin), err)

	passage, strategy := "", locate.StrategyNone
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		sum.ExtractionFailures++
		failures += " Extraction failed: " + err.Error()
		log.Warn("extraction failed", zap.Error(err))
	} else {
		passage, strategy = p.locator.Locate(content)
	}
	if err := rec.SetPassage(passage); err != nil {
		return nil, "", err
	}

	sidecarOK := true
	if err := fsutil.AtomicWrite(p.corpus.SidecarPath(rec.Stem()), []byte(passage), 0644); err != nil {
		sidecarOK = false
		sum.SidecarFailures++
		failures += " Sidecar write failed: " + err.Error()
		log.Warn("sidecar write failed", zap.Error(err))
	}

	term, matched := "", false
	if sidecarOK {
		term, matched = p.classifier.Match(rec.Passage())
	}
	if err := rec.SetVerdict(matched); err != nil {
		return nil, "", err
	}

	log.Info("record scanned",
		zap.String("strategy", string(strategy)),
		zap.Bool("verdict", matched),
		zap.String("term", term),
		zap.Int("passage_len", len(passage)),
	)

	var message string
	if matched {
		sum.Acknowledged++
		p.metrics.RecordResult(rec.Format.String(), metrics.VerdictAcknowledged)
		message = fmt.Sprintf("%s has been scanned: %s has been acknowledged.", rec.FulltextPath, p.label)

		if _, err := p.publisher.Publish(rec); err != nil {
			p.metrics.RecordPublishError()
			sum.PublishFailures = append(sum.PublishFailures, PublishFailure{FileName: rec.FileName, Error: err.Error()})
			failures += " Publishing failed: " + err.Error()
			log.Warn("publishing failed", zap.Error(err))
		}
	} else {
		sum.NotAcknowledged++
		p.metrics.RecordResult(rec.Format.String(), metrics.VerdictNotAcknowledged)
		message = fmt.Sprintf("%s has been scanned: %s is not acknowledged.", rec.FulltextPath, p.label)
	}
	return rec, message + failures, nil
}
