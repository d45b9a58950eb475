// Package extract turns fulltext files into content the locator can search:
// an element tree for XML and a plain text blob for PDF.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/xmltree"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/model"
)

// Content is the extracted form of one fulltext.
type Content struct {
	Format   model.Format
	Root     *xmltree.Node // FormatXML
	Text     string        // FormatPDF
	Pages    int           // 0 when unknown
	Method   string
	Duration time.Duration
}

// Extractor produces Content for a fulltext path.
type Extractor interface {
	Extract(ctx context.Context, path string, format model.Format) (*Content, error)
}

// PDFBackend converts a PDF into text.
type PDFBackend interface {
	Name() string
	ExtractText(ctx context.Context, path string) (string, error)
}

// Service is the Extractor used by runs. It dispatches on the record format.
type Service struct {
	backend   PDFBackend
	preflight bool
	timeout   time.Duration
	logger    *logging.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithPDFBackend replaces the configured PDF backend.
func WithPDFBackend(b PDFBackend) Option {
	return func(s *Service) { s.backend = b }
}

// NewService builds a Service from the extractor section of cfg.
func NewService(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	timeout, err := cfg.ExtractionTimeout()
	if err != nil {
		return nil, err
	}
	s := &Service{
		preflight: cfg.Extractor.Preflight,
		timeout:   timeout,
		logger:    logger.Named("extract"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend, err = NewPDFBackend(cfg.Extractor, s.logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewPDFBackend selects the backend named by cfg.PDFBackend.
func NewPDFBackend(cfg config.ExtractorConfig, logger *logging.Logger) (PDFBackend, error) {
	switch cfg.PDFBackend {
	case config.BackendPdftotext:
		return NewPdftotext(cfg.Pdftotext, nil, logger), nil
	case config.BackendNative:
		return Native{}, nil
	case config.BackendTika:
		return NewTika(cfg.TikaURL, nil), nil
	default:
		return nil, errclass.ErrConfigInvalid.WithMessagef("unknown pdf backend %q", cfg.PDFBackend)
	}
}

// Extract reads the fulltext at path.
func (s *Service) Extract(ctx context.Context, path string, format model.Format) (*Content, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		content *Content
		err     error
	)
	switch format {
	case model.FormatXML:
		content, err = extractXML(path)
	case model.FormatPDF:
		content, err = s.extractPDF(ctx, path)
	default:
		return nil, errclass.ErrFormatUnsupported.WithMessagef("no extractor for format %s", format)
	}
	if err != nil {
		s.logger.Debug("extraction failed", zap.String("path", path), zap.Stringer("format", format), zap.Error(err))
		return nil, err
	}
	content.Duration = time.Since(start)
	s.logger.Debug("extracted",
		zap.String("path", path),
		zap.String("method", content.Method),
		zap.Int("pages", content.Pages),
		zap.Duration("duration", content.Duration),
	)
	return content, nil
}

func extractXML(path string) (*Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errclass.ErrExtractionFailed.Wrap(err, "open fulltext")
	}
	defer f.Close()

	root, err := xmltree.Parse(f)
	if err != nil {
		return nil, err
	}
	return &Content{Format: model.FormatXML, Root: root, Method: "xml"}, nil
}

func (s *Service) extractPDF(ctx context.Context, path string) (*Content, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errclass.ErrExtractionFailed.Wrap(err, "stat fulltext")
	}

	// A PDF pdfcpu rejects may still be readable by the text backend.
	pages := 0
	if s.preflight {
		n, err := Preflight(path)
		if err != nil {
			s.logger.Warn("pdf preflight failed; extracting anyway",
				zap.String("path", path),
				zap.String("backend", s.backend.Name()),
				zap.Error(err),
			)
		} else {
			pages = n
		}
	}

	text, err := s.backend.ExtractText(ctx, path)
	if err != nil {
		return nil, errclass.ErrExtractionFailed.Wrap(err, fmt.Sprintf("%s backend", s.backend.Name()))
	}
	return &Content{
		Format: model.FormatPDF,
		Text:   strings.ReplaceAll(text, "\r\n", "\n"),
		Pages:  pages,
		Method: s.backend.Name(),
	}, nil
}
