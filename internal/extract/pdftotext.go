package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/pubtracker/ackscan/pkg/logging"
)

// Pdftotext runs poppler's pdftotext.
type Pdftotext struct {
	binary string
	runner Runner
	logger *logging.Logger
}

// NewPdftotext returns a backend running binary through runner. A nil runner
// executes the real command.
func NewPdftotext(binary string, runner Runner, logger *logging.Logger) *Pdftotext {
	if binary == "" {
		binary = "pdftotext"
	}
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pdftotext{binary: binary, runner: runner, logger: logger}
}

func (p *Pdftotext) Name() string { return "pdftotext" }

func (p *Pdftotext) ExtractText(ctx context.Context, path string) (string, error) {
	// pdftotext -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.binary, p.logger, "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", fmt.Errorf("%w: %s", err, truncate(msg, 512))
		}
		return "", err
	}
	return string(out), nil
}
