package extract

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pubtracker/ackscan/pkg/errclass"
)

func init() {
	// Keep pdfcpu from creating a configuration directory in the user's home.
	api.DisableConfigDir()
}

// Preflight validates the PDF structure leniently and returns its page count.
func Preflight(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return 0, errclass.ErrExtractionFailed.Wrap(err, "pdf preflight")
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, errclass.ErrExtractionFailed.Wrap(err, "pdf page count")
	}
	return pages, nil
}
