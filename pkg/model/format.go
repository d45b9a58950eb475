package model

import "fmt"

// Format is the exclusive fulltext format of a publication.
type Format int

const (
	FormatNone Format = iota
	FormatXML
	FormatPDF
)

// FormatFromFlags folds the two ledger flags into one Format. XML wins when
// both are set, matching the fulltext path the retrieval step resolves first.
func FormatFromFlags(asXML, asPDF bool) Format {
	switch {
	case asXML:
		return FormatXML
	case asPDF:
		return FormatPDF
	default:
		return FormatNone
	}
}

// Flags is the inverse of FormatFromFlags.
func (f Format) Flags() (asXML, asPDF bool) {
	return f == FormatXML, f == FormatPDF
}

// HasFulltext reports whether a fulltext file is expected for f.
func (f Format) HasFulltext() bool {
	return f == FormatXML || f == FormatPDF
}

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatPDF:
		return "pdf"
	case FormatNone:
		return "none"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FulltextName derives the fulltext file name for stem, or "" when the format
// has no fulltext.
func FulltextName(stem string, f Format) string {
	switch f {
	case FormatXML:
		return stem + "_full.xml"
	case FormatPDF:
		return stem + ".pdf"
	default:
		return ""
	}
}

// SidecarName is the acknowledgment text file written next to the fulltext.
func SidecarName(stem string) string {
	return stem + "_ack.txt"
}
