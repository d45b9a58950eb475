package model

// Entry is one ledger row:
// file_name,as_xml,as_pdf,bic_acknowledged,bic_suspected
type Entry struct {
	FileName     string `json:"file_name"`
	AsXML        bool   `json:"as_xml"`
	AsPDF        bool   `json:"as_pdf"`
	Acknowledged Flag   `json:"acknowledged"`
	Suspected    Flag   `json:"suspected"`
}

// Format returns the exclusive format named by the entry's flags.
func (e Entry) Format() Format {
	return FormatFromFlags(e.AsXML, e.AsPDF)
}
