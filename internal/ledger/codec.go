package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/model"
	"github.com/pubtracker/ackscan/pkg/pathutil"
)

// Header is the canonical ledger header.
var Header = []string{"file_name", "as_xml", "as_pdf", "bic_acknowledged", "bic_suspected"}

// Decode reads a complete ledger. The header must have five columns starting
// with file_name; every row must have exactly five columns, a valid file name
// and True/False/None tokens.
func Decode(r io.Reader) ([]model.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errclass.ErrLedgerCorrupt.WithMessage("ledger has no header")
	}
	if err != nil {
		return nil, errclass.ErrLedgerCorrupt.Wrap(err, "read header")
	}
	if len(header) != len(Header) || strings.TrimPrefix(header[0], "\ufeff") != Header[0] {
		return nil, errclass.ErrLedgerCorrupt.WithMessagef("unexpected header %q", strings.Join(header, ","))
	}

	var entries []model.Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errclass.ErrLedgerCorrupt.Wrap(err, "read row")
		}
		line, _ := cr.FieldPos(0)
		entry, err := decodeRow(row)
		if err != nil {
			return nil, errclass.ErrLedgerCorrupt.Wrap(err, fmt.Sprintf("line %d", line))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeRow(row []string) (model.Entry, error) {
	if len(row) != len(Header) {
		return model.Entry{}, errclass.ErrLedgerCorrupt.WithMessagef("expected %d columns, got %d", len(Header), len(row))
	}
	if err := pathutil.ValidateFileName(row[0]); err != nil {
		return model.Entry{}, err
	}

	var flags [4]model.Flag
	for i := range flags {
		f, err := model.ParseFlag(row[i+1])
		if err != nil {
			return model.Entry{}, err
		}
		flags[i] = f
	}
	return model.Entry{
		FileName:     row[0],
		AsXML:        flags[0].Bool(),
		AsPDF:        flags[1].Bool(),
		Acknowledged: flags[2],
		Suspected:    flags[3],
	}, nil
}

// EncodeRow renders one ledger row including its newline.
func EncodeRow(e model.Entry) []byte {
	return encode(record(e))
}

// EncodeHeader renders the header line.
func EncodeHeader() []byte {
	return encode(Header)
}

// Encode renders a complete ledger.
func Encode(entries []model.Entry) []byte {
	records := make([][]string, 0, len(entries)+1)
	records = append(records, Header)
	for _, e := range entries {
		records = append(records, record(e))
	}
	return encode(records...)
}

func record(e model.Entry) []string {
	return []string{
		e.FileName,
		model.FlagOf(e.AsXML).String(),
		model.FlagOf(e.AsPDF).String(),
		e.Acknowledged.String(),
		e.Suspected.String(),
	}
}

func encode(records ...[]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writing to a bytes.Buffer cannot fail.
	_ = w.WriteAll(records)
	return buf.Bytes()
}

// ReadFile decodes the ledger at path. The returned bool is false when the
// file does not exist.
func ReadFile(path string) ([]model.Entry, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, errclass.ErrLedgerCorrupt.Wrap(err, "open "+path)
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		return nil, true, err
	}
	return entries, true, nil
}
