package model

import (
	"path/filepath"

	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/pathutil"
)

// Record is the in-memory unit of one publication during a run. The locator
// and classifier results are attached once each; the fulltext path is fixed
// at construction.
type Record struct {
	FileName     string
	Format       Format
	FulltextPath string
	Suspected    Flag

	passage      string
	passageSet   bool
	acknowledged bool
	verdictSet   bool
}

// NewRecord builds a Record from a ledger entry. Files are resolved inside root.
func NewRecord(e Entry, root string) *Record {
	rec := &Record{
		FileName:  e.FileName,
		Format:    e.Format(),
		Suspected: e.Suspected,
	}
	if name := FulltextName(rec.Stem(), rec.Format); name != "" {
		rec.FulltextPath = filepath.Join(root, name)
	}
	return rec
}

// Stem is the identity shared by the entry file, the fulltext and the sidecars.
func (r *Record) Stem() string {
	return pathutil.Stem(r.FileName)
}

// HasFulltext reports whether a fulltext path was resolved.
func (r *Record) HasFulltext() bool {
	return r.FulltextPath != ""
}

// Passage returns the located acknowledgment text, empty until set.
func (r *Record) Passage() string {
	return r.passage
}

// SetPassage attaches the located passage. It can be called once.
func (r *Record) SetPassage(p string) error {
	if r.passageSet {
		return errclass.ErrRecordSealed.WithMessagef("passage of %s already set", r.FileName)
	}
	r.passage = p
	r.passageSet = true
	return nil
}

// Acknowledged returns the classifier verdict; false until decided.
func (r *Record) Acknowledged() bool {
	return r.acknowledged
}

// Decided reports whether SetVerdict has been called.
func (r *Record) Decided() bool {
	return r.verdictSet
}

// SetVerdict attaches the classifier verdict. It can be called once.
func (r *Record) SetVerdict(acknowledged bool) error {
	if r.verdictSet {
		return errclass.ErrRecordSealed.WithMessagef("verdict of %s already set", r.FileName)
	}
	r.acknowledged = acknowledged
	r.verdictSet = true
	return nil
}

// Entry serializes the record's final state back to a ledger row. The two
// format flags are written from the exclusive Format.
func (r *Record) Entry() Entry {
	asXML, asPDF := r.Format.Flags()
	return Entry{
		FileName:     r.FileName,
		AsXML:        asXML,
		AsPDF:        asPDF,
		Acknowledged: FlagOf(r.acknowledged),
		Suspected:    r.Suspected,
	}
}
