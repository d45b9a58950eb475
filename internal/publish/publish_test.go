package publish_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/publish"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/model"
)

func setup(t *testing.T) *corpus.Corpus {
	t.Helper()
	cfg := config.Default()
	cfg.CorpusRoot = t.TempDir()
	c, err := corpus.Open(cfg)
	require.NoError(t, err)
	return c
}

func write(t *testing.T, c *corpus.Corpus, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.Root, name), []byte(content), 0644))
}

func xmlRecord(c *corpus.Corpus) *model.Record {
	return model.NewRecord(model.Entry{FileName: "paper.txt", AsXML: true}, c.Root)
}

func TestPublish_CopiesAllArtifacts(t *testing.T) {
	c := setup(t)
	write(t, c, "paper_ack.txt", "We thank BIC.")
	write(t, c, "paper.txt", "entry")
	write(t, c, "paper_full.xml", "<article/>")
	write(t, c, "paper.ris", "TY  - JOUR")

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(c.Root, "paper.ris"), old, old))

	res, err := publish.New(c, nil).Publish(xmlRecord(c))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, []string{
		c.OutputPath("paper_ack.txt"),
		c.OutputPath("paper.txt"),
		c.OutputPath("paper_full.xml"),
		c.OutputPath("paper.ris"),
	}, res.Copied)

	data, err := os.ReadFile(c.OutputPath("paper_ack.txt"))
	require.NoError(t, err)
	assert.Equal(t, "We thank BIC.", string(data))

	info, err := os.Stat(c.OutputPath("paper.ris"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestPublish_OverwritesSidecar(t *testing.T) {
	c := setup(t)
	for _, n := range []string{"paper.txt", "paper_full.xml", "paper.ris"} {
		write(t, c, n, n)
	}
	write(t, c, "paper_ack.txt", "first")
	pub := publish.New(c, nil)
	_, err := pub.Publish(xmlRecord(c))
	require.NoError(t, err)

	write(t, c, "paper_ack.txt", "second")
	_, err = pub.Publish(xmlRecord(c))
	require.NoError(t, err)

	data, err := os.ReadFile(c.OutputPath("paper_ack.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestPublish_ContinuesAfterFailure(t *testing.T) {
	c := setup(t)
	write(t, c, "paper_ack.txt", "ack")
	write(t, c, "paper_full.xml", "<article/>")
	write(t, c, "paper.ris", "ris")
	// entry file missing

	res, err := publish.New(c, nil).Publish(xmlRecord(c))
	require.ErrorIs(t, err, errclass.ErrPublishFailed)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, res.Complete)
	assert.Len(t, res.Copied, 3)
	assert.FileExists(t, c.OutputPath("paper.ris"))
	assert.NoFileExists(t, c.OutputPath("paper.txt"))
}

func TestPublish_OutputDirBlocked(t *testing.T) {
	c := setup(t)
	write(t, c, c.Config().OutputSubdirectory, "not a directory")

	res, err := publish.New(c, nil).Publish(xmlRecord(c))
	require.ErrorIs(t, err, errclass.ErrPublishFailed)
	assert.False(t, res.Complete)
	assert.Empty(t, res.Copied)
}

func TestArtifacts_PDF(t *testing.T) {
	c := setup(t)
	rec := model.NewRecord(model.Entry{FileName: "doc.txt", AsPDF: true}, c.Root)
	assert.Equal(t, []string{
		filepath.Join(c.Root, "doc_ack.txt"),
		filepath.Join(c.Root, "doc.txt"),
		filepath.Join(c.Root, "doc.pdf"),
		filepath.Join(c.Root, "doc.ris"),
	}, publish.New(c, nil).Artifacts(rec))
}
