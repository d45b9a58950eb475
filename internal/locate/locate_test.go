package locate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/internal/extract"
	"github.com/pubtracker/ackscan/internal/locate"
	"github.com/pubtracker/ackscan/internal/xmltree"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/model"
)

func newLocator() *locate.Locator {
	cfg := config.Default()
	return locate.New(cfg.PDFWindow, cfg.CuePhraseList)
}

func xmlContent(t *testing.T, doc string) *extract.Content {
	t.Helper()
	root, err := xmltree.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return &extract.Content{Format: model.FormatXML, Root: root}
}

func pdfContent(text string) *extract.Content {
	return &extract.Content{Format: model.FormatPDF, Text: text}
}

func TestLocate_AckContainer(t *testing.T) {
	c := xmlContent(t, `<article><back><ack><title>Acknowledgements</title><p>Imaging was performed at the BIC.</p></ack></back></article>`)

	passage, strategy := newLocator().Locate(c)
	assert.Equal(t, "Imaging was performed at the BIC.", passage)
	assert.Equal(t, locate.StrategyAckContainer, strategy)
}

func TestLocate_AckContainersConcatenateInOrder(t *testing.T) {
	c := xmlContent(t, `<article>
<p>Body text is ignored.</p>
<ack><p>First.</p><sec><p>Nested.</p></sec></ack>
<back><ack><p>Second.</p></ack></back>
</article>`)

	passage, _ := newLocator().Locate(c)
	assert.Equal(t, "First.Nested.Second.", passage)
}

func TestLocate_AckParagraphDirectTextOnly(t *testing.T) {
	c := xmlContent(t, `<article><ack><p>Supported by <italic>Bioimaging</italic> core.</p></ack></article>`)

	passage, _ := newLocator().Locate(c)
	assert.Equal(t, "Supported by ", passage)
}

func TestLocate_EmptyAckContainer(t *testing.T) {
	c := xmlContent(t, `<article><ack/><sec><title>Acknowledgments</title><p>ignored</p></sec></article>`)

	passage, strategy := newLocator().Locate(c)
	assert.Empty(t, passage)
	assert.Equal(t, locate.StrategyAckContainer, strategy)
}

func TestLocate_TitleFallback(t *testing.T) {
	c := xmlContent(t, `<article><body>
<sec><title>Methods</title><p>Not this.</p></sec>
<sec><title>ACKNOWLEDGMENTS</title><p>We thank </p><p>the BIC.</p></sec>
<sec><title>Acknowledgement of funding</title><p>Later section.</p></sec>
</body></article>`)

	passage, strategy := newLocator().Locate(c)
	assert.Equal(t, "We thank the BIC.", passage)
	assert.Equal(t, locate.StrategyTitleFallback, strategy)
}

func TestLocate_TitleFallbackIncludesNestedParagraphs(t *testing.T) {
	c := xmlContent(t, `<article><sec><title>Acknowledgments</title><p>A.</p><list><item><p>B.</p></item></list></sec></article>`)

	passage, _ := newLocator().Locate(c)
	assert.Equal(t, "A.B.", passage)
}

func TestLocate_TitleAtRoot(t *testing.T) {
	c := xmlContent(t, `<title>Acknowledgments</title>`)

	passage, strategy := newLocator().Locate(c)
	assert.Empty(t, passage)
	assert.Equal(t, locate.StrategyTitleFallback, strategy)
}

func TestLocate_XMLNoMatch(t *testing.T) {
	c := xmlContent(t, `<article><sec><title>Results</title><p>Numbers.</p></sec></article>`)

	passage, strategy := newLocator().Locate(c)
	assert.Empty(t, passage)
	assert.Equal(t, locate.StrategyNone, strategy)
}

func TestLocate_PDFKeywordWindow(t *testing.T) {
	text := strings.Repeat("x", 50) + "ACKNOWLEDGMENTS " + strings.Repeat("y", 1000)

	passage, strategy := newLocator().Locate(pdfContent(text))
	assert.Equal(t, locate.StrategyKeywordWindow, strategy)
	assert.Len(t, []rune(passage), 800)
	assert.True(t, strings.HasPrefix(passage, "ACKNOWLEDGMENTS "))
}

func TestLocate_PDFKeywordWindowRemainder(t *testing.T) {
	passage, _ := newLocator().Locate(pdfContent("Intro.\nAcknowledgements: BIC."))
	assert.Equal(t, "Acknowledgements: BIC.", passage)
}

func TestLocate_PDFWindowCountsRunes(t *testing.T) {
	text := "Ünïcödé acknowledgment " + strings.Repeat("é", 900)
	l := locate.New(30, []string{"we thank"})

	passage, _ := l.Locate(pdfContent(text))
	assert.Len(t, []rune(passage), 30)
	assert.True(t, strings.HasPrefix(passage, "acknowledgment "))
}

func TestLocate_PDFFirstOccurrence(t *testing.T) {
	passage, _ := locate.New(20, nil).Locate(pdfContent("see acknowledgments below\n\nAcknowledgments\nWe thank BIC."))
	assert.Equal(t, "acknowledgments belo", passage)
}

func TestLocate_PDFCueParagraphs(t *testing.T) {
	text := "Introduction text.\n\nWe thank the BIC for support.\n\nResults.\n\nThe authors are Grateful to Bioimaging."

	passage, strategy := newLocator().Locate(pdfContent(text))
	assert.Equal(t, locate.StrategyCueParagraphs, strategy)
	assert.Equal(t, "We thank the BIC for support.The authors are Grateful to Bioimaging.", passage)
}

func TestLocate_PDFNothing(t *testing.T) {
	passage, strategy := newLocator().Locate(pdfContent("Only results.\n\nNo thanks at all."))
	assert.Empty(t, passage)
	assert.Equal(t, locate.StrategyNone, strategy)
}

func TestLocate_NoneFormat(t *testing.T) {
	passage, strategy := newLocator().Locate(&extract.Content{Format: model.FormatNone})
	assert.Empty(t, passage)
	assert.Equal(t, locate.StrategyNone, strategy)

	passage, _ = newLocator().Locate(nil)
	assert.Empty(t, passage)
}

func TestNew_DefaultWindow(t *testing.T) {
	text := "acknowledgment" + strings.Repeat("z", 2000)
	passage, _ := locate.New(0, nil).Locate(pdfContent(text))
	assert.Len(t, passage, locate.DefaultWindow)
}
