// Package locate finds the acknowledgment passage inside extracted fulltext.
// Locating never fails: when no heuristic matches, the passage is empty.
package locate

import (
	"strings"
	"unicode"

	"github.com/pubtracker/ackscan/internal/extract"
	"github.com/pubtracker/ackscan/internal/xmltree"
	"github.com/pubtracker/ackscan/pkg/model"
)

// Strategy names the heuristic that produced a passage.
type Strategy string

const (
	StrategyAckContainer  Strategy = "ack-container"
	StrategyTitleFallback Strategy = "title-fallback"
	StrategyKeywordWindow Strategy = "keyword-window"
	StrategyCueParagraphs Strategy = "cue-paragraphs"
	StrategyNone          Strategy = "none"
)

// Keyword is the lowercase stem shared by "acknowledgment", "acknowledgement"
// and "acknowledge".
const Keyword = "acknowl"

// DefaultWindow is the number of runes kept after the keyword in PDF text.
const DefaultWindow = 800

// Locator holds the PDF heuristics' parameters.
type Locator struct {
	window int
	cues   []string
}

// New returns a Locator. Cue phrases are matched against lowercased
// paragraphs, so they are lowercased here once.
func New(window int, cuePhrases []string) *Locator {
	if window <= 0 {
		window = DefaultWindow
	}
	cues := make([]string, 0, len(cuePhrases))
	for _, c := range cuePhrases {
		cues = append(cues, strings.ToLower(c))
	}
	return &Locator{window: window, cues: cues}
}

// Locate returns the acknowledgment passage of content.
func (l *Locator) Locate(content *extract.Content) (string, Strategy) {
	if content == nil {
		return "", StrategyNone
	}
	switch content.Format {
	case model.FormatXML:
		return locateXML(content.Root)
	case model.FormatPDF:
		return l.locateText(content.Text)
	default:
		return "", StrategyNone
	}
}

func locateXML(root *xmltree.Node) (string, Strategy) {
	if root == nil {
		return "", StrategyNone
	}

	if acks := root.Iter("ack"); len(acks) > 0 {
		var b strings.Builder
		for _, ack := range acks {
			for _, p := range ack.Iter("p") {
				b.WriteString(p.Text)
			}
		}
		return b.String(), StrategyAckContainer
	}

	for _, title := range root.Iter("title") {
		if !strings.Contains(strings.ToLower(title.Text), Keyword) {
			continue
		}
		if title.Parent == nil {
			return "", StrategyTitleFallback
		}
		var b strings.Builder
		for _, p := range title.Parent.Iter("p") {
			b.WriteString(p.Text)
		}
		return b.String(), StrategyTitleFallback
	}
	return "", StrategyNone
}

func (l *Locator) locateText(text string) (string, Strategy) {
	if passage, ok := keywordWindow(text, l.window); ok {
		return passage, StrategyKeywordWindow
	}

	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		lower := strings.ToLower(para)
		for _, cue := range l.cues {
			if strings.Contains(lower, cue) {
				b.WriteString(para)
				break
			}
		}
	}
	if b.Len() == 0 {
		return "", StrategyNone
	}
	return b.String(), StrategyCueParagraphs
}

// keywordWindow searches rune by rune so the window offsets stay aligned with
// the original text even where lowercasing changes byte lengths.
func keywordWindow(text string, window int) (string, bool) {
	runes := []rune(text)
	key := []rune(Keyword)

	for i := 0; i+len(key) <= len(runes); i++ {
		match := true
		for j, k := range key {
			if unicode.ToLower(runes[i+j]) != k {
				match = false
				break
			}
		}
		if match {
			end := i + window
			if end > len(runes) {
				end = len(runes)
			}
			return string(runes[i:end]), true
		}
	}
	return "", false
}
