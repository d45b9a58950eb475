// Package xmltree parses XML fulltexts into a navigable element tree.
//
// Text follows the element-tree convention: Node.Text holds the character
// data before the first child element and Node.Tail the data that follows
// the element inside its parent.
package xmltree

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/pubtracker/ackscan/pkg/errclass"
)

// Node is one element.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Tail     string
	Children []*Node
	Parent   *Node
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads one XML document and returns its root element. Syntax errors
// are E_XML_MALFORMED; undecodable charsets are E_ENCODING_UNSUPPORTED.
func Parse(r io.Reader) (*Node, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	var badCharset string
	d := xml.NewDecoder(br)
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.IANA.Encoding(label)
		if err != nil || enc == nil {
			badCharset = label
			return nil, fmt.Errorf("unsupported charset %q", label)
		}
		return transform.NewReader(input, enc.NewDecoder()), nil
	}

	var root, cur *Node
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if badCharset != "" {
				return nil, errclass.ErrEncodingUnsupported.WithMessagef("charset %q", badCharset)
			}
			return nil, errclass.ErrXMLMalformed.Wrap(err, "parse xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local, Parent: cur}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if cur == nil {
				if root != nil {
					return nil, errclass.ErrXMLMalformed.WithMessagef("second root element <%s>", n.Tag)
				}
				root = n
			} else {
				cur.Children = append(cur.Children, n)
			}
			cur = n
		case xml.EndElement:
			cur = cur.Parent
		case xml.CharData:
			if cur == nil {
				if root == nil && strings.TrimSpace(string(t)) != "" {
					return nil, errclass.ErrXMLMalformed.WithMessage("text before root element")
				}
				continue
			}
			if k := len(cur.Children); k > 0 {
				cur.Children[k-1].Tail += string(t)
			} else {
				cur.Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, errclass.ErrXMLMalformed.WithMessage("no root element")
	}
	return root, nil
}

// Iter returns every element named tag in document order, starting with n
// itself. An empty tag matches every element.
func (n *Node) Iter(tag string) []*Node {
	var out []*Node
	n.walk(func(c *Node) {
		if tag == "" || c.Tag == tag {
			out = append(out, c)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// InnerText concatenates all character data below n, excluding n's tail.
func (n *Node) InnerText() string {
	var b strings.Builder
	n.innerText(&b)
	return b.String()
}

func (n *Node) innerText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.innerText(b)
		b.WriteString(c.Tail)
	}
}
