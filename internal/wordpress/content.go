package wordpress

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultAdEvery = 3
	defaultMaxAds  = 3
	adLoaderURL    = "https://pagead2.googlesyndication.com/pagead/js/adsbygoogle.js"
)

// AdSenseSettings is the blog's "adsense" configuration document.
type AdSenseSettings struct {
	ClientID        string `json:"client_id"`
	SlotID          string `json:"slot_id"`
	EveryParagraphs int    `json:"every_paragraphs,omitempty"`
	MaxAds          int    `json:"max_ads,omitempty"`
	Disabled        bool   `json:"disabled,omitempty"`
}

// Active reports whether ads should be inserted.
func (a AdSenseSettings) Active() bool {
	return !a.Disabled && strings.TrimSpace(a.ClientID) != "" && strings.TrimSpace(a.SlotID) != ""
}

func (a AdSenseSettings) every() int {
	if a.EveryParagraphs > 0 {
		return a.EveryParagraphs
	}
	return defaultAdEvery
}

func (a AdSenseSettings) maxAds() int {
	if a.MaxAds > 0 {
		return a.MaxAds
	}
	return defaultMaxAds
}

// sectionImage is an uploaded image placed under a section heading.
type sectionImage struct {
	URL string
	Alt string
}

// decorateContent places section images after their matching <h2> and ad
// units after every Nth top-level paragraph. It returns the new HTML and
// the number of ads inserted.
func decorateContent(content string, images map[string]sectionImage, ads AdSenseSettings) (string, int, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return "", 0, fmt.Errorf("parsing post content: %w", err)
	}

	var (
		out        bytes.Buffer
		paragraphs int
		inserted   int
		adsOn      = ads.Active()
	)
	render := func(n *html.Node) error {
		if err := html.Render(&out, n); err != nil {
			return fmt.Errorf("rendering post content: %w", err)
		}
		return nil
	}

	for _, n := range nodes {
		if err := render(n); err != nil {
			return "", 0, err
		}
		if n.Type != html.ElementNode {
			continue
		}

		switch n.DataAtom {
		case atom.H2:
			if img, ok := images[strings.TrimSpace(textOf(n))]; ok {
				if err := render(figureNode(img)); err != nil {
					return "", 0, err
				}
			}
		case atom.P:
			paragraphs++
			if adsOn && inserted < ads.maxAds() && paragraphs%ads.every() == 0 {
				if inserted == 0 {
					if err := render(adLoaderNode(ads.ClientID)); err != nil {
						return "", 0, err
					}
				}
				if err := render(adUnitNode(ads)); err != nil {
					return "", 0, err
				}
				inserted++
			}
		}
	}
	return out.String(), inserted, nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func figureNode(img sectionImage) *html.Node {
	fig := element(atom.Figure, "class", "wp-block-image size-large")
	fig.AppendChild(element(atom.Img, "src", img.URL, "alt", img.Alt, "loading", "lazy"))
	return fig
}

func adLoaderNode(clientID string) *html.Node {
	return element(atom.Script,
		"async", "",
		"src", adLoaderURL+"?client="+clientID,
		"crossorigin", "anonymous",
	)
}

func adUnitNode(ads AdSenseSettings) *html.Node {
	div := element(atom.Div, "class", "quill-ad")
	div.AppendChild(element(atom.Ins,
		"class", "adsbygoogle",
		"style", "display:block",
		"data-ad-client", ads.ClientID,
		"data-ad-slot", ads.SlotID,
		"data-ad-format", "auto",
		"data-full-width-responsive", "true",
	))
	push := element(atom.Script)
	push.AppendChild(&html.Node{Type: html.TextNode, Data: "(adsbygoogle = window.adsbygoogle || []).push({});"})
	div.AppendChild(push)
	return div
}
