package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// collectAnchors returns element ids found in the given HTML fragments, in
// document order, without duplicates.
func collectAnchors(fragments ...string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		z := html.NewTokenizer(strings.NewReader(frag))
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				break
			}
			if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
				continue
			}
			for _, attr := range z.Token().Attr {
				if attr.Key == "id" && attr.Val != "" && !seen[attr.Val] {
					seen[attr.Val] = true
					ids = append(ids, attr.Val)
				}
			}
		}
	}
	return ids
}
