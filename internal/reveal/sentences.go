package reveal

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func sentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		tok, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			tokenizer = tok
		}
	})
	return tokenizer
}

// sentenceBoundaries returns byte offsets just past the last non-space
// character of each sentence in text.
func sentenceBoundaries(text string) []int {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tok := sentenceTokenizer()
	if tok == nil {
		return punctuationBoundaries(text)
	}

	var bounds []int
	offset := 0
	for _, s := range tok.Tokenize(text) {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		idx := strings.Index(text[offset:], t)
		if idx < 0 {
			// Tokenizer rewrote the text; punctuation is the safer guide.
			return punctuationBoundaries(text)
		}
		offset += idx + len(t)
		bounds = append(bounds, offset)
	}
	return bounds
}

const (
	terminators = ".!?…。！？"
	closers     = `"')]}”’»`
)

// punctuationBoundaries treats terminal punctuation followed by whitespace or
// the end of text as a sentence end.
func punctuationBoundaries(text string) []int {
	var bounds []int
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !strings.ContainsRune(terminators, r) {
			continue
		}
		end := i
		for end < len(text) {
			c, sz := utf8.DecodeRuneInString(text[end:])
			if !strings.ContainsRune(closers, c) && !strings.ContainsRune(terminators, c) {
				break
			}
			end += sz
		}
		if end == len(text) || isSpaceAt(text, end) {
			bounds = append(bounds, end)
		}
		i = end
	}
	return bounds
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == 0xA0
}
