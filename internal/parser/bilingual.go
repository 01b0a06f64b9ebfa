package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/zenview/internal/doctree"
)

// Pairing selects how primary and secondary chapters are matched.
type Pairing int

const (
	// PairByNumber matches chapters by their declared number. It falls back to
	// PairByPosition when either language repeats a number.
	PairByNumber Pairing = iota
	// PairByPosition matches the i-th chapter of each language.
	PairByPosition
)

// BilingualConfig describes a fixed two-language document template.
// Chapter patterns must capture the chapter number in group 1 and the
// optional title in group 2.
type BilingualConfig struct {
	PrimaryMarker    *regexp.Regexp
	SecondaryMarker  *regexp.Regexp
	PrimaryChapter   *regexp.Regexp
	SecondaryChapter *regexp.Regexp

	PreambleTitle string
	MainTitle     string
	Pairing       Pairing
}

// DefaultBilingualConfig is the Vietnamese/English Diamond Sutra template.
func DefaultBilingualConfig() BilingualConfig {
	return BilingualConfig{
		PrimaryMarker:    regexp.MustCompile(`(?m)^#[ \t]+Kinh Kim Cang[ \t]*$`),
		SecondaryMarker:  regexp.MustCompile(`(?m)^#[ \t]+The Diamond Sutra`),
		PrimaryChapter:   regexp.MustCompile(`(?m)^##[ \t]+Chương[ \t]+(\d+)[:. \t]*(.*)$`),
		SecondaryChapter: regexp.MustCompile(`(?m)^##[ \t]+Chapter[ \t]+(\d+)[:. \t]*(.*)$`),
		PreambleTitle:    "Lời Mở Đầu",
		MainTitle:        "Kinh Kim Cang",
		Pairing:          PairByNumber,
	}
}

const (
	preambleID    = "preamble"
	mainSectionID = "main-section"
)

type bilingualDialect struct {
	cfg    BilingualConfig
	render Renderer
	log    *slog.Logger
}

func (b *bilingualDialect) Name() string { return "bilingual" }

type chapter struct {
	number  int
	title   string
	content string
}

type chapterPair struct {
	number    int
	primary   *chapter
	secondary *chapter
}

// split cuts the source at the two language markers. Missing markers, or a
// secondary marker that precedes the primary one, make the dialect inapplicable.
func (b *bilingualDialect) split(src string) (preamble, primary, secondary string, ok bool) {
	if b.cfg.PrimaryMarker == nil || b.cfg.SecondaryMarker == nil {
		return "", "", "", false
	}
	pm := b.cfg.PrimaryMarker.FindStringIndex(src)
	if pm == nil {
		return "", "", "", false
	}
	// Search for the secondary marker only after the primary heading line.
	sm := b.cfg.SecondaryMarker.FindStringIndex(src[pm[1]:])
	if sm == nil {
		return "", "", "", false
	}
	secStart := pm[1] + sm[0]
	return strings.TrimSpace(src[:pm[0]]),
		strings.TrimSpace(src[pm[0]:secStart]),
		strings.TrimSpace(src[secStart:]),
		true
}

func (b *bilingualDialect) Parse(src string) (*doctree.Document, bool) {
	preamble, primary, secondary, ok := b.split(src)
	if !ok {
		return nil, false
	}

	doc := &doctree.Document{TOC: []*doctree.TOCItem{}}

	if preamble != "" {
		doc.Sections = append(doc.Sections, &doctree.Section{
			ID:    preambleID,
			Kind:  doctree.KindPreamble,
			Level: 1,
			Title: b.cfg.PreambleTitle,
			Body:  doctree.Body{Primary: b.renderMarkdown(preamble)},
		})
		doc.TOC = append(doc.TOC, &doctree.TOCItem{
			ID: preambleID, Title: b.cfg.PreambleTitle, Level: 1, Children: []*doctree.TOCItem{},
		})
	}

	primaryIntro, primaryChapters := b.chapters(primary, b.cfg.PrimaryChapter)
	secondaryIntro, secondaryChapters := b.chapters(secondary, b.cfg.SecondaryChapter)

	doc.Sections = append(doc.Sections, &doctree.Section{
		ID:    mainSectionID,
		Kind:  doctree.KindChapter,
		Level: 1,
		Title: b.cfg.MainTitle,
		Body: doctree.Body{
			Primary:   b.renderMarkdown(primaryIntro),
			Secondary: b.renderMarkdown(secondaryIntro),
			Bilingual: true,
		},
	})
	mainTOC := &doctree.TOCItem{ID: mainSectionID, Title: b.cfg.MainTitle, Level: 1, Children: []*doctree.TOCItem{}}
	doc.TOC = append(doc.TOC, mainTOC)

	for _, pair := range pairChapters(primaryChapters, secondaryChapters, b.cfg.Pairing) {
		id := fmt.Sprintf("chapter-%d", pair.number)
		title := ""
		sec := doctree.Body{Bilingual: true}
		if pair.primary != nil {
			title = pair.primary.title
			sec.Primary = b.renderMarkdown(pair.primary.content)
		}
		if pair.secondary != nil {
			if title == "" {
				title = pair.secondary.title
			}
			sec.Secondary = b.renderMarkdown(pair.secondary.content)
		}
		sectionTitle := title
		if sectionTitle == "" {
			sectionTitle = fmt.Sprintf("Chapter %d", pair.number)
		}

		doc.Sections = append(doc.Sections, &doctree.Section{
			ID:    id,
			Kind:  doctree.KindChapter,
			Level: 2,
			Title: sectionTitle,
			Body:  sec,
		})
		mainTOC.Children = append(mainTOC.Children, &doctree.TOCItem{
			ID:       id,
			Title:    strings.TrimSpace(fmt.Sprintf("%d. %s", pair.number, title)),
			Level:    2,
			Children: []*doctree.TOCItem{},
		})
	}

	return doc, true
}

// chapters returns the text before the first chapter heading and the chapter
// ranges, each running up to the next chapter heading.
func (b *bilingualDialect) chapters(body string, pattern *regexp.Regexp) (string, []chapter) {
	if pattern == nil {
		return body, nil
	}
	matches := pattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	intro := strings.TrimSpace(body[:matches[0][0]])
	out := make([]chapter, 0, len(matches))
	for i, m := range matches {
		end := len(body)
		if i < len(matches)-1 {
			end = matches[i+1][0]
		}
		number := -1
		if m[2] >= 0 {
			if n, err := strconv.Atoi(body[m[2]:m[3]]); err == nil {
				number = n
			}
		}
		title := ""
		if len(m) >= 6 && m[4] >= 0 {
			title = strings.TrimSpace(body[m[4]:m[5]])
		}
		out = append(out, chapter{
			number:  number,
			title:   title,
			content: strings.TrimSpace(body[m[0]:end]),
		})
	}
	return intro, out
}

func (b *bilingualDialect) renderMarkdown(src string) string {
	out, err := b.render.Render(src)
	if err != nil {
		b.log.Warn("render bilingual body failed", "error", err)
		return escapedFallback(src)
	}
	return out
}

func pairChapters(primary, secondary []chapter, mode Pairing) []chapterPair {
	if mode == PairByNumber && uniqueNumbers(primary) && uniqueNumbers(secondary) {
		return pairByNumber(primary, secondary)
	}
	return pairByPosition(primary, secondary)
}

func pairByPosition(primary, secondary []chapter) []chapterPair {
	total := max(len(primary), len(secondary))
	pairs := make([]chapterPair, total)
	for i := range total {
		pairs[i].number = i + 1
		if i < len(primary) {
			pairs[i].primary = &primary[i]
		}
		if i < len(secondary) {
			pairs[i].secondary = &secondary[i]
		}
	}
	return pairs
}

func pairByNumber(primary, secondary []chapter) []chapterPair {
	bySecondary := make(map[int]*chapter, len(secondary))
	for i := range secondary {
		bySecondary[secondary[i].number] = &secondary[i]
	}
	used := make(map[int]bool, len(primary))

	pairs := make([]chapterPair, 0, max(len(primary), len(secondary)))
	for i := range primary {
		n := primary[i].number
		pairs = append(pairs, chapterPair{number: n, primary: &primary[i], secondary: bySecondary[n]})
		used[n] = true
	}
	for i := range secondary {
		if n := secondary[i].number; !used[n] {
			pairs = append(pairs, chapterPair{number: n, secondary: &secondary[i]})
		}
	}
	return pairs
}

func uniqueNumbers(chapters []chapter) bool {
	seen := make(map[int]bool, len(chapters))
	for _, c := range chapters {
		if c.number < 0 || seen[c.number] {
			return false
		}
		seen[c.number] = true
	}
	return true
}
