package recitation

import (
	"slices"
	"strings"

	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// Glyphs inserted between verses.
const (
	VerseEndGlyph = "۝"
	Rub3Glyph     = "۞"
	surahPrefix   = "سورة "
)

// SegmentKind tells the presentation layer how to draw a [Segment].
type SegmentKind string

// Segment kinds.
const (
	SegmentWord     SegmentKind = "word"
	SegmentVerseEnd SegmentKind = "verse_end"
	SegmentRub3     SegmentKind = "rub3"
	SegmentSurah    SegmentKind = "surah"
	SegmentBreak    SegmentKind = "break"
)

// Segment is one piece of rendered page text.
type Segment struct {
	Kind        SegmentKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	Matched     bool        `json:"matched,omitempty"`
	Provisional bool        `json:"provisional,omitempty"`
}

// PageRole places a page relative to the reciter.
type PageRole string

// Page roles.
const (
	RoleCurrent  PageRole = "current"
	RolePrevious PageRole = "previous"
	RolePreview  PageRole = "preview"
)

// PageModel is one rendered page of a spread.
type PageModel struct {
	Number    int       `json:"number"`
	Juz       int       `json:"juz"`
	Surah     string    `json:"surah"`
	Role      PageRole  `json:"role"`
	FirstPage bool      `json:"first_page"`
	Segments  []Segment `json:"segments"`
}

// Text flattens the segments into display text.
func (p PageModel) Text() string {
	var b strings.Builder
	for _, s := range p.Segments {
		switch s.Kind {
		case SegmentSurah:
			b.WriteString("\n" + s.Text + "\n\n")
		case SegmentBreak:
			b.WriteString("\n")
		default:
			b.WriteString(s.Text + " ")
		}
	}
	return b.String()
}

// Spread is the pair of facing pages. Odd pages sit on the right.
type Spread struct {
	Right PageModel `json:"right"`
	Left  PageModel `json:"left"`
}

// PageAssembler lays matched words out on mushaf pages. It renders
// incrementally: each call continues from the last committed word.
type PageAssembler struct {
	idx       *corpus.Index
	firstPage int

	line       int
	lineWords  int
	wordInLine int
	rendered   int

	right, left    PageModel
	currentIsRight bool
}

// NewPageAssembler starts a layout at line anchor.
func NewPageAssembler(idx *corpus.Index, anchor int) *PageAssembler {
	a := &PageAssembler{idx: idx, firstPage: idx.PageNumber(anchor)}
	a.setLine(anchor)
	a.currentIsRight = idx.IsRightPage(anchor)
	a.describe(a.currentIsRight)
	return a
}

// Render lays out words[rendered:] and remembers how far it got. words must
// extend the slice given on earlier calls.
func (a *PageAssembler) Render(words []MatchedWord) {
	for _, w := range words[min(a.rendered, len(words)):] {
		a.place(w)
	}
	a.rendered = max(a.rendered, len(words))
}

// Spread returns the current pages.
func (a *PageAssembler) Spread() Spread {
	right, left := a.right, a.left
	right.Segments = slices.Clone(right.Segments)
	left.Segments = slices.Clone(left.Segments)

	right.Role, left.Role = RoleCurrent, RolePreview
	if !a.currentIsRight {
		right.Role, left.Role = RolePrevious, RoleCurrent
	}
	return Spread{Right: right, Left: left}
}

// Preview returns the spread with extra words laid out after the committed
// ones. The assembler itself is left untouched.
func (a *PageAssembler) Preview(extra []MatchedWord) Spread {
	if len(extra) == 0 {
		return a.Spread()
	}
	scratch := *a
	scratch.right.Segments = slices.Clip(a.right.Segments)
	scratch.left.Segments = slices.Clip(a.left.Segments)
	for _, w := range extra {
		scratch.place(w)
	}
	return scratch.Spread()
}

func (a *PageAssembler) setLine(i int) {
	a.line = i
	a.wordInLine = 0
	a.lineWords = 0
	if l := a.idx.Line(i); l != nil {
		a.lineWords = len(l.Words())
	}
}

// describe fills in the metadata of the page line a.line sits on.
func (a *PageAssembler) describe(right bool) {
	p := a.page(right)
	p.Number = a.idx.PageNumber(a.line)
	p.Juz = a.idx.JuzNumber(a.line)
	p.Surah = a.idx.SurahNameForLine(a.line)
	p.FirstPage = p.Number == a.firstPage
}

func (a *PageAssembler) page(right bool) *PageModel {
	if right {
		return &a.right
	}
	return &a.left
}

func (a *PageAssembler) emit(s Segment) {
	p := a.page(a.currentIsRight)
	p.Segments = append(p.Segments, s)
}

// turn switches pages when the current line moved to the other side. Turning
// to a right page starts a new spread.
func (a *PageAssembler) turn() {
	right := a.idx.IsRightPage(a.line)
	if right == a.currentIsRight {
		return
	}
	if right {
		a.right, a.left = PageModel{}, PageModel{}
	}
	a.currentIsRight = right
	a.describe(right)
}

func (a *PageAssembler) place(w MatchedWord) {
	a.turn()

	if a.wordInLine == 0 && a.idx.IsEndOfSurah(a.line-1) {
		a.emit(Segment{Kind: SegmentSurah, Text: surahPrefix + a.idx.SurahNameForLine(a.line)})
		if a.idx.IsEndOfRub3(a.line - 1) {
			a.emit(Segment{Kind: SegmentRub3, Text: Rub3Glyph})
		}
	}

	a.emit(Segment{Kind: SegmentWord, Text: w.Word, Matched: w.Matched, Provisional: w.Provisional})
	a.wordInLine++
	if a.wordInLine < a.lineWords {
		return
	}

	a.emit(Segment{Kind: SegmentVerseEnd, Text: VerseEndGlyph})
	switch {
	case a.idx.IsEndOfSurah(a.line):
		a.emit(Segment{Kind: SegmentBreak})
	case a.idx.IsEndOfRub3(a.line):
		a.emit(Segment{Kind: SegmentRub3, Text: Rub3Glyph})
	}
	a.setLine(a.line + 1)
}
