// Package corpus loads the mushaf text asset and answers structural
// questions about it: which page, quarter (rub3), part (juz) and chapter
// (surah) a verse line belongs to.
//
// An [Index] is immutable after [Load] returns and is meant to be built once
// per process and shared by every recitation session without locking.
// Every query is a binary search over sorted marker lists and degrades to a
// neutral value (0, "" or false) for out-of-range input.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// Marker lines in the asset. A blank line closes a page.
const (
	rub3Marker  = "*"
	surahMarker = "-"
)

// maxLineBytes bounds a single asset line. The longest verse is well below it.
const maxLineBytes = 1 << 20

// Line is one verse line of the corpus.
type Line struct {
	index      int
	text       string
	normalized func() string
}

func newLine(index int, text string) *Line {
	return &Line{
		index:      index,
		text:       text,
		normalized: sync.OnceValue(func() string { return arabic.Normalize(text) }),
	}
}

// Index returns the 0-based position of the line in the corpus.
func (l *Line) Index() int { return l.index }

// Text returns the line as stored in the asset, diacritics included.
func (l *Line) Text() string { return l.text }

// Normalized returns the normalized form of the line. It is computed on first
// use and cached.
func (l *Line) Normalized() string { return l.normalized() }

// Words splits the raw line text on whitespace.
func (l *Line) Words() []string { return strings.Fields(l.text) }

// Option configures an [Index] at load time.
type Option func(*Index)

// WithSurahs replaces the default chapter table. The table must be ordered by
// start page.
func WithSurahs(surahs []Surah) Option {
	return func(idx *Index) {
		idx.surahs = append([]Surah(nil), surahs...)
	}
}

// Index is the loaded corpus with its structural markers.
type Index struct {
	lines        []*Line
	pageMarkers  []int
	rub3Markers  []int
	surahMarkers []int
	surahs       []Surah
	fingerprint  string
}

// Empty returns an index with no lines. Every query on it returns the
// neutral default.
func Empty(opts ...Option) *Index {
	idx := &Index{surahs: DefaultSurahs()}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

// Load parses a corpus asset from r.
func Load(r io.Reader, opts ...Option) (*Index, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("corpus: read: %w", err)
	}
	idx := Empty(opts...)
	sum := blake3.Sum256(raw)
	idx.fingerprint = hex.EncodeToString(sum[:])

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		last := len(idx.lines) - 1
		switch line {
		case "":
			idx.pageMarkers = append(idx.pageMarkers, last)
		case rub3Marker:
			idx.rub3Markers = append(idx.rub3Markers, last)
		case surahMarker:
			idx.surahMarkers = append(idx.surahMarkers, last)
		default:
			idx.lines = append(idx.lines, newLine(len(idx.lines), line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: scan: %w", err)
	}
	return idx, nil
}

// LoadFile loads the asset at path, decompressing it first when the name ends
// in ".xz".
//
// On failure LoadFile returns an empty index together with the error so that
// callers may log and keep serving with neutral answers.
func LoadFile(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return Empty(opts...), fmt.Errorf("corpus: open %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return Empty(opts...), fmt.Errorf("corpus: xz %q: %w", path, err)
		}
		r = xr
	}
	idx, err := Load(r, opts...)
	if err != nil {
		return Empty(opts...), err
	}
	return idx, nil
}

// Len returns the number of verse lines.
func (idx *Index) Len() int { return len(idx.lines) }

// Line returns the line at i, or nil when i is out of range.
func (idx *Index) Line(i int) *Line {
	if !idx.valid(i) {
		return nil
	}
	return idx.lines[i]
}

// Fingerprint is the hex BLAKE3 digest of the asset bytes. It is empty for an
// index that was not loaded from an asset.
func (idx *Index) Fingerprint() string { return idx.fingerprint }

// Pages returns the number of pages in the corpus.
func (idx *Index) Pages() int {
	if len(idx.lines) == 0 {
		return 0
	}
	return idx.PageNumber(len(idx.lines) - 1)
}

func (idx *Index) valid(i int) bool { return i >= 0 && i < len(idx.lines) }

// PageNumber returns the 1-based page containing line i.
func (idx *Index) PageNumber(i int) int {
	if !idx.valid(i) {
		return 0
	}
	// First page marker at or after i; past the last marker is the final page.
	return sort.SearchInts(idx.pageMarkers, i) + 1
}

// Rub3Number returns the 1-based quarter of line i: one more than the number
// of quarter markers at or before it.
func (idx *Index) Rub3Number(i int) int {
	if !idx.valid(i) {
		return 0
	}
	return sort.SearchInts(idx.rub3Markers, i+1) + 1
}

// JuzNumber returns the 1-based part containing line i. Each part spans eight
// quarters.
func (idx *Index) JuzNumber(i int) int {
	rub3 := idx.Rub3Number(i)
	if rub3 == 0 {
		return 0
	}
	return (rub3 + 7) / 8
}

// SurahNameForPage returns the name of the last chapter starting on or
// before page.
func (idx *Index) SurahNameForPage(page int) string {
	k := sort.Search(len(idx.surahs), func(k int) bool { return idx.surahs[k].StartPage > page })
	if k == 0 {
		return ""
	}
	return idx.surahs[k-1].Name
}

// SurahNameForLine returns the chapter name for line i, counting the chapter
// markers at or before it.
func (idx *Index) SurahNameForLine(i int) string {
	if !idx.valid(i) {
		return ""
	}
	k := sort.Search(len(idx.surahMarkers), func(k int) bool { return idx.surahMarkers[k] > i })
	if k >= len(idx.surahs) {
		return ""
	}
	return idx.surahs[k].Name
}

// IsRightPage reports whether line i falls on an odd (right-hand) page.
func (idx *Index) IsRightPage(i int) bool {
	return idx.PageNumber(i)%2 == 1
}

// IsEndOfRub3 reports whether line i closes a quarter.
func (idx *Index) IsEndOfRub3(i int) bool { return contains(idx.rub3Markers, i) }

// IsEndOfSurah reports whether line i closes a chapter.
func (idx *Index) IsEndOfSurah(i int) bool { return contains(idx.surahMarkers, i) }

// IsEndOfPage reports whether line i is the last line of its page.
func (idx *Index) IsEndOfPage(i int) bool { return contains(idx.pageMarkers, i) }

func contains(sorted []int, v int) bool {
	k := sort.SearchInts(sorted, v)
	return k < len(sorted) && sorted[k] == v
}

// Window returns line start and up to extra following lines. It returns nil
// when start is out of range.
func (idx *Index) Window(start, extra int) []*Line {
	if !idx.valid(start) {
		return nil
	}
	end := min(start+1+max(extra, 0), len(idx.lines))
	return idx.lines[start:end:end]
}

// FindContaining returns the indices of lines whose normalized text contains
// the normalized form of text.
func (idx *Index) FindContaining(text string) []int {
	needle := arabic.Normalize(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	var out []int
	for _, l := range idx.lines {
		if strings.Contains(l.Normalized(), needle) {
			out = append(out, l.index)
		}
	}
	return out
}

// FindLineStartingWith returns the first line whose normalized text starts
// with the normalized form of text.
func (idx *Index) FindLineStartingWith(text string) (int, bool) {
	prefix := arabic.Normalize(strings.TrimSpace(text))
	if prefix == "" {
		return 0, false
	}
	for _, l := range idx.lines {
		if strings.HasPrefix(l.Normalized(), prefix) {
			return l.index, true
		}
	}
	return 0, false
}
