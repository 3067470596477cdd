package corpus_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/ulikunitz/xz"
)

// sampleSurahs matches the chapters present in testdata/sample.txt.
var sampleSurahs = []corpus.Surah{
	{StartPage: 1, Name: "الفاتحة"},
	{StartPage: 2, Name: "البقرة"},
	{StartPage: 3, Name: "النساء"},
	{StartPage: 4, Name: "الإخلاص"},
}

func loadSample(t *testing.T) *corpus.Index {
	t.Helper()
	idx, err := corpus.LoadFile(filepath.Join("testdata", "sample.txt"), corpus.WithSurahs(sampleSurahs))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return idx
}

func TestLoad_Markers(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	if got := idx.Len(); got != 17 {
		t.Fatalf("Len() = %d, want 17", got)
	}
	if got := idx.Pages(); got != 4 {
		t.Errorf("Pages() = %d, want 4", got)
	}
	if got := idx.Line(7).Text(); got != "الم" {
		t.Errorf("Line(7).Text() = %q, want %q", got, "الم")
	}
	if got := idx.Line(13).Normalized(); got != "قل هو الله احد" {
		t.Errorf("Line(13).Normalized() = %q", got)
	}
	if idx.Line(17) != nil || idx.Line(-1) != nil {
		t.Error("Line out of range: want nil")
	}
	if idx.Fingerprint() == "" {
		t.Error("Fingerprint() is empty")
	}
}

func TestLoad_MarkersMatchExactly(t *testing.T) {
	t.Parallel()

	idx, err := corpus.Load(strings.NewReader("الم\n * \n   \nذلك الكتاب\r\n*\r\n\nلا ريب\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"الم", " * ", "   ", "ذلك الكتاب", "لا ريب"}
	if idx.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(want))
	}
	for i, w := range want {
		if got := idx.Line(i).Text(); got != w {
			t.Errorf("Line(%d) = %q, want %q", i, got, w)
		}
	}
	if got := idx.Rub3Number(2); got != 1 {
		t.Errorf("Rub3Number(2) = %d, want 1", got)
	}
	if got := idx.Rub3Number(4); got != 2 {
		t.Errorf("Rub3Number(4) = %d, want 2", got)
	}
	if got := idx.Pages(); got != 2 {
		t.Errorf("Pages() = %d, want 2", got)
	}
}

func TestIndex_PageNumber(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	tests := []struct {
		line int
		want int
	}{
		{0, 1}, {6, 1}, {7, 2}, {10, 2}, {11, 3}, {12, 3}, {13, 4}, {16, 4},
		{-1, 0}, {17, 0},
	}
	for _, tt := range tests {
		if got := idx.PageNumber(tt.line); got != tt.want {
			t.Errorf("PageNumber(%d) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestIndex_Rub3AndJuz(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	tests := []struct {
		line     int
		wantRub3 int
		wantJuz  int
	}{
		{0, 1, 1}, {8, 1, 1}, {9, 2, 1}, {16, 2, 1}, {-3, 0, 0},
	}
	for _, tt := range tests {
		if got := idx.Rub3Number(tt.line); got != tt.wantRub3 {
			t.Errorf("Rub3Number(%d) = %d, want %d", tt.line, got, tt.wantRub3)
		}
		if got := idx.JuzNumber(tt.line); got != tt.wantJuz {
			t.Errorf("JuzNumber(%d) = %d, want %d", tt.line, got, tt.wantJuz)
		}
	}
}

func TestIndex_Boundaries(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	if !idx.IsEndOfSurah(6) {
		t.Error("IsEndOfSurah(6) = false, want true")
	}
	if idx.IsEndOfSurah(5) {
		t.Error("IsEndOfSurah(5) = true, want false")
	}
	if !idx.IsEndOfRub3(9) || idx.IsEndOfRub3(10) {
		t.Error("IsEndOfRub3: want only line 9")
	}
	if !idx.IsEndOfPage(10) || idx.IsEndOfPage(11) {
		t.Error("IsEndOfPage: want line 10 and not 11")
	}
	if !idx.IsRightPage(0) || idx.IsRightPage(7) || !idx.IsRightPage(11) {
		t.Error("IsRightPage: want odd pages on the right")
	}
}

func TestIndex_SurahNames(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	lines := []struct {
		line int
		want string
	}{
		{0, "الفاتحة"}, {5, "الفاتحة"}, {7, "البقرة"}, {11, "النساء"}, {16, "الإخلاص"}, {99, ""},
	}
	for _, tt := range lines {
		if got := idx.SurahNameForLine(tt.line); got != tt.want {
			t.Errorf("SurahNameForLine(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
	if got := idx.SurahNameForPage(3); got != "النساء" {
		t.Errorf("SurahNameForPage(3) = %q, want %q", got, "النساء")
	}
}

func TestDefaultSurahs_PageLookup(t *testing.T) {
	t.Parallel()

	idx := corpus.Empty()
	tests := []struct {
		page int
		want string
	}{
		{1, "الفاتحة"},
		{2, "البقرة"},
		{49, "البقرة"},
		{50, "آل عمران"},
		{587, "المطففين"},
		{604, "الناس"},
		{0, ""},
		{-5, ""},
	}
	for _, tt := range tests {
		if got := idx.SurahNameForPage(tt.page); got != tt.want {
			t.Errorf("SurahNameForPage(%d) = %q, want %q", tt.page, got, tt.want)
		}
	}
	if n := len(corpus.DefaultSurahs()); n != 114 {
		t.Errorf("len(DefaultSurahs()) = %d, want 114", n)
	}
}

// TestLoad_FullMushafLayout builds a corpus of 604 single-line pages and
// checks that page numbers run 1..604 without gaps.
func TestLoad_FullMushafLayout(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for p := 1; p <= 604; p++ {
		if p > 1 {
			b.WriteString("\n")
		}
		b.WriteString("سطر\n")
	}
	idx, err := corpus.Load(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Len() != 604 {
		t.Fatalf("Len() = %d, want 604", idx.Len())
	}

	prev := 0
	for i := range idx.Len() {
		page := idx.PageNumber(i)
		if page < prev {
			t.Fatalf("PageNumber(%d) = %d decreased from %d", i, page, prev)
		}
		if page != i+1 {
			t.Fatalf("PageNumber(%d) = %d, want %d", i, page, i+1)
		}
		prev = page
	}
	if got := idx.Pages(); got != 604 {
		t.Errorf("Pages() = %d, want 604", got)
	}
	if got := idx.SurahNameForPage(idx.PageNumber(603)); got != "الناس" {
		t.Errorf("last page surah = %q, want %q", got, "الناس")
	}
}

func TestLoadFile_Compressed(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(filepath.Join("testdata", "sample.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sample.txt.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz.NewWriter: %v", err)
	}
	if _, err := w.Write(raw); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err := corpus.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	plain := loadSample(t)
	if idx.Len() != plain.Len() {
		t.Errorf("Len() = %d, want %d", idx.Len(), plain.Len())
	}
	if idx.Fingerprint() != plain.Fingerprint() {
		t.Error("fingerprint of decompressed asset differs from plain asset")
	}
}

func TestLoadFile_MissingDegrades(t *testing.T) {
	t.Parallel()

	idx, err := corpus.LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("LoadFile(missing): want error")
	}
	if idx == nil {
		t.Fatal("LoadFile(missing): want empty index, got nil")
	}
	if idx.Len() != 0 || idx.PageNumber(0) != 0 || idx.SurahNameForLine(0) != "" || idx.IsEndOfSurah(0) {
		t.Error("empty index: want neutral answers")
	}
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	if got := idx.FindContaining("يُؤمِنونَ"); !slices.Equal(got, []int{9, 10}) {
		t.Errorf("FindContaining = %v, want [9 10]", got)
	}
	if got, ok := idx.FindLineStartingWith("ان الله يامركم"); !ok || got != 11 {
		t.Errorf("FindLineStartingWith = %d, %v; want 11, true", got, ok)
	}
	if _, ok := idx.FindLineStartingWith("   "); ok {
		t.Error("FindLineStartingWith(blank) = true, want false")
	}
	if w := idx.Window(15, 500); len(w) != 2 {
		t.Errorf("Window(15, 500) has %d lines, want 2", len(w))
	}
}
