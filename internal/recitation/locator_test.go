package recitation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	classifiermock "github.com/amrmuhaffez/muhaffez/pkg/classifier/mock"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// misspelledNisa59 is the opening of An-Nisa 59 with one wrong letter, so
// that no line has it as a prefix.
const misspelledNisa59 = "يا ايها الذبن امنوا"

func TestLocator_FastPath(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	l := NewLocator(idx)
	ctx := context.Background()

	tests := []struct {
		name       string
		text       string
		candidates []int
		opening    bool
	}{
		{name: "transcript is a line prefix", text: "ان الله يامركم", candidates: []int{lineNisa58}},
		{name: "line is a transcript prefix", text: "الم ذلك الكتاب", candidates: []int{7}},
		{name: "short word prefix", text: "الذين", candidates: []int{lineBaqarah3}},
		{name: "opening line is flagged, not listed", text: "بسم الله الرحمن", opening: true},
		{name: "nothing", text: "hello world"},
		{name: "empty", text: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, opening := l.FastPath(ctx, tt.text)
			if !slices.Equal(got, tt.candidates) {
				t.Errorf("candidates = %v, want %v", got, tt.candidates)
			}
			if opening != tt.opening {
				t.Errorf("opening = %v, want %v", opening, tt.opening)
			}
		})
	}
}

func TestLocator_Decide(t *testing.T) {
	t.Parallel()

	l := NewLocator(corpus.Empty())
	long := strings.Repeat("ب", 17)

	tests := []struct {
		name       string
		text       string
		candidates []int
		want       int
		ok         bool
	}{
		{name: "single candidate", text: "قصير", candidates: []int{4}, want: 4, ok: true},
		{name: "ambiguous short text", text: "قصير", candidates: []int{4, 9}},
		{name: "long text takes earliest", text: long, candidates: []int{4, 9}, want: 4, ok: true},
		{name: "no candidates", text: long},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := l.Decide(tt.text, tt.candidates)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Decide = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLocator_FallbackClassifier(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		clf   *classifiermock.Classifier
		found bool
		line  int
		path  string
		open  bool
	}{
		{
			name:  "accepted candidate",
			clf:   &classifiermock.Classifier{Candidates: []classifier.Candidate{{Line: 2}, {Line: lineNisa59, Probability: 0.4}}},
			found: true, line: lineNisa59, path: observe.PathClassifier,
		},
		{
			name:  "rejected candidates fall back to the scan",
			clf:   &classifiermock.Classifier{Candidates: []classifier.Candidate{{Line: 13}, {Line: 99}}},
			found: true, line: lineNisa59, path: observe.PathScan,
		},
		{
			name:  "classifier error falls back to the scan",
			clf:   &classifiermock.Classifier{Err: errors.New("unavailable")},
			found: true, line: lineNisa59, path: observe.PathScan,
		},
		{
			name: "opening line is reported",
			clf: &classifiermock.Classifier{ByText: map[string][]classifier.Candidate{
				"بسم الله الرحمن": {{Line: 0}},
			}},
			open: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMetrics(t)
			l := NewLocator(idx, WithClassifier(tt.clf), WithMetrics(m))

			text := misspelledNisa59
			if tt.open {
				text = "بسم الله الرحمن"
			}
			res := l.Fallback(ctx, text)
			if res.Found != tt.found || res.Opening != tt.open {
				t.Fatalf("Fallback = %+v", res)
			}
			if tt.found && (res.Line != tt.line || res.Path != tt.path) {
				t.Errorf("line, path = %d, %q, want %d, %q", res.Line, res.Path, tt.line, tt.path)
			}
		})
	}
}

func TestLocator_FallbackTopK(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	cfg := DefaultConfig()
	cfg.ClassifierTopK = 1
	cfg.ScanAccept = 1.1 // make the scan unable to answer
	clf := &classifiermock.Classifier{Candidates: []classifier.Candidate{{Line: 2}, {Line: lineNisa59}}}
	l := NewLocator(idx, WithConfig(cfg), WithClassifier(clf))

	if res := l.Fallback(context.Background(), misspelledNisa59); res.Found {
		t.Errorf("candidate beyond top-k accepted: %+v", res)
	}
}

func TestLocator_ScanRejectsNoise(t *testing.T) {
	t.Parallel()

	l := NewLocator(loadSample(t))
	if res := l.Fallback(context.Background(), "hello world"); res.Found {
		t.Errorf("Fallback(hello world) = %+v, want not found", res)
	}
}

func TestLocator_ScanAcceptsWeakArabic(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	text := arabic.Normalize("سبحان ربي العظيم وبحمده")

	line, score := NewLocator(idx).Scan(context.Background(), text)
	if line <= 0 || score <= 0 || score >= 0.5 {
		t.Fatalf("Scan = %d (%.3f), want a weak positive match", line, score)
	}

	res := NewLocator(idx).Fallback(context.Background(), text)
	if !res.Found || res.Line != line || res.Path != observe.PathScan {
		t.Errorf("Fallback = %+v, want the best line %d", res, line)
	}

	cfg := DefaultConfig()
	cfg.ScanAccept = 0.5
	if res := NewLocator(idx, WithConfig(cfg)).Fallback(context.Background(), text); res.Found {
		t.Errorf("Fallback with a 0.5 floor = %+v, want not found", res)
	}
}

// sequentialScan is the reference behaviour Scan must reproduce.
func sequentialScan(idx *corpus.Index, text string, earlyExit float64) (int, float64) {
	best, bestScore := -1, 0.0
	for i := range idx.Len() {
		s := arabic.PrefixSimilarity(idx.Line(i).Normalized(), text)
		if s > bestScore {
			best, bestScore = i, s
		}
		if s > earlyExit {
			break
		}
	}
	return best, bestScore
}

func TestLocator_ScanMatchesSequential(t *testing.T) {
	t.Parallel()

	// A corpus large enough to be split into several shards, with repeated
	// lines so that ties and early exits land in different shards.
	stems := []string{"قل هو الله احد", "الله الصمد", "لم يلد ولم يولد", "ولم يكن له كفوا احد", "ان الله يامركم"}
	var b strings.Builder
	for i := range 3000 {
		fmt.Fprintf(&b, "%s %d\n", stems[(i*7)%len(stems)], i%13)
		if i%40 == 39 {
			b.WriteString("\n")
		}
	}
	idx, err := corpus.Load(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	l := NewLocator(idx)

	for _, text := range []string{
		"ولم يكن له كفوا احد 5",
		"ان الله يامرك",
		"قل هو الله",
		"zzz",
		"الصمد الله",
	} {
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			wantLine, wantScore := sequentialScan(idx, text, DefaultConfig().EarlyExit)
			gotLine, gotScore := l.Scan(context.Background(), text)
			if gotLine != wantLine || gotScore != wantScore {
				t.Errorf("Scan = %d (%.3f), want %d (%.3f)", gotLine, gotScore, wantLine, wantScore)
			}
		})
	}
}

func TestLocator_ScanCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLocator(loadSample(t))
	if line, _ := l.Scan(ctx, misspelledNisa59); line != -1 {
		t.Errorf("Scan on cancelled context = %d, want -1", line)
	}
}

func TestLocator_Locate(t *testing.T) {
	t.Parallel()

	idx := loadSample(t)
	l := NewLocator(idx)
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		found bool
		line  int
		path  string
	}{
		{name: "diacritics", text: "إِنَّ اللَّهَ يَأمُرُكُم أَن", found: true, line: lineNisa58, path: observe.PathFast},
		{name: "isti'adha and basmala", text: "أعوذ بالله من الشيطان الرجيم بسم الله الرحمن الرحيم قل هو الله احد", found: true, line: 13, path: observe.PathFast},
		{name: "misspelled", text: misspelledNisa59, found: true, line: lineNisa59, path: observe.PathScan},
		{name: "too short", text: "الله"},
		{name: "noise", text: "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := l.Locate(ctx, tt.text)
			if res.Found != tt.found {
				t.Fatalf("Locate = %+v, want found=%v", res, tt.found)
			}
			if tt.found && (res.Line != tt.line || res.Path != tt.path) {
				t.Errorf("line, path = %d, %q, want %d, %q", res.Line, res.Path, tt.line, tt.path)
			}
		})
	}
}
