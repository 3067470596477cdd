package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxSearchResults    = 50

	// maxBody caps request bodies; transcripts are a few hundred bytes.
	maxBody = 64 << 10
)

// LineInfo describes one corpus line.
type LineInfo struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	Juz        int    `json:"juz"`
	Rub3       int    `json:"rub3"`
	Surah      string `json:"surah"`
	RightPage  bool   `json:"right_page"`
	EndOfRub3  bool   `json:"end_of_rub3"`
	EndOfSurah bool   `json:"end_of_surah"`
	EndOfPage  bool   `json:"end_of_page"`
}

func (s *Server) lineInfo(i int) LineInfo {
	idx := s.cfg.Index
	return LineInfo{
		Index:      i,
		Text:       idx.Line(i).Text(),
		Page:       idx.PageNumber(i),
		Juz:        idx.JuzNumber(i),
		Rub3:       idx.Rub3Number(i),
		Surah:      idx.SurahNameForLine(i),
		RightPage:  idx.IsRightPage(i),
		EndOfRub3:  idx.IsEndOfRub3(i),
		EndOfSurah: idx.IsEndOfSurah(i),
		EndOfPage:  idx.IsEndOfPage(i),
	}
}

type locateRequest struct {
	Text string `json:"text"`
}

// LocateResponse is the body of POST /v1/locate.
type LocateResponse struct {
	Found      bool      `json:"found"`
	Path       string    `json:"path,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Opening    bool      `json:"opening,omitempty"`
	Candidates []int     `json:"candidates,omitempty"`
	Line       *LineInfo `json:"line,omitempty"`
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	res := s.cfg.Locator.Locate(r.Context(), req.Text)
	out := LocateResponse{
		Found:      res.Found,
		Path:       res.Path,
		Score:      res.Score,
		Opening:    res.Opening,
		Candidates: res.Candidates,
	}
	if res.Found {
		info := s.lineInfo(res.Line)
		out.Line = &info
	}
	observe.Logger(r.Context()).Debug("locate", "found", res.Found, "line", res.Line, "path", res.Path)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	if i < 0 || i >= s.cfg.Index.Len() {
		jsonError(w, "line not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.lineInfo(i))
}

func (s *Server) handleSearchLines(w http.ResponseWriter, r *http.Request) {
	q := arabic.Normalize(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "q is required", http.StatusBadRequest)
		return
	}
	hits := s.cfg.Index.FindContaining(q)
	lines := make([]LineInfo, 0, min(len(hits), maxSearchResults))
	for _, i := range hits {
		if len(lines) == maxSearchResults {
			break
		}
		lines = append(lines, s.lineInfo(i))
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(hits), "lines": lines})
}

// SummaryJSON is one entry of GET /v1/history.
type SummaryJSON struct {
	SessionID  string `json:"session_id"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	AnchorLine int    `json:"anchor_line"`
	Page       int    `json:"page"`
	Surah      string `json:"surah"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		jsonError(w, "session history is not configured", http.StatusNotFound)
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	sums, err := s.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("list history", "err", err)
		jsonError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	out := make([]SummaryJSON, len(sums))
	for i, sum := range sums {
		out[i] = SummaryJSON{
			SessionID:  sum.SessionID,
			StartedAt:  sum.StartedAt.UTC().Format(time.RFC3339),
			EndedAt:    sum.EndedAt.UTC().Format(time.RFC3339),
			AnchorLine: sum.AnchorLine,
			Page:       sum.Page,
			Surah:      sum.Surah,
			Matched:    sum.Matched,
			Unmatched:  sum.Unmatched,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
