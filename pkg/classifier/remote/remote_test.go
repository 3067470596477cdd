package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPredict(t *testing.T) {
	t.Parallel()

	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`[{"line":7,"probability":0.2},{"line":-1,"probability":0.9},{"line":12,"probability":0.75},{"line":3,"probability":0.1}]`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, WithTopK(2), WithHeader("Authorization", "Bearer secret"))
	cands, err := c.Predict(context.Background(), "يا ايها الذين امنوا")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Text != "يا ايها الذين امنوا" || got.TopK != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(cands) != 2 || cands[0].Line != 12 || cands[1].Line != 7 {
		t.Errorf("candidates = %+v, want lines 12 then 7", cands)
	}
}

func TestPredict_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
			wantErr: "status 503: model not loaded",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"line":`))
			},
			wantErr: "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			_, err := New(srv.URL).Predict(context.Background(), "text")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPredict_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := New(srv.URL, WithTimeout(20*time.Millisecond))
	start := time.Now()
	if _, err := c.Predict(context.Background(), "text"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Predict took %v, want it bounded by the timeout", time.Since(start))
	}
}
