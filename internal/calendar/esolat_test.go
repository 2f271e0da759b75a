package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const esolatPage = `<html><body>
<table>
  <tr><td>Awal Muharram</td><td>27/06/2025</td></tr>
  <tr><td>Awal Ramadan</td><td>1446</td><td>01/03/2025</td></tr>
  <tr><td>Hari Raya Aidilfitri (akhir Ramadhan)</td><td>2025-03-30</td><td>31-03-2026</td></tr>
  <tr><td>Awal Ramadan</td><td>18/02/2026</td></tr>
</table>
</body></html>`

func TestExtractWindow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		html       string
		year       int
		start, end string
		wantErr    bool
	}{
		{name: "ramadan rows", html: esolatPage, year: 2025, start: "2025-03-01", end: "2025-03-30"},
		{name: "next year", html: esolatPage, year: 2026, start: "2026-02-18", end: "2026-03-31"},
		{name: "fallback to text", html: `<div><p>Ramadan mula: 01-03-2025</p><p>Akhir Ramadhan: 30/03/2025</p></div>`, year: 2025, start: "2025-03-01", end: "2025-03-30"},
		{
			name:  "fallback ignores other holidays",
			html:  `<p>Ramadan 1446: 01/03/2025 hingga 30/03/2025</p><p>Cuti Krismas: 25/12/2025</p><p>Tahun Baru: 01/01/2025</p>`,
			year:  2025,
			start: "2025-03-01",
			end:   "2025-03-30",
		},
		{name: "fallback without ramadan", html: `<p>Tahun Baru: 01/01/2025</p>`, year: 2025, wantErr: true},
		{name: "no dates", html: `<p>Tiada data</p>`, year: 2025, wantErr: true},
		{name: "wrong year", html: esolatPage, year: 2030, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := ExtractWindow(strings.NewReader(tc.html), tc.year)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", r)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractWindow: %v", err)
			}
			if r.Start.String() != tc.start || r.End.String() != tc.end {
				t.Fatalf("range = %s..%s, want %s..%s", r.Start, r.End, tc.start, tc.end)
			}
		})
	}
}

func TestESolatFetchWindow(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageId") == "" {
			http.Error(w, "missing page", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(esolatPage))
	}))
	defer srv.Close()

	e := NewESolat(srv.URL+"/index.php?pageId=26", srv.Client())
	r, err := e.FetchWindow(context.Background(), 2025)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if r.Start.String() != "2025-03-01" || r.Source != e.URL {
		t.Fatalf("range = %+v", r)
	}

	bad := NewESolat(srv.URL+"/index.php", srv.Client())
	if _, err := bad.FetchWindow(context.Background(), 2025); err == nil {
		t.Fatal("expected error on 404")
	}
}
