package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"

	logx "puasapush/pkg/logx"
)

func TestCheckConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{Addr: "0.0.0.0:6060"}},
		{name: "loopback default", cfg: Config{Enabled: true}},
		{name: "localhost", cfg: Config{Enabled: true, Addr: "localhost:6060"}},
		{name: "public with token", cfg: Config{Enabled: true, Addr: "0.0.0.0:6060", Token: "t"}},
		{name: "public without token", cfg: Config{Enabled: true, Addr: ":6060"}, wantErr: true},
		{name: "bad addr", cfg: Config{Enabled: true, Addr: "6060"}, wantErr: true},
		{name: "negative rate", cfg: Config{Enabled: true, BlockProfileRate: -1}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckConfig(%+v) err = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestHandlerTokenGuard(t *testing.T) {
	t.Parallel()
	h := New(Config{Enabled: true, Token: "secret"}, logx.Nop()).Handler()

	tests := []struct {
		name   string
		target string
		auth   string
		want   int
	}{
		{name: "no token", target: "/healthz", want: http.StatusUnauthorized},
		{name: "wrong query token", target: "/healthz?token=nope", want: http.StatusUnauthorized},
		{name: "query token", target: "/healthz?token=secret", want: http.StatusOK},
		{name: "bearer", target: "/healthz", auth: "Bearer secret", want: http.StatusOK},
		{name: "index", target: "/debug/pprof/", auth: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}
