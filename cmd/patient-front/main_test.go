package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/abernathy/patientfront/internal/config"
	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/identity"
	"github.com/abernathy/patientfront/internal/platform/db"
)

// "main-test-signing-key" in base64.
const testSecret = "bWFpbi10ZXN0LXNpZ25pbmcta2V5"

type stubUsers struct{}

func (stubUsers) Authenticate(_ context.Context, username, password string) (*credential.Identity, error) {
	if username == "alice" && password == "correct horse" {
		return &credential.Identity{Username: "alice", Roles: []string{"Organizer"}, Authenticated: true}, nil
	}
	return nil, identity.ErrInvalidCredentials
}

func testConfig(gatewayURL string) *config.Config {
	return &config.Config{
		Env:                "test",
		GatewayURL:         gatewayURL,
		AuthTokenPath:      "/api/auth/token",
		PatientPath:        "/api/patients",
		HistoryPath:        "/api/gateway/history",
		RiskPath:           "/diabetes/risk",
		JWTSecretKey:       testSecret,
		CredentialScope:    "identity",
		CredentialStore:    config.StoreMemory,
		CredentialCacheTTL: time.Hour,
		SerializeAcquire:   true,
		RiskLookup:         "requested",
		RemoteTimeout:      5 * time.Second,
		RequestTimeout:     5 * time.Second,
		BodyLimit:          "1M",
	}
}

func newStubGateway(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	issued := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/token":
			issued++
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"username": "alice",
				"exp":      time.Now().Add(time.Hour).Unix(),
			})
			s, _ := tok.SignedString([]byte("main-test-signing-key"))
			_, _ = io.WriteString(w, s)
		case "/api/patients":
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `[{"id":1,"nom":"Bob","prenom":"Test","dateDeNaissance":"1994-01-10","genre":"M"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &issued
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestNewServer_Routes(t *testing.T) {
	ts, issued := newStubGateway(t)
	cfg := testConfig(ts.URL)

	e, err := newServer(cfg, zerolog.Nop(), deps{
		users:   stubUsers{},
		cache:   credential.NewMemoryCache(cfg.Scope()),
		health:  okPinger{},
		gateway: ts.Client(),
	})
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	t.Run("health is public", func(t *testing.T) {
		for _, path := range []string{"/health", "/health/db"} {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", path, rec.Code)
			}
		}
	})

	t.Run("patients require login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if *issued != 0 {
			t.Errorf("expected no issuance before login, got %d", *issued)
		}
	})

	t.Run("logged in user lists patients", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/patients", nil)
			req.SetBasicAuth("alice", "correct horse")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Error("expected no-store on patient data")
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected request id header")
			}
			var page struct {
				Total int `json:"total"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if page.Total != 1 {
				t.Errorf("expected one patient, got %d", page.Total)
			}
		}
		if *issued != 1 {
			t.Errorf("expected the credential to be reused, got %d issuances", *issued)
		}
	})
}

func TestNewServer_RejectsBadSecret(t *testing.T) {
	cfg := testConfig("http://gateway")
	cfg.JWTSecretKey = "%%%"
	if _, err := newServer(cfg, zerolog.Nop(), deps{users: stubUsers{}, cache: credential.NewMemoryCache(credential.ScopeIdentity)}); err == nil {
		t.Fatal("expected error for invalid secret")
	}
}

func TestNewCredentialCache(t *testing.T) {
	cfg := testConfig("http://gateway")

	cache, rdb, err := newCredentialCache(context.Background(), cfg)
	if err != nil {
		t.Fatalf("memory cache: %v", err)
	}
	if _, ok := cache.(*credential.MemoryCache); !ok || rdb != nil {
		t.Errorf("expected memory cache without redis client, got %T", cache)
	}

	mr := miniredis.RunT(t)
	cfg.CredentialStore = config.StoreRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cache, rdb, err = newCredentialCache(context.Background(), cfg)
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	defer rdb.Close()
	if _, ok := cache.(*credential.RedisCache); !ok {
		t.Errorf("expected redis cache, got %T", cache)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Env: "production"}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestReadLine(t *testing.T) {
	tests := map[string]string{
		"secret\n":   "secret",
		"secret\r\n": "secret",
		"secret":     "secret",
		"":           "",
	}
	for in, want := range tests {
		got, err := readLine(strings.NewReader(in))
		if err != nil {
			t.Fatalf("readLine(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("readLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_app_users.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-05-01 12:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
