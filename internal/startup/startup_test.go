package startup

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	prev := logging.GetLevel()
	logging.SetLevel(logging.LevelDebug)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
		logging.SetLevel(prev)
	})
	return &buf
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if !strings.Contains(info.String(), info.Version) {
		t.Errorf("String() = %q does not contain version", info.String())
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/metrics", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet).Name("metrics")
	router.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet, http.MethodHead)
	router.PathPrefix("/debug/").Handler(http.NotFoundHandler())

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	want := []RouteInfo{
		{Method: "*", Path: "/debug/"},
		{Method: http.MethodGet, Path: "/healthz"},
		{Method: http.MethodHead, Path: "/healthz"},
		{Method: http.MethodGet, Path: "/metrics", Name: "metrics"},
	}
	if len(routes) != len(want) {
		t.Fatalf("got %d routes, want %d: %+v", len(routes), len(want), routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("route %d = %+v, want %+v", i, routes[i], want[i])
		}
	}
}

func TestCheckDestination(t *testing.T) {
	logs := captureLogs(t)
	dir := filepath.Join(t.TempDir(), "thumbs", "nested")

	if !CheckDestination(dir, 0o755) {
		t.Fatalf("CheckDestination(%s) = false; logs:\n%s", dir, logs)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file was left behind")
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDestination(filepath.Join(blocker, "sub"), 0o755) {
		t.Error("CheckDestination under a regular file = true")
	}
}

func TestLogConfig(t *testing.T) {
	logs := captureLogs(t)
	cfg := config.Default()
	cfg.BaseURL = "https://img.example.com"

	LogConfig(cfg, "defaults")

	for _, want := range []string{"CONFIGURATION", "https://img.example.com", "100x75", "alongside sources", "#ffffff"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("config log missing %q:\n%s", want, logs)
		}
	}
}

func TestLogMemoryConfig(t *testing.T) {
	tests := []struct {
		name string
		res  memory.ConfigResult
		want string
	}{
		{"none", memory.ConfigResult{Source: "none"}, "No memory limit"},
		{"gomemlimit", memory.ConfigResult{Source: memory.EnvGoMemLimit, GoMemLimit: 42}, "42 bytes (from environment)"},
		{"memory limit", memory.ConfigResult{Source: memory.EnvMemoryLimit, ContainerLimit: 100, GoMemLimit: 85, Ratio: 0.85}, "85 bytes (85%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			LogMemoryConfig(tt.res)
			if !strings.Contains(logs.String(), tt.want) {
				t.Errorf("log missing %q:\n%s", tt.want, logs)
			}
		})
	}
}

func TestDisplayAddr(t *testing.T) {
	if got := displayAddr(":9090"); got != "localhost:9090" {
		t.Errorf("displayAddr(:9090) = %q", got)
	}
	if got := displayAddr("10.0.0.1:9090"); got != "10.0.0.1:9090" {
		t.Errorf("displayAddr(10.0.0.1:9090) = %q", got)
	}
}
