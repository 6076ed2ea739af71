package platform

import (
	"path/filepath"
	"testing"
)

func TestPathsFor(t *testing.T) {
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		configRoot string
		dataRoot   string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			configRoot: "/home/me/.config",
			dataRoot:   "/home/me/.local/share",
			wantConfig: "/xdg/config",
			wantData:   "/xdg/data",
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			env:        map[string]string{},
			configRoot: "/home/me/.config",
			dataRoot:   "/home/me/.local/share",
			wantConfig: "/home/me/.config",
			wantData:   "/home/me/.local/share",
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			configRoot: `C:\fallback\config`,
			dataRoot:   `C:\fallback\data`,
			wantConfig: `C:\Roaming`,
			wantData:   `C:\Local`,
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored", "XDG_DATA_HOME": "/ignored"},
			configRoot: "/Users/me/Library/Application Support",
			dataRoot:   "/Users/me/Library/Application Support",
			wantConfig: "/Users/me/Library/Application Support",
			wantData:   "/Users/me/Library/Application Support",
		},
		{
			name:       "other systems use roots",
			goos:       "freebsd",
			configRoot: "/cfg",
			dataRoot:   "/data",
			wantConfig: "/cfg",
			wantData:   "/data",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.configRoot, tc.dataRoot, "cotiza")
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if want := filepath.Join(tc.wantConfig, "cotiza", "config.toml"); p.ConfigPath != want {
				t.Fatalf("ConfigPath = %q, want %q", p.ConfigPath, want)
			}
			if want := filepath.Join(tc.wantConfig, "cotiza", ".env"); p.EnvPath != want {
				t.Fatalf("EnvPath = %q, want %q", p.EnvPath, want)
			}
			if want := filepath.Join(tc.wantData, "cotiza", "cotiza.db"); p.DBPath != want {
				t.Fatalf("DBPath = %q, want %q", p.DBPath, want)
			}
		})
	}
}

func TestPathsForRejectsEmptyInput(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "cotiza"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("darwin", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestDefaultPathsWithOptions(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if filepath.Base(p.ConfigDir) != DefaultAppName || p.DataDir == "" {
		t.Fatalf("unexpected default paths %#v", p)
	}

	dev, err := DefaultPathsWithOptions(Options{AppName: "shop", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(dev.ConfigDir) != "shop-dev" || filepath.Base(dev.DBPath) != "shop-dev.db" {
		t.Fatalf("expected dev suffix, got %#v", dev)
	}
}
