package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weftworks/weft/pkg/schema"
)

func TestBuildBase(t *testing.T) {
	app := &schema.App{Meta: schema.Meta{Vars: map[string]string{"env": "prod", "team": "crm"}}}

	base, err := buildBase(app, []string{"env=staging"}, []string{"rowId=r42"})
	if err != nil {
		t.Fatal(err)
	}
	if base["env"] != "staging" {
		t.Errorf("--var should override app vars, got %v", base["env"])
	}
	if base["team"] != "crm" {
		t.Errorf("app var lost: %v", base["team"])
	}
	if base["rowId"] != "r42" {
		t.Errorf("--context value missing: %v", base["rowId"])
	}
}

func TestBuildBaseRejectsBadPair(t *testing.T) {
	app := &schema.App{}
	if _, err := buildBase(app, []string{"novalue"}, nil); err == nil {
		t.Error("expected error for malformed --var")
	}
	if _, err := buildBase(app, nil, []string{"novalue"}); err == nil {
		t.Error("expected error for malformed --context")
	}
}

func TestBuildCapsUnknownMode(t *testing.T) {
	if _, _, err := buildCaps("replay", ""); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBuildCapsLiveNeedsAPIURL(t *testing.T) {
	t.Setenv("WEFT_API_URL", "")
	if _, _, err := buildCaps("live", ""); err == nil {
		t.Error("expected error when WEFT_API_URL is unset")
	}

	t.Setenv("WEFT_API_URL", "https://api.example.com")
	caps, _, err := buildCaps("live", "")
	if err != nil {
		t.Fatal(err)
	}
	if caps.Persistence == nil {
		t.Error("live mode should wire the API persistence client")
	}
}

func TestLoadChain(t *testing.T) {
	content := `apiVersion: app/v1
meta:
  name: crm
screens:
  - id: home
    components:
      - id: saveBtn
        triggers:
          - event: click
            actions:
              - kind: save-row
`
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	app, acts, err := loadChain(path, "home", "saveBtn", "click")
	if err != nil {
		t.Fatal(err)
	}
	if app.Meta.Name != "crm" {
		t.Errorf("app name = %q", app.Meta.Name)
	}
	if len(acts) != 1 || acts[0].Kind != "save-row" {
		t.Errorf("unexpected chain: %+v", acts)
	}

	if _, _, err := loadChain(path, "home", "saveBtn", "hover"); err == nil {
		t.Error("expected error for unknown event")
	}
	if _, _, err := loadChain(path, "home", "saveBtn", "hover"); err != nil && !strings.Contains(err.Error(), "trigger") {
		t.Errorf("unexpected error: %v", err)
	}
}
