package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testManifest = `
state:
  users: []
  profile:
    name: ada
    tags: [admin]
modifiers:
  - name: loadUsers
    delay: 30ms
    result:
      - id: a
    reducers:
      - selector: users
        replace: result
      - selector: profile
        merge: "{loaded: true}"
calls:
  - modifier: loadUsers
`

func writeManifest(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	if err := runValidate(&out, writeManifest(t, testManifest)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "1 modifiers, 2 reducers, 1 calls") {
		t.Fatalf("unexpected output %q", out.String())
	}

	bad := writeManifest(t, "calls:\n  - modifier: ghost\n")
	if err := runValidate(&out, bad); err == nil {
		t.Fatalf("expected validation to fail")
	}
}

func TestRunDescribe(t *testing.T) {
	var out bytes.Buffer
	if err := runDescribe(&out, writeManifest(t, testManifest)); err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"profile.name", "profile.tags", "users"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in %q", want, out.String())
		}
	}
}

func TestRunManifestPrintsLoadingThenFinalState(t *testing.T) {
	var out bytes.Buffer
	err := runManifest(context.Background(), &out, writeManifest(t, testManifest), runConfig{
		interval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least one loading snapshot and the final state, got %q", out.String())
	}

	var loading map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &loading); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	profile, _ := loading["profile"].(map[string]any)
	if profile["_loading"] != true {
		t.Fatalf("expected profile to be flagged loading, got %#v", loading)
	}

	var final map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &final); err != nil {
		t.Fatalf("decode final line: %v", err)
	}
	profile, _ = final["profile"].(map[string]any)
	if profile["loaded"] != true || profile["_loading"] != nil {
		t.Fatalf("unexpected final profile %#v", profile)
	}
	if users, _ := final["users"].([]any); len(users) != 1 {
		t.Fatalf("expected users to be loaded, got %#v", final["users"])
	}
}
