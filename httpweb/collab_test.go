package httpweb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStatFileInfoScannerList(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.g"), []byte("G28\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	scanner := newStatFileInfoScanner(root)
	entries, err := scanner.List(".")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}

	var gotFile, gotDir bool
	for _, e := range entries {
		switch e.Name {
		case "a.g":
			gotFile = true
			if e.IsDir {
				t.Error("a.g should not be reported as a directory")
			}
			if e.Size != 4 {
				t.Errorf("a.g size = %d, want 4", e.Size)
			}
		case "sub":
			gotDir = true
			if !e.IsDir {
				t.Error("sub should be reported as a directory")
			}
		}
	}
	if !gotFile || !gotDir {
		t.Errorf("List missing expected entries: file=%v dir=%v", gotFile, gotDir)
	}
}

func TestStatFileInfoScannerListMissingDir(t *testing.T) {
	scanner := newStatFileInfoScanner(t.TempDir())
	if _, err := scanner.List("nope"); err == nil {
		t.Error("List should error for a nonexistent directory")
	}
}

func TestStatFileInfoScannerStat(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.g"), []byte("G28\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	scanner := newStatFileInfoScanner(root)
	info, err := scanner.Stat("a.g")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Name != "a.g" || info.Size != 4 || info.IsDir {
		t.Errorf("Stat = %+v, want name a.g size 4 isDir false", info)
	}
	if info.ModTime.After(time.Now()) {
		t.Error("ModTime should not be in the future")
	}
}

func TestStatFileInfoScannerStatMissing(t *testing.T) {
	scanner := newStatFileInfoScanner(t.TempDir())
	if _, err := scanner.Stat("nope.g"); err == nil {
		t.Error("Stat should error for a missing file")
	}
}

func TestStaticObjectModel(t *testing.T) {
	m := staticObjectModel{boardType: "Duet3"}
	body, err := m.Model("boards", "")
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	got := string(body)
	if !strings.Contains(got, `"key":"boards"`) || !strings.Contains(got, `"boardType":"Duet3"`) {
		t.Errorf("Model body = %s, missing expected fields", got)
	}
}
