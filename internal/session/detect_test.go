package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	project := t.TempDir()
	state := filepath.Join(project, StateDirName)
	if err := os.MkdirAll(state, 0o755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(project, "src", "pkg")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		cwd    string
		want   string
		wantOK bool
	}{
		{project, state, true},
		{deep, state, true},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := FindRoot(tt.cwd)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FindRoot(%q) = %q, %v; want %q, %v", tt.cwd, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFindRoot_IgnoresFile(t *testing.T) {
	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, StateDirName), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, ok := FindRoot(project); ok && got == filepath.Join(project, StateDirName) {
		t.Errorf("FindRoot matched a regular file: %q", got)
	}
}
