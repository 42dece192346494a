package regnet

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindSource(t *testing.T) {
	single := t.TempDir()
	nq := filepath.Join(single, "protrend.nq")
	if err := os.WriteFile(nq, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	double := t.TempDir()
	for _, name := range []string{"a.nq", "b.nq"} {
		if err := os.WriteFile(filepath.Join(double, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		argv    []string
		want    string
		wantErr bool
	}{
		{"file", []string{nq}, nq, false},
		{"directory", []string{single}, nq, false},
		{"ambiguous directory", []string{double}, "", true},
		{"empty directory", []string{t.TempDir()}, "", true},
		{"missing", []string{filepath.Join(single, "missing.nq")}, "", true},
		{"no arguments", nil, "", true},
		{"two arguments", []string{nq, nq}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindSource(tt.argv...)
			if (err != nil) != tt.wantErr {
				t.Errorf("FindSource() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("FindSource() got = %v, want = %v", got, tt.want)
			}
		})
	}
}
