package infra

import (
	"strings"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	query := `--sql c9148927-59c3-4cdc-a910-f6011e1261c6
select 1;
`
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "c9148927-59c3-4cdc-a910-f6011e1261c6" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.Contains(trimmed, "--sql") {
		t.Fatalf("trimmed query still carries the marker: %q", trimmed)
	}
	if !strings.Contains(trimmed, "select 1") {
		t.Fatalf("trimmed query lost the statement: %q", trimmed)
	}
}

func TestExtractMarkerRejectsUntagged(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no marker", "select 1;"},
		{"comment but no uuid", "--sql next-best-job\nselect 1;"},
		{"uppercase uuid", "--sql C9148927-59C3-4CDC-A910-F6011E1261C6\nselect 1;"},
		{"trailing junk", "--sql c9148927-59c3-4cdc-a910-f6011e1261c6 v2\nselect 1;"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := extractMarker(tc.query); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
