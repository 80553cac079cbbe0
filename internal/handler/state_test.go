package handler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func boolPtr(b bool) *bool { return &b }

func TestParseStateHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    SessionState
		wantErr bool
	}{
		{
			name:   "empty",
			header: "",
			want:   SessionState{},
		},
		{
			name:   "cart and protection",
			header: `cart="c1-abc", protection=?1`,
			want:   SessionState{CartToken: "c1-abc", Protection: boolPtr(true)},
		},
		{
			name:   "protection unchecked",
			header: `protection=?0`,
			want:   SessionState{Protection: boolPtr(false)},
		},
		{
			name:   "unknown keys ignored",
			header: `cart="c1", theme="dark"`,
			want:   SessionState{CartToken: "c1"},
		},
		{
			name:   "bare key is true",
			header: `protection`,
			want:   SessionState{Protection: boolPtr(true)},
		},
		{
			name:    "cart not a string",
			header:  `cart=42`,
			wantErr: true,
		},
		{
			name:    "protection not a boolean",
			header:  `protection="yes"`,
			wantErr: true,
		},
		{
			name:    "inner list",
			header:  `cart=("a" "b")`,
			wantErr: true,
		},
		{
			name:    "malformed",
			header:  `cart="unterminated`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStateHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStateHeader(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseStateHeader(%q) mismatch (-want +got):\n%s", tt.header, diff)
			}
		})
	}
}

func TestFormatStateHeader(t *testing.T) {
	tests := []struct {
		name  string
		state SessionState
		want  string
	}{
		{"empty", SessionState{}, ""},
		{"cart only", SessionState{CartToken: "c1"}, `cart="c1"`},
		{"both", SessionState{CartToken: "c1", Protection: boolPtr(false)}, `cart="c1", protection=?0`},
		{"checked is a bare key", SessionState{CartToken: "c1", Protection: boolPtr(true)}, `cart="c1", protection`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatStateHeader(tt.state)
			if err != nil {
				t.Fatalf("FormatStateHeader: %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatStateHeader = %q, want %q", got, tt.want)
			}

			back, err := ParseStateHeader(got)
			if err != nil {
				t.Fatalf("ParseStateHeader(%q): %v", got, err)
			}
			if diff := cmp.Diff(tt.state, back); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
