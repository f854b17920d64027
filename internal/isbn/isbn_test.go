// file: internal/isbn/isbn_test.go
// version: 1.0.0
// guid: 9e1f3a5b-7c8d-4e2f-a6b0-1c3d5e7f9a2b

package isbn

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"urn:isbn:978-0-306-40615-7", "9780306406157"},
		{"ISBN:0-306-40615-2", "0306406152"},
		{" 043942089x ", "043942089X"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dune-9780441013593.epub", "9780441013593"},
		{"0306406152 some book.epub", "0306406152"},
		{"harry-potter-043942089x.epub", "043942089X"},
		{"no identifier here.epub", ""},
		// ISBN-13 wins when both forms appear.
		{"0306406152 9780441013593.epub", "9780441013593"},
	}
	for _, tt := range tests {
		if got := FromFilename(tt.in); got != tt.want {
			t.Errorf("FromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{
		"0306406152",    // classic ISBN-10 example
		"043942089X",    // X check character
		"9780306406157", // ISBN-13 equivalent of 0306406152
		"978-0-306-40615-7",
	}
	for _, s := range valid {
		if !IsValid(s) {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"0306406153",     // wrong check digit
		"9780306406158",  // wrong check digit
		"030640615",      // too short
		"97803064061579", // too long
		"03064061ZZ",     // bad charset
		"X306406152",     // X not in final position
	}
	for _, s := range invalid {
		if IsValid(s) {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}

func TestTo13(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0306406152", "9780306406157"},
		{"043942089X", "9780439420891"},
		{"9780306406157", ""}, // already 13 digits
		{"12345", ""},
	}
	for _, tt := range tests {
		if got := To13(tt.in); got != tt.want {
			t.Errorf("To13(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Every successful conversion must carry the 978 prefix and satisfy the
// ISBN-13 checksum.
func TestTo13ProducesValidISBN13(t *testing.T) {
	for _, in := range []string{"0306406152", "0439420890", "043942089X", "0747532699"} {
		got := To13(in)
		if len(got) != 13 || got[:3] != "978" {
			t.Fatalf("To13(%q) = %q, want 13 digits with 978 prefix", in, got)
		}
		if !IsValid(got) {
			t.Errorf("To13(%q) = %q fails the ISBN-13 checksum", in, got)
		}
	}
}
