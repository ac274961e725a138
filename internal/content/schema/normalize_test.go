package schema

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"windows newlines", "a\r\nb\r\n", "a\nb\n"},
		{"tabs", "\tx\t\ty", "   x      y"},
		{"trailing spaces", "a   \nb \n", "a\nb\n"},
		{"trailing tab", "a\t\nb", "a\nb"},
		{"blank lines kept", "a\n\n\nb\n", "a\n\n\nb\n"},
		{"whitespace only lines", "a\n   \n\t\nb", "a\n\n\nb"},
		{"no final newline", "a  ", "a  "},
		{"vertical tab and form feed", "a\v\nb \f\v\nc", "a\nb\nc"},
		{"mixed", "<p>\r\n\tHi  \r\n</p>\r\n", "<p>\n   Hi\n</p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a \r\n\tb\t\r\n\r\n c  \f\n",
		"\t\t\n\r\r\n  \n",
		"trailing\f \t\n",
		"v\v\n\v \n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
