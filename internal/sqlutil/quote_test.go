package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		left     byte
		right    byte
		expected string
	}{
		{"users", '`', '`', "`users`"},
		{"select", '`', '`', "`select`"},
		{"first name", '`', '`', "`first name`"},
		{"user`data", '`', '`', "`user``data`"},
		{"`users`", '`', '`', "`users`"},
		{"*", '`', '`', "*"},
		{"users", '"', '"', `"users"`},
		{`a"b`, '"', '"', `"a""b"`},
		{`"users"`, '"', '"', `"users"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input, tt.left, tt.right)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"t.id", "`t`.`id`"},
		{"t.*", "`t`.*"},
		{"`t`.`id`", "`t`.`id`"},
		{"`t`.id", "`t`.`id`"},
		{"id", "`id`"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteQualified(tt.input, '`', '`')
			if result != tt.expected {
				t.Errorf("QuoteQualified(%q) = %q, want %q", tt.input, result, tt.expected)
			}
			if again := QuoteQualified(result, '`', '`'); again != result {
				t.Errorf("QuoteQualified is not idempotent: %q -> %q", result, again)
			}
		})
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "'hello'"},
		{"it's", "'it''s'"},
		{"a'b'c", "'a''b''c'"},
		{"", "''"},
		{`back\slash`, `'back\slash'`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteString(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteStringBackslash(t *testing.T) {
	if got := QuoteStringBackslash(`a\'b`); got != `'a\\''b'` {
		t.Errorf("QuoteStringBackslash = %q", got)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`c:\path`: `c:\\path`,
	}
	for input, expected := range tests {
		if got := EscapeLike(input); got != expected {
			t.Errorf("EscapeLike(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestUnquote(t *testing.T) {
	for _, input := range []string{"`name`", `"name"`, "[name]", " name "} {
		if got := Unquote(input); got != "name" {
			t.Errorf("Unquote(%q) = %q", input, got)
		}
	}
}
