package utils

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{" hello \n", "hello"},
		{"a\r\nb\rc", "a\nb\nc"},
		// decomposed e + combining acute -> precomposed é
		{"Cafe\u0301", "Caf\u00e9"},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Fatalf("NormalizeText(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestChunkText(t *testing.T) {
	cases := []struct {
		s    string
		max  int
		want []string
	}{
		{"", 10, nil},
		{"short", 10, []string{"short"}},
		{"exact", 5, []string{"exact"}},
		{"abcdefg", 3, []string{"abc", "def", "g"}},
		{"abcdef", 3, []string{"abc", "def"}},
		{"anything", 0, []string{"anything"}},
		// multi-byte runes are never split
		{"ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tc := range cases {
		if got := ChunkText(tc.s, tc.max); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ChunkText(%q, %d) = %#v; want %#v", tc.s, tc.max, got, tc.want)
		}
	}
}

func TestChunkText_TelegramLimit(t *testing.T) {
	s := strings.Repeat("ж", 4096*2+10)
	chunks := ChunkText(s, 4096)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d; want 3", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 4096 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if strings.Join(chunks, "") != s {
		t.Fatalf("chunks do not reassemble the input")
	}
}

func TestParseUserID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"-3", -3, true},
		{"", 0, false},
		{"x", 0, false},
		{"999999999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseUserID(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseUserID(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
