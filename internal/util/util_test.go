package util

import (
	"testing"
	"time"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a": 1}`, `{"a": 1}`},
		{"fenced with language", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence on one line", "```{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\": 1}\n```\n ", `{"a": 1}`},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripCodeFences(tc.in); got != tc.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !ParseBoolEnv("TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("TEST_BOOL", "off")
	if ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected off to parse as false")
	}
	t.Setenv("TEST_BOOL", "banana")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected invalid value to fall back to default")
	}
	if ParseBoolEnv("TEST_BOOL_UNSET", false) {
		t.Error("expected unset variable to fall back to default")
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("got %v, want 90s", got)
	}
	t.Setenv("TEST_DUR", "not-a-duration")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("got %v, want default", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", " 42 ")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	t.Setenv("TEST_INT", "forty-two")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want default", got)
	}
}
