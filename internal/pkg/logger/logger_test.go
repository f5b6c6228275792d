package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"jane.roe@example.com": "ja***@example.com",
		"ab@example.com":       "***@example.com",
		"not-an-email":         "***@***",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogRedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("job sent", "to_email", "jane.roe@example.com", "campaign", "c1")

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if strings.Contains(entry["to_email"], "jane.roe") {
		t.Errorf("email not redacted: %q", entry["to_email"])
	}
	if entry["level"] != "INFO" || entry["msg"] != "job sent" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
