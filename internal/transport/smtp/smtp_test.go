package smtp

import (
	"context"
	"strings"
	"testing"

	"github.com/brightsend/crm/internal/service/sending"
)

func TestBuildMultipartAlternative(t *testing.T) {
	tr := New("relay.example.com", 587, "", "")
	payload := string(tr.build(&sending.Message{
		To:        "jane@example.com",
		FromEmail: "news@brightsend.io",
		FromName:  "Brightsend",
		Subject:   "Welcome",
		HTML:      "<body><p>Hi</p></body>",
		Text:      "Hi",
	}))

	for _, want := range []string{
		"From: Brightsend <news@brightsend.io>\r\n",
		"To: jane@example.com\r\n",
		"Subject: Welcome\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/alternative;",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"<p>Hi</p>",
	} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload missing %q", want)
		}
	}

	// Text part precedes HTML so non-HTML clients get the fallback.
	if strings.Index(payload, "text/plain") > strings.Index(payload, "text/html") {
		t.Error("text part must come before the html part")
	}
}

func TestBuildSkipsEmptyTextPart(t *testing.T) {
	tr := New("relay.example.com", 587, "", "")
	payload := string(tr.build(&sending.Message{
		To: "jane@example.com", FromEmail: "news@brightsend.io",
		Subject: "Welcome", HTML: "<p>Hi</p>",
	}))
	if strings.Contains(payload, "text/plain") {
		t.Error("empty text content must not produce a text part")
	}
}

func TestSendRequiresHost(t *testing.T) {
	tr := New("", 0, "", "")
	err := tr.Send(context.Background(), &sending.Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected configuration error")
	}
}
