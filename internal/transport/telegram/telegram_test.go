package telegram

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "resaleradar/internal/transport"
	logx "resaleradar/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello\nworld", 4000)
	if len(got) != 1 || got[0] != "hello\nworld" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlineBoundary(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	got := splitText(text, 100)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(got), got)
	}
	if got[0] != strings.Repeat("a", 60) {
		t.Fatalf("first chunk = %q, want the a-run up to the newline", got[0])
	}
	if got[1] != strings.Repeat("b", 60) {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardBreakWithoutNewline(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 250)
	got := splitText(text, 100)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	if len(got[0]) != 100 || len(got[1]) != 100 || len(got[2]) != 50 {
		t.Fatalf("chunk lengths = %d/%d/%d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestSplitTextRuneSafe(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("¥", 150)
	got := splitText(text, 100)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	for _, chunk := range got {
		if strings.ContainsRune(chunk, '�') {
			t.Fatalf("chunk contains broken rune: %q", chunk)
		}
	}
	if got[0]+got[1] != text {
		t.Fatal("chunks don't reassemble the input")
	}
}

func TestWrapAPIError(t *testing.T) {
	t.Parallel()

	var st kit.StatusError

	err := wrapAPIError(tele.FloodError{RetryAfter: 3})
	if !errors.As(err, &st) || st.StatusCode() != 429 {
		t.Fatalf("flood error = %v, want status 429", err)
	}

	err = wrapAPIError(&tele.Error{Code: 400, Description: "Bad Request: chat not found"})
	if !errors.As(err, &st) || st.StatusCode() != 400 {
		t.Fatalf("api error = %v, want status 400", err)
	}

	plain := wrapAPIError(errors.New("dial tcp: timeout"))
	if errors.As(plain, &st) {
		t.Fatalf("plain error must pass through unwrapped, got %v", plain)
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "   "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
