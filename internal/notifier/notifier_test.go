package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"resaleradar/internal/source"
	kit "resaleradar/internal/transport"
	logx "resaleradar/pkg/logx"
)

type sentText struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	sent []sentText
	err  error
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, sentText{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error { return nil }

type statusErr struct {
	code int
}

func (e *statusErr) Error() string   { return fmt.Sprintf("api status %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func testNotification() Notification {
	return Notification{
		Keyword: "vintage camera",
		Item: source.Item{
			Source: "yahoo",
			ID:     "b1000001",
			Title:  "Vintage camera body",
			Price:  12500,
			URL:    "https://auctions.yahoo.co.jp/jp/auction/b1000001",
		},
	}
}

func TestSendDeliversFormattedMessage(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	svc, err := New(fa, Config{Target: kit.ChatTarget{ChatID: 42, ThreadID: 7}, RatePerSec: 10}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if err := svc.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(fa.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fa.sent))
	}
	got := fa.sent[0]
	if got.to.ChatID != 42 || got.to.ThreadID != 7 {
		t.Fatalf("target = %+v", got.to)
	}
	for _, want := range []string{"[YAHOO]", "vintage camera", "Vintage camera body", "¥12,500", "/auction/b1000001"} {
		if !strings.Contains(got.text, want) {
			t.Fatalf("message %q missing %q", got.text, want)
		}
	}
}

func TestSendWrapsStatusError(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{err: &statusErr{code: 429}}
	svc, err := New(fa, Config{Target: kit.ChatTarget{ChatID: 42}}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	err = svc.Send(context.Background(), testNotification())
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T %v, want SendError", err, err)
	}
	if se.Status != 429 {
		t.Fatalf("Status = %d, want 429", se.Status)
	}
	if se.Source != "yahoo" || se.ItemID != "b1000001" {
		t.Fatalf("SendError fields = %+v", se)
	}
}

func TestSendWithoutTargetIsNoOp(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	svc, err := New(fa, Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := svc.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("missing target must not be an error: %v", err)
	}
	if len(fa.sent) != 0 {
		t.Fatalf("sent = %d messages, want none without a target", len(fa.sent))
	}
}

func TestApplySwitchesTarget(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	svc, err := New(fa, Config{Target: kit.ChatTarget{ChatID: 1}, RatePerSec: 10}, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	svc.Apply(Config{Target: kit.ChatTarget{ChatID: 2}, RatePerSec: 10})
	if err := svc.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if fa.sent[0].to.ChatID != 2 {
		t.Fatalf("ChatID = %d, want reloaded target 2", fa.sent[0].to.ChatID)
	}
}

func TestNewRejectsNilAdapter(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestFormatMessageOmitsEmptyParts(t *testing.T) {
	t.Parallel()
	n := Notification{Item: source.Item{Source: "yahoo", Title: "Lens", URL: "https://x.test/a"}}
	msg := FormatMessage(n)
	if strings.Contains(msg, "¥") {
		t.Fatalf("message %q must omit price line when price is unknown", msg)
	}
	if strings.Contains(msg, `for "`) {
		t.Fatalf("message %q must omit keyword clause when keyword is empty", msg)
	}
	if !strings.HasPrefix(msg, "[YAHOO] New listing\n\nLens\n") {
		t.Fatalf("message = %q", msg)
	}
}

func TestGroupThousands(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12500, "12,500"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := groupThousands(tt.in); got != tt.want {
			t.Fatalf("groupThousands(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
