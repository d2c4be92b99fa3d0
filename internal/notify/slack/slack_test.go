package slack

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/testdeck/internal/notify"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu      sync.Mutex
	posted  []string
	errs    []error // returned in order, then nil
	options [][]slackapi.MsgOption
}

func (m *mockSlackClient) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, channelID)
	m.options = append(m.options, options)
	return channelID, "1234567890.123456", nil
}

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(SenderOpts{ChannelID: "C1"})
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(SenderOpts{BotToken: "xoxb-1"})
	if err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestNew_RealClient(t *testing.T) {
	s, err := New(SenderOpts{BotToken: "xoxb-1", ChannelID: "C1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.client == nil {
		t.Error("expected a real Slack client")
	}
}

func TestSend_PostsToChannel(t *testing.T) {
	mock := &mockSlackClient{}
	s, err := New(SenderOpts{ChannelID: "C_QA", Client: mock})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Send(context.Background(), notify.Event{Title: "Run passed"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.posted) != 1 || mock.posted[0] != "C_QA" {
		t.Errorf("posted = %v, want [C_QA]", mock.posted)
	}
	if len(mock.options[0]) != 2 {
		t.Errorf("options = %d, want text + attachments", len(mock.options[0]))
	}
}

func TestSend_PostError(t *testing.T) {
	mock := &mockSlackClient{errs: []error{fmt.Errorf("channel_not_found")}}
	s, _ := New(SenderOpts{ChannelID: "C1", Client: mock})

	err := s.Send(context.Background(), notify.Event{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(mock.posted) != 0 {
		t.Errorf("posted = %v, want none (no retry on non-rate-limit errors)", mock.posted)
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	mock := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	s, _ := New(SenderOpts{ChannelID: "C1", Client: mock})

	if err := s.Send(context.Background(), notify.Event{Title: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.posted) != 1 {
		t.Errorf("posted = %d, want 1 after retry", len(mock.posted))
	}
}

func TestSend_ContextCancelledDuringBackoff(t *testing.T) {
	mock := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Hour}}}
	s, _ := New(SenderOpts{ChannelID: "C1", Client: mock})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, notify.Event{Title: "x"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestEventToAttachment(t *testing.T) {
	evt := notify.Event{
		Title: "Test run passed",
		Body:  "Test case: Login",
		Color: "#36a64f",
		Fields: []notify.Field{
			{Name: "Run", Value: "#1", Short: true},
			{Name: "Status", Value: "passed", Short: true},
		},
	}

	att := eventToAttachment(evt)
	if att.Title != "Test run passed" {
		t.Errorf("title = %q", att.Title)
	}
	if att.Text != "Test case: Login" {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != "#36a64f" {
		t.Errorf("color = %q", att.Color)
	}
	if att.Fallback != "Test run passed" {
		t.Errorf("fallback = %q", att.Fallback)
	}
	if len(att.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(att.Fields))
	}
	if att.Fields[0].Title != "Run" || !att.Fields[0].Short {
		t.Errorf("field[0] = %+v", att.Fields[0])
	}
}
