package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name string
	err  error
	sent []int64
}

func (s *recordingSender) SendTo(ctx context.Context, chatID int64, title, message string) error {
	s.sent = append(s.sent, chatID)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFansOutToAllSenders(t *testing.T) {
	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, testLogger())

	err := n.Notify(context.Background(), 777, "title", "body")
	require.NoError(t, err)
	assert.Equal(t, []int64{777}, a.sent)
	assert.Equal(t, []int64{777}, b.sent)
}

func TestNotifyContinuesPastFailedSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("webhook down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, testLogger())

	err := n.Notify(context.Background(), 1, "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: webhook down")
	assert.Len(t, good.sent, 1)
}

func TestNotifyNoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), 1, "t", "m"))
}

type fakeMessageSender struct {
	chatID int64
	text   string
}

func (f *fakeMessageSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.chatID = chatID
	f.text = text
	return nil
}

func TestTelegramSenderFormatsTitleBold(t *testing.T) {
	client := &fakeMessageSender{}
	s := NewTelegramSender(client)

	require.NoError(t, s.SendTo(context.Background(), 42, "Risk alert", "body"))
	assert.EqualValues(t, 42, client.chatID)
	assert.Equal(t, "*Risk alert*\nbody", client.text)
}
