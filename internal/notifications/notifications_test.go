package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

func sampleReminder(t *testing.T) Reminder {
	t.Helper()
	url := "https://netflix.example/cancel"
	sub := &models.Subscription{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Name:            "Netflix",
		Amount:          decimal.RequireFromString("15.99"),
		Currency:        "USD",
		Intent:          enums.IntentTrial,
		RenewalDate:     types.MustParseDate("2026-03-15"),
		CancelByDate:    types.MustParseDate("2026-03-14"),
		CancellationURL: &url,
	}
	return NewReminder(sub, 3, "me@example.com")
}

func TestNewReminder(t *testing.T) {
	r := sampleReminder(t)
	assert.Equal(t, r.SubscriptionID.String()+":2026-03-14:3", r.ID)
	assert.Equal(t, "15.99", r.Amount)
	assert.Equal(t, "https://netflix.example/cancel", r.CancellationURL)

	email := RenderEmail(r)
	assert.Equal(t, "me@example.com", email.To)
	assert.Equal(t, "3 days left to cancel Netflix", email.Subject)
	assert.Contains(t, email.Text, "2026-03-14")
	assert.Contains(t, email.HTML, "<p>")
}

func TestSubjectByOffset(t *testing.T) {
	r := Reminder{Name: "Gym"}
	r.DaysUntil = 0
	assert.Equal(t, "Today is the last day to cancel Gym", subject(r))
	r.DaysUntil = 1
	assert.Equal(t, "Cancel Gym by tomorrow", subject(r))
}

type fakePublisher struct {
	msgs []*pubsub.Message
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.msgs = append(f.msgs, msg)
	return "srv-1", nil
}

func TestPubSubNotifier(t *testing.T) {
	pub := &fakePublisher{}
	notifier, err := NewPubSubNotifier(pub)
	require.NoError(t, err)

	r := sampleReminder(t)
	id, err := notifier.Notify(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", id)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, eventReminderDue, pub.msgs[0].Attributes[attrEventType])
	assert.Equal(t, "3", pub.msgs[0].Attributes[attrDaysUntil])

	var decoded Reminder
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &decoded))
	assert.Equal(t, r, decoded)

	pub.err = errors.New("unavailable")
	_, err = notifier.Notify(context.Background(), r)
	assert.Error(t, err)
}

type fakeSender struct {
	sent []Email
	err  error
}

func (f *fakeSender) Send(_ context.Context, email Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return "re_1", nil
}

type memoryGuard struct {
	seen map[string]bool
}

func (g *memoryGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, id string) error {
	delete(g.seen, id)
	return nil
}

func newTestConsumer(t *testing.T, sender EmailSender) (*Consumer, *memoryGuard) {
	t.Helper()
	guard := &memoryGuard{seen: map[string]bool{}}
	consumer, err := NewConsumer(ConsumerParams{Sender: sender, Guard: guard, Logger: logger.Nop()})
	require.NoError(t, err)
	return consumer, guard
}

func reminderPayload(t *testing.T, r Reminder) []byte {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return data
}

var dueAttrs = map[string]string{attrEventType: eventReminderDue}

func TestConsumerSendsOnce(t *testing.T) {
	sender := &fakeSender{}
	consumer, _ := newTestConsumer(t, sender)
	data := reminderPayload(t, sampleReminder(t))

	res := consumer.process(context.Background(), "m1", data, dueAttrs)
	assert.True(t, res.ack)
	res = consumer.process(context.Background(), "m2", data, dueAttrs)
	assert.True(t, res.ack)
	assert.Len(t, sender.sent, 1)
}

func TestConsumerTransientFailureNacksAndClearsKey(t *testing.T) {
	sender := &fakeSender{err: errors.New("timeout")}
	consumer, guard := newTestConsumer(t, sender)
	r := sampleReminder(t)

	res := consumer.process(context.Background(), "m1", reminderPayload(t, r), dueAttrs)
	assert.True(t, res.nack)
	assert.False(t, guard.seen[r.ID])
}

func TestConsumerPermanentFailureAcks(t *testing.T) {
	sender := &fakeSender{err: &PermanentError{Err: errors.New("bad address")}}
	consumer, guard := newTestConsumer(t, sender)
	r := sampleReminder(t)

	res := consumer.process(context.Background(), "m1", reminderPayload(t, r), dueAttrs)
	assert.True(t, res.ack)
	assert.True(t, guard.seen[r.ID])
}

func TestConsumerDropsMalformed(t *testing.T) {
	sender := &fakeSender{}
	consumer, _ := newTestConsumer(t, sender)

	assert.True(t, consumer.process(context.Background(), "m1", []byte("{"), dueAttrs).ack)
	assert.True(t, consumer.process(context.Background(), "m2", []byte("{}"), map[string]string{attrEventType: "other"}).ack)

	noEmail := sampleReminder(t)
	noEmail.Email = ""
	assert.True(t, consumer.process(context.Background(), "m3", reminderPayload(t, noEmail), dueAttrs).ack)
	assert.Empty(t, sender.sent)
}

func TestResendSender(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		var body resendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body.To[0] {
		case "bad@example.com":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"invalid"}`))
		case "down@example.com":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"id":"re_123"}`))
		}
	}))
	defer srv.Close()

	sender, err := NewResendSender(ResendParams{
		Config: config.EmailConfig{
			ResendAPIKey:     "re_key",
			BaseURL:          srv.URL + "/",
			FromAddress:      "CancelMem <reminders@cancelmem.app>",
			Timeout:          time.Second,
			BreakerFailures:  2,
			BreakerOpenDelay: time.Minute,
		},
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := sender.Send(ctx, Email{To: "me@example.com", Subject: "hi", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "re_123", id)

	_, err = sender.Send(ctx, Email{To: "bad@example.com"})
	assert.True(t, IsPermanent(err))

	_, err = sender.Send(ctx, Email{})
	assert.True(t, IsPermanent(err))

	for i := 0; i < 2; i++ {
		_, err = sender.Send(ctx, Email{To: "down@example.com"})
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	}
	before := atomic.LoadInt32(&calls)
	_, err = sender.Send(ctx, Email{To: "me@example.com"})
	require.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "open breaker must not reach the provider")
}

func TestNewResendSenderValidation(t *testing.T) {
	_, err := NewResendSender(ResendParams{Config: config.EmailConfig{FromAddress: "x@y"}})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	r := sampleReminder(t)
	id, err := NewLogNotifier(logger.Nop()).Notify(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, r.ID, id)
}
