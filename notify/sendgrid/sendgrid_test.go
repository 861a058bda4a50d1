package sendgrid_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/notify/sendgrid"
	"github.com/Pasan-pramu/remind/subscription"
)

type fakeClient struct {
	resp *rest.Response
	err  error
	got  *mail.SGMailV3
}

func (f *fakeClient) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	return f.resp, f.err
}

func newSender(t *testing.T, c sendgrid.Client) *sendgrid.Sender {
	t.Helper()
	r, err := notify.NewRenderer([]int{1})
	require.NoError(t, err)
	return sendgrid.NewWithClient(c, sendgrid.Config{Sender: "bills@acme.test", SenderName: "Acme"}, r, nil)
}

func message() notify.Message {
	return notify.NewMessage(&subscription.Subscription{
		ID:          "sub-3",
		Name:        "iCloud",
		Status:      subscription.StatusActive,
		RenewalDate: time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC),
		User:        subscription.User{Name: "Kai", Email: "kai@example.com"},
	}, "1 days before reminder")
}

func TestSendSuccess(t *testing.T) {
	c := &fakeClient{resp: &rest.Response{StatusCode: 202}}
	require.NoError(t, newSender(t, c).Send(context.Background(), message()))
	require.NotNil(t, c.got)
	assert.Equal(t, "bills@acme.test", c.got.From.Address)
	assert.Contains(t, c.got.Subject, "iCloud")
	assert.Equal(t, "kai@example.com", c.got.Personalizations[0].To[0].Address)
}

func TestSendNon2xxIsFailure(t *testing.T) {
	c := &fakeClient{resp: &rest.Response{StatusCode: 400, Body: "bad request"}}
	err := newSender(t, c).Send(context.Background(), message())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSendTransportError(t *testing.T) {
	c := &fakeClient{err: errors.New("dial tcp: timeout")}
	require.Error(t, newSender(t, c).Send(context.Background(), message()))
}
