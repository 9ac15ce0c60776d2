package sender_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/notification/sender"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := &sender.Message{
		Subject: "Test Subject",
		Headers: map[string]string{"Header1": "Value1"},
		Body:    "line one\nline two",
	}

	s := msg.ToString()

	roundTrip, err := sender.ParseMessage(context.Background(), strings.NewReader(s))
	require.NoError(t, err)
	require.Equal(t, msg.Subject, roundTrip.Subject)
	require.Equal(t, msg.Headers, roundTrip.Headers)
	require.Equal(t, msg.Body, roundTrip.Body)
}

func TestParseMessageDropsInvalidHeaderLines(t *testing.T) {
	input := "Subject: Test\nInvalidHeaderLine will be dropped\nHeader2: Value2\n\nbody text"

	msg, err := sender.ParseMessage(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, "Test", msg.Subject)
	require.Equal(t, map[string]string{"Header2": "Value2"}, msg.Headers)
	require.Equal(t, "body text", msg.Body)
}

func TestParseMessageNoBodyIsError(t *testing.T) {
	_, err := sender.ParseMessage(context.Background(), strings.NewReader("Subject: Test Subject"))
	require.ErrorContains(t, err, "no body found in message")
}

func TestValidateMessageFormatDefaultsAndRejectsUnknown(t *testing.T) {
	var f string

	require.NoError(t, sender.ValidateMessageFormatAndSetDefault(&f, "html"))
	require.Equal(t, "html", f)

	f = "txt"
	require.NoError(t, sender.ValidateMessageFormatAndSetDefault(&f, "html"))
	require.Equal(t, "txt", f)

	f = "bad"
	require.ErrorContains(t, sender.ValidateMessageFormatAndSetDefault(&f, "html"), "invalid format: bad")
}

func TestGetSenderUnknownProviderType(t *testing.T) {
	_, err := sender.GetSender(context.Background(), "profile", "nonexistent", nil)
	require.ErrorContains(t, err, "unknown notification provider type")
}
