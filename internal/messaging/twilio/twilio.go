// Package twilio sends reminders as WhatsApp or SMS messages through Twilio.
package twilio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"billremind/internal/messaging"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Client struct {
	api            messageCreator
	fromNumber     string
	whatsappNumber string
}

func New(accountSID, authToken, fromNumber, whatsappNumber string) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{
		api:            rest.Api,
		fromNumber:     fromNumber,
		whatsappNumber: whatsappNumber,
	}
}

// Send uses WhatsApp for E.164 numbers when a WhatsApp sender is
// configured, SMS otherwise.
func (c *Client) Send(ctx context.Context, to messaging.Recipient, text string) (messaging.Receipt, error) {
	if to.Phone == "" {
		return messaging.Receipt{}, fmt.Errorf("recipient %q has no phone number", to.Name)
	}

	channel := "sms"
	params := &twilioApi.CreateMessageParams{}
	params.SetBody(text)
	if strings.HasPrefix(to.Phone, "+") && c.whatsappNumber != "" {
		channel = "whatsapp"
		params.SetTo("whatsapp:" + to.Phone)
		params.SetFrom("whatsapp:" + c.whatsappNumber)
	} else {
		params.SetTo(to.Phone)
		params.SetFrom(c.fromNumber)
	}

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("twilio %s: %w", channel, err)
	}

	receipt := messaging.Receipt{Channel: channel}
	if resp != nil && resp.Sid != nil {
		receipt.MessageID = *resp.Sid
	} else {
		slog.WarnContext(ctx, "Message accepted without SID",
			"component", "messaging",
			"provider", "twilio",
			"channel", channel)
	}
	return receipt, nil
}
