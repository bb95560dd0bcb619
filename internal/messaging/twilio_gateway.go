package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// twilioMessages is the part of the Twilio REST client used for sends.
type twilioMessages interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends through Twilio's Messages API. Image refs must be public
// URLs and are attached as media.
type TwilioGateway struct {
	api    twilioMessages
	logger *logging.Logger
}

func NewTwilioGateway(accountSID, authToken string, logger *logging.Logger) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioGateway(client.Api, logger)
}

func newTwilioGateway(api twilioMessages, logger *logging.Logger) *TwilioGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioGateway{api: api, logger: logger}
}

// Send ignores ctx cancellation; the Twilio client has no context-aware call.
func (g *TwilioGateway) Send(_ context.Context, msg Outbound) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(toE164(msg.To))
	params.SetFrom(toE164(msg.From))
	params.SetBody(msg.Content)
	if len(msg.ImageRefs) > 0 {
		params.SetMediaUrl(msg.ImageRefs)
	}
	resp, err := g.api.CreateMessage(params)
	if err != nil {
		g.logger.Warn("twilio send failed", "error", err, "to", msg.To)
		return "", fmt.Errorf("messaging: twilio send: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// toE164 turns a domestic number such as 01012345678 into +821012345678.
// Numbers already carrying a + are left alone.
func toE164(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	digits := NormalizePhone(phone)
	if digits == "" {
		return phone
	}
	return "+82" + strings.TrimPrefix(digits, "0")
}
