package bootstrap

import (
	"strings"

	appconfig "github.com/wolfman30/dentalcrm/internal/config"
	"github.com/wolfman30/dentalcrm/internal/messaging"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

type namedGateway struct {
	name string
	gw   messaging.Gateway
}

// BuildGateway returns the outbound SMS gateway. Configured providers are tried
// in order: the HTTP relay, Twilio, then the fallback relay. The first two
// configured ones are chained with failover. With none configured the dry-run
// gateway is used and nothing leaves the process.
func BuildGateway(cfg *appconfig.Config, logger *logging.Logger) messaging.Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	var providers []namedGateway
	if cfg != nil {
		if url := strings.TrimSpace(cfg.SMSGatewayURL); url != "" {
			providers = append(providers, namedGateway{"relay", messaging.NewHTTPGateway(url, cfg.SMSGatewayToken, cfg.SMSGatewayTimeout, logger)})
		}
		if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
			providers = append(providers, namedGateway{"twilio", messaging.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)})
		}
		if url := strings.TrimSpace(cfg.SMSGatewayFallbackURL); url != "" {
			providers = append(providers, namedGateway{"fallback-relay", messaging.NewHTTPGateway(url, cfg.SMSGatewayToken, cfg.SMSGatewayTimeout, logger)})
		}
	}

	switch len(providers) {
	case 0:
		logger.Warn("SMS gateway not configured; messages will be logged only")
		return messaging.NewDryRunGateway(logger)
	case 1:
		logger.Info("SMS gateway configured", "provider", providers[0].name)
		return providers[0].gw
	}
	primary, secondary := providers[0], providers[1]
	logger.Info("SMS gateway configured with fallback", "provider", primary.name, "fallback", secondary.name)
	return messaging.NewFailoverGateway(primary.gw, primary.name, secondary.gw, secondary.name, logger)
}
