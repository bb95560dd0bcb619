package messaging

import (
	"context"
	"errors"

	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// FailoverGateway attempts a primary send, then falls back to a secondary gateway on error.
type FailoverGateway struct {
	primary       Gateway
	secondary     Gateway
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverGateway builds a failover gateway with named providers.
func NewFailoverGateway(primary Gateway, primaryName string, secondary Gateway, secondaryName string, logger *logging.Logger) *FailoverGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverGateway{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ Gateway = (*FailoverGateway)(nil)

// Send tries the primary gateway first, then the secondary one.
func (f *FailoverGateway) Send(ctx context.Context, msg Outbound) (string, error) {
	if f == nil || f.primary == nil {
		return "", errors.New("messaging: failover primary gateway not configured")
	}
	id, err := f.primary.Send(ctx, msg)
	if err == nil {
		return id, nil
	}
	if f.secondary == nil {
		return "", err
	}
	f.logger.Warn("primary send failed; attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", err,
		"to", msg.To,
	)
	id, fallbackErr := f.secondary.Send(ctx, msg)
	if fallbackErr != nil {
		f.logger.Error("fallback send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"to", msg.To,
		)
		return "", fallbackErr
	}
	return id, nil
}
