package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/dentalcrm/internal/archive"
	appconfig "github.com/wolfman30/dentalcrm/internal/config"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// BuildReportStore returns the S3 report archive, or nil when REPORT_BUCKET is unset.
func BuildReportStore(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *archive.Store {
	if cfg == nil || strings.TrimSpace(cfg.ReportBucket) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("report archive enabled", "bucket", cfg.ReportBucket)
	return archive.NewStore(client, cfg.ReportBucket, logger)
}
