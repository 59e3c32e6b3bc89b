// Package cloud builds the SDK sessions shared by the AWS-backed components.
package cloud

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
)

// NewAWSSession creates a session for the configured region. A custom
// endpoint (LocalStack, DynamoDB Local) also switches S3 to path-style
// addressing.
func NewAWSSession(cfg config.AWSConfig) (*session.Session, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess, nil
}
