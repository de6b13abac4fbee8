// Package session provides AWS configuration loading and DynamoDB client construction
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"gopkg.in/yaml.v3"
)

// configLoadFunc is a variable to allow mocking config.LoadDefaultConfig in tests
var configLoadFunc = config.LoadDefaultConfig

// newSTSClient builds the client used to assume Config.RoleARN
var newSTSClient = func(cfg aws.Config) stscreds.AssumeRoleAPIClient {
	return sts.NewFromConfig(cfg)
}

// Config holds the settings used to reach DynamoDB
type Config struct {
	CredentialsProvider aws.CredentialsProvider           `json:"-" yaml:"-"`
	AWSConfigOptions    []func(*config.LoadOptions) error `json:"-" yaml:"-"`
	DynamoDBOptions     []func(*dynamodb.Options)         `json:"-" yaml:"-"`
	Region              string                            `json:"region" yaml:"region"`
	// Endpoint overrides the service endpoint, e.g. http://localhost:8000 for DynamoDB Local
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	// RoleARN, when set, is assumed through STS on top of the base credentials
	RoleARN         string        `json:"role_arn,omitempty" yaml:"role_arn,omitempty"`
	ExternalID      string        `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	RoleSessionName string        `json:"role_session_name,omitempty" yaml:"role_session_name,omitempty"`
	SessionDuration time.Duration `json:"session_duration,omitempty" yaml:"session_duration,omitempty"`
	HTTPTimeout     time.Duration `json:"http_timeout,omitempty" yaml:"http_timeout,omitempty"`
	MaxRetries      int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Region:      "us-east-1",
		MaxRetries:  3,
		HTTPTimeout: 30 * time.Second,
	}
}

// LoadConfigFile reads a YAML config file. Unset fields keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read session config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}
	return cfg, nil
}

// Session manages the AWS configuration and DynamoDB client
type Session struct {
	config    *Config
	client    *dynamodb.Client
	awsConfig aws.Config
}

// NewSession creates a new session with the given configuration
func NewSession(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("access_key_id and secret_access_key must be set together")
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	options := make([]func(*config.LoadOptions) error, 0, len(cfg.AWSConfigOptions)+5)
	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}
	switch {
	case cfg.CredentialsProvider != nil:
		options = append(options, config.WithCredentialsProvider(cfg.CredentialsProvider))
	case cfg.AccessKeyID != "":
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	options = append(options,
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(maxAttempts),
		config.WithHTTPClient(httpClient),
	)
	options = append(options, cfg.AWSConfigOptions...)

	awsConfig, err := configLoadFunc(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if awsConfig.Retryer == nil {
		awsConfig.Retryer = func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}
	}

	if cfg.RoleARN != "" {
		awsConfig.Credentials = aws.NewCredentialsCache(assumeRoleProvider(awsConfig, cfg))
	}

	clientOptions := make([]func(*dynamodb.Options), 0, 1+len(cfg.DynamoDBOptions))
	clientOptions = append(clientOptions, func(o *dynamodb.Options) {
		o.Region = awsConfig.Region
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if o.Retryer == nil {
			o.Retryer = awsConfig.Retryer()
		}
		if o.HTTPClient == nil {
			o.HTTPClient = httpClient
		}
	})
	clientOptions = append(clientOptions, cfg.DynamoDBOptions...)

	return &Session{
		config:    cfg,
		awsConfig: awsConfig,
		client:    dynamodb.NewFromConfig(awsConfig, clientOptions...),
	}, nil
}

func assumeRoleProvider(awsConfig aws.Config, cfg *Config) *stscreds.AssumeRoleProvider {
	duration := cfg.SessionDuration
	if duration == 0 {
		duration = time.Hour
	}
	sessionName := cfg.RoleSessionName
	if sessionName == "" {
		sessionName = "tablequery"
	}

	return stscreds.NewAssumeRoleProvider(newSTSClient(awsConfig), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
		o.Duration = duration
		if cfg.ExternalID != "" {
			o.ExternalID = aws.String(cfg.ExternalID)
		}
	})
}

// Client returns the DynamoDB client
func (s *Session) Client() (*dynamodb.Client, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if s.client == nil {
		return nil, fmt.Errorf("DynamoDB client is nil")
	}
	return s.client, nil
}

// Config returns the session configuration
func (s *Session) Config() *Config {
	return s.config
}

// AWSConfig returns the AWS configuration
func (s *Session) AWSConfig() aws.Config {
	return s.awsConfig
}
