package tablequery

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/theory-cloud/tablequery/pkg/session"
)

// lambdaTimeoutBuffer is reserved before the invocation deadline
const lambdaTimeoutBuffer = time.Second

var (
	// Global Lambda DB for connection reuse across warm invocations
	globalLambdaDB  *DB
	globalLambdaErr error
	lambdaOnce      sync.Once
)

// Lambda usage:
//
//	var db *tablequery.DB
//
//	func init() {
//	    db, _ = tablequery.LambdaInit()
//	}
//
//	func handler(ctx context.Context, event Event) error {
//	    result, err := db.WithLambdaTimeout(ctx).Execute(ctx, q)
//	    ...
//	}

// LambdaInit returns a process-wide DB configured from the Lambda environment.
// The first call creates it; later calls return the same instance.
func LambdaInit(opts ...Option) (*DB, error) {
	lambdaOnce.Do(func() {
		globalLambdaDB, globalLambdaErr = New(lambdaConfig(), opts...)
	})
	return globalLambdaDB, globalLambdaErr
}

func lambdaConfig() session.Config {
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	cfg := session.Config{
		Region:      getRegion(),
		MaxRetries:  3,
		HTTPTimeout: 5 * time.Second,
		AWSConfigOptions: []func(*config.LoadOptions) error{
			config.WithHTTPClient(httpClient),
			config.WithRetryMode(aws.RetryModeAdaptive),
		},
	}
	if IsLambdaEnvironment() {
		cfg.DynamoDBOptions = append(cfg.DynamoDBOptions, func(o *dynamodb.Options) {
			o.RetryMode = aws.RetryModeAdaptive
		})
	}
	return cfg
}

// WithLambdaTimeout returns a DB whose requests stop one second before the
// invocation deadline carried by ctx. When ctx holds a Lambda context the
// invocation's request id is attached to every log line.
func (db *DB) WithLambdaTimeout(ctx context.Context) *DB {
	deadline, hasDeadline := ctx.Deadline()
	lc, hasLambda := lambdacontext.FromContext(ctx)
	if !hasDeadline && !hasLambda {
		return db
	}

	derived := *db
	if hasDeadline {
		derived.lambdaDeadline = deadline.Add(-lambdaTimeoutBuffer)
	}
	if hasLambda {
		derived.logger = db.logger.With().Str("aws_request_id", lc.AwsRequestID).Logger()
		derived.executor = derived.newExecutor(derived.logger)
	}
	return &derived
}

// bound applies the Lambda deadline, if any, to ctx
func (db *DB) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.lambdaDeadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, db.lambdaDeadline)
}

// IsLambdaEnvironment detects if running in AWS Lambda
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// GetLambdaMemoryMB returns the allocated memory in MB
func GetLambdaMemoryMB() int {
	mem, err := strconv.Atoi(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	if err != nil {
		return 0
	}
	return mem
}

// GetRemainingTimeMillis returns milliseconds until the ctx deadline, or -1 without one
func GetRemainingTimeMillis(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}
	return time.Until(deadline).Milliseconds()
}

func getRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return "us-east-1"
}
