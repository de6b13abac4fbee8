// Package tablequery builds, compiles and runs DynamoDB Query and Scan requests
// through a fluent, validating builder.
//
// Import path:
//
//	import "github.com/theory-cloud/tablequery"
//
// The builder lives in pkg/query; this package wires it to a DynamoDB client.
package tablequery

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/pkg/core"
	"github.com/theory-cloud/tablequery/pkg/query"
	"github.com/theory-cloud/tablequery/pkg/querydef"
	"github.com/theory-cloud/tablequery/pkg/schema"
	"github.com/theory-cloud/tablequery/pkg/session"
)

type (
	// Re-export types for convenience.
	Config        = session.Config
	Table         = schema.Table
	Index         = schema.Index
	Query         = query.Query
	CompiledQuery = core.CompiledQuery
	Result        = core.Result
)

// Re-export descriptor constructors for convenience.
var (
	NewTable  = schema.NewTable
	NewIndex  = schema.NewIndex
	MustTable = schema.MustTable
	MustIndex = schema.MustIndex
)

// DB runs queries against a DynamoDB client
type DB struct {
	client         core.Client
	session        *session.Session
	executor       *query.Executor
	lambdaDeadline time.Time
	logger         zerolog.Logger
	newRequestID   func() string
}

// Option configures a DB
type Option func(*DB)

// WithLogger sets the logger used for request logging. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// WithRequestIDFunc overrides the generator used to tag each request
func WithRequestIDFunc(fn func() string) Option {
	return func(db *DB) {
		db.newRequestID = fn
	}
}

// New loads AWS configuration and creates a DB backed by a DynamoDB client
func New(config session.Config, opts ...Option) (*DB, error) {
	sess, err := session.NewSession(context.Background(), &config)
	if err != nil {
		return nil, err
	}
	client, err := sess.Client()
	if err != nil {
		return nil, err
	}

	db := NewWithClient(client, opts...)
	db.session = sess
	return db, nil
}

// NewWithClient creates a DB around an existing client, typically a
// *dynamodb.Client or a test double.
func NewWithClient(client core.Client, opts ...Option) *DB {
	db := &DB{
		client: client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.executor = db.newExecutor(db.logger)
	return db
}

func (db *DB) newExecutor(logger zerolog.Logger) *query.Executor {
	executorOpts := []query.ExecutorOption{query.WithLogger(logger)}
	if db.newRequestID != nil {
		executorOpts = append(executorOpts, query.WithRequestIDFunc(db.newRequestID))
	}
	return query.NewExecutor(db.client, executorOpts...)
}

// Session returns the session created by New, or nil for NewWithClient
func (db *DB) Session() *session.Session {
	return db.session
}

// Query starts a new query against table
func (db *DB) Query(table *schema.Table) *query.Query {
	return query.New(table)
}

// Load reads a YAML query definition and builds it
func (db *DB) Load(r io.Reader) (*query.Query, error) {
	def, err := querydef.Load(r)
	if err != nil {
		return nil, err
	}
	return def.Build()
}

// Execute compiles q and fetches a single page
func (db *DB) Execute(ctx context.Context, q *query.Query) (*core.Result, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()
	return db.executor.Execute(ctx, q)
}

// Pages walks every page of q until fn returns false or the store has no more results
func (db *DB) Pages(ctx context.Context, q *query.Query, fn func(*core.Result) bool) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()
	return db.executor.Pages(ctx, q, fn)
}

// Count sums the item count of every page of q
func (db *DB) Count(ctx context.Context, q *query.Query) (int64, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()
	return db.executor.Count(ctx, q)
}

// All reads every page of q and unmarshals the items into dest, a pointer to a slice
func (db *DB) All(ctx context.Context, q *query.Query, dest any) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()
	return db.executor.All(ctx, q, dest)
}

// UnmarshalItems unmarshals raw items into dest, a pointer to a slice
func UnmarshalItems(items []map[string]types.AttributeValue, dest any) error {
	return query.UnmarshalItems(items, dest)
}

// NewLogger builds a zerolog logger at the given level. Console output is
// human readable, otherwise JSON lines are written to stdout.
func NewLogger(level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
