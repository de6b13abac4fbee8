package query

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Executor runs compiled queries against a store client. It holds no
// per-query state and is safe for concurrent use when the client is.
type Executor struct {
	client       core.Client
	newRequestID func() string
	logger       zerolog.Logger
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for execution events
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRequestIDFunc replaces the request id generator
func WithRequestIDFunc(fn func() string) ExecutorOption {
	return func(e *Executor) {
		if fn != nil {
			e.newRequestID = fn
		}
	}
}

// NewExecutor creates an executor for client
func NewExecutor(client core.Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:       client,
		logger:       zerolog.Nop(),
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute compiles q and fetches one page
func (e *Executor) Execute(ctx context.Context, q *Query) (*core.Result, error) {
	compiled, err := q.Compile()
	if err != nil {
		return nil, err
	}
	return e.ExecuteCompiled(ctx, compiled)
}

// ExecuteCompiled fetches one page for an already compiled request
func (e *Executor) ExecuteCompiled(ctx context.Context, c *core.CompiledQuery) (*core.Result, error) {
	if e.client == nil {
		return nil, tqerrors.NewQueryError(c.Operation(), c.TableName, fmt.Errorf("no client configured"))
	}

	requestID := e.newRequestID()
	logger := e.logger.With().
		Str("request_id", requestID).
		Str("table", c.TableName).
		Str("operation", c.Operation()).
		Logger()
	if c.IndexName != "" {
		logger = logger.With().Str("index", c.IndexName).Logger()
	}

	logger.Debug().
		Str("key_condition", c.KeyConditionExpression).
		Str("filter", c.FilterExpression).
		Int32("limit", c.Limit).
		Msg("executing compiled query")

	result, err := e.fetch(ctx, c)
	if err != nil {
		logger.Error().Err(err).Msg("query execution failed")
		queryErr := tqerrors.NewQueryError(c.Operation(), c.TableName, err)
		queryErr.RequestID = requestID
		return nil, queryErr
	}
	result.RequestID = requestID

	cursor, err := EncodeCursor(result.LastEvaluatedKey, c.IndexName)
	if err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}
	result.NextCursor = cursor

	logger.Debug().
		Int64("count", result.Count).
		Int64("scanned_count", result.ScannedCount).
		Bool("has_more", result.HasMore()).
		Msg("query executed")

	return result, nil
}

func (e *Executor) fetch(ctx context.Context, c *core.CompiledQuery) (*core.Result, error) {
	if c.Operation() == core.OperationScan {
		input, err := ToScanInput(c)
		if err != nil {
			return nil, err
		}
		out, err := e.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		return &core.Result{
			Items:            out.Items,
			Count:            int64(out.Count),
			ScannedCount:     int64(out.ScannedCount),
			LastEvaluatedKey: out.LastEvaluatedKey,
			ConsumedCapacity: out.ConsumedCapacity,
		}, nil
	}

	input, err := ToQueryInput(c)
	if err != nil {
		return nil, err
	}
	out, err := e.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	return &core.Result{
		Items:            out.Items,
		Count:            int64(out.Count),
		ScannedCount:     int64(out.ScannedCount),
		LastEvaluatedKey: out.LastEvaluatedKey,
		ConsumedCapacity: out.ConsumedCapacity,
	}, nil
}

// Pages compiles q once and calls fn for every page until fn returns false,
// the store reports no further pages, or ctx is done. q itself is not
// modified.
func (e *Executor) Pages(ctx context.Context, q *Query, fn func(*core.Result) bool) error {
	compiled, err := q.Compile()
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := e.ExecuteCompiled(ctx, compiled)
		if err != nil {
			return err
		}
		if !fn(result) || !result.HasMore() {
			return nil
		}
		compiled.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// Count totals the matching item count across all pages
func (e *Executor) Count(ctx context.Context, q *Query) (int64, error) {
	var total int64
	err := e.Pages(ctx, q, func(r *core.Result) bool {
		total += r.Count
		return true
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// All collects the items of every page into dest, a pointer to a slice
func (e *Executor) All(ctx context.Context, q *Query, dest any) error {
	var items []map[string]types.AttributeValue
	err := e.Pages(ctx, q, func(r *core.Result) bool {
		items = append(items, r.Items...)
		return true
	})
	if err != nil {
		return err
	}
	return UnmarshalItems(items, dest)
}

// UnmarshalItems decodes result items into dest, a pointer to a slice
func UnmarshalItems(items []map[string]types.AttributeValue, dest any) error {
	if items == nil {
		items = []map[string]types.AttributeValue{}
	}
	if err := attributevalue.UnmarshalListOfMaps(items, dest); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return nil
}
