// Package core defines the core interfaces and types for tablequery
package core

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultLimit is the page size used when a query does not set one
const DefaultLimit = 25

// Client is the store surface a compiled request is handed to.
// *dynamodb.Client satisfies it.
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// KeySchema represents the hash/range key shape of a table or index
type KeySchema struct {
	PartitionKey string
	SortKey      string // optional
}

// HasSortKey reports whether a sort key is defined
func (k KeySchema) HasSortKey() bool {
	return k.SortKey != ""
}

// Replacements holds caller-supplied placeholders for a raw filter fragment
type Replacements struct {
	Names  map[string]string
	Values map[string]any
}

// RawFilter is a pre-formed filter fragment merged into the compiled output as-is
type RawFilter struct {
	Replacements Replacements
	Condition    string
}

// CompiledQuery is the wire-level request produced by compiling a query.
// Empty strings and nil maps are omitted from the encoded form.
type CompiledQuery struct {
	ExpressionAttributeNames  map[string]string               `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]any                  `json:"ExpressionAttributeValues,omitempty"`
	ExclusiveStartKey         map[string]types.AttributeValue `json:"ExclusiveStartKey,omitempty"`
	ScanIndexForward          *bool                           `json:"ScanIndexForward,omitempty"`
	TableName                 string                          `json:"TableName"`
	Select                    string                          `json:"Select,omitempty"`
	ProjectionExpression      string                          `json:"ProjectionExpression,omitempty"`
	KeyConditionExpression    string                          `json:"KeyConditionExpression,omitempty"`
	FilterExpression          string                          `json:"FilterExpression,omitempty"`
	IndexName                 string                          `json:"IndexName,omitempty"`
	ReturnConsumedCapacity    string                          `json:"ReturnConsumedCapacity,omitempty"`
	Mode                      Mode                            `json:"-"`
	Limit                     int32                           `json:"Limit"`
}

// Operation returns the store operation the request targets
func (c *CompiledQuery) Operation() string {
	if c.Mode == ModeScan {
		return OperationScan
	}
	return OperationQuery
}

// Store operation names
const (
	OperationQuery = "Query"
	OperationScan  = "Scan"
)

// Result is one page returned by the store for a compiled request
type Result struct {
	ConsumedCapacity *types.ConsumedCapacity
	LastEvaluatedKey map[string]types.AttributeValue
	Items            []map[string]types.AttributeValue
	NextCursor       string
	RequestID        string
	Count            int64
	ScannedCount     int64
}

// HasMore reports whether another page remains
func (r *Result) HasMore() bool {
	return r != nil && len(r.LastEvaluatedKey) > 0
}
