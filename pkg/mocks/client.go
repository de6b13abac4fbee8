// Package mocks provides testify mocks for the store client used by tablequery
package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/tablequery/pkg/core"
)

var _ core.Client = (*MockClient)(nil)

// MockClient mocks core.Client, the read surface of the DynamoDB client.
//
// Example usage:
//
//	client := new(mocks.MockClient)
//	client.On("Query", mock.Anything, mock.Anything, mock.Anything).
//		Return(&dynamodb.QueryOutput{Count: 1}, nil)
//
//	db := tablequery.NewWithClient(client)
type MockClient struct {
	mock.Mock
}

// Query mocks the DynamoDB Query operation
func (m *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.QueryOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.QueryOutput")
	}
	return output, args.Error(1)
}

// Scan mocks the DynamoDB Scan operation
func (m *MockClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.ScanOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.ScanOutput")
	}
	return output, args.Error(1)
}
