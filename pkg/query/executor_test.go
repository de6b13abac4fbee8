package query_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/mocks"
	"github.com/theory-cloud/tablequery/pkg/query"
	"github.com/theory-cloud/tablequery/pkg/schema"
)

var usersTable = schema.MustTable("users", "pk", "sk")

func fixedID() string { return "req-1" }

func item(pk, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":   &types.AttributeValueMemberS{Value: pk},
		"name": &types.AttributeValueMemberS{Value: name},
	}
}

func TestExecutor_Execute(t *testing.T) {
	client := new(mocks.MockClient)
	lastKey := map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "A"}}

	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.TableName) == "users" &&
			aws.ToString(in.KeyConditionExpression) == "pk = :pk" &&
			aws.ToInt32(in.Limit) == 2
	}), mock.Anything).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{item("A", "ann"), item("A", "bob")},
		Count:            2,
		ScannedCount:     3,
		LastEvaluatedKey: lastKey,
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(0.5)},
	}, nil).Once()

	var logs bytes.Buffer
	executor := query.NewExecutor(client,
		query.WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)),
		query.WithRequestIDFunc(fixedID))

	result, err := executor.Execute(context.Background(),
		query.New(usersTable).Select().Where().Hash().Eq("A").Limit(2))
	require.NoError(t, err)

	assert.Len(t, result.Items, 2)
	assert.Equal(t, int64(2), result.Count)
	assert.Equal(t, int64(3), result.ScannedCount)
	assert.Equal(t, "req-1", result.RequestID)
	assert.True(t, result.HasMore())
	assert.NotEmpty(t, result.NextCursor)
	assert.InDelta(t, 0.5, aws.ToFloat64(result.ConsumedCapacity.CapacityUnits), 0.0001)

	assert.Contains(t, logs.String(), `"request_id":"req-1"`)
	assert.Contains(t, logs.String(), `"operation":"Query"`)
	client.AssertExpectations(t)

	// the cursor resumes where the page ended
	next := query.New(usersTable).Select().Where().Hash().Eq("A").StartAfterCursor(result.NextCursor)
	compiled, err := next.Compile()
	require.NoError(t, err)
	assert.Equal(t, lastKey, compiled.ExclusiveStartKey)
}

func TestExecutor_Scan(t *testing.T) {
	client := new(mocks.MockClient)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToString(in.FilterExpression) == "attribute_exists(email)"
	}), mock.Anything).Return(&dynamodb.ScanOutput{Count: 0, ScannedCount: 10}, nil).Once()

	result, err := query.NewExecutor(client).Execute(context.Background(),
		query.New(usersTable).Scan().Filter().AttributeExists("email"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.ScannedCount)
	assert.False(t, result.HasMore())
	assert.Empty(t, result.NextCursor)
	assert.NotEmpty(t, result.RequestID)
	client.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_BuilderErrorSkipsClient(t *testing.T) {
	client := new(mocks.MockClient)
	_, err := query.NewExecutor(client).Execute(context.Background(),
		query.New(usersTable).Scan().Where().Hash().Eq("A"))

	assert.True(t, tqerrors.IsInvalidState(err))
	client.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_StoreError(t *testing.T) {
	client := new(mocks.MockClient)
	storeErr := errors.New("ProvisionedThroughputExceededException")
	client.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := query.NewExecutor(client, query.WithRequestIDFunc(fixedID)).Execute(context.Background(),
		query.New(usersTable).Select().Where().Hash().Eq("A"))
	require.Error(t, err)

	assert.ErrorIs(t, err, tqerrors.ErrExecutionFailed)
	assert.ErrorIs(t, err, storeErr)

	var queryErr *tqerrors.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "Query", queryErr.Op)
	assert.Equal(t, "users", queryErr.Table)
	assert.Equal(t, "req-1", queryErr.RequestID)
}

func TestExecutor_NoClient(t *testing.T) {
	_, err := query.NewExecutor(nil).Execute(context.Background(), query.New(usersTable).Select())
	assert.ErrorIs(t, err, tqerrors.ErrExecutionFailed)
}

func TestExecutor_Pages(t *testing.T) {
	client := new(mocks.MockClient)
	firstKey := map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "A"}, "sk": &types.AttributeValueMemberS{Value: "2"}}

	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return len(in.ExclusiveStartKey) == 0
	}), mock.Anything).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{item("A", "ann"), item("A", "bob")},
		Count:            2,
		LastEvaluatedKey: firstKey,
	}, nil).Once()

	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return len(in.ExclusiveStartKey) == 2
	}), mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{item("A", "cat")},
		Count: 1,
	}, nil).Once()

	q := query.New(usersTable).Select().Where().Hash().Eq("A").Limit(2)

	var pages int
	var names []string
	err := query.NewExecutor(client).Pages(context.Background(), q, func(r *core.Result) bool {
		pages++
		for _, it := range r.Items {
			names = append(names, it["name"].(*types.AttributeValueMemberS).Value)
		}
		return true
	})
	require.NoError(t, err)

	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"ann", "bob", "cat"}, names)
	assert.Nil(t, q.State().StartAfter, "Pages does not modify the query")
	client.AssertExpectations(t)
}

func TestExecutor_PagesStopsWhenCallbackReturnsFalse(t *testing.T) {
	client := new(mocks.MockClient)
	client.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Count:            1,
		LastEvaluatedKey: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "A"}},
	}, nil)

	var pages int
	err := query.NewExecutor(client).Pages(context.Background(),
		query.New(usersTable).Select().Where().Hash().Eq("A"),
		func(*core.Result) bool {
			pages++
			return false
		})
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestExecutor_PagesHonoursContext(t *testing.T) {
	client := new(mocks.MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := query.NewExecutor(client).Pages(ctx, query.New(usersTable).Select(), func(*core.Result) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_Count(t *testing.T) {
	client := new(mocks.MockClient)
	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.Select == types.SelectCount && len(in.ExclusiveStartKey) == 0
	}), mock.Anything).Return(&dynamodb.QueryOutput{
		Count:            25,
		LastEvaluatedKey: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "A"}},
	}, nil).Once()
	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return len(in.ExclusiveStartKey) == 1
	}), mock.Anything).Return(&dynamodb.QueryOutput{Count: 4}, nil).Once()

	total, err := query.NewExecutor(client).Count(context.Background(),
		query.New(usersTable).Count().Where().Hash().Eq("A"))
	require.NoError(t, err)
	assert.Equal(t, int64(29), total)
}

func TestExecutor_All(t *testing.T) {
	client := new(mocks.MockClient)
	client.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item("A", "ann"), item("B", "bob")},
		Count: 2,
	}, nil).Once()

	type user struct {
		PK   string `dynamodbav:"pk"`
		Name string `dynamodbav:"name"`
	}
	var users []user
	err := query.NewExecutor(client).All(context.Background(), query.New(usersTable).Scan(), &users)
	require.NoError(t, err)
	assert.Equal(t, []user{{PK: "A", Name: "ann"}, {PK: "B", Name: "bob"}}, users)
}

func TestUnmarshalItems_Empty(t *testing.T) {
	var out []map[string]any
	require.NoError(t, query.UnmarshalItems(nil, &out))
	assert.Empty(t, out)
}
