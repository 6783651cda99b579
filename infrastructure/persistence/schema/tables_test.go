package schema

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bottomtime/infrastructure/persistence/dynamodb"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTables keeps table status in memory. A created table reports
// CREATING on its first describe and ACTIVE afterwards.
type fakeTables struct {
	mu       sync.Mutex
	status   map[string]types.TableStatus
	created  []string
	ttl      map[string]string
	createFn func(name string) error
}

func newFakeTables(existing ...string) *fakeTables {
	f := &fakeTables{status: map[string]types.TableStatus{}, ttl: map[string]string{}}
	for _, name := range existing {
		f.status[name] = types.TableStatusActive
	}
	return f
}

func (f *fakeTables) DescribeTable(ctx context.Context, in *awsdynamodb.DescribeTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	status, ok := f.status[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	if status == types.TableStatusCreating {
		f.status[name] = types.TableStatusActive
	}
	return &awsdynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName, TableStatus: status}}, nil
}

func (f *fakeTables) CreateTable(ctx context.Context, in *awsdynamodb.CreateTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	if f.createFn != nil {
		if err := f.createFn(name); err != nil {
			return nil, err
		}
	}
	f.created = append(f.created, name)
	f.status[name] = types.TableStatusCreating
	return &awsdynamodb.CreateTableOutput{}, nil
}

func (f *fakeTables) UpdateTimeToLive(ctx context.Context, in *awsdynamodb.UpdateTimeToLiveInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl[aws.ToString(in.TableName)] = aws.ToString(in.TimeToLiveSpecification.AttributeName)
	return &awsdynamodb.UpdateTimeToLiveOutput{}, nil
}

func newTestProvisioner(client TableAPI) *Provisioner {
	p := NewProvisioner(client, zap.NewNop())
	p.pollInterval = time.Millisecond
	p.maxWait = time.Second
	return p
}

func TestDefinitions(t *testing.T) {
	tables := dynamodb.NewTables("bt-test")
	defs := Definitions(tables)
	require.Len(t, defs, 4)

	byName := map[string]TableDefinition{}
	for _, def := range defs {
		byName[aws.ToString(def.Input.TableName)] = def
		assert.Equal(t, types.BillingModePayPerRequest, def.Input.BillingMode)
	}

	logs := byName["bt-test-DiveLogs"]
	require.Len(t, logs.Input.GlobalSecondaryIndexes, 1)
	ownerIndex := logs.Input.GlobalSecondaryIndexes[0]
	assert.Equal(t, dynamodb.OwnerIndex, aws.ToString(ownerIndex.IndexName))
	assert.Equal(t, "entryTime", aws.ToString(ownerIndex.KeySchema[1].AttributeName))

	oauth := byName["bt-test-OAuth"]
	assert.Len(t, oauth.Input.KeySchema, 2)

	assert.Equal(t, "ttl", byName["bt-test-RateLimits"].TTLAttribute)
	assert.Empty(t, byName["bt-test-Users"].TTLAttribute)
}

func TestProvisioner_Ensure(t *testing.T) {
	tables := dynamodb.NewTables("bt-test")
	fake := newFakeTables(tables.Users)

	err := newTestProvisioner(fake).Ensure(context.Background(), Definitions(tables))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{tables.OAuth, tables.DiveLogs, tables.RateLimits}, fake.created)
	assert.Equal(t, map[string]string{tables.RateLimits: "ttl"}, fake.ttl)
	for _, name := range []string{tables.Users, tables.OAuth, tables.DiveLogs, tables.RateLimits} {
		assert.Equal(t, types.TableStatusActive, fake.status[name], name)
	}

	// a second run changes nothing
	fake.created = nil
	require.NoError(t, newTestProvisioner(fake).Ensure(context.Background(), Definitions(tables)))
	assert.Empty(t, fake.created)
}

func TestProvisioner_CreateRace(t *testing.T) {
	tables := dynamodb.NewTables("")
	fake := newFakeTables()
	fake.createFn = func(name string) error {
		// another process created it between describe and create
		fake.status[name] = types.TableStatusActive
		return &types.ResourceInUseException{Message: aws.String("in use")}
	}

	require.NoError(t, newTestProvisioner(fake).Ensure(context.Background(), Definitions(tables)))
	assert.Empty(t, fake.created)
}

func TestProvisioner_CreateFailure(t *testing.T) {
	fake := newFakeTables()
	fake.createFn = func(name string) error { return errors.New("access denied") }

	err := newTestProvisioner(fake).Ensure(context.Background(), Definitions(dynamodb.NewTables("x")))
	assert.ErrorContains(t, err, "access denied")
}
