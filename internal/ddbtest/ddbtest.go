// Package ddbtest provides an in-memory DynamoDB double for package tests.
//
// Client implements the PutItem, Query, DeleteItem and UpdateItem subset of
// the DynamoDB API over tables keyed by a hash and range attribute, with any
// number of global secondary indexes. Key conditions, filters and projections are
// evaluated, so queries behave like the real service for the expression forms
// this module produces.
package ddbtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeySchema names the hash and range attributes of a table or index.
type KeySchema struct {
	Hash  string
	Range string
}

type table struct {
	key     KeySchema
	indexes map[string]KeySchema
	items   map[string]map[string]types.AttributeValue
}

// Client is a concurrency-safe in-memory DynamoDB.
type Client struct {
	mu     sync.Mutex
	tables map[string]*table

	puts    []*dynamodb.PutItemInput
	queries []*dynamodb.QueryInput
	deletes []*dynamodb.DeleteItemInput
	updates []*dynamodb.UpdateItemInput

	// PageSize caps the number of items evaluated per Query page when the
	// request carries no Limit. Zero means unlimited.
	PageSize int32

	// PutErr, QueryErr, DeleteErr and UpdateErr inject failures. A non-nil
	// return fails the call before it touches the table.
	PutErr    func(*dynamodb.PutItemInput) error
	QueryErr  func(*dynamodb.QueryInput) error
	DeleteErr func(*dynamodb.DeleteItemInput) error
	UpdateErr func(*dynamodb.UpdateItemInput) error
}

// New creates an empty client.
func New() *Client {
	return &Client{tables: make(map[string]*table)}
}

// CreateTable registers a table and its global secondary indexes.
func (c *Client) CreateTable(name string, key KeySchema, indexes map[string]KeySchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if indexes == nil {
		indexes = map[string]KeySchema{}
	}
	c.tables[name] = &table{
		key:     key,
		indexes: indexes,
		items:   make(map[string]map[string]types.AttributeValue),
	}
}

// Seed writes items directly, bypassing call recording and error injection.
func (c *Client) Seed(tableName string, items ...map[string]types.AttributeValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableName]
	if !ok {
		return notFound(tableName)
	}
	for _, item := range items {
		k, err := t.primaryKey(item)
		if err != nil {
			return err
		}
		t.items[k] = cloneItem(item)
	}
	return nil
}

// Items returns a copy of every item stored in a table, in key order.
func (c *Client) Items(tableName string) []map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableName]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		result = append(result, cloneItem(t.items[k]))
	}
	return result
}

// Puts returns the recorded PutItem requests.
func (c *Client) Puts() []*dynamodb.PutItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.PutItemInput(nil), c.puts...)
}

// Queries returns the recorded Query requests, including failed ones.
func (c *Client) Queries() []*dynamodb.QueryInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.QueryInput(nil), c.queries...)
}

// Deletes returns the recorded DeleteItem requests, including failed ones.
func (c *Client) Deletes() []*dynamodb.DeleteItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.DeleteItemInput(nil), c.deletes...)
}

// Updates returns the recorded UpdateItem requests, including failed ones.
func (c *Client) Updates() []*dynamodb.UpdateItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.UpdateItemInput(nil), c.updates...)
}

// PutItem stores an item, replacing any item with the same primary key.
func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	c.puts = append(c.puts, params)
	hook := c.PutErr
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(params); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, notFound(aws.ToString(params.TableName))
	}
	k, err := t.primaryKey(params.Item)
	if err != nil {
		return nil, err
	}
	t.items[k] = cloneItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem removes an item by primary key. Deleting a missing item succeeds.
func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	c.deletes = append(c.deletes, params)
	hook := c.DeleteErr
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(params); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, notFound(aws.ToString(params.TableName))
	}
	k, err := t.primaryKey(params.Key)
	if err != nil {
		return nil, err
	}
	delete(t.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// UpdateItem applies a SET update expression to the item with the given key,
// creating it when absent. A failing ConditionExpression returns a
// *types.ConditionalCheckFailedException.
func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	c.updates = append(c.updates, params)
	hook := c.UpdateErr
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(params); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, notFound(aws.ToString(params.TableName))
	}
	k, err := t.primaryKey(params.Key)
	if err != nil {
		return nil, err
	}

	current, exists := t.items[k]
	if !exists {
		current = map[string]types.AttributeValue{}
	}
	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		ok, err := evaluate(cond, params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("ddbtest: the conditional request failed")}
		}
	}

	updated := cloneItem(current)
	for name, value := range params.Key {
		updated[name] = value
	}
	if err := applySet(updated, aws.ToString(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.items[k] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

// applySet applies "SET a = :v, b = :w" assignments.
func applySet(item map[string]types.AttributeValue, update string, names map[string]string, values map[string]types.AttributeValue) error {
	update = strings.TrimSpace(update)
	if len(update) < 4 || !strings.EqualFold(update[:4], "SET ") {
		return fmt.Errorf("ddbtest: unsupported update expression %q", update)
	}
	for _, assignment := range strings.Split(update[4:], ",") {
		lhs, rhs, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("ddbtest: malformed assignment %q", assignment)
		}
		attr := strings.TrimSpace(lhs)
		if strings.HasPrefix(attr, "#") {
			attr = names[attr]
		}
		value, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return fmt.Errorf("ddbtest: unknown value %q", strings.TrimSpace(rhs))
		}
		item[attr] = value
	}
	return nil
}

// Query evaluates a key condition against a table or index, then applies the
// filter and projection. Pagination follows Limit (or PageSize) and
// ExclusiveStartKey the way DynamoDB does: the limit counts evaluated items,
// before filtering.
func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	c.queries = append(c.queries, params)
	hook := c.QueryErr
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(params); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, notFound(aws.ToString(params.TableName))
	}
	schema := t.key
	if params.IndexName != nil {
		schema, ok = t.indexes[*params.IndexName]
		if !ok {
			return nil, fmt.Errorf("ddbtest: index %q not found on %q", *params.IndexName, aws.ToString(params.TableName))
		}
	}

	var candidates []map[string]types.AttributeValue
	for _, item := range t.items {
		if _, ok := item[schema.Hash]; !ok {
			continue
		}
		if schema.Range != "" {
			if _, ok := item[schema.Range]; !ok {
				continue
			}
		}
		match, err := evaluate(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if match {
			candidates = append(candidates, item)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return sortKey(candidates[i], schema, t.key) < sortKey(candidates[j], schema, t.key)
	})

	start := 0
	if params.ExclusiveStartKey != nil {
		after := sortKey(params.ExclusiveStartKey, schema, t.key)
		for start < len(candidates) && sortKey(candidates[start], schema, t.key) <= after {
			start++
		}
	}

	limit := c.PageSize
	if params.Limit != nil {
		limit = *params.Limit
	}
	end := len(candidates)
	truncated := false
	if limit > 0 && start+int(limit) < end {
		end = start + int(limit)
		truncated = true
	}

	out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{}}
	for _, item := range candidates[start:end] {
		out.ScannedCount++
		keep, err := evaluate(aws.ToString(params.FilterExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		out.Count++
		out.Items = append(out.Items, project(item, aws.ToString(params.ProjectionExpression), params.ExpressionAttributeNames))
	}

	if truncated {
		last := candidates[end-1]
		lek := map[string]types.AttributeValue{}
		for _, attr := range []string{schema.Hash, schema.Range, t.key.Hash, t.key.Range} {
			if attr != "" {
				if v, ok := last[attr]; ok {
					lek[attr] = v
				}
			}
		}
		out.LastEvaluatedKey = lek
	}
	return out, nil
}

func (t *table) primaryKey(item map[string]types.AttributeValue) (string, error) {
	h, ok := item[t.key.Hash].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("ddbtest: missing string key attribute %q", t.key.Hash)
	}
	if t.key.Range == "" {
		return h.Value, nil
	}
	r, ok := item[t.key.Range].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("ddbtest: missing string key attribute %q", t.key.Range)
	}
	return h.Value + "\x00" + r.Value, nil
}

// sortKey orders items by the queried key schema, then by primary key.
func sortKey(item map[string]types.AttributeValue, schema, primary KeySchema) string {
	var parts []string
	for _, attr := range []string{schema.Hash, schema.Range, primary.Hash, primary.Range} {
		if attr == "" {
			continue
		}
		if s, ok := item[attr].(*types.AttributeValueMemberS); ok {
			parts = append(parts, s.Value)
		} else {
			parts = append(parts, "")
		}
	}
	return strings.Join(parts, "\x00")
}

func project(item map[string]types.AttributeValue, projection string, names map[string]string) map[string]types.AttributeValue {
	if strings.TrimSpace(projection) == "" {
		return cloneItem(item)
	}
	result := map[string]types.AttributeValue{}
	for _, part := range strings.Split(projection, ",") {
		attr := strings.TrimSpace(part)
		if strings.HasPrefix(attr, "#") {
			attr = names[attr]
		}
		if v, ok := item[attr]; ok {
			result[attr] = v
		}
	}
	return result
}

func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func notFound(table string) error {
	return &types.ResourceNotFoundException{Message: aws.String("ddbtest: table " + table + " not found")}
}
