package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/neilpennell/dynamodb-graph/internal/nodeid"
	"github.com/neilpennell/dynamodb-graph/internal/shard"
)

// BucketFunc chooses the shard bucket of a record at write time.
// It must return a value in [0, maxGSIK).
type BucketFunc func(node, typ string, maxGSIK int) int

// RandomBuckets draws a uniform random bucket. It is the default.
func RandomBuckets(node, typ string, maxGSIK int) int {
	return shard.RandomBucket(maxGSIK)
}

// DeterministicBuckets places a record by a hash of its node identifier, so
// the bucket of a node can be predicted with shard.Bucket.
func DeterministicBuckets(node, typ string, maxGSIK int) int {
	return shard.Bucket(node, maxGSIK)
}

// Graph provides node, edge and property operations over one DynamoDB table.
type Graph struct {
	client     Client
	config     Config
	logger     *slog.Logger
	metrics    *Metrics
	bucket     BucketFunc
	properties PropertiesFunc
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithBucketFunc overrides the write-time bucket assignment.
func WithBucketFunc(f BucketFunc) Option {
	return func(g *Graph) { g.bucket = f }
}

// New creates a Graph. The configuration is validated here, so a returned
// Graph is always usable.
func New(client Client, config Config, opts ...Option) (*Graph, error) {
	if client == nil {
		return nil, &ConfigError{Field: "Client", Tag: "required"}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		client: client,
		config: config,
		bucket: RandomBuckets,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.bucket == nil {
		g.bucket = RandomBuckets
	}
	g.properties = propertiesQuery(client, config.Table, g.metrics)
	return g, nil
}

// Config returns the validated configuration.
func (g *Graph) Config() Config {
	return g.config
}

// CreateNode writes a node record and returns it. The node identifier is
// derived from (org, typ, data), so repeating the call overwrites the same
// record instead of creating a duplicate.
func (g *Graph) CreateNode(ctx context.Context, org, typ string, data any) (*Record, error) {
	if org == "" {
		return nil, ErrUndefinedOrganization
	}
	if typ == "" {
		return nil, ErrUndefinedType
	}

	node, err := nodeid.Derive(org, typ, data)
	if err != nil {
		return nil, err
	}

	rec := g.shardedRecord(org, node, typ, data)
	rec.Target = node

	if err := g.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateEdge writes a directed edge from node to target into node's partition.
// An existing edge with the same type is overwritten.
func (g *Graph) CreateEdge(ctx context.Context, org, node, typ, target string, data any) (*Record, error) {
	if org == "" {
		return nil, ErrUndefinedOrganization
	}
	if node == "" {
		return nil, ErrUndefinedNode
	}
	if typ == "" {
		return nil, ErrUndefinedType
	}
	if target == "" {
		return nil, ErrUndefinedTarget
	}

	rec := g.shardedRecord(org, node, typ, data)
	rec.Target = target

	if err := g.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AddPropertyToNode writes a bare property record into node's partition.
// The node is not checked for existence.
func (g *Graph) AddPropertyToNode(ctx context.Context, org, node, typ string, data any) (*Record, error) {
	if org == "" {
		return nil, ErrUndefinedOrganization
	}
	if node == "" {
		return nil, ErrUndefinedNode
	}
	if typ == "" {
		return nil, ErrUndefinedType
	}

	rec := g.shardedRecord(org, node, typ, data)

	if err := g.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteNode deletes every record of the node org#nodeID: the node record, its
// edges and its properties. It returns the number of records deleted.
//
// Records are deleted individually and concurrently; the first failure is
// returned and the remaining records may or may not have been deleted.
func (g *Graph) DeleteNode(ctx context.Context, org, nodeID string) (int, error) {
	if org == "" {
		return 0, ErrUndefinedOrganization
	}
	if nodeID == "" {
		return 0, ErrUndefinedNode
	}
	return g.DeletePartition(ctx, nodeid.Key(org, nodeID))
}

// DeletePartition deletes every record stored under a full node key.
// An empty partition is a no-op.
func (g *Graph) DeletePartition(ctx context.Context, node string) (int, error) {
	if node == "" {
		return 0, ErrUndefinedNode
	}

	expr, err := partitionExpression(node)
	if err != nil {
		return 0, fmt.Errorf("build partition expression: %w", err)
	}
	items, _, _, err := g.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(g.config.Table),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, node)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	var recs []Record
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return 0, fmt.Errorf("unmarshal partition %s: %w", node, err)
	}

	g.metrics.observeFanout(phaseDelete, len(recs))
	grp, gctx := errgroup.WithContext(ctx)
	if g.config.MaxConcurrency > 0 {
		grp.SetLimit(g.config.MaxConcurrency)
	}
	for _, rec := range recs {
		grp.Go(func() error {
			return g.DeleteRecord(gctx, node, rec.Type)
		})
	}
	if err := grp.Wait(); err != nil {
		return 0, err
	}

	g.logger.DebugContext(ctx, "node partition deleted",
		"node", node,
		"records", len(recs),
	)
	return len(recs), nil
}

// DeleteRecord deletes a single record by key. Deleting a missing record
// is not an error.
func (g *Graph) DeleteRecord(ctx context.Context, node, typ string) error {
	if node == "" {
		return ErrUndefinedNode
	}
	if typ == "" {
		return ErrUndefinedType
	}

	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.config.Table),
		Key: map[string]types.AttributeValue{
			AttrNode: &types.AttributeValueMemberS{Value: node},
			AttrType: &types.AttributeValueMemberS{Value: typ},
		},
	})
	g.metrics.observeRequest(opDeleteItem, err)
	if err != nil {
		return storeError(opDeleteItem, g.config.Table, node, err)
	}
	return nil
}

// GetNodeProperties returns the bare property records of a node.
// See NewPropertiesQuery.
func (g *Graph) GetNodeProperties(ctx context.Context, q PropertyQuery) (*PropertiesResult, error) {
	return g.properties(ctx, q)
}

// shardedRecord builds a record carrying GSIK and TGSIK for a fresh bucket.
func (g *Graph) shardedRecord(org, node, typ string, data any) *Record {
	bucket := g.bucket(node, typ, g.config.MaxGSIK)
	return &Record{
		Node:  node,
		Type:  typ,
		Data:  data,
		GSIK:  shard.Key(org, bucket),
		TGSIK: shard.TypeKey(org, typ, bucket),
	}
}

func (g *Graph) put(ctx context.Context, rec *Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.config.Table),
		Item:      item,
	})
	g.metrics.observeRequest(opPutItem, err)
	if err != nil {
		return storeError(opPutItem, g.config.Table, rec.Node, err)
	}
	return nil
}

// queryAll follows every page of a query and sums the counts.
func (g *Graph) queryAll(ctx context.Context, input *dynamodb.QueryInput, key string) ([]map[string]types.AttributeValue, int32, int32, error) {
	var (
		items   []map[string]types.AttributeValue
		count   int32
		scanned int32
	)
	paginator := dynamodb.NewQueryPaginator(g.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		g.metrics.observeRequest(opQuery, err)
		if err != nil {
			return nil, 0, 0, storeError(opQuery, g.config.Table, key, err)
		}
		items = append(items, page.Items...)
		count += page.Count
		scanned += page.ScannedCount
	}
	return items, count, scanned, nil
}
