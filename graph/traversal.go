package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/sync/errgroup"

	"github.com/neilpennell/dynamodb-graph/internal/shard"
)

// GetNodesOfType returns every node of typ in org.
//
// Nodes whose expiry (see ExpireNode) has passed are skipped.
//
// One query per shard bucket runs concurrently against the type index and the
// partial results are merged: Items are concatenated, Count and ScannedCount
// summed. With depth > 0 every matched node is then expanded concurrently with
// the edges and properties of its own partition (NodeView.Fields). Expansion
// is a single hop; any depth above 1 behaves as 1.
//
// Any failing shard or expansion query fails the whole call.
func (g *Graph) GetNodesOfType(ctx context.Context, org, typ string, depth int) (*NodesResult, error) {
	if org == "" {
		return nil, ErrUndefinedOrganization
	}
	if typ == "" {
		return nil, ErrUndefinedType
	}

	keys := shard.Keys(org, g.config.MaxGSIK)
	g.logger.DebugContext(ctx, "scattering type query",
		"org", org,
		"type", typ,
		"shards", len(keys),
		"depth", depth,
	)
	g.metrics.observeFanout(phaseShards, len(keys))

	// Each shard writes only its own slot.
	now := time.Now()
	partials := make([]NodesResult, len(keys))
	grp, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		grp.Go(func() error {
			part, err := g.queryShard(gctx, key, typ, now)
			if err != nil {
				return err
			}
			partials[i] = part
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	result := &NodesResult{Items: []*NodeView{}}
	for _, part := range partials {
		result.merge(part)
	}

	if depth > 0 {
		if err := g.expand(ctx, result.Items); err != nil {
			return nil, err
		}
	}

	g.logger.DebugContext(ctx, "type query gathered",
		"org", org,
		"type", typ,
		"count", result.Count,
		"scannedCount", result.ScannedCount,
	)
	return result, nil
}

// queryShard reads the live node records of typ stored under one shard key.
func (g *Graph) queryShard(ctx context.Context, gsik, typ string, now time.Time) (NodesResult, error) {
	expr, err := shardExpression(gsik, typ, now)
	if err != nil {
		return NodesResult{}, fmt.Errorf("build shard expression: %w", err)
	}

	items, count, scanned, err := g.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(g.config.Table),
		IndexName:                 aws.String(g.config.IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, gsik)
	if err != nil {
		return NodesResult{}, err
	}

	var recs []Record
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return NodesResult{}, fmt.Errorf("unmarshal shard %s: %w", gsik, err)
	}
	views := make([]*NodeView, len(recs))
	for i, rec := range recs {
		views[i] = &NodeView{Node: rec.Node, Data: rec.Data}
	}
	return NodesResult{Items: views, Count: count, ScannedCount: scanned}, nil
}

// expand attaches the edges and properties of every item. Each goroutine
// owns exactly one item and writes only to it.
func (g *Graph) expand(ctx context.Context, items []*NodeView) error {
	g.metrics.observeFanout(phaseExpand, len(items))

	grp, gctx := errgroup.WithContext(ctx)
	if g.config.MaxConcurrency > 0 {
		grp.SetLimit(g.config.MaxConcurrency)
	}
	for _, item := range items {
		grp.Go(func() error {
			recs, err := g.queryAttached(gctx, item.Node)
			if err != nil {
				return err
			}
			fields := make(map[string]any, len(recs))
			for _, rec := range recs {
				fields[rec.Type] = rec.Value()
			}
			item.Fields = fields
			return nil
		})
	}
	return grp.Wait()
}

// queryAttached reads every record of a node partition except the node record.
func (g *Graph) queryAttached(ctx context.Context, node string) ([]Record, error) {
	expr, err := attachedExpression(node)
	if err != nil {
		return nil, fmt.Errorf("build expansion expression: %w", err)
	}

	items, _, _, err := g.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(g.config.Table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, node)
	if err != nil {
		return nil, err
	}

	var recs []Record
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal partition %s: %w", node, err)
	}
	return recs, nil
}
