// Package graph provides a property-graph data access layer over a single
// DynamoDB table.
//
// Nodes, edges and node properties share one table keyed by (Node, Type).
// A "by type" global secondary index keyed by (GSIK, Type) is sharded across
// a fixed number of buckets so that a single organization's nodes of one type
// never concentrate on one index partition.
//
// # Records
//
//   - Node: Target equals Node. The node identifier is derived from
//     (organization, type, data), so creating the same node twice is an upsert.
//   - Edge: stored in the source node's partition, Target names the target node.
//   - Property: stored in a node's partition without a Target attribute.
//
// # Queries
//
// [Graph.GetNodesOfType] scatters one query per shard bucket across the index,
// gathers the partial results and, for depth > 0, expands every matched node
// with the edges and properties of its own partition:
//
//	g, err := graph.New(dynamodb.NewFromConfig(awsCfg), graph.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	people, err := g.GetNodesOfType(ctx, orgID, "Person", 1)
//
// [NewPropertiesQuery] builds a single-partition query returning only the bare
// property records of a node, optionally narrowed by a sort key clause:
//
//	props, err := graph.NewPropertiesQuery(client, cfg)
//	res, err := props(ctx, graph.PropertyQuery{
//	    Node:       node,
//	    Expression: "begins_with(#Type, :Type)",
//	    Value:      "Address",
//	})
//
// # Expiry
//
// [Graph.ExpireNode] sets the node record's ttl attribute. Expired nodes are
// hidden from GetNodesOfType right away; once DynamoDB removes the record,
// the handler in package stream purges the node's edges and properties.
//
// # Configuration
//
// [Config.MaxGSIK] must be identical for every writer and reader of a table;
// readers enumerate exactly MaxGSIK buckets. [LoadConfig] reads a Config from
// YAML.
//
// # Errors
//
//   - [*ConfigError] / [ErrInvalidConfig] - invalid configuration at construction
//   - [ErrValidation] - a required argument is missing, e.g. [ErrUndefinedNode]
//   - [ErrNodeNotFound] - ExpireNode addressed something other than a node
//   - [*StoreError] - a DynamoDB request failed; the first failure of a fan-out
//     fails the whole operation
package graph
