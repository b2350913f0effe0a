// Package stream provides DynamoDB Streams handlers for the graph table.
//
// When a node record is removed, either directly or by a table TTL, its edges
// and properties would otherwise stay behind in the node partition. The
// handlers here watch REMOVE events and purge the rest of the partition.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/neilpennell/dynamodb-graph/graph"
)

// Purger deletes every record stored under a node key.
// *graph.Graph satisfies it.
type Purger interface {
	DeletePartition(ctx context.Context, node string) (int, error)
}

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	purger Purger
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(p Purger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		purger: p,
		logger: logger,
	}
}

// HandleNodeRemoval processes DynamoDB stream events and purges the partition
// of every removed node record. The first failure stops the batch and is
// returned, so Lambda retries the whole batch.
func (h *Handler) HandleNodeRemoval(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// HandleNodeRemovalBatch is HandleNodeRemoval for event source mappings with
// ReportBatchItemFailures enabled. Processing stops at the first failure,
// which is reported by sequence number so only the remainder is retried.
func (h *Handler) HandleNodeRemovalBatch(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"sequenceNumber", record.Change.SequenceNumber,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
			break
		}
	}
	return resp, nil
}

// processRecord purges the partition of a removed node record. Removals of
// edges and properties, including the ones the purge itself causes, are
// ignored.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	var key graph.Record
	if err := attributevalue.UnmarshalMap(ConvertStreamKey(record.Change.Keys), &key); err != nil {
		return fmt.Errorf("decode stream key: %w", err)
	}
	if key.Node == "" {
		return nil
	}

	if record.Change.OldImage == nil {
		h.logger.Debug("skipping removal without old image",
			"node", key.Node,
			"type", key.Type,
		)
		return nil
	}
	if getStringAttr(record.Change.OldImage, graph.AttrTarget) != key.Node {
		return nil
	}

	h.logger.Info("purging removed node",
		"node", key.Node,
		"type", key.Type,
	)

	deleted, err := h.purger.DeletePartition(ctx, key.Node)
	if err != nil {
		return fmt.Errorf("purge %s: %w", key.Node, err)
	}

	h.logger.Info("node purge completed",
		"node", key.Node,
		"recordsDeleted", deleted,
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
// Missing and non-string attributes yield "".
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertStreamKey converts a DynamoDB stream key to SDK attribute values.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(streamKey))
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
