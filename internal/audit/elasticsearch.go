package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
)

// IndexMapping is applied when the audit index is first created.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "userId":    {"type": "keyword"},
      "sessionId": {"type": "keyword"},
      "action":    {"type": "keyword"},
      "result":    {"type": "keyword"},
      "reason":    {"type": "keyword"},
      "gatewayId": {"type": "keyword"},
      "message":   {"type": "text"},
      "createdAt": {"type": "date"}
    }
  }
}`

// ElasticsearchSink indexes one document per entry.
type ElasticsearchSink struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchSink(client *database.ElasticsearchClient, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

// EnsureIndex creates the audit index with IndexMapping if needed.
func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	return s.client.EnsureIndex(ctx, s.index, IndexMapping)
}

func (s *ElasticsearchSink) Append(ctx context.Context, e *models.AuthLogEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode auth log: %w", err)
	}

	es := s.client.Client
	res, err := es.Index(s.index, bytes.NewReader(body), es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index auth log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index auth log: %s", res.Status())
	}
	return nil
}
