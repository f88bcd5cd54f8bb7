// internal/analytics/indexer.go
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"haptic-trainer/internal/common/database"
	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// DefaultIndex is where session documents land unless configured otherwise.
const DefaultIndex = "training-sessions"

// sessionMapping pins types for the fields the canned queries filter, sort
// and aggregate on. Remaining fields fall back to dynamic mapping.
const sessionMapping = `{
  "mappings": {
    "properties": {
      "sessionId":      {"type": "keyword"},
      "traineeId":      {"type": "keyword"},
      "task":           {"type": "keyword"},
      "gesture":        {"type": "keyword"},
      "mode":           {"type": "keyword"},
      "level":          {"type": "keyword"},
      "sparc":          {"type": "double"},
      "ldlj":           {"type": "double"},
      "pathEfficiency": {"type": "double"},
      "forceCv":        {"type": "double"},
      "overallScore":   {"type": "double"},
      "completedAt":    {"type": "date"},
      "indexedAt":      {"type": "date"}
    }
  }
}`

// Indexer writes and queries session analytics documents.
type Indexer struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{es: es, index: index, logger: log}
}

// Index returns the index name documents are written to.
func (ix *Indexer) Index() string {
	return ix.index
}

// EnsureIndex creates the index with the session mapping if it does not
// exist yet.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := ix.es.Client.Indices.Exists([]string{ix.index},
		ix.es.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	created, err := ix.es.Client.Indices.Create(ix.index,
		ix.es.Client.Indices.Create.WithBody(strings.NewReader(sessionMapping)),
		ix.es.Client.Indices.Create.WithContext(ctx))
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return errors.NewIndexWriteFailedError(ix.index,
			fmt.Errorf("create index: %s", created.String()))
	}
	ix.logger.Info("analytics index created", map[string]interface{}{
		"index": ix.index,
	})
	return nil
}

// IndexDoc writes one document under its stable id.
func (ix *Indexer) IndexDoc(ctx context.Context, doc *models.SessionAnalyticsDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewIndexWriteFailedError(ix.index, err)
	}

	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: DocID(doc),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewIndexWriteFailedError(ix.index,
			fmt.Errorf("index %s: %s", DocID(doc), res.Status()))
	}
	return nil
}
