package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
)

// AuditIndexer mirrors notification audit rows into elasticsearch so
// operators can search delivery history without touching the primary store.
type AuditIndexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewAuditIndexer(client *elasticsearch.Client, index string, log logger.Logger) *AuditIndexer {
	return &AuditIndexer{client: client, index: index, log: log}
}

// Index writes one notification document keyed by the notification id, so
// replays overwrite rather than duplicate.
func (a *AuditIndexer) Index(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return stderrors.NewAuditIndexFailedError(err)
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: n.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return stderrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return stderrors.NewAuditIndexFailedError(fmt.Errorf("index %s returned %s", a.index, res.Status()))
	}
	return nil
}
