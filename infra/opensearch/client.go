// Package opensearch ships the gateway audit trail and system log entries to
// an OpenSearch cluster. The service stays fully functional when the cluster
// is unreachable; indexing is best-effort.
package opensearch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/ecomkit/cyberpay/infra/config"
)

const (
	// IndexTransactions holds one document per gateway call.
	IndexTransactions = "cyberpay-transactions"
	// IndexSystemLogs holds structured service log entries.
	IndexSystemLogs = "cyberpay-system-logs"
)

// Client wraps the OpenSearch client with the indices this service uses.
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient connects to the configured cluster and ensures the service
// indices exist.
func NewClient(cfg *config.AppConfig) (*Client, error) {
	osConfig := opensearch.Config{
		Addresses:     []string{cfg.OpenSearchURL},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
		Transport: http.DefaultTransport,
	}
	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		osConfig.Username = cfg.OpenSearchUser
		osConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(osConfig)
	if err != nil {
		return nil, err
	}

	c := &Client{client: client, enabled: cfg.EnableOpenSearch}
	if err := c.setupIndices(); err != nil {
		log.Printf("Warning: failed to set up OpenSearch indices: %v", err)
	}
	return c, nil
}

// GetClient returns the underlying OpenSearch client.
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled reports whether indexing is active.
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

func (c *Client) setupIndices() error {
	for _, index := range []string{IndexTransactions, IndexSystemLogs} {
		exists, err := c.indexExists(index)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := c.createIndex(index); err != nil {
			return err
		}
		log.Printf("Created OpenSearch index: %s", index)
	}
	return nil
}

func (c *Client) indexExists(index string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{index}}
	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) createIndex(index string) error {
	mapping := `{
		"settings": {
			"number_of_shards": 1,
			"number_of_replicas": 1
		},
		"mappings": {
			"properties": {
				"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
				"order_id": {"type": "keyword"},
				"operation": {"type": "keyword"},
				"transaction_id": {"type": "keyword"},
				"status": {"type": "keyword"},
				"level": {"type": "keyword"},
				"message": {"type": "text"}
			}
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  strings.NewReader(mapping),
	}
	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s", index, res.String())
	}
	return nil
}
