// Package management talks to a router management agent over HTTP using the
// QUERY operation and exposes router entities as table sources.
package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

const (
	TypeLink       = "org.apache.qpid.dispatch.router.link"
	TypeConnection = "org.apache.qpid.dispatch.connection"
	TypeAddress    = "org.apache.qpid.dispatch.router.address"

	CorrelationHeader = "Correlation-Id"
)

type QueryRequest struct {
	Operation      string   `json:"operation"`
	EntityType     string   `json:"entityType"`
	AttributeNames []string `json:"attributeNames"`
	Offset         int      `json:"offset,omitempty"`
	Count          int      `json:"count,omitempty"`
}

// QueryResponse carries results as rows of values in AttributeNames order.
type QueryResponse struct {
	StatusCode        int      `json:"statusCode"`
	StatusDescription string   `json:"statusDescription,omitempty"`
	AttributeNames    []string `json:"attributeNames"`
	Results           [][]any  `json:"results"`
}

// Records flattens the result rows into attribute maps.
func (r QueryResponse) Records() []domain.Record {
	out := make([]domain.Record, 0, len(r.Results))
	for _, row := range r.Results {
		rec := make(domain.Record, len(r.AttributeNames))
		for i, name := range r.AttributeNames {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Querier runs a QUERY for one entity type.
type Querier interface {
	Query(ctx context.Context, entityType string, attrs []string) (QueryResponse, error)
}

type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

func NewClient(endpoint string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log.Named("management"),
	}
}

func (c *Client) Query(ctx context.Context, entityType string, attrs []string) (QueryResponse, error) {
	body, err := json.Marshal(QueryRequest{Operation: "QUERY", EntityType: entityType, AttributeNames: attrs})
	if err != nil {
		return QueryResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return QueryResponse{}, err
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CorrelationHeader, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("query %s: %w", entityType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return QueryResponse{}, fmt.Errorf("query %s: http %d: %s", entityType, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if got := resp.Header.Get(CorrelationHeader); got != "" && got != id {
		return QueryResponse{}, fmt.Errorf("query %s: correlation id mismatch: sent %s, got %s", entityType, id, got)
	}

	var out QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return QueryResponse{}, fmt.Errorf("query %s: decode: %w", entityType, err)
	}
	if out.StatusCode != 0 && (out.StatusCode < 200 || out.StatusCode > 299) {
		return QueryResponse{}, fmt.Errorf("query %s: agent status %d %s", entityType, out.StatusCode, out.StatusDescription)
	}
	c.log.Debug("query", zap.String("type", entityType), zap.String("correlationId", id), zap.Int("results", len(out.Results)))
	return out, nil
}
