// File path: internal/graph/kuzu/client.go
package kuzu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
	"github.com/legacylens/legacylens/internal/graph"
)

// Client implements graph.Client against the Kuzu REST API with a small
// connection pool limiting concurrent queries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	transport  *http.Transport
	baseURL    string

	pool      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	available bool
}

type queryRequest struct {
	Query    string                 `json:"query"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Database string                 `json:"database,omitempty"`
}

type queryResponse struct {
	Error string `json:"error,omitempty"`
}

// NewFromEnv loads configuration and constructs a client. A disabled
// backend yields a nil client and no error.
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	return NewClient(ctx, cfg)
}

// NewClient constructs a client from the provided configuration. An
// unreachable backend is not fatal: the client starts unavailable and the
// first successful query flips it back.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kuzu disabled")
	}
	logger := common.Logger()
	logger.Info("graph: initializing kuzu client",
		"endpoint", cfg.Endpoint, "database", cfg.Database, "pool", cfg.MaxConnections)

	transport := &http.Transport{
		MaxIdleConns:    cfg.HTTPMaxIdleConns,
		IdleConnTimeout: cfg.HTTPIdleConnTimeout,
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		pool:       make(chan struct{}, cfg.MaxConnections),
		closing:    make(chan struct{}),
	}
	for i := 0; i < cfg.MaxConnections; i++ {
		client.pool <- struct{}{}
	}
	client.setAvailable(true)
	if err := client.ping(ctx); err != nil {
		logger.Warn("graph: kuzu ping failed", "error", err)
		client.setAvailable(false)
		return client, nil
	}
	logger.Info("graph: kuzu client ready")
	return client, nil
}

// Available reports whether the client is ready for use.
func (c *Client) Available() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// Close releases the underlying HTTP client resources.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(c.closing)
		c.setAvailable(false)
		if c.transport != nil {
			c.transport.CloseIdleConnections()
		}
	})
	return nil
}

// EnsureSchema creates the node tables and relationship types.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if c == nil {
		return errors.New("kuzu client not configured")
	}
	statements := []string{
		`CREATE NODE TABLE IF NOT EXISTS Program (
            name STRING,
            filename STRING,
            summary STRING,
            updated_at DATETIME,
            PRIMARY KEY (name)
        );`,
		`CREATE NODE TABLE IF NOT EXISTS Paragraph (
            id STRING,
            program STRING,
            name STRING,
            summary STRING,
            defined BOOLEAN,
            updated_at DATETIME,
            PRIMARY KEY (id)
        );`,
		`CREATE REL TABLE IF NOT EXISTS HAS_PARAGRAPH (
            FROM Program TO Paragraph,
            updated_at DATETIME,
            PRIMARY KEY (FROM, TO)
        );`,
		`CREATE REL TABLE IF NOT EXISTS PERFORMS (
            FROM Paragraph TO Paragraph,
            occurrences INT64,
            updated_at DATETIME,
            PRIMARY KEY (FROM, TO)
        );`,
	}
	for _, stmt := range statements {
		if err := c.exec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertProgram upserts a program node keyed by its name.
func (c *Client) InsertProgram(ctx context.Context, program graph.Program) error {
	if program.Name == "" {
		return errors.New("program name required")
	}
	params := map[string]interface{}{
		"name":     program.Name,
		"filename": program.Filename,
		"summary":  program.Summary,
	}
	query := `MERGE (p:Program {name: $name})
SET p.filename = $filename,
    p.summary = $summary,
    p.updated_at = datetime();`
	return c.exec(ctx, query, params)
}

// InsertParagraph upserts a paragraph node and attaches it to its program.
func (c *Client) InsertParagraph(ctx context.Context, paragraph graph.Paragraph) error {
	if paragraph.Program == "" || paragraph.Name == "" {
		return errors.New("paragraph program and name required")
	}
	params := map[string]interface{}{
		"id":      paragraphID(paragraph.Program, paragraph.Name),
		"program": paragraph.Program,
		"name":    paragraph.Name,
		"summary": paragraph.Summary,
		"defined": paragraph.Defined,
	}
	query := `MATCH (program:Program {name: $program})
MERGE (paragraph:Paragraph {id: $id})
SET paragraph.program = $program,
    paragraph.name = $name,
    paragraph.summary = $summary,
    paragraph.defined = $defined,
    paragraph.updated_at = datetime()
MERGE (program)-[rel:HAS_PARAGRAPH]->(paragraph)
SET rel.updated_at = datetime();`
	return c.exec(ctx, query, params)
}

// InsertPerform upserts a PERFORMS relationship between two paragraphs.
func (c *Client) InsertPerform(ctx context.Context, perform graph.Perform) error {
	if perform.Program == "" || perform.From == "" || perform.To == "" {
		return errors.New("perform endpoints required")
	}
	params := map[string]interface{}{
		"from":        paragraphID(perform.Program, perform.From),
		"to":          paragraphID(perform.Program, perform.To),
		"occurrences": perform.Occurrences,
	}
	query := `MATCH (src:Paragraph {id: $from})
MATCH (dst:Paragraph {id: $to})
MERGE (src)-[rel:PERFORMS]->(dst)
SET rel.occurrences = $occurrences,
    rel.updated_at = datetime();`
	return c.exec(ctx, query, params)
}

var _ graph.Client = (*Client)(nil)

func paragraphID(program, name string) string {
	return program + "::" + name
}

func (c *Client) exec(ctx context.Context, query string, params map[string]interface{}) error {
	if c == nil {
		return errors.New("kuzu client not configured")
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	spanCtx, finish := telemetry.StartSpan(ctx, "graph.kuzu.query")
	statusCode := 0
	defer func() { finish("status", statusCode) }()

	payload := queryRequest{Query: query, Database: c.cfg.Database}
	if len(params) > 0 {
		payload.Params = params
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	request, err := http.NewRequestWithContext(spanCtx, http.MethodPost, c.baseURL+"/query", buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		request.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	resp, err := c.httpClient.Do(request)
	if err != nil {
		c.setAvailable(false)
		return fmt.Errorf("kuzu request failed: %w", err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		c.setAvailable(false)
		return fmt.Errorf("kuzu query failed: status %d", resp.StatusCode)
	}
	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("decode kuzu response: %w", err)
	}
	if strings.TrimSpace(qr.Error) != "" {
		return errors.New(qr.Error)
	}
	c.setAvailable(true)
	return nil
}

func (c *Client) ping(ctx context.Context) error {
	pingTimeout := c.cfg.Timeout
	if pingTimeout < 500*time.Millisecond {
		pingTimeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.exec(ctx, "RETURN 1;", nil)
}

func (c *Client) setAvailable(ready bool) {
	c.mu.Lock()
	c.available = ready
	c.mu.Unlock()
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closing:
		return errors.New("kuzu client closed")
	case <-c.pool:
		return nil
	}
}

func (c *Client) release() {
	select {
	case c.pool <- struct{}{}:
	default:
	}
}
