package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Fetcher loads the rows of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]Row, error)
}

// ErrUnsupportedSource is returned for sources that are neither a URL nor a .csv/.yaml file.
var ErrUnsupportedSource = errors.New("unsupported feed source")

// Client reads published CSV sheets over HTTP and local CSV/YAML decks.
// Successful loads are cached so a flaky sheet host does not empty the roster.
type Client struct {
	httpClient *http.Client
	cache      *Cache
	logger     zerolog.Logger
}

var _ Fetcher = (*Client)(nil)

func NewClient(httpClient *http.Client, cache *Cache, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		logger:     logger.With().Str("component", "feed").Logger(),
	}
}

// Fetch loads rows from source, falling back to the cached copy on failure.
func (c *Client) Fetch(ctx context.Context, source string) ([]Row, error) {
	rows, err := c.load(ctx, source)
	if err == nil {
		if c.cache != nil {
			if cerr := c.cache.Set(ctx, source, rows); cerr != nil {
				c.logger.Warn().Err(cerr).Str("source", source).Msg("feed cache write failed")
			}
		}
		return rows, nil
	}

	if c.cache != nil {
		cached, cerr := c.cache.Get(ctx, source)
		if cerr == nil && cached != nil {
			c.logger.Warn().Err(err).Str("source", source).Int("rows", len(cached)).Msg("feed fetch failed, serving cached rows")
			return cached, nil
		}
	}
	return nil, err
}

func (c *Client) load(ctx context.Context, source string) ([]Row, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return c.fetchCSV(ctx, source)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return readYAML(source)
	case ".csv":
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return ParseCSV(f)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
}

func (c *Client) fetchCSV(ctx context.Context, url string) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheet non-200: %d", resp.StatusCode)
	}
	return ParseCSV(resp.Body)
}

// ParseCSV reads a header row followed by records. Blank records are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := Row{}
		empty := true
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			row[header[i]] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readYAML(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}
	var raw []map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	rows := make([]Row, len(raw))
	for i, m := range raw {
		rows[i] = Row(m)
	}
	return rows, nil
}
