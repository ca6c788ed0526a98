package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
	"github.com/sirupsen/logrus"
)

var ErrMalformedTransaction = errors.New("malformed indexer transaction")

// LookupFailedError is returned when the indexer answers with a non-2xx status.
type LookupFailedError struct {
	Hash   string
	Status int
	Body   string
}

func (e *LookupFailedError) Error() string {
	return fmt.Sprintf("indexer lookup of %s failed with status %d: %s", e.Hash, e.Status, e.Body)
}

// Transaction is the part of an indexed transaction needed to verify a transfer.
type Transaction struct {
	Hash        string
	Destination string
	ValueNano   *big.Int
}

type IndexerClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewIndexerClient(baseURL, apiKey string, timeout time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *IndexerClient {
	return &IndexerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
		metrics: m,
	}
}

type indexerTransaction struct {
	Hash  string `json:"hash"`
	InMsg *struct {
		Value       *nanoValue `json:"value"`
		Destination *struct {
			Address string `json:"address"`
		} `json:"destination"`
	} `json:"in_msg"`
}

// nanoValue accepts both "2500000000" and 2500000000.
type nanoValue struct {
	big.Int
}

func (v *nanoValue) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if _, ok := v.SetString(raw, 10); !ok {
		return fmt.Errorf("invalid nanoton value %q", raw)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("negative nanoton value %q", raw)
	}
	return nil
}

// Transaction fetches a transaction by hash and extracts its incoming message.
func (c *IndexerClient) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	start := time.Now()
	tx, err := c.fetch(ctx, hash)

	result := "ok"
	var lookupErr *LookupFailedError
	switch {
	case err == nil:
	case errors.As(err, &lookupErr):
		result = "http_error"
	case errors.Is(err, ErrMalformedTransaction):
		result = "malformed"
	default:
		result = "network_error"
	}
	if c.metrics != nil {
		c.metrics.IndexerRequests.WithLabelValues(result).Inc()
		c.metrics.IndexerRequestDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"tx_hash": hash, "result": result,
		}).Warn("indexer lookup failed")
	}
	return tx, err
}

func (c *IndexerClient) fetch(ctx context.Context, hash string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s", c.baseURL, url.PathEscape(hash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &LookupFailedError{Hash: hash, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload indexerTransaction
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if payload.InMsg == nil || payload.InMsg.Destination == nil || payload.InMsg.Value == nil {
		return nil, fmt.Errorf("%w: missing in_msg destination or value", ErrMalformedTransaction)
	}
	if payload.InMsg.Destination.Address == "" {
		return nil, fmt.Errorf("%w: empty destination", ErrMalformedTransaction)
	}

	txHash := payload.Hash
	if txHash == "" {
		txHash = hash
	}
	return &Transaction{
		Hash:        txHash,
		Destination: payload.InMsg.Destination.Address,
		ValueNano:   new(big.Int).Set(&payload.InMsg.Value.Int),
	}, nil
}
