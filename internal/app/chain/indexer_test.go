package chain

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
)

var txHash = strings.Repeat("a1b2", 16)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestIndexer(t *testing.T, h http.HandlerFunc) (*IndexerClient, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	m := metrics.New(prometheus.NewRegistry())
	return NewIndexerClient(srv.URL+"/", "secret", time.Second, quietLogger(), m), m
}

func TestIndexerTransactionStringValue(t *testing.T) {
	client, m := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/"+txHash, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"hash":"`+txHash+`","in_msg":{"value":"123456789012345678901","destination":{"address":"0:DEADBEEF"}}}`)
	})

	tx, err := client.Transaction(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, txHash, tx.Hash)
	assert.Equal(t, "0:DEADBEEF", tx.Destination)
	assert.Equal(t, "123456789012345678901", tx.ValueNano.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexerRequests.WithLabelValues("ok")))
}

func TestIndexerTransactionNumericValue(t *testing.T) {
	client, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"in_msg":{"value":2500000000,"destination":{"address":"0:abc"}}}`)
	})

	tx, err := client.Transaction(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, txHash, tx.Hash)
	assert.Equal(t, "2500000000", tx.ValueNano.String())
}

func TestIndexerTransactionNonSuccessStatus(t *testing.T) {
	client, m := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"entity not found"}`)
	})

	_, err := client.Transaction(context.Background(), txHash)
	var lookupErr *LookupFailedError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, http.StatusNotFound, lookupErr.Status)
	assert.Equal(t, txHash, lookupErr.Hash)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexerRequests.WithLabelValues("http_error")))
}

func TestIndexerTransactionMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":       `<html>`,
		"no in_msg":      `{"hash":"x"}`,
		"float value":    `{"in_msg":{"value":"2.5","destination":{"address":"0:abc"}}}`,
		"negative value": `{"in_msg":{"value":"-1","destination":{"address":"0:abc"}}}`,
		"no destination": `{"in_msg":{"value":"1"}}`,
		"empty address":  `{"in_msg":{"value":"1","destination":{"address":""}}}`,
		"null value":     `{"in_msg":{"value":null,"destination":{"address":"0:abc"}}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			_, err := client.Transaction(context.Background(), txHash)
			require.ErrorIs(t, err, ErrMalformedTransaction)
		})
	}
}

func TestIndexerTransactionTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewIndexerClient(srv.URL, "", 50*time.Millisecond, quietLogger(), nil)
	_, err := client.Transaction(context.Background(), txHash)
	require.Error(t, err)

	var lookupErr *LookupFailedError
	assert.False(t, errors.As(err, &lookupErr))
}
