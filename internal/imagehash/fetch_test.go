package imagehash

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stripeImage(96, 96)))
	return buf.Bytes()
}

func fastFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RatePerSec: 1000,
	})
}

func TestFetchHashOK(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	hash, err := fastFetcher().FetchHash(context.Background(), srv.URL+"/creative.png")
	require.NoError(t, err)
	assert.Equal(t, DHash(stripeImage(96, 96)), hash)
}

func TestFetchHashNotFoundIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := fastFetcher().FetchHash(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetchHashUndecodable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	_, err := fastFetcher().FetchHash(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnhashable))
}
