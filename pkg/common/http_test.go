package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WattWise/"+Version(), r.Header.Get("User-Agent"), "User-Agent should match expected format")
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Run("With Timeout", func(t *testing.T) {
		client := HTTPClient(5 * time.Second)
		assert.Equal(t, 5*time.Second, client.Timeout)
		assert.NotNil(t, client.Transport)

		req, err := http.NewRequest("GET", server.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("No Timeout", func(t *testing.T) {
		client := HTTPClient(0)
		assert.Zero(t, client.Timeout)
	})

	t.Run("Accept Not Overwritten", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		}))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/plain")
		resp, err := HTTPClient(0).Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		// the caller's request must not be mutated by the transport
		assert.Empty(t, req.Header.Get("User-Agent"))
	})
}
