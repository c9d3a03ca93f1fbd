package protection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a client pointed at baseURL with retries disabled and
// short backoff bounds. Tests that exercise retries override the config.
func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		BaseURL:        baseURL,
		ConnectTimeout: time.Second,
		RequestTimeout: 2 * time.Second,
		RetryCount:     -1,
		BackoffBase:    time.Millisecond,
		BackoffCap:     4 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(client.httpClient.CloseIdleConnections)

	return client
}

func TestClient_Protect(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ProtectCreditCard", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/protect", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "protect-credit-card", body["protection_policy_name"])
			assert.Equal(t, "4111111111111111", body["data"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"protected_data":"tkn_abc123"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		result, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.NoError(t, err)
		assert.Equal(t, "tkn_abc123", result.Value)
	})

	t.Run("Error_UnknownPolicy", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown policy"}`))
		}))
		defer server.Close()

		// API errors are never retried, even with retries enabled.
		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 3
		})

		result, err := client.Protect(ctx, "no-such-policy", "4111111111111111")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, IsAPIError(err))
		assert.Equal(t, int64(1), calls.Load())

		e, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, e.Status)
		assert.Equal(t, `{"error":"unknown policy"}`, e.Body)
	})

	t.Run("Error_ServerErrorNotRetried", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 3
		})

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsAPIError(err))
		assert.Equal(t, int64(1), calls.Load())

		e, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, e.Status)
		assert.Equal(t, `{"error":"boom"}`, e.Body)
	})

	t.Run("Error_MissingProtectedDataField", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"something_else":"value"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		result, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, IsMalformedResponse(err))
		assert.Contains(t, err.Error(), "protected_data")
	})

	t.Run("Error_ResponseNotJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json at all`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsMalformedResponse(err))
	})

	t.Run("Error_FieldNotAString", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"protected_data":42}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsMalformedResponse(err))
	})

	t.Run("Error_EmptyPolicyName", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		_, err := client.Protect(ctx, "", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))
		assert.Equal(t, int64(0), calls.Load(), "validation failure must not issue network I/O")
	})

	t.Run("Success_EmptyPayload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			data, ok := body["data"]
			assert.True(t, ok)
			assert.Empty(t, data)

			_, _ = w.Write([]byte(`{"protected_data":"tkn_empty"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		result, err := client.Protect(ctx, "protect-credit-card", "")
		require.NoError(t, err)
		assert.Equal(t, "tkn_empty", result.Value)
	})

	t.Run("Error_PayloadNeverInErrorMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown policy"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		_, err := client.Protect(ctx, "no-such-policy", "4111111111111111")
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "4111111111111111")
	})
}

func TestClient_Reveal(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DefaultResponseField", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/reveal", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "protect-credit-card", body["protection_policy_name"])
			assert.Equal(t, "tkn_abc123", body["data"])

			_, _ = w.Write([]byte(`{"data":"4111111111111111"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		result, err := client.Reveal(ctx, "protect-credit-card", "tkn_abc123")
		require.NoError(t, err)
		assert.Equal(t, "4111111111111111", result.Value)
	})

	t.Run("Success_ConfiguredResponseField", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"revealed_data":"4111111111111111"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RevealResponseField = "revealed_data"
		})

		result, err := client.Reveal(ctx, "protect-credit-card", "tkn_abc123")
		require.NoError(t, err)
		assert.Equal(t, "4111111111111111", result.Value)
	})

	t.Run("Error_WrongResponseField", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"plaintext":"4111111111111111"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)

		_, err := client.Reveal(ctx, "protect-credit-card", "tkn_abc123")
		require.Error(t, err)
		assert.True(t, IsMalformedResponse(err))
	})
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// Pass-through stub: protect echoes the input back as the protected value,
	// reveal returns it unchanged.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		var response map[string]string
		switch r.URL.Path {
		case "/v1/protect":
			response = map[string]string{"protected_data": body["data"]}
		case "/v1/reveal":
			response = map[string]string{"data": body["data"]}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	values := []string{
		"4111111111111111",
		"",
		"value with spaces and unicode: héllo",
		`{"nested":"json"}`,
	}

	for _, value := range values {
		protected, err := client.Protect(ctx, "passthrough", value)
		require.NoError(t, err)

		revealed, err := client.Reveal(ctx, "passthrough", protected.Value)
		require.NoError(t, err)
		assert.Equal(t, value, revealed.Value)
	}
}

func TestClient_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_UnavailableRetriedThenReturned", func(t *testing.T) {
		// The handler drops the connection mid-request, which surfaces as a
		// transport failure on the client side.
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 2
		})

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
		assert.Equal(t, int64(3), calls.Load(), "initial attempt plus two retries")
	})

	t.Run("Error_ConnectionRefused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := newTestClient(t, url, func(cfg *Config) {
			cfg.RetryCount = 1
		})

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
	})

	t.Run("Success_RecoversAfterTransientFailure", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)
				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			_, _ = w.Write([]byte(`{"protected_data":"tkn_abc123"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 2
		})

		result, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.NoError(t, err)
		assert.Equal(t, "tkn_abc123", result.Value)
		assert.Equal(t, int64(2), calls.Load())
	})
}

func TestClient_Cancellation(t *testing.T) {
	t.Run("Error_PreTrippedContext", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 3
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsCancelled(err))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, int64(0), calls.Load(), "cancelled call must not issue network attempts")
	})

	t.Run("Error_CancelledMidRequest", func(t *testing.T) {
		started := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Drain the body so the server arms its background connection
			// read; otherwise it never observes the client disconnect and
			// r.Context() is never cancelled, deadlocking server.Close.
			_, _ = io.Copy(io.Discard, r.Body)
			close(started)
			<-r.Context().Done()
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RetryCount = 3
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		_, err := client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsCancelled(err), "got: %v", err)
	})
}

func TestClient_RateLimit(t *testing.T) {
	t.Run("Error_BurstNeverSatisfiable", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		// A zero burst can never admit a request; the limiter error must
		// surface as the cause rather than a nil context error.
		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RateLimitRequestsPerSec = 1
			cfg.RateLimitBurst = 0
		})

		_, err := client.Protect(context.Background(), "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err), "got: %v", err)
		assert.False(t, IsCancelled(err))

		e, ok := AsError(err)
		require.True(t, ok)
		assert.NotNil(t, e.Unwrap())
		assert.Equal(t, int64(0), calls.Load(), "rejected call must not issue network attempts")
	})

	t.Run("Error_CancelledWhileWaiting", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"protected_data":"tkn_abc123"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *Config) {
			cfg.RateLimitRequestsPerSec = 0.001
			cfg.RateLimitBurst = 1
		})

		// First call consumes the only token.
		_, err := client.Protect(context.Background(), "protect-credit-card", "4111111111111111")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err = client.Protect(ctx, "protect-credit-card", "4111111111111111")
		require.Error(t, err)
		assert.True(t, IsCancelled(err), "got: %v", err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestNewClient(t *testing.T) {
	t.Run("Error_MissingBaseURL", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("Error_RelativeBaseURL", func(t *testing.T) {
		_, err := NewClient(Config{BaseURL: "protect.example.com"})
		require.Error(t, err)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("Success_CallerOwnedHTTPClient", func(t *testing.T) {
		httpClient := &http.Client{}
		client, err := NewClient(Config{
			BaseURL:    "http://localhost:8080",
			HTTPClient: httpClient,
		})
		require.NoError(t, err)
		assert.Same(t, httpClient, client.httpClient)
	})
}

func TestNewBackOff(t *testing.T) {
	t.Run("Success_DelaysIncreaseUntilCapped", func(t *testing.T) {
		cfg := Config{
			BaseURL:     "http://localhost:8080",
			RetryCount:  5,
			BackoffBase: 100 * time.Millisecond,
			BackoffCap:  400 * time.Millisecond,
		}.withDefaults()

		b := newBackOff(cfg)

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			400 * time.Millisecond,
			400 * time.Millisecond,
		}
		for i, want := range expected {
			assert.Equal(t, want, b.NextBackOff(), "delay %d", i)
		}
		assert.Equal(t, backoff.Stop, b.NextBackOff(), "schedule must stop after RetryCount retries")
	})
}
