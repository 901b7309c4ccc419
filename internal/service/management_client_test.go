package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
)

// fakeTenant serves the token endpoint and the users endpoint of the
// management API, keeping app_metadata in memory.
type fakeTenant struct {
	*httptest.Server
	mu          sync.Mutex
	metadata    map[string]map[string]interface{}
	tokenHits   atomic.Int32
	failUsers   int
	lastGrant   map[string]string
	lastAuthHdr string
}

func newFakeTenant(t *testing.T) *fakeTenant {
	t.Helper()
	ft := &fakeTenant{metadata: map[string]map[string]interface{}{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		ft.tokenHits.Add(1)
		assert.NoError(t, r.ParseForm())
		ft.mu.Lock()
		ft.lastGrant = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"audience":      r.PostForm.Get("audience"),
		}
		ft.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"mgmt-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		ft.lastAuthHdr = r.Header.Get("Authorization")

		if ft.failUsers != 0 {
			http.Error(w, `{"error":"boom"}`, ft.failUsers)
			return
		}

		id := r.URL.Path[len("/api/v2/users/"):]
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"user_id":      id,
				"app_metadata": ft.metadata[id],
			})
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			var patch struct {
				AppMetadata map[string]interface{} `json:"app_metadata"`
			}
			if err := json.Unmarshal(body, &patch); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			if ft.metadata[id] == nil {
				ft.metadata[id] = map[string]interface{}{}
			}
			for k, v := range patch.AppMetadata {
				ft.metadata[id][k] = v
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"user_id": id})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	ft.Server = httptest.NewServer(mux)
	t.Cleanup(ft.Close)
	return ft
}

func newTestManagementClient(ft *fakeTenant) *ManagementClient {
	return NewManagementClient(ManagementConfig{
		BaseURL:      ft.URL,
		ClientID:     "mgmt-client",
		ClientSecret: "mgmt-secret",
		Audience:     ft.URL + "/api/v2/",
		Timeout:      2 * time.Second,
	}, logger.NewNop())
}

func TestManagementClient_RoundTrip(t *testing.T) {
	ft := newFakeTenant(t)
	client := newTestManagementClient(ft)
	ctx := context.Background()

	orders, err := client.GetUserOrders(ctx, "auth0|abc")
	require.NoError(t, err)
	assert.Empty(t, orders)

	placed := []domain.Order{{
		ID:     "ord_0000000000000000001",
		UserID: "auth0|abc",
		Pizza:  "Margherita",
		Size:   domain.SizeMedium,
		Total:  decimal.RequireFromString("16.99"),
		Date:   time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		Status: domain.OrderStatusConfirmed,
	}}
	require.NoError(t, client.SetUserOrders(ctx, "auth0|abc", placed))

	got, err := client.GetUserOrders(ctx, "auth0|abc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ord_0000000000000000001", got[0].ID)
	assert.True(t, got[0].Total.Equal(decimal.RequireFromString("16.99")))
	assert.True(t, placed[0].Date.Equal(got[0].Date))

	assert.Equal(t, "Bearer mgmt-token", ft.lastAuthHdr)
	assert.Equal(t, int32(1), ft.tokenHits.Load(), "token is cached across calls")
	assert.Equal(t, "client_credentials", ft.lastGrant["grant_type"])
	assert.Equal(t, "mgmt-client", ft.lastGrant["client_id"])
	assert.Equal(t, ft.URL+"/api/v2/", ft.lastGrant["audience"])
}

func TestManagementClient_KeepsOtherMetadata(t *testing.T) {
	ft := newFakeTenant(t)
	ft.metadata["auth0|abc"] = map[string]interface{}{"plan": "gold"}
	client := newTestManagementClient(ft)

	require.NoError(t, client.SetUserOrders(context.Background(), "auth0|abc", []domain.Order{}))
	assert.Equal(t, "gold", ft.metadata["auth0|abc"]["plan"])
}

func TestManagementClient_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		errorContains string
	}{
		{"not found", http.StatusNotFound, "management API returned status 404"},
		{"rate limited", http.StatusTooManyRequests, "management API returned status 429"},
		{"server error", http.StatusInternalServerError, "management API returned status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTenant(t)
			ft.failUsers = tt.status
			client := newTestManagementClient(ft)

			_, err := client.GetUserOrders(context.Background(), "auth0|abc")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)

			err = client.SetUserOrders(context.Background(), "auth0|abc", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestManagementClient_Unreachable(t *testing.T) {
	client := NewManagementClient(ManagementConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	}, logger.NewNop())

	_, err := client.GetUserOrders(context.Background(), "auth0|abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call management API")
}
