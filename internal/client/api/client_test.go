package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoplite/apiserver/types"
)

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "alice@example.com", req["email"])
		require.Equal(t, "secret1", req["password"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":  types.User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: types.RoleUser},
			"token": "signed-token",
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL)
	result, err := client.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "signed-token", result.Token)
	require.Equal(t, 1, result.User.ID)
	require.Equal(t, "Alice", result.User.Name)
}

func TestClient_LoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid email or password"})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL)
	_, err := client.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid email or password", apiErr.Error())
}

func TestClient_Me(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/auth/me", r.URL.Path)
		require.Equal(t, "Bearer signed-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": types.User{ID: 1, Name: "Alice", Email: "alice@example.com"},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL)
	user, err := client.Me(context.Background(), "signed-token")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
}

func TestClient_UpdateName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Alice Renamed", req["name"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": types.User{ID: 1, Name: req["name"]},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL)
	user, err := client.UpdateName(context.Background(), "signed-token", "Alice Renamed")
	require.NoError(t, err)
	require.Equal(t, "Alice Renamed", user.Name)
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL)
	_, err := client.Me(context.Background(), "signed-token")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "request failed with status 500", apiErr.Error())
}
