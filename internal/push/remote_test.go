package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

func TestRemoteStoreSaveAndDelete(t *testing.T) {
	t.Parallel()

	var saved map[string]any
	var deletedEndpoint string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/push/subscriptions" {
			t.Errorf("path = %s, want /v1/push/subscriptions", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(&saved); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			deletedEndpoint = r.URL.Query().Get("endpoint")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	store, err := NewRemoteStore(server.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewRemoteStore() error = %v", err)
	}

	sub := Subscription{Endpoint: "https://push.example/a", Keys: domain.SubscriptionKeys{P256dh: "pk", Auth: "ak"}}
	if err := store.Save(context.Background(), sub, "Firefox"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved["endpoint"] != sub.Endpoint || saved["userAgent"] != "Firefox" {
		t.Fatalf("saved body = %v", saved)
	}
	keys, _ := saved["keys"].(map[string]any)
	if keys["p256dh"] != "pk" || keys["auth"] != "ak" {
		t.Fatalf("saved keys = %v", keys)
	}

	if err := store.DeleteByEndpoint(context.Background(), sub.Endpoint); err != nil {
		t.Fatalf("DeleteByEndpoint() error = %v", err)
	}
	if deletedEndpoint != sub.Endpoint {
		t.Fatalf("deleted endpoint = %q, want %q", deletedEndpoint, sub.Endpoint)
	}
}

func TestRemoteStoreSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	}))
	defer server.Close()

	store, err := NewRemoteStore(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRemoteStore() error = %v", err)
	}
	err = store.Save(context.Background(), Subscription{Endpoint: "https://push.example/a"}, "")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("Save() error = %v, want status 500", err)
	}
}

func TestRemoteKeySource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/push/vapid-public-key" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"publicKey":"BPubKey"}`))
	}))
	defer server.Close()

	src, err := NewRemoteKeySource(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRemoteKeySource() error = %v", err)
	}
	key, err := src.PublicKey(context.Background())
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if key != "BPubKey" {
		t.Fatalf("PublicKey() = %q, want BPubKey", key)
	}
}

func TestNewRemoteStoreValidation(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "   ", "not a url"} {
		if _, err := NewRemoteStore(base, nil); err == nil {
			t.Fatalf("NewRemoteStore(%q) expected error", base)
		}
	}
}
