package backend

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringTokens(t *testing.T) {
	keyring.MockInit()
	store := KeyringTokens{}
	const url = "http://127.0.0.1:8080"

	tok, err := store.Get(url)
	if err != nil || tok != "" {
		t.Fatalf("Get on empty keyring = %q, %v", tok, err)
	}
	if err := store.Set(url, "secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tok, _ := store.Get(url); tok != "secret" {
		t.Errorf("Get = %q, want secret", tok)
	}
	if err := store.Delete(url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(url); err != nil {
		t.Errorf("Delete of missing token: %v", err)
	}
}

func TestResolveToken(t *testing.T) {
	keyring.MockInit()
	store := KeyringTokens{}
	_ = store.Set("http://b", "stored")

	if got, _ := ResolveToken(store, "http://b", "configured"); got != "configured" {
		t.Errorf("configured token should win, got %q", got)
	}
	if got, _ := ResolveToken(store, "http://b", ""); got != "stored" {
		t.Errorf("stored token = %q", got)
	}
	if got, _ := ResolveToken(nil, "http://b", ""); got != "" {
		t.Errorf("nil store = %q", got)
	}
}
