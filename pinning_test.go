package rawgkit

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidatePinnedDomain(t *testing.T) {
	validator := NewCertificateValidator(PinSet{
		"api.rawg.io": {"hash-one", "hash-two"},
	}, false)

	if !validator.Validate("api.rawg.io", []string{"hash-one"}) {
		t.Error("Matching hash should be accepted")
	}
	if !validator.Validate("api.rawg.io", []string{"unrelated", "hash-two"}) {
		t.Error("Any intersecting hash should be accepted")
	}
	if validator.Validate("api.rawg.io", []string{"hash-three"}) {
		t.Error("Non-matching hash should be rejected")
	}
	if validator.Validate("api.rawg.io", nil) {
		t.Error("Empty presented set should be rejected for a pinned domain")
	}
}

func TestValidateUnpinnedDomain(t *testing.T) {
	pins := PinSet{"api.rawg.io": {"hash-one"}}

	permissive := NewCertificateValidator(pins, false)
	if !permissive.Validate("other.example.com", []string{"whatever"}) {
		t.Error("Permissive mode should accept unpinned domains")
	}

	strict := NewCertificateValidator(pins, true)
	if strict.Validate("other.example.com", []string{"whatever"}) {
		t.Error("Strict mode should reject unpinned domains")
	}
}

func TestHasPins(t *testing.T) {
	validator := NewCertificateValidator(PinSet{
		"api.rawg.io": {"hash-one"},
		"empty.io":    {},
	}, false)

	if !validator.HasPins("api.rawg.io") {
		t.Error("HasPins should be true for a configured domain")
	}
	if !validator.HasPins("API.RAWG.IO") {
		t.Error("Domain match should be case-insensitive")
	}
	if validator.HasPins("empty.io") {
		t.Error("An empty pin list should count as unpinned")
	}
	if validator.HasPins("other.example.com") {
		t.Error("HasPins should be false for an unknown domain")
	}
}

func TestSPKIHash(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cert := server.Certificate()
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	want := base64.StdEncoding.EncodeToString(sum[:])

	if got := SPKIHash(cert); got != want {
		t.Errorf("SPKIHash() = %s, want %s", got, want)
	}
}

func pinnedTestClient(t *testing.T, server *httptest.Server, validator *CertificateValidator) *Client {
	t.Helper()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())

	transport := NewPinnedTransport(validator)
	transport.TLSClientConfig.RootCAs = pool
	// The httptest certificate covers example.com; pin validation keys off
	// the SNI name.
	transport.TLSClientConfig.ServerName = "example.com"

	client := New(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithoutCache(),
		WithMaxRetries(0),
	)
	client.pinValidator = validator
	return client
}

func TestPinnedTransportAcceptsMatchingPin(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	pin := SPKIHash(server.Certificate())
	validator := NewCertificateValidator(PinSet{"example.com": {pin}}, false)
	client := pinnedTestClient(t, server, validator)

	var out map[string]bool
	if err := client.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON() with matching pin returned error: %v", err)
	}
	if !out["ok"] {
		t.Error("Response payload should decode")
	}
}

func TestPinnedTransportRejectsMismatchedPin(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	wrongPin := base64.StdEncoding.EncodeToString(make([]byte, 32))
	validator := NewCertificateValidator(PinSet{"example.com": {wrongPin}}, false)
	client := pinnedTestClient(t, server, validator)

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL, &out)
	if err == nil {
		t.Fatal("GetJSON() with mismatched pin should fail")
	}
	if !errors.Is(err, ErrPinMismatch) {
		t.Errorf("error should wrap ErrPinMismatch, got %v", err)
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypePinning {
		t.Errorf("error type = %v, want CertificatePinningFailure", err)
	}
}

func TestPinnedTransportStrictRejectsUnpinnedHost(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	validator := NewCertificateValidator(PinSet{"api.rawg.io": {"unused"}}, true)
	client := pinnedTestClient(t, server, validator)

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL, &out)
	if err == nil {
		t.Fatal("Strict mode should reject a host without pins")
	}
	if !errors.Is(err, ErrNoPinsConfigured) {
		t.Errorf("error should wrap ErrNoPinsConfigured, got %v", err)
	}
}

func TestPinningFailureIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	wrongPin := base64.StdEncoding.EncodeToString(make([]byte, 32))
	validator := NewCertificateValidator(PinSet{"example.com": {wrongPin}}, false)
	client := pinnedTestClient(t, server, validator)
	client.maxRetries = 3
	client.retryPolicy = NewRetryPolicy(3, 0, 0, 2.0, 0)

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL, &out)
	if err == nil {
		t.Fatal("expected pinning failure")
	}
	if calls != 0 {
		t.Errorf("handler reached %d times; pinning must reject before any request", calls)
	}
}
