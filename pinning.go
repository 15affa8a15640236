package rawgkit

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// PinSet maps a domain name to the set of accepted certificate pins for that
// domain. A pin is the base64-encoded SHA-256 digest of a certificate's
// Subject Public Key Info, the same encoding used by HPKP and most mobile
// pinning configurations.
type PinSet map[string][]string

// CertificateValidator accepts or rejects TLS connections based on a match
// between the presented chain's public-key hashes and the configured pins.
// The pin set is immutable after construction, so the validator needs no
// locking and is safe to share across connections.
//
// In permissive mode, hosts without configured pins are accepted (pinning is
// opt-in per domain). In strict mode, every host must have pins.
type CertificateValidator struct {
	pins   map[string]map[string]struct{}
	strict bool
}

// NewCertificateValidator builds a validator from pins. Domain names are
// matched case-insensitively.
func NewCertificateValidator(pins PinSet, strict bool) *CertificateValidator {
	indexed := make(map[string]map[string]struct{}, len(pins))
	for domain, hashes := range pins {
		set := make(map[string]struct{}, len(hashes))
		for _, h := range hashes {
			set[h] = struct{}{}
		}
		if len(set) > 0 {
			indexed[strings.ToLower(domain)] = set
		}
	}
	return &CertificateValidator{pins: indexed, strict: strict}
}

// HasPins reports whether domain has a non-empty pin set configured.
func (v *CertificateValidator) HasPins(domain string) bool {
	_, ok := v.pins[strings.ToLower(domain)]
	return ok
}

// Strict reports whether the validator rejects unpinned domains.
func (v *CertificateValidator) Strict() bool {
	return v.strict
}

// Validate decides whether a handshake presenting the given hashes for domain
// is acceptable. A pinned domain is accepted iff at least one presented hash
// matches a configured pin.
func (v *CertificateValidator) Validate(domain string, presentedHashes []string) bool {
	set, ok := v.pins[strings.ToLower(domain)]
	if !ok {
		return !v.strict
	}
	for _, h := range presentedHashes {
		if _, match := set[h]; match {
			return true
		}
	}
	return false
}

// SPKIHash computes the pin for a certificate: base64(SHA-256(SPKI)).
func SPKIHash(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// verifyConnection is the handshake-trust callback. It runs once per new TLS
// connection, after the standard chain verification, and sees every
// certificate the server presented.
func (v *CertificateValidator) verifyConnection(cs tls.ConnectionState) error {
	if !v.HasPins(cs.ServerName) {
		if v.strict {
			return fmt.Errorf("%w: %s", ErrNoPinsConfigured, cs.ServerName)
		}
		return nil
	}

	hashes := make([]string, 0, len(cs.PeerCertificates))
	for _, cert := range cs.PeerCertificates {
		hashes = append(hashes, SPKIHash(cert))
	}

	if !v.Validate(cs.ServerName, hashes) {
		return fmt.Errorf("%w: %s", ErrPinMismatch, cs.ServerName)
	}
	return nil
}

// NewPinnedTransport returns an HTTP transport that enforces the validator
// during every TLS handshake. Standard chain verification still applies;
// pinning is an additional constraint on top of the trust chain.
func NewPinnedTransport(v *CertificateValidator) *http.Transport {
	var transport *http.Transport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{}
	}

	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.VerifyConnection = v.verifyConnection
	return transport
}
