package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// RecommendedTLS12CipherSuites are offered when TLS 1.2 is negotiated
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// ErrNoCertificates is returned when a CA file holds no PEM certificate
var ErrNoCertificates = errors.New("no certificates found")

// HTTPSConfig contains outbound HTTPS settings
type HTTPSConfig struct {
	MinTLSVersion uint16
	MaxTLSVersion uint16
	CipherSuites  []uint16
	// RootCAs replaces the system pool when set
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns TLS 1.2 to 1.3 with a 30s request timeout.
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewHTTPClient creates an HTTP client for directory lookups. Plain HTTP
// URLs are still allowed; the TLS settings apply to HTTPS URLs. Proxies are
// taken from the environment.
func NewHTTPClient(config *HTTPSConfig) *http.Client {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		RootCAs:      config.RootCAs,
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsConfig,
			IdleConnTimeout:     config.IdleConnTimeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		},
		Timeout: config.Timeout,
	}
}

// LoadRootCAs reads a PEM bundle into a new pool.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w in %s", ErrNoCertificates, path)
	}
	return pool, nil
}
