package server

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/T9Tuco/NexusBD/internal/types"
)

// CertManager builds TLS listeners either from certificate files or
// from an autocert manager backed by a directory cache.
type CertManager struct {
	logger      types.Logger
	config      *types.TLSConfig
	autocertMgr *autocert.Manager
}

func NewCertManager(logger types.Logger, config *types.TLSConfig) (*CertManager, error) {
	cm := &CertManager{
		logger: logger,
		config: config,
	}

	if config.AutoCert {
		if len(config.Domains) == 0 {
			return nil, types.Errorf(types.ErrConfigValidateFailed, "autocert enabled without domains")
		}

		cacheDir := config.CacheDir
		if cacheDir == "" {
			cacheDir = "./certs"
		}

		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, types.WrapError(err, "failed to create certificate cache directory")
		}

		cm.autocertMgr = &autocert.Manager{
			Cache:      autocert.DirCache(cacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(config.Domains...),
			Email:      config.Email,
		}
	}

	return cm, nil
}

func (cm *CertManager) Listen(addr string) (net.Listener, error) {
	tlsConfig, err := cm.buildTLSConfig()
	if err != nil {
		return nil, err
	}

	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, types.WrapError(err, "failed to create TLS listener")
	}

	return ln, nil
}

func (cm *CertManager) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}

	if cm.autocertMgr != nil {
		tlsConfig.GetCertificate = cm.autocertMgr.GetCertificate
		return tlsConfig, nil
	}

	if cm.config.CertFile == "" || cm.config.KeyFile == "" {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "tls enabled but cert_file or key_file not specified")
	}

	cert, err := tls.LoadX509KeyPair(cm.config.CertFile, cm.config.KeyFile)
	if err != nil {
		return nil, types.WrapError(err, "failed to load certificate files")
	}

	if err := validateCertificate(cert); err != nil {
		return nil, err
	}

	tlsConfig.Certificates = []tls.Certificate{cert}
	return tlsConfig, nil
}

func validateCertificate(cert tls.Certificate) error {
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return types.WrapError(err, "failed to parse certificate")
	}

	now := time.Now()
	if now.Before(x509Cert.NotBefore) {
		return types.NewErrorf("certificate not yet valid")
	}
	if now.After(x509Cert.NotAfter) {
		return types.NewErrorf("certificate expired")
	}

	return nil
}
