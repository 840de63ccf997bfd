// Package x509scan implements the ScanX509 plugin: it parses PEM-encoded
// certificates out of the file bytes and reports them as CycloneDX
// cryptographic-asset components, grounded on the teacher's
// internal/x509.component.go and internal/theia certificate-to-component
// conversion, trimmed to plain PEM/DER certificates (the teacher's
// additional PKCS#7/PKCS#12/JKS container formats are a distinct, larger
// detection surface the spec's scanner contract does not call for).
package x509scan

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/fleetscan/worker/internal/cdxprops"
	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

func init() {
	registry.Register("ScanX509", New)
}

type Scanner struct{}

func New(_ model.Config, _ *coordinator.Client) (registry.Scanner, error) {
	return &Scanner{}, nil
}

func (s *Scanner) ScanWrapper(ctx context.Context, data []byte, file model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	var components []cdx.Component
	rest := data
	for {
		if ctx.Err() != nil {
			return nil, map[string]any{"ScanX509": map[string]any{"components": components}}, ctx.Err()
		}
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		components = append(components, toComponent(cert, file.Name))
	}

	if len(components) == 0 {
		return nil, nil, nil
	}
	return nil, map[string]any{"ScanX509": map[string]any{"components": components}}, nil
}

func toComponent(cert *x509.Certificate, path string) cdx.Component {
	c := cdx.Component{
		Type:    cdx.ComponentTypeCryptographicAsset,
		Name:    cert.Subject.String(),
		Version: cert.SerialNumber.String(),
		CryptoProperties: &cdx.CryptoProperties{
			AssetType: cdx.CryptoAssetTypeCertificate,
			CertificateProperties: &cdx.CertificateProperties{
				SubjectName:           cert.Subject.String(),
				IssuerName:            cert.Issuer.String(),
				NotValidBefore:        cert.NotBefore.Format(time.RFC3339),
				NotValidAfter:         cert.NotAfter.Format(time.RFC3339),
				SignatureAlgorithmRef: cdxprops.SignatureAlgorithmRef(cert),
				SubjectPublicKeyRef:   cdxprops.SubjectPublicKeyRef(cert),
				CertificateFormat:     "X.509",
			},
		},
	}
	cdxprops.SetComponentProp(&c, cdxprops.PropCertificateSourceFormat, "PEM")
	cdxprops.SetComponentProp(&c, cdxprops.PropCertificateBase64Content, base64.StdEncoding.EncodeToString(cert.Raw))
	cdxprops.AddEvidenceLocation(&c, path)
	return c
}
