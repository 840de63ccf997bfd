// Package cdxprops holds small helpers for building CycloneDX components
// from parsed certificates, adapted from the teacher's property-setting
// conventions but trimmed to the cryptographic-asset fields the ScanX509
// plugin actually populates.
package cdxprops

import (
	cdx "github.com/CycloneDX/cyclonedx-go"
)

const (
	PropCertificateSourceFormat  = "fleetscan:component:certificate:source_format"
	PropCertificateBase64Content = "fleetscan:component:certificate:base64_content"
)

// SetComponentProp sets (or upserts) a CycloneDX component property.
func SetComponentProp(c *cdx.Component, name, value string) {
	if value == "" {
		return
	}
	if c.Properties == nil {
		c.Properties = &[]cdx.Property{{Name: name, Value: value}}
		return
	}
	props := *c.Properties
	for i := range props {
		if props[i].Name == name {
			props[i].Value = value
			return
		}
	}
	props = append(props, cdx.Property{Name: name, Value: value})
	c.Properties = &props
}

// AddEvidenceLocation appends an evidence.occurrence location.
func AddEvidenceLocation(c *cdx.Component, loc string) {
	if loc == "" {
		return
	}
	occ := cdx.EvidenceOccurrence{Location: loc}
	if c.Evidence == nil {
		c.Evidence = &cdx.Evidence{Occurrences: &[]cdx.EvidenceOccurrence{occ}}
		return
	}
	if c.Evidence.Occurrences == nil {
		c.Evidence.Occurrences = &[]cdx.EvidenceOccurrence{occ}
		return
	}
	occs := append(*c.Evidence.Occurrences, occ)
	c.Evidence.Occurrences = &occs
}
