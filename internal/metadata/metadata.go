// Package metadata decodes the opaque metadata blobs providers and
// machines publish on-chain. Parsing is best-effort: a malformed blob or
// a missing field must never abort the entity update it decorates.
package metadata

import "encoding/json"

// Fields is the partial record extracted from a metadata blob. A nil
// pointer means the field was absent or null and the previous value must
// be kept.
type Fields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Host        *string `json:"host"`
	PublicIP    *string `json:"public_ip"`
	OverlayIP   *string `json:"overlay_ip"`
}

// Parse decodes a metadata blob. Any decode failure yields the zero
// Fields, which applies as a no-op.
func Parse(blob string) Fields {
	var f Fields
	if blob == "" {
		return Fields{}
	}
	if err := json.Unmarshal([]byte(blob), &f); err != nil {
		return Fields{}
	}
	return f
}

// Override copies src over dst only when src is present.
func Override(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
