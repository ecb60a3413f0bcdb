package cve

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrCorruptRecord is returned when a corpus document exists but does not
// have the shape the lookup relies on.
var ErrCorruptRecord = errors.New("corrupt CVE record")

// Record is the subset of a CVE JSON 5 document used to ground prompts.
type Record struct {
	ID          ID     `json:"id"`
	Vendor      string `json:"vendor"`
	Product     string `json:"product"`
	Description string `json:"description"`
}

// document mirrors the parts of the CVE JSON 5 schema that are read.
type document struct {
	CVEMetadata struct {
		CVEID string `json:"cveId"`
	} `json:"cveMetadata"`
	Containers struct {
		CNA struct {
			Affected     []affected    `json:"affected"`
			Descriptions []description `json:"descriptions"`
		} `json:"cna"`
	} `json:"containers"`
}

type affected struct {
	Vendor  *string `json:"vendor"`
	Product *string `json:"product"`
}

type description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// ParseRecord decodes a CVE JSON 5 document. The vendor and product come
// from the first affected block that carries both fields.
func ParseRecord(data []byte) (*Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	id := strings.TrimSpace(doc.CVEMetadata.CVEID)
	if id == "" {
		return nil, fmt.Errorf("%w: missing cveMetadata.cveId", ErrCorruptRecord)
	}

	var vendor, product string
	found := false
	for _, a := range doc.Containers.CNA.Affected {
		if a.Vendor != nil && a.Product != nil {
			vendor, product = *a.Vendor, *a.Product
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s has no affected entry with both vendor and product", ErrCorruptRecord, id)
	}

	if len(doc.Containers.CNA.Descriptions) == 0 {
		return nil, fmt.Errorf("%w: %s has no descriptions", ErrCorruptRecord, id)
	}

	return &Record{
		ID:          ID(strings.ToUpper(id)),
		Vendor:      vendor,
		Product:     product,
		Description: doc.Containers.CNA.Descriptions[0].Value,
	}, nil
}
