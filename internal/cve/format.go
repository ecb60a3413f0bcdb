package cve

import "fmt"

// EndMarker terminates every description handed to a model so the system
// prompt can tell it where one record stops and the next begins.
const EndMarker = "[DESCRIPTION_END]"

// Describe renders the record in the field-labelled form embedded in prompts.
func (r Record) Describe() string {
	return fmt.Sprintf("CVE Number: %s, Vendor: %s, Product: %s, Description: %s %s",
		r.ID, r.Vendor, r.Product, r.Description, EndMarker)
}

// MissingDescription is the placeholder used for identifiers that have no
// record in the corpus.
func MissingDescription(id ID) string {
	return fmt.Sprintf("CVE Number: %s, Description: This CVE does not exist in the database. %s", id, EndMarker)
}
