package cve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const log4shellDoc = `{
  "cveMetadata": {"cveId": "CVE-2021-44228"},
  "containers": {"cna": {
    "affected": [{"vendor": "Apache Software Foundation", "product": "Apache Log4j2"}],
    "descriptions": [{"lang": "en", "value": "JNDI features do not protect against attacker controlled LDAP endpoints."}]
  }}
}`

const secondSlotDoc = `{
  "cveMetadata": {"cveId": "CVE-2024-0008"},
  "containers": {"cna": {
    "affected": [{"product": "PAN-OS"}, {"vendor": "Palo Alto Networks", "product": "PAN-OS"}],
    "descriptions": [{"lang": "en", "value": "Web sessions do not expire after logout."}]
  }}
}`

const thirdSlotDoc = `{
  "cveMetadata": {"cveId": "CVE-2023-12345"},
  "containers": {"cna": {
    "affected": [{"vendor": "n/a"}, {"product": "widget"}, {"vendor": "Acme", "product": "Widget"}],
    "descriptions": [{"lang": "en", "value": "Third slot wins."}]
  }}
}`

const noVendorDoc = `{
  "cveMetadata": {"cveId": "CVE-2023-0001"},
  "containers": {"cna": {
    "affected": [{"product": "x"}, {"product": "y"}],
    "descriptions": [{"lang": "en", "value": "missing vendor"}]
  }}
}`

func writeRecord(t *testing.T, root string, id ID, body string) {
	t.Helper()
	c := NewCorpus(root, CorpusOptions{})
	path, err := c.Path(id)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestCorpus(t *testing.T) *Corpus {
	t.Helper()
	root := t.TempDir()
	writeRecord(t, root, "CVE-2021-44228", log4shellDoc)
	writeRecord(t, root, "CVE-2024-0008", secondSlotDoc)
	writeRecord(t, root, "CVE-2023-12345", thirdSlotDoc)
	return NewCorpus(root, CorpusOptions{})
}

func TestCorpusPath(t *testing.T) {
	c := NewCorpus("/data/cves", CorpusOptions{})

	p, err := c.Path("CVE-2024-0008")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/cves", "2024", "0xxx", "CVE-2024-0008.json"), p)

	p, err = c.Path("CVE-2021-44228")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/cves", "2021", "44xxx", "CVE-2021-44228.json"), p)

	_, err = c.Path("CVE-2021-1")
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestParseRecordAffectedFallback(t *testing.T) {
	rec, err := ParseRecord([]byte(secondSlotDoc))
	require.NoError(t, err)
	assert.Equal(t, "Palo Alto Networks", rec.Vendor)
	assert.Equal(t, "PAN-OS", rec.Product)

	rec, err = ParseRecord([]byte(thirdSlotDoc))
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec.Vendor)

	_, err = ParseRecord([]byte(noVendorDoc))
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = ParseRecord([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestDescribe(t *testing.T) {
	rec, err := ParseRecord([]byte(log4shellDoc))
	require.NoError(t, err)

	got := rec.Describe()
	assert.True(t, strings.HasPrefix(got, "CVE Number: CVE-2021-44228, Vendor: Apache Software Foundation, Product: Apache Log4j2, Description: JNDI"))
	assert.True(t, strings.HasSuffix(got, EndMarker))

	missing := MissingDescription("CVE-2099-99999")
	assert.Contains(t, missing, "CVE-2099-99999")
	assert.Contains(t, missing, "does not exist")
	assert.True(t, strings.HasSuffix(missing, EndMarker))
}

func TestLookupExampleScenario(t *testing.T) {
	c := newTestCorpus(t)

	ids := Extract("Report references CVE-2024-0008 and cve-2099-99999.")
	res, err := c.Lookup(context.Background(), ids)
	require.NoError(t, err)

	require.Len(t, res.Found, 1)
	assert.Equal(t, ID("CVE-2024-0008"), res.Found[0].ID)
	assert.Equal(t, []ID{"CVE-2099-99999"}, res.NotFound)
	require.Len(t, res.Descriptions, 2)
	assert.Equal(t, res.Found[0].Describe(), res.Descriptions[0])
	assert.Equal(t, MissingDescription("CVE-2099-99999"), res.Descriptions[1])
}

func TestLookupPartitionsInput(t *testing.T) {
	c := newTestCorpus(t)
	ids := []ID{"CVE-2099-0001", "CVE-2021-44228", "CVE-1999-99999", "CVE-2023-12345", "CVE-2024-0008"}

	res, err := c.Lookup(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, []ID{"CVE-2099-0001", "CVE-1999-99999"}, res.NotFound)
	var found []ID
	for _, r := range res.Found {
		found = append(found, r.ID)
	}
	assert.Equal(t, []ID{"CVE-2021-44228", "CVE-2023-12345", "CVE-2024-0008"}, found)
	assert.Len(t, res.Descriptions, len(ids))
	assert.Equal(t, len(ids), len(res.Found)+len(res.NotFound))
}

func TestLookupFailsFast(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "CVE-2023-0001", noVendorDoc)
	c := NewCorpus(root, CorpusOptions{})

	_, err := c.Lookup(context.Background(), []ID{"CVE-2023-0001"})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = c.Lookup(context.Background(), []ID{"CVE-2023-12"})
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestLookupEmpty(t *testing.T) {
	c := newTestCorpus(t)
	res, err := c.Lookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Found)
	assert.Empty(t, res.NotFound)
	assert.Empty(t, res.Descriptions)
}

func TestGetUsesCache(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "CVE-2021-44228", log4shellDoc)
	c := NewCorpus(root, CorpusOptions{CacheTTL: time.Minute})

	first, err := c.Get(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)

	path, _ := c.Path("CVE-2021-44228")
	require.NoError(t, os.Remove(path))

	second, err := c.Get(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetNotFound(t *testing.T) {
	c := NewCorpus(t.TempDir(), CorpusOptions{})
	_, err := c.Get(context.Background(), "CVE-2099-99999")
	assert.True(t, errors.Is(err, ErrNotFound))
}
