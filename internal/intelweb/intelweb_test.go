package intelweb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberintel/intelweb/internal/fs"
)

func writeTelemetry(t *testing.T, dir, name string, lines []string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	var content string
	for _, l := range lines {
		content += l + "\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// Scenario S3 — crawl expansion.
func TestScenarioS3_CrawlExpansion(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	telemetry := writeTelemetry(t, dir, "telemetry.log", []string{
		"FILE bad.exe benign.dll",
		"FILE benign.dll other.dll",
		"FILE other.dll unrelated.dll",
	})

	accepted, skipped, err := iw.Ingest(telemetry)
	require.NoError(t, err)
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 0, skipped)

	// Prevalence: bad.exe 1, benign.dll 2, other.dll 2, unrelated.dll 1. A
	// threshold of 3 lets the crawl expand through every one of them; at 2,
	// benign.dll would not be enqueued and the crawl would stop at bad.exe.
	count, entities, interactions, err := iw.Crawl([]string{"bad.exe"}, 3)
	require.NoError(t, err)
	assert.Equal(t, len(entities), count)
	assert.Contains(t, entities, "bad.exe")
	assert.Contains(t, entities, "benign.dll")
	assert.Contains(t, entities, "other.dll")
	assert.True(t, sortedStrings(entities))

	for i := 1; i < len(interactions); i++ {
		assert.True(t, interactions[i-1].less(interactions[i]) || !interactions[i].less(interactions[i-1]),
			"interactions must be lex-ordered on (context, from, to)")
	}
}

// Scenario S4 — purge bidirectional.
func TestScenarioS4_PurgeBidirectional(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	telemetry := writeTelemetry(t, dir, "telemetry.log", []string{"FILE evil.exe payload.bin"})

	_, _, err = iw.Ingest(telemetry)
	require.NoError(t, err)

	purged, err := iw.Purge("payload.bin")
	require.NoError(t, err)
	assert.True(t, purged)

	it, err := iw.forward.Search("evil.exe")
	require.NoError(t, err)
	assert.False(t, it.IsValid())

	it, err = iw.reverse.Search("payload.bin")
	require.NoError(t, err)
	assert.False(t, it.IsValid())
}

func TestIngest_MalformedLinesSkippedNotErrored(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	telemetry := writeTelemetry(t, dir, "telemetry.log", []string{
		"FILE a.exe b.dll",
		"two fields",
		"",
		"FILE c.exe d.dll",
	})

	accepted, skipped, err := iw.Ingest(telemetry)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 2, skipped)
}

func TestPurge_UnknownEntityReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	purged, err := iw.Purge("nothing-here")
	require.NoError(t, err)
	assert.False(t, purged)
}

func TestPrevalenceUnderThreshold_CountsBothDirections(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	telemetry := writeTelemetry(t, dir, "telemetry.log", []string{
		"CTX a b",
		"CTX c a",
	})

	_, _, err = iw.Ingest(telemetry)
	require.NoError(t, err)

	// "a" appears once as a forward key (a->b) and once as a reverse key
	// (a<-c), so its prevalence is 2.
	under, err := iw.PrevalenceUnderThreshold("a", 2)
	require.NoError(t, err)
	assert.False(t, under)

	under, err = iw.PrevalenceUnderThreshold("a", 3)
	require.NoError(t, err)
	assert.True(t, under)
}

func TestStats_CountsEntitiesAndInteractions(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	telemetry := writeTelemetry(t, dir, "telemetry.log", []string{
		"FILE a.exe b.dll",
		"FILE b.dll c.dll",
	})

	_, _, err = iw.Ingest(telemetry)
	require.NoError(t, err)

	entities, interactions, err := iw.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, entities)
	assert.Equal(t, 2, interactions)
}

func TestOpenExisting_SecondProcessFailsAdvisoryLock(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	defer iw.Close()

	_, err = OpenExisting(realFS, prefix)
	require.Error(t, err)
}

func TestOperations_AfterClose_ReturnErrNotOpen(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "web")
	realFS := fs.NewReal()

	iw, err := CreateNew(realFS, prefix, 16)
	require.NoError(t, err)
	require.NoError(t, iw.Close())

	_, _, err = iw.Ingest(filepath.Join(dir, "missing.log"))
	assert.ErrorIs(t, err, ErrNotOpen)

	_, _, _, err = iw.Crawl([]string{"x"}, 1)
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = iw.Purge("x")
	assert.ErrorIs(t, err, ErrNotOpen)

	_, _, err = iw.Stats()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}

	return true
}
