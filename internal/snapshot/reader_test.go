package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	prefix := t.TempDir() + "/"
	w := NewWriter(prefix, FormatCSV, CollisionFail)
	for _, ts := range []time.Time{
		observed,
		observed.Add(time.Hour),
		observed.Add(-24 * time.Hour),
	} {
		_, err := w.Write("bnp", ts, testQuotes())
		require.NoError(t, err)
	}
	_, err := w.Write("bnp-fr", observed.Add(48*time.Hour), testQuotes())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "bnp-garbage.csv"), []byte("x\n"), 0o644))
	return prefix
}

func TestObservations(t *testing.T) {
	prefix := writeFixtures(t)

	obs, err := Observations(prefix, "bnp", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-03-15-10-30-05",
		"2024-03-15-09-30-05",
		"2024-03-14-09-30-05",
	}, obs)

	none, err := Observations(prefix, "marex", FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolve(t *testing.T) {
	prefix := writeFixtures(t)

	path, err := Resolve(prefix, "bnp", Latest, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, PathForObservation(prefix, "bnp", "2024-03-15-10-30-05", FormatCSV), path)

	path, err = Resolve(prefix, "bnp", "2024-03-14-09-30-05", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, PathForObservation(prefix, "bnp", "2024-03-14-09-30-05", FormatCSV), path)

	_, err = Resolve(prefix, "marex", Latest, FormatCSV)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(prefix, "bnp", "yesterday", FormatCSV)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestReadRows(t *testing.T) {
	prefix := writeFixtures(t)
	path := Path(prefix, "bnp", observed, FormatCSV)

	all, err := ReadRows(path, FormatCSV, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "isin,name,ask,bid,currency", all[0])

	one, err := ReadRows(path, FormatCSV, "IT0002")
	require.NoError(t, err)
	assert.Equal(t, []string{"isin,name,ask,bid,currency", "IT0002,\"Bond, \"\"B\"\"\",99.1,0,EUR"}, one)

	_, err = ReadRows(path, FormatCSV, "XX9999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ReadRows(Path(prefix, "bnp", observed.Add(time.Minute), FormatCSV), FormatCSV, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ReadRows(Path(prefix, "bnp", observed, FormatXLSX), FormatXLSX, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadRows_MultilineName(t *testing.T) {
	prefix := t.TempDir() + "/"
	w := NewWriter(prefix, FormatCSV, CollisionFail)
	path, err := w.Write("bnp", observed, []model.Quote{
		{ISIN: "IT0001", Name: "Bond A", Ask: "12.50", Bid: "0", Currency: "EUR"},
		{ISIN: "IT0003", Name: "Line one\nLine two", Ask: "1.5", Bid: "0", Currency: "EUR"},
	})
	require.NoError(t, err)

	all, err := ReadRows(path, FormatCSV, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := ReadRows(path, FormatCSV, "IT0003")
	require.NoError(t, err)
	assert.Equal(t, []string{"isin,name,ask,bid,currency", "IT0003,\"Line one\nLine two\",1.5,0,EUR"}, one)
}
