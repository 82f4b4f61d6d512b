package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datahubExport = "\ufeffMittauspisteen tunnus;Tuotteen tyyppi;Resoluutio;Yksikkötyyppi;Lukeman tyyppi;Alkuaika;Määrä;Laatu\n" +
	"643000000000000000;8716867000030;PT1H;kWh;BN01;2022-12-01T00:00:00.000Z;0,2;OK\n" +
	"643000000000000000;8716867000030;PT1H;kWh;BN01;2022-12-01T01:00:00.000Z;0.35;OK\n"

func TestDatahubParse(t *testing.T) {
	src := NewDatahub("unused", noopLogger())
	records, err := src.parse(context.Background(), strings.NewReader(datahubExport))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Time().Equal(time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "0.2", records[0].Amount().Decimal.String())
	assert.Equal(t, "0.35", records[1].Amount().Decimal.String())
	assert.False(t, records[0].HasPrice())
}

func TestDatahubMissingColumns(t *testing.T) {
	src := NewDatahub("unused", noopLogger())
	_, err := src.parse(context.Background(), strings.NewReader("a;b\n1;2\n"))
	assert.Error(t, err)
}

func TestDatahubMissingFileIsSkipped(t *testing.T) {
	src := NewDatahub(filepath.Join(t.TempDir(), "missing.csv"), noopLogger())
	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generic.json")
	data := `[
		{"time": "2022-12-21 22:00:00", "price": 1.0, "amount": 2.0},
		{"time": "2022-12-21T23:00:00Z", "price": null, "amount": 0.5},
		{"time": "2022-12-22T00:00:00Z", "price": 3}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	records, err := NewJSONFile(path, noopLogger()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "1", records[0].Price().Decimal.String())
	assert.True(t, records[0].Time().Equal(time.Date(2022, 12, 21, 22, 0, 0, 0, time.UTC)))
	assert.False(t, records[1].HasPrice())
	assert.False(t, records[2].HasAmount())
}

func TestJSONFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generic.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"time": "never"}]`), 0o600))

	_, err := NewJSONFile(path, noopLogger()).Fetch(context.Background())
	assert.Error(t, err)
}

func TestPostgresRequiresPool(t *testing.T) {
	src := NewPostgres(nil, PostgresOptions{}, noopLogger())
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

// meterRow stands in for one pgx result row of the meter reading query.
type meterRow struct {
	ts     time.Time
	amount *string
}

func (m meterRow) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m meterRow) Values() ([]any, error)                       { return []any{m.ts, m.amount}, nil }
func (m meterRow) RawValues() [][]byte                          { return nil }

func (m meterRow) Scan(dest ...any) error {
	*dest[0].(*time.Time) = m.ts
	*dest[1].(**string) = m.amount
	return nil
}

func TestScanReading(t *testing.T) {
	local := time.FixedZone("EET", 2*60*60)
	ts := time.Date(2022, 12, 1, 2, 0, 0, 0, local)
	kwh := "0.4250"

	r, err := scanReading(meterRow{ts: ts, amount: &kwh})
	require.NoError(t, err)
	assert.True(t, r.Time().Equal(ts))
	assert.Equal(t, time.UTC, r.Time().Location())
	assert.False(t, r.HasPrice())
	require.True(t, r.HasAmount())
	assert.Equal(t, "0.425", r.Amount().Decimal.String())

	r, err = scanReading(meterRow{ts: ts})
	require.NoError(t, err)
	assert.False(t, r.HasAmount())

	bad := "lots"
	_, err = scanReading(meterRow{ts: ts, amount: &bad})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(NewJSONFile("a.json", noopLogger()), NewDatahub("b.csv", noopLogger()))
	require.NoError(t, err)
	assert.Equal(t, []string{"datahub", "json"}, reg.Names())

	src, err := reg.Get("json")
	require.NoError(t, err)
	assert.Equal(t, "json", src.Name())

	_, err = reg.Get("spot-hinta.fi")
	assert.Error(t, err)

	assert.Error(t, reg.Register(NewJSONFile("c.json", noopLogger())))
}
