package feed

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-replay-lab/internal/domain"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 11, 5, 30, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T11:05:30", want},
		{"2024-03-01 11:05:30", want},
		{" 2024-03-01 11:05:30 ", want},
		{"2024-03-01T11:05:30Z", want},
		{"2024-03-01T11:05:30+05:30", want},
		{"2024-03-01 11:05:30.250", want.Add(250 * time.Millisecond)},
		{"2024-03-01T11:05", want.Add(-30 * time.Second)},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): unexpected error %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	_, err := ParseTimestamp("01/03/2024 11:05")
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("data/quotes.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = DetectFormat("snapshots.ndjson")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	_, err = DetectFormat("snapshots.parquet")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestReadSnapshots_CSV(t *testing.T) {
	data := strings.Join([]string{
		"timestamp,spot_price,verdict,signal_confidence,vix,iv_skew,futures_basis,prev_verdict",
		"2024-03-01 11:03:00,22120.5,Bears Winning,71,,-0.5,48,Neutral",
		"2024-03-01 11:00:00,22100,Slightly Bullish,66.5,13.1,1.2,62,",
		"not-a-time,22100,Neutral,50,,,,",
		"2024-03-01 11:06:00,abc,Neutral,50,,,,",
		"2024-03-01 11:09:00,22130,Neutral,NaN,null,,,",
	}, "\n")

	snaps, stats, err := ReadSnapshots(strings.NewReader(data), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 5, Rows: 3, Skipped: 2}, stats)
	require.Len(t, snaps, 3)

	first := snaps[0]
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, domain.DirectionBull, first.Verdict.Direction)
	assert.InDelta(t, 66.5, first.Confidence, 1e-9)
	require.NotNil(t, first.VIX)
	assert.InDelta(t, 13.1, *first.VIX, 1e-9)
	assert.Nil(t, first.MaxPain)
	assert.False(t, first.PrevVerdict.Known())

	assert.Equal(t, domain.DirectionBear, snaps[1].Verdict.Direction)
	assert.Nil(t, snaps[1].VIX)
	assert.Equal(t, "Neutral", snaps[1].PrevVerdict.Label)

	assert.Zero(t, snaps[2].Confidence)
	assert.Nil(t, snaps[2].VIX)
}

func TestReadSnapshots_CSVMissingColumn(t *testing.T) {
	_, _, err := ReadSnapshots(strings.NewReader("timestamp,verdict\n"), FormatCSV)
	assert.Error(t, err)
}

func TestReadSnapshots_JSONL(t *testing.T) {
	data := `{"timestamp":"2024-03-01T11:00:00","spot_price":22100,"verdict":"Bulls Winning","signal_confidence":72,"vix":12.9,"iv_skew":null}

{"timestamp":"2024-03-01T11:03:00","verdict":"Neutral"}
{broken
{"timestamp":"2024-03-01T11:06:00","spot_price":22110,"verdict":"Slightly Bearish"}
`
	snaps, stats, err := ReadSnapshots(strings.NewReader(data), FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 4, Rows: 2, Skipped: 2}, stats)
	require.Len(t, snaps, 2)

	assert.Equal(t, domain.StrengthModerate, snaps[0].Verdict.Strength)
	require.NotNil(t, snaps[0].VIX)
	assert.Nil(t, snaps[0].IVSkew)
	assert.Equal(t, domain.DirectionBear, snaps[1].Verdict.Direction)
}

func TestReadQuotes_TwoSidedCSV(t *testing.T) {
	data := strings.Join([]string{
		"timestamp,spot_price,strike_price,ce_ltp,pe_ltp",
		"2024-03-01 11:00:00,22100,22150,88.5,120",
		"2024-03-01 11:00:00,22100,22100,110,0",
		"2024-03-01 11:03:00,22100,,110,95",
		"2024-03-01 11:03:00,22100,22100,x,95",
	}, "\n")

	quotes, stats, err := ReadQuotes(strings.NewReader(data), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 4, Rows: 3, Skipped: 2}, stats)
	require.Len(t, quotes, 3)

	assert.Equal(t, domain.InstrumentKey{Strike: 22100, Type: domain.OptionCall}, quotes[0].Key())
	assert.Equal(t, domain.InstrumentKey{Strike: 22150, Type: domain.OptionCall}, quotes[1].Key())
	assert.Equal(t, domain.InstrumentKey{Strike: 22150, Type: domain.OptionPut}, quotes[2].Key())
	assert.InDelta(t, 120.0, quotes[2].LTP, 1e-9)
}

func TestReadQuotes_SingleSided(t *testing.T) {
	csvData := "timestamp,strike_price,option_type,ltp\n" +
		"2024-03-01 11:00:00,22100,PE,98\n" +
		"2024-03-01 11:00:00,22100,CALL,110\n" +
		"2024-03-01 11:00:00,22100,STRADDLE,10\n"

	quotes, stats, err := ReadQuotes(strings.NewReader(csvData), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, quotes, 2)
	assert.Equal(t, domain.OptionCall, quotes[0].Type)
	assert.Equal(t, domain.OptionPut, quotes[1].Type)

	jsonData := `{"timestamp":"2024-03-01 11:00:00","strike_price":22100,"ce_ltp":110,"pe_ltp":98}
{"timestamp":"2024-03-01 11:03:00","strike_price":22100,"option_type":"CE","ltp":112}
`
	quotes, stats, err = ReadQuotes(strings.NewReader(jsonData), FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 2, Rows: 3}, stats)
	require.Len(t, quotes, 3)
	assert.InDelta(t, 112.0, quotes[2].LTP, 1e-9)
}

func TestReadQuotes_BadHeader(t *testing.T) {
	_, _, err := ReadQuotes(strings.NewReader("timestamp,strike_price,ltp\n"), FormatCSV)
	assert.Error(t, err)

	_, _, err = ReadQuotes(strings.NewReader(""), "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
