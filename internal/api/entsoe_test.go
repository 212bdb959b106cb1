package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

// marketXML renders a publication document with one period per entry of
// values, each period starting at start and spaced by a day.
func marketXML(kind DocumentKind, start time.Time, resolution string, values ...[]float64) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">`)
	b.WriteString(`<mRID>test</mRID><TimeSeries><mRID>1</mRID>`)
	for i, period := range values {
		periodStart := start.AddDate(0, 0, i)
		fmt.Fprintf(&b, `<Period><timeInterval><start>%s</start><end>%s</end></timeInterval><resolution>%s</resolution>`,
			periodStart.Format(marketStartLayout), periodStart.AddDate(0, 0, 1).Format(marketStartLayout), resolution)
		for j, v := range period {
			fmt.Fprintf(&b, `<Point><position>%d</position><%s>%g</%s></Point>`, j+1, kind.ValueField, v, kind.ValueField)
		}
		b.WriteString(`</Period>`)
	}
	b.WriteString(`</TimeSeries></Publication_MarketDocument>`)
	return b.String()
}

func TestParseMarketDocument_PointTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body := marketXML(PriceDocument, start, "PT15M", []float64{10, 11, 12, 13})

	points, err := ParseMarketDocument([]byte(body), PriceDocument)
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.True(t, points[0].Timestamp.Equal(start), "position 1 maps to the period start")
	for j, p := range points {
		assert.Equal(t, start.Add(time.Duration(j*15)*time.Minute), p.Timestamp)
		assert.Equal(t, 15, p.IntervalMinutes)
		require.NotNil(t, p.Price)
		assert.Nil(t, p.Usage)
	}
	assert.Equal(t, 13.0, *points[3].Price)
}

func TestParseMarketDocument_UsesPositionNotOrder(t *testing.T) {
	body := `<GL_MarketDocument><TimeSeries><Period>
		<timeInterval><start>2024-03-10T23:00Z</start></timeInterval>
		<resolution>PT60M</resolution>
		<Point><position>1</position><quantity>100</quantity></Point>
		<Point><position>4</position><quantity>400</quantity></Point>
	</Period></TimeSeries></GL_MarketDocument>`

	points, err := ParseMarketDocument([]byte(body), UsageDocument)
	require.NoError(t, err)
	require.Len(t, points, 2)

	start := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, start.Add(3*time.Hour), points[1].Timestamp)
	assert.Equal(t, 400.0, *points[1].Usage)
	assert.Nil(t, points[1].Price)
}

func TestParseMarketDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not xml",
			body: "this is not xml",
		},
		{
			name: "non numeric value",
			body: `<Doc><TimeSeries><Period><timeInterval><start>2024-01-01T00:00Z</start></timeInterval>
				<resolution>PT60M</resolution><Point><position>1</position><price.amount>abc</price.amount></Point>
				</Period></TimeSeries></Doc>`,
		},
		{
			name: "missing value",
			body: `<Doc><TimeSeries><Period><timeInterval><start>2024-01-01T00:00Z</start></timeInterval>
				<resolution>PT60M</resolution><Point><position>1</position></Point>
				</Period></TimeSeries></Doc>`,
		},
		{
			name: "bad start",
			body: `<Doc><TimeSeries><Period><timeInterval><start>yesterday</start></timeInterval>
				<resolution>PT60M</resolution><Point><position>1</position><price.amount>1</price.amount></Point>
				</Period></TimeSeries></Doc>`,
		},
		{
			name: "resolution without digits",
			body: `<Doc><TimeSeries><Period><timeInterval><start>2024-01-01T00:00Z</start></timeInterval>
				<resolution>PTM</resolution><Point><position>1</position><price.amount>1</price.amount></Point>
				</Period></TimeSeries></Doc>`,
		},
		{
			name: "zero position",
			body: `<Doc><TimeSeries><Period><timeInterval><start>2024-01-01T00:00Z</start></timeInterval>
				<resolution>PT60M</resolution><Point><position>0</position><price.amount>1</price.amount></Point>
				</Period></TimeSeries></Doc>`,
		},
		{
			name: "acknowledgement with other reason",
			body: `<Acknowledgement_MarketDocument><Reason><code>999</code><text>Invalid security token</text></Reason></Acknowledgement_MarketDocument>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := ParseMarketDocument([]byte(tt.body), PriceDocument)
			require.Error(t, err)
			assert.Nil(t, points)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %T", err)
			assert.Equal(t, PurposePrice, parseErr.Purpose)
		})
	}
}

func TestParseMarketDocument_NoMatchingData(t *testing.T) {
	body := `<Acknowledgement_MarketDocument><Reason><code>999</code>
		<text>No matching data found for Data item Day-ahead Prices [12.1.D]</text></Reason></Acknowledgement_MarketDocument>`

	points, err := ParseMarketDocument([]byte(body), PriceDocument)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestResolutionMinutes(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "PT60M", want: 60},
		{in: "PT15M", want: 15},
		{in: " PT30M ", want: 30},
		{in: "PT0M", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ResolutionMinutes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarketClient_BuildsQuery(t *testing.T) {
	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		kind := PriceDocument
		if r.URL.Query().Get("documentType") == UsageDocument.Code {
			kind = UsageDocument
		}
		fmt.Fprint(w, marketXML(kind, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "PT60M", []float64{1, 2}))
	}))
	defer srv.Close()

	client := NewMarketClient(srv.URL, "secret", NewTransport())
	zone := models.Zone{Key: "FI", Code: "10YFI-1--------U"}
	w := Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
	}

	_, err := client.FetchSeries(context.Background(), PriceDocument, zone, w)
	require.NoError(t, err)
	_, err = client.FetchSeries(context.Background(), UsageDocument, zone, w)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	price := queries[0]
	assert.Equal(t, "secret", price.Get("securityToken"))
	assert.Equal(t, "A44", price.Get("documentType"))
	assert.Equal(t, "A16", price.Get("processType"))
	assert.Equal(t, zone.Code, price.Get("in_Domain"))
	assert.Equal(t, zone.Code, price.Get("out_Domain"))
	assert.Empty(t, price.Get("outBiddingZone_Domain"))
	assert.Equal(t, "202401010000", price.Get("periodStart"))
	assert.Equal(t, "202401012300", price.Get("periodEnd"))

	usage := queries[1]
	assert.Equal(t, "A65", usage.Get("documentType"))
	assert.Equal(t, zone.Code, usage.Get("outBiddingZone_Domain"))
	assert.Empty(t, usage.Get("in_Domain"))
}

func TestMarketClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewMarketClient(srv.URL, "bad", nil)
	_, err := client.FetchSeries(context.Background(), UsageDocument, models.Zone{Key: "FR", Code: "X"}, Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
	assert.Equal(t, PurposeUsage, fetchErr.Purpose)
	assert.Equal(t, "FR", fetchErr.Zone)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}
