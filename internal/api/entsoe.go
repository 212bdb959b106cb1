package api

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

const (
	DefaultMarketURL = "https://web-api.tp.entsoe.eu/api"

	processTypeDayAhead = "A16"
	marketStartLayout   = "2006-01-02T15:04Z"
	noMatchingData      = "No matching data found"
)

// DocumentKind selects which series the market API returns.
type DocumentKind struct {
	Code       string
	Purpose    Purpose
	ValueField string
}

var (
	PriceDocument = DocumentKind{Code: "A44", Purpose: PurposePrice, ValueField: "price.amount"}
	UsageDocument = DocumentKind{Code: "A65", Purpose: PurposeUsage, ValueField: "quantity"}
)

// MarketClient queries the ENTSO-E transparency platform.
type MarketClient struct {
	baseURL   string
	apiKey    string
	transport *Transport
}

// NewMarketClient returns a client for baseURL (DefaultMarketURL when empty).
func NewMarketClient(baseURL, apiKey string, transport *Transport) *MarketClient {
	if baseURL == "" {
		baseURL = DefaultMarketURL
	}
	if transport == nil {
		transport = NewTransport()
	}
	return &MarketClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		transport: transport,
	}
}

// FetchSeries requests one document kind for one zone and window.
func (c *MarketClient) FetchSeries(ctx context.Context, kind DocumentKind, zone models.Zone, w Window) ([]models.TimePoint, error) {
	body, err := c.transport.Get(ctx, kind.Purpose, zone.Key, c.buildURL(kind, zone, w), "application/xml")
	if err != nil {
		return nil, err
	}
	return ParseMarketDocument(body, kind)
}

func (c *MarketClient) buildURL(kind DocumentKind, zone models.Zone, w Window) string {
	query := url.Values{}
	query.Set("securityToken", c.apiKey)
	query.Set("documentType", kind.Code)
	query.Set("processType", processTypeDayAhead)
	if kind.Code == UsageDocument.Code {
		query.Set("outBiddingZone_Domain", zone.Code)
	} else {
		query.Set("in_Domain", zone.Code)
		query.Set("out_Domain", zone.Code)
	}
	query.Set("periodStart", FormatPeriod(w.Start))
	query.Set("periodEnd", FormatPeriod(w.End))
	return strings.TrimRight(c.baseURL, "?") + "?" + query.Encode()
}

type marketDocument struct {
	XMLName    xml.Name
	TimeSeries []marketTimeSeries `xml:"TimeSeries"`
	Reasons    []marketReason     `xml:"Reason"`
}

type marketTimeSeries struct {
	Periods []marketPeriod `xml:"Period"`
}

type marketPeriod struct {
	Start      string        `xml:"timeInterval>start"`
	Resolution string        `xml:"resolution"`
	Points     []marketPoint `xml:"Point"`
}

type marketPoint struct {
	Position string  `xml:"position"`
	Price    *string `xml:"price.amount"`
	Quantity *string `xml:"quantity"`
}

type marketReason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

// ParseMarketDocument turns a Period/Point document into time points. Point
// j of a period starting at S with resolution R minutes is stamped
// S + (j-1)*R. An acknowledgement saying no data matched yields no points.
func ParseMarketDocument(body []byte, kind DocumentKind) ([]models.TimePoint, error) {
	var doc marketDocument
	decoder := xml.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&doc); err != nil {
		return nil, parseErrorf(kind.Purpose, err, "decode market document")
	}

	if strings.HasPrefix(doc.XMLName.Local, "Acknowledgement") {
		for _, r := range doc.Reasons {
			if strings.Contains(r.Text, noMatchingData) {
				return nil, nil
			}
		}
		return nil, parseErrorf(kind.Purpose, nil, "upstream acknowledgement: %s", reasonText(doc.Reasons))
	}

	var points []models.TimePoint
	for _, ts := range doc.TimeSeries {
		for i, p := range ts.Periods {
			parsed, err := parsePeriod(p, kind)
			if err != nil {
				return nil, parseErrorf(kind.Purpose, err, "period %d", i+1)
			}
			points = append(points, parsed...)
		}
	}
	return points, nil
}

func parsePeriod(p marketPeriod, kind DocumentKind) ([]models.TimePoint, error) {
	start, err := time.Parse(marketStartLayout, strings.TrimSpace(p.Start))
	if err != nil {
		return nil, err
	}
	resolution, err := ResolutionMinutes(p.Resolution)
	if err != nil {
		return nil, err
	}

	points := make([]models.TimePoint, 0, len(p.Points))
	for _, pt := range p.Points {
		position, err := strconv.Atoi(strings.TrimSpace(pt.Position))
		if err != nil {
			return nil, err
		}
		if position < 1 {
			return nil, &ParseError{Purpose: kind.Purpose, Detail: "point position " + pt.Position + " is not 1-based"}
		}

		raw := pt.Price
		if kind.ValueField == UsageDocument.ValueField {
			raw = pt.Quantity
		}
		if raw == nil {
			return nil, &ParseError{Purpose: kind.Purpose, Detail: "point " + pt.Position + " has no " + kind.ValueField}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return nil, err
		}

		tp := models.TimePoint{
			Timestamp:       start.Add(time.Duration((position-1)*resolution) * time.Minute),
			IntervalMinutes: resolution,
		}
		if kind.Purpose == PurposeUsage {
			tp.Usage = models.Float(value)
		} else {
			tp.Price = models.Float(value)
		}
		points = append(points, tp)
	}
	return points, nil
}

// ResolutionMinutes keeps only the digits of a resolution such as "PT60M".
func ResolutionMinutes(resolution string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, resolution)
	minutes, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &ParseError{Detail: "resolution " + strconv.Quote(resolution) + " has no minute count", Err: err}
	}
	if minutes <= 0 {
		return 0, &ParseError{Detail: "resolution " + strconv.Quote(resolution) + " is not positive"}
	}
	return minutes, nil
}

func reasonText(reasons []marketReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, strings.TrimSpace(r.Code+" "+r.Text))
	}
	if len(parts) == 0 {
		return "no reason given"
	}
	return strings.Join(parts, "; ")
}
