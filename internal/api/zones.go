package api

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

const DefaultZonesURL = "https://api.electricitymap.org/v3/zones"

// ZoneDirectory lists the countries known to the Electricity Maps zone
// registry. It feeds country pickers; fetching still goes through the
// Catalog.
type ZoneDirectory struct {
	url       string
	transport *Transport
}

func NewZoneDirectory(url string, transport *Transport) *ZoneDirectory {
	if url == "" {
		url = DefaultZonesURL
	}
	if transport == nil {
		transport = NewTransport()
	}
	return &ZoneDirectory{url: url, transport: transport}
}

type zoneEntry struct {
	ZoneName    string `json:"zoneName"`
	CountryName string `json:"countryName"`
}

// Countries returns the sorted, de-duplicated country names of all zones.
// A zone without a country name is listed under its zone name.
func (d *ZoneDirectory) Countries(ctx context.Context) ([]string, error) {
	body, err := d.transport.Get(ctx, PurposeZones, "", d.url, "application/json")
	if err != nil {
		return nil, err
	}

	var zones map[string]zoneEntry
	if err := json.Unmarshal(body, &zones); err != nil {
		return nil, parseErrorf(PurposeZones, err, "decode zone registry")
	}

	seen := make(map[string]struct{}, len(zones))
	names := make([]string, 0, len(zones))
	for _, zone := range zones {
		name := strings.TrimSpace(zone.CountryName)
		if name == "" {
			name = strings.TrimSpace(zone.ZoneName)
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
