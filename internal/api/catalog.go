package api

import (
	"sort"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

// Catalog is the read-only country table the fetcher resolves names against.
// It is built once at startup and shared by reference.
type Catalog struct {
	countries map[string]models.Country
}

// NewCatalog copies countries into a new catalog. Later entries with the same
// name replace earlier ones.
func NewCatalog(countries []models.Country) *Catalog {
	c := &Catalog{countries: make(map[string]models.Country, len(countries))}
	for _, country := range countries {
		zones := make([]models.Zone, len(country.Zones))
		copy(zones, country.Zones)
		country.Zones = zones
		c.countries[country.Name] = country
	}
	return c
}

// DefaultCatalog returns the built-in countries. Sweden is split into its four
// bidding zones, queried in order.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultCountries())
}

// DefaultCountries lists the built-in country table.
func DefaultCountries() []models.Country {
	return []models.Country{
		{
			Name:      "Finland",
			Zones:     []models.Zone{{Key: "FI", Code: "10YFI-1--------U"}},
			Latitude:  60.17,
			Longitude: 24.94,
			Timezone:  "Europe/Helsinki",
		},
		{
			Name:      "Germany",
			Zones:     []models.Zone{{Key: "DE_LU", Code: "10Y1001A1001A82H"}},
			Latitude:  52.52,
			Longitude: 13.40,
			Timezone:  "Europe/Berlin",
		},
		{
			Name:      "France",
			Zones:     []models.Zone{{Key: "FR", Code: "10YFR-RTE------C"}},
			Latitude:  48.86,
			Longitude: 2.35,
			Timezone:  "Europe/Paris",
		},
		{
			Name: "Sweden",
			Zones: []models.Zone{
				{Key: "SWE_1", Code: "10Y1001A1001A44P"},
				{Key: "SWE_2", Code: "10Y1001A1001A45N"},
				{Key: "SWE_3", Code: "10Y1001A1001A46L"},
				{Key: "SWE_4", Code: "10Y1001A1001A47J"},
			},
			Latitude:  59.33,
			Longitude: 18.07,
			Timezone:  "Europe/Stockholm",
		},
	}
}

// Lookup resolves a country by name.
func (c *Catalog) Lookup(name string) (models.Country, error) {
	country, ok := c.countries[name]
	if !ok || len(country.Zones) == 0 {
		return models.Country{}, &ValidationError{Field: "country", Reason: "unknown country " + name}
	}
	country.Zones = append([]models.Zone(nil), country.Zones...)
	return country, nil
}

// Names returns the catalog's country names in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.countries))
	for name := range c.countries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
