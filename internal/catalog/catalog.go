// Package catalog holds the fixed reference data of the service:
// partner coupon templates, the courier roster, collection points and info pages.
// The data is embedded at build time and parsed once at startup.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/colloil/colloil/internal/model"
)

// Info page names.
const (
	PageAbout     = "about"
	PageBiodiesel = "biodiesel"
	PageGlycerin  = "glycerin"
)

//go:embed catalog.yaml
var defaultDocument []byte

// Partner is a coupon template seeded for every new user.
type Partner struct {
	Name            string  `yaml:"name"`
	Logo            string  `yaml:"logo"`
	DiscountPercent int     `yaml:"discount_percent"`
	RequiredLiters  float64 `yaml:"required_liters"`
}

// Required returns the liters threshold as a decimal.
func (p Partner) Required() decimal.Decimal {
	return decimal.NewFromFloat(p.RequiredLiters)
}

type collectionPoint struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Address      string  `yaml:"address"`
	Lat          float64 `yaml:"lat"`
	Lng          float64 `yaml:"lng"`
	OpeningHours string  `yaml:"opening_hours"`
}

type page struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

type document struct {
	Partners         []Partner         `yaml:"partners"`
	Couriers         []string          `yaml:"couriers"`
	CollectionPoints []collectionPoint `yaml:"collection_points"`
	Pages            map[string]page   `yaml:"pages"`
}

// Catalog is read-only after Load and safe for concurrent use.
type Catalog struct {
	partners []Partner
	couriers []string
	points   []model.CollectionPoint
	pages    map[string]model.InfoPage
}

// Load parses the embedded catalog document.
func Load() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Parse builds a Catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(doc.Partners) == 0 {
		return nil, errors.New("catalog: no partners defined")
	}
	if len(doc.Couriers) == 0 {
		return nil, errors.New("catalog: courier roster is empty")
	}
	for _, p := range doc.Partners {
		if p.Name == "" || p.RequiredLiters <= 0 || p.DiscountPercent <= 0 || p.DiscountPercent > 100 {
			return nil, fmt.Errorf("catalog: invalid partner %q", p.Name)
		}
	}

	c := &Catalog{
		partners: doc.Partners,
		couriers: doc.Couriers,
		points:   make([]model.CollectionPoint, 0, len(doc.CollectionPoints)),
		pages:    make(map[string]model.InfoPage, len(doc.Pages)),
	}
	seen := make(map[string]bool, len(doc.CollectionPoints))
	for _, p := range doc.CollectionPoints {
		if p.ID == "" || seen[p.ID] {
			return nil, fmt.Errorf("catalog: collection point %q needs a unique id", p.Name)
		}
		seen[p.ID] = true
		c.points = append(c.points, model.CollectionPoint(p))
	}
	for name, p := range doc.Pages {
		c.pages[name] = model.InfoPage{Title: p.Title, Content: p.Content}
	}

	return c, nil
}

// Partners returns the coupon templates in display order.
func (c *Catalog) Partners() []Partner {
	out := make([]Partner, len(c.partners))
	copy(out, c.partners)
	return out
}

// Couriers returns the courier roster.
func (c *Catalog) Couriers() []string {
	out := make([]string, len(c.couriers))
	copy(out, c.couriers)
	return out
}

// CollectionPoints returns all drop-off locations.
func (c *Catalog) CollectionPoints() []model.CollectionPoint {
	out := make([]model.CollectionPoint, len(c.points))
	copy(out, c.points)
	return out
}

// Page returns a named info page.
func (c *Catalog) Page(name string) (model.InfoPage, bool) {
	p, ok := c.pages[name]
	return p, ok
}
