package entity

import (
	"fmt"
	"os"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Location status values carried in lookups.yaml.
const (
	StatusActive   = "active"
	StatusClosed   = "closed"
	StatusMerged   = "merged"
	StatusInactive = "inactive"
)

// Location is a store location keyed by its revenue unit ID.
type Location struct {
	RUID        string
	DBName      string // POS name as it appears in munu.revenue_units
	DisplayName string
	CustomerID  int // owning tenant; 0 when the region has no mapping
	Brand       string
	Status      string
	MergedInto  string // RUID of the surviving location when Status is merged
	PlandayDept string
	Region      string
}

// Product is a catalog product keyed by its normalized name.
type Product struct {
	Name        string // normalized name suitable for SQL ILIKE matching
	Description string
	Category    string
}

// LocationMatch is a resolved location mention.
type LocationMatch struct {
	Location
	AliasMatched string
}

// ProductMatch is a resolved product mention.
type ProductMatch struct {
	Product
	AliasMatched string
}

// brandPrefixes are stripped when auto-deriving location aliases, so
// "KS Sentrum" also answers to "sentrum".
var brandPrefixes = []string{"BB ", "KS ", "Steam ", "Mjol "}

const chainPrefix = "Kanelsnurren "

// Resolver holds both startup-loaded alias indexes. It is immutable after
// NewResolver returns and safe for concurrent use.
type Resolver struct {
	locations *Index[Location]
	products  *Index[Product]
	logger    *zap.Logger
}

// NewResolver loads lookups.yaml from path and builds the in-memory
// location and product indexes. Malformed entries fail loading outright;
// there is no partially-loaded resolver.
func NewResolver(path string, logger *zap.Logger) (*Resolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookups: %w", err)
	}

	var file lookupsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse lookups: %w", err)
	}

	r := &Resolver{
		locations: NewIndex[Location]("locations", logger),
		products:  NewIndex[Product]("products", logger, WithMinAliasLen[Product](3)),
		logger:    logger.Named("entity-resolver"),
	}

	if err := r.loadLocations(&file); err != nil {
		return nil, err
	}
	r.loadProducts(&file)

	r.logger.Info("entity indexes loaded",
		zap.Int("location_aliases", r.locations.AliasCount()),
		zap.Int("locations", r.locations.EntityCount()),
		zap.Int("product_aliases", r.products.AliasCount()),
		zap.Int("products", r.products.EntityCount()))

	return r, nil
}

func (r *Resolver) loadLocations(file *lookupsFile) error {
	regions, err := file.locationRegions()
	if err != nil {
		return err
	}
	for region, records := range regions {
		customerID := file.Regions[region]

		for _, rec := range records {
			if rec.RUID == "" {
				return fmt.Errorf("location in region %q missing ruid", region)
			}
			if rec.Name == "" {
				return fmt.Errorf("location %s missing name", rec.RUID)
			}
			status := rec.Status
			if status == "" {
				status = StatusActive
			}
			switch status {
			case StatusActive, StatusClosed, StatusMerged, StatusInactive:
			default:
				return fmt.Errorf("location %s has unknown status %q", rec.RUID, status)
			}

			display := rec.Display
			if display == "" {
				display = rec.Name
			}

			r.locations.AddEntity(string(rec.RUID), Location{
				RUID:        string(rec.RUID),
				DBName:      rec.Name,
				DisplayName: display,
				CustomerID:  customerID,
				Brand:       rec.Brand,
				Status:      status,
				MergedInto:  string(rec.MergedInto),
				PlandayDept: rec.PlandayDept,
				Region:      region,
			})

			r.addLocationAliases(string(rec.RUID), display, rec.Name, rec.PlandayDept)
		}
	}

	// Explicit alias overrides.
	for alias, target := range file.Aliases.Locations {
		if target.RUID != "" {
			r.locations.AddAlias(alias, string(target.RUID))
		}
	}

	return nil
}

// addLocationAliases auto-derives aliases from the display and POS names,
// stripping brand prefixes so the bare suffix matches too.
func (r *Resolver) addLocationAliases(ruid, display, name, plandayDept string) {
	for _, candidate := range []string{display, name} {
		if candidate == "" {
			continue
		}
		r.locations.AddAlias(candidate, ruid)
		for _, prefix := range brandPrefixes {
			if strings.HasPrefix(candidate, prefix) {
				rest := candidate[len(prefix):]
				r.locations.AddAlias(rest, ruid)
				if strings.HasPrefix(rest, chainPrefix) {
					r.locations.AddAlias(rest[len(chainPrefix):], ruid)
				}
				break
			}
		}
	}
	if plandayDept != "" {
		r.locations.AddAlias(plandayDept, ruid)
	}
}

func (r *Resolver) loadProducts(file *lookupsFile) {
	// Curated alias section. Entity ID is the alias itself, normalized for
	// ILIKE matching.
	for alias, desc := range file.Aliases.Products {
		name := strings.TrimSpace(alias)
		r.products.AddEntity(name, Product{
			Name:        name,
			Description: desc,
			Category:    parseCategory(desc),
		})
		r.addProductAliases(alias, name)
	}

	// Top products by revenue, per region. The alias section takes
	// priority for entities registered under the same ID.
	for _, products := range file.TopProducts {
		for _, rec := range products {
			name := strings.TrimSpace(rec.Name)
			if name == "" {
				continue
			}
			id := strings.ToLower(name)
			if _, exists := r.products.Entity(id); !exists {
				desc := fmt.Sprintf("%s -- %s", rec.Category, name)
				if rec.RevenueMNOK > 0 {
					desc += fmt.Sprintf(" (%gM NOK)", rec.RevenueMNOK)
				}
				r.products.AddEntity(id, Product{
					Name:        name,
					Description: desc,
					Category:    rec.Category,
				})
			}
			r.addProductAliases(name, id)
		}
	}
}

// addProductAliases registers the alias plus its singular and plural
// variants, so "croissants" still hits the "croissant" entry.
func (r *Resolver) addProductAliases(alias, id string) {
	r.products.AddAlias(alias, id)
	r.products.AddAlias(inflection.Singular(alias), id)
	r.products.AddAlias(inflection.Plural(alias), id)
}

// parseCategory extracts the category head from a description formatted as
// "Category — description" or "Category > Subcategory".
func parseCategory(desc string) string {
	head := strings.SplitN(desc, "—", 2)[0]
	head = strings.SplitN(head, ">", 2)[0]
	return strings.TrimSpace(head)
}

// ResolveLocations resolves location references in a question.
func (r *Resolver) ResolveLocations(question string) []LocationMatch {
	var out []LocationMatch
	for _, m := range r.locations.Resolve(question) {
		loc, ok := r.locations.Entity(m.ID)
		if !ok {
			continue
		}
		out = append(out, LocationMatch{Location: loc, AliasMatched: m.Alias})
	}
	return out
}

// ResolveProducts resolves product references in a question.
func (r *Resolver) ResolveProducts(question string) []ProductMatch {
	var out []ProductMatch
	for _, m := range r.products.Resolve(question) {
		prod, ok := r.products.Entity(m.ID)
		if !ok {
			continue
		}
		out = append(out, ProductMatch{Product: prod, AliasMatched: m.Alias})
	}
	return out
}

// Location returns a location by revenue unit ID. Used when the caller
// supplies pre-resolved mentions that bypass fuzzy matching.
func (r *Resolver) Location(ruid string) (Location, bool) {
	return r.locations.Entity(ruid)
}

// Product returns a product by entity ID.
func (r *Resolver) Product(id string) (Product, bool) {
	return r.products.Entity(id)
}

// Locations returns all locations keyed by RUID, for the data dictionary.
func (r *Resolver) Locations() map[string]Location {
	return r.locations.Entities()
}
