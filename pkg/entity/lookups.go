package entity

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// lookupsFile is the typed shape of lookups.yaml. Sections the loader does
// not understand (brand metadata, non-store Planday departments) are
// skipped rather than rejected, since the file is shared with the ETL
// tooling.
type lookupsFile struct {
	Regions     map[string]int              `yaml:"regions"`
	Locations   map[string]yaml.Node        `yaml:"locations"`
	Aliases     aliasSections               `yaml:"aliases"`
	TopProducts map[string][]topProductSpec `yaml:"top_products"`
}

type aliasSections struct {
	Locations map[string]locationAlias `yaml:"locations"`
	Products  map[string]string        `yaml:"products"`
}

type locationSpec struct {
	RUID        flexString `yaml:"ruid"`
	Name        string     `yaml:"name"`
	Display     string     `yaml:"display"`
	Brand       string     `yaml:"brand"`
	Status      string     `yaml:"status"`
	MergedInto  flexString `yaml:"merged_into"`
	PlandayDept string     `yaml:"planday_dept"`
}

type topProductSpec struct {
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	RevenueMNOK float64 `yaml:"revenue_mnok"`
}

// locationAlias accepts either a bare RUID scalar or a {ruid: ...} mapping.
type locationAlias struct {
	RUID flexString
}

func (a *locationAlias) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&a.RUID)
	}
	var spec struct {
		RUID flexString `yaml:"ruid"`
	}
	if err := node.Decode(&spec); err != nil {
		return fmt.Errorf("location alias: %w", err)
	}
	a.RUID = spec.RUID
	return nil
}

// flexString decodes a YAML scalar that may be written as an integer or a
// string. Revenue unit IDs are numeric in some regions' sections and
// quoted in others.
type flexString string

func (f *flexString) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n int
	if err := node.Decode(&n); err == nil {
		*f = flexString(strconv.Itoa(n))
		return nil
	}
	return fmt.Errorf("cannot decode %q as string or int", node.Value)
}

// locationRegions yields only the regions whose value is a list of
// location records. Non-list sections (brand metadata, planday_non_store)
// are skipped; a list that fails to decode is a malformed artifact and
// rejects the load.
func (f *lookupsFile) locationRegions() (map[string][]locationSpec, error) {
	out := make(map[string][]locationSpec)
	for region, node := range f.Locations {
		// Reserved sections carried in the same file for the ETL tooling.
		if region == "brands" || region == "planday_non_store" {
			continue
		}
		if node.Kind != yaml.SequenceNode {
			continue
		}
		var records []locationSpec
		if err := node.Decode(&records); err != nil {
			return nil, fmt.Errorf("region %q: %w", region, err)
		}
		out[region] = records
	}
	return out, nil
}
