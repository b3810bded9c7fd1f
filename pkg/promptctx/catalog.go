package promptctx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Artifact file names expected under the artifacts directory.
const (
	schemaMetadataFile = "schema_metadata.yaml"
	patternsFile       = "patterns.yaml"
	syntaxFile         = "duckdb_syntax_short.yaml"
	taxonomyFile       = "product_taxonomy.yaml"
)

// ColumnDef is one column in a curated table description.
type ColumnDef struct {
	Name string
	Type string
}

// JoinDef is a named join hint attached to a table.
type JoinDef struct {
	Name string
	SQL  string
}

// Table is the curated metadata for one warehouse table. Declaration
// order in the YAML is preserved so the rendered schema block is stable.
type Table struct {
	Name           string
	Domain         string
	Description    string
	RowCount       int
	ExcludeFromLLM bool
	Columns        []ColumnDef
	Joins          []JoinDef
	Gotchas        []string
}

// Rule is one always-on instruction for the LLM.
type Rule struct {
	Key  string
	Text string
}

// Recipe is a canonical multi-table join, gated on a domain set. It is
// offered only when every required domain is active.
type Recipe struct {
	Key         string
	Description string
	Domains     []string
	SQL         string
}

// Pattern is a few-shot question/SQL example.
type Pattern struct {
	Key      string
	Question string
	Notes    string
	SQL      string
}

// Catalog holds every startup-loaded prompt artifact. It is immutable
// after load and safe for concurrent readers.
type Catalog struct {
	Tables   []Table
	Rules    []Rule
	Recipes  []Recipe
	Patterns map[string]Pattern
	Syntax   string
	Taxonomy string
}

// LoadCatalog reads and validates all prompt artifacts from dir. Any
// malformed artifact fails the load; partially usable catalogs are
// worse than a refused startup.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{Patterns: make(map[string]Pattern)}

	if err := c.loadSchemaMetadata(filepath.Join(dir, schemaMetadataFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", schemaMetadataFile, err)
	}
	if err := c.loadPatterns(filepath.Join(dir, patternsFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", patternsFile, err)
	}
	if err := c.loadSyntax(filepath.Join(dir, syntaxFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", syntaxFile, err)
	}
	if err := c.loadTaxonomy(filepath.Join(dir, taxonomyFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", taxonomyFile, err)
	}
	return c, nil
}

// rootMapping parses path and returns the document's top-level mapping
// node, so callers can walk keys in declaration order.
func rootMapping(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}
	return root, nil
}

// mappingPairs iterates a mapping node as ordered key/value pairs.
func mappingPairs(node *yaml.Node, fn func(key string, val *yaml.Node) error) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

type tableSpec struct {
	Domain         string    `yaml:"domain"`
	Description    string    `yaml:"description"`
	RowCount       int       `yaml:"row_count"`
	ExcludeFromLLM bool      `yaml:"exclude_from_llm"`
	Gotchas        []string  `yaml:"gotchas"`
	Columns        yaml.Node `yaml:"columns"`
	Joins          yaml.Node `yaml:"joins"`
}

type columnSpec struct {
	Type string `yaml:"type"`
}

func (c *Catalog) loadSchemaMetadata(path string) error {
	root, err := rootMapping(path)
	if err != nil {
		return err
	}

	return mappingPairs(root, func(key string, val *yaml.Node) error {
		switch key {
		case "global_rules":
			return mappingPairs(val, func(rk string, rv *yaml.Node) error {
				c.Rules = append(c.Rules, Rule{Key: rk, Text: rv.Value})
				return nil
			})
		case "join_recipes":
			return mappingPairs(val, func(rk string, rv *yaml.Node) error {
				var spec struct {
					Description string   `yaml:"description"`
					Domains     []string `yaml:"domains"`
					SQL         string   `yaml:"sql"`
				}
				if err := rv.Decode(&spec); err != nil {
					return fmt.Errorf("recipe %q: %w", rk, err)
				}
				if spec.SQL == "" {
					return fmt.Errorf("recipe %q: missing sql", rk)
				}
				c.Recipes = append(c.Recipes, Recipe{
					Key:         rk,
					Description: spec.Description,
					Domains:     spec.Domains,
					SQL:         spec.SQL,
				})
				return nil
			})
		default:
			if val.Kind != yaml.MappingNode {
				return nil
			}
			var spec tableSpec
			if err := val.Decode(&spec); err != nil {
				return fmt.Errorf("table %q: %w", key, err)
			}
			if spec.Domain == "" {
				// Not a table entry; the schema file may carry other
				// top-level sections we do not render.
				return nil
			}
			t := Table{
				Name:           key,
				Domain:         spec.Domain,
				Description:    spec.Description,
				RowCount:       spec.RowCount,
				ExcludeFromLLM: spec.ExcludeFromLLM,
				Gotchas:        spec.Gotchas,
			}
			if spec.Columns.Kind == yaml.MappingNode {
				if err := mappingPairs(&spec.Columns, func(cn string, cv *yaml.Node) error {
					var col columnSpec
					if err := cv.Decode(&col); err != nil {
						return fmt.Errorf("table %q column %q: %w", key, cn, err)
					}
					t.Columns = append(t.Columns, ColumnDef{Name: cn, Type: col.Type})
					return nil
				}); err != nil {
					return err
				}
			}
			if spec.Joins.Kind == yaml.MappingNode {
				if err := mappingPairs(&spec.Joins, func(jn string, jv *yaml.Node) error {
					t.Joins = append(t.Joins, JoinDef{Name: jn, SQL: jv.Value})
					return nil
				}); err != nil {
					return err
				}
			}
			c.Tables = append(c.Tables, t)
			return nil
		}
	})
}

func (c *Catalog) loadPatterns(path string) error {
	root, err := rootMapping(path)
	if err != nil {
		return err
	}
	return mappingPairs(root, func(key string, val *yaml.Node) error {
		if val.Kind != yaml.MappingNode {
			return nil
		}
		var spec struct {
			Question string `yaml:"question"`
			Notes    string `yaml:"notes"`
			SQL      string `yaml:"sql"`
		}
		if err := val.Decode(&spec); err != nil {
			return fmt.Errorf("pattern %q: %w", key, err)
		}
		if spec.SQL == "" {
			// Non-pattern sections (version markers etc.) are skipped.
			return nil
		}
		c.Patterns[key] = Pattern{
			Key:      key,
			Question: spec.Question,
			Notes:    spec.Notes,
			SQL:      spec.SQL,
		}
		return nil
	})
}

// loadSyntax renders the dialect syntax reference to compact text.
// Sections keep declaration order; the "gotchas" section renders as
// warning lines.
func (c *Catalog) loadSyntax(path string) error {
	root, err := rootMapping(path)
	if err != nil {
		return err
	}

	lines := []string{"DUCKDB SYNTAX:"}
	err = mappingPairs(root, func(section string, val *yaml.Node) error {
		switch {
		case section == "gotchas" && val.Kind == yaml.SequenceNode:
			for _, item := range val.Content {
				lines = append(lines, fmt.Sprintf("  ! %s", item.Value))
			}
		case val.Kind == yaml.MappingNode:
			return mappingPairs(val, func(k string, v *yaml.Node) error {
				lines = append(lines, fmt.Sprintf("  %s: %s", k, strings.TrimSpace(v.Value)))
				return nil
			})
		case val.Kind == yaml.SequenceNode:
			for _, item := range val.Content {
				lines = append(lines, fmt.Sprintf("  - %s", item.Value))
			}
		default:
			lines = append(lines, fmt.Sprintf("  %s: %s", section, strings.TrimSpace(val.Value)))
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Syntax = strings.Join(lines, "\n")
	return nil
}

func (c *Catalog) loadTaxonomy(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var spec struct {
		TaxonomyForPrompt string `yaml:"taxonomy_for_prompt"`
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	c.Taxonomy = strings.TrimSpace(spec.TaxonomyForPrompt)
	return nil
}
