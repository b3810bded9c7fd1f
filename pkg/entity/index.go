// Package entity resolves free-text mentions of locations and products to
// canonical IDs using an in-memory n-gram alias index. Resolution is pure
// computation: no database access, no failure modes beyond "no match".
package entity

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const maxNGramTokens = 3

var ngramCleaner = regexp.MustCompile(`[^\w\s-]`)

// NGrams generates contiguous 1..3-token n-grams from lowercased,
// punctuation-stripped text. Shorter n-grams come first; within a length,
// n-grams appear in text order.
func NGrams(text string) []string {
	cleaned := ngramCleaner.ReplaceAllString(strings.ToLower(text), "")
	words := strings.Fields(cleaned)

	var ngrams []string
	for n := 1; n <= maxNGramTokens && n <= len(words); n++ {
		for i := 0; i+n <= len(words); i++ {
			ngrams = append(ngrams, strings.Join(words[i:i+n], " "))
		}
	}
	return ngrams
}

// Match pairs a resolved entity ID with the alias string that matched.
type Match struct {
	ID    string
	Alias string
}

// Index is a reusable n-gram matching engine mapping alias strings to
// entities of type M. All registration happens at startup; Resolve is
// safe for concurrent use once loading is complete.
type Index[M any] struct {
	name         string
	minAliasLen  int
	minPrefixLen int

	entities map[string]M
	aliases  map[string]string // alias (lowercased) -> entity ID
	// aliasOrder preserves registration order so prefix-fallback matching
	// is deterministic regardless of map iteration order.
	aliasOrder []string

	logger *zap.Logger
}

// IndexOption configures an Index.
type IndexOption[M any] func(*Index[M])

// WithMinAliasLen sets the minimum registered alias length. Shorter
// aliases are silently rejected to avoid over-matching common words.
func WithMinAliasLen[M any](n int) IndexOption[M] {
	return func(idx *Index[M]) { idx.minAliasLen = n }
}

// WithMinPrefixLen sets the minimum length for both sides of a
// prefix-fallback match.
func WithMinPrefixLen[M any](n int) IndexOption[M] {
	return func(idx *Index[M]) { idx.minPrefixLen = n }
}

// NewIndex creates an empty index.
func NewIndex[M any](name string, logger *zap.Logger, opts ...IndexOption[M]) *Index[M] {
	idx := &Index[M]{
		name:         name,
		minAliasLen:  2,
		minPrefixLen: 5,
		entities:     make(map[string]M),
		aliases:      make(map[string]string),
		logger:       logger.Named("entity-index").With(zap.String("index", name)),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddEntity registers metadata for an entity ID. First registration wins;
// duplicates are ignored.
func (idx *Index[M]) AddEntity(id string, meta M) {
	if _, exists := idx.entities[id]; exists {
		return
	}
	idx.entities[id] = meta
}

// AddAlias registers a lowercased alias for an entity ID. Aliases shorter
// than the minimum length are rejected; an alias already claimed by
// another entity stays with its first owner.
func (idx *Index[M]) AddAlias(alias, id string) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if len(alias) < idx.minAliasLen {
		return
	}
	if owner, exists := idx.aliases[alias]; exists {
		if owner != id {
			idx.logger.Debug("alias collision, first registration wins",
				zap.String("alias", alias),
				zap.String("owner", owner),
				zap.String("rejected", id))
		}
		return
	}
	idx.aliases[alias] = id
	idx.aliasOrder = append(idx.aliasOrder, alias)
}

// Resolve finds entity references in the question text, deduplicated by
// entity ID (the first alias that hits an ID wins).
//
// The exact pass walks n-grams longest-first so more specific phrases win.
// The prefix-fallback pass runs only when the exact pass found nothing:
// an n-gram matches an alias when either is a prefix of the other and both
// meet the minimum prefix length. Aliases are tried in registration order,
// so resolution is deterministic for a fixed index and input.
func (idx *Index[M]) Resolve(question string) []Match {
	ngrams := NGrams(question)

	var matches []Match
	seen := make(map[string]bool)

	// Exact pass, longest n-grams first.
	for i := len(ngrams) - 1; i >= 0; i-- {
		id, ok := idx.aliases[ngrams[i]]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		matches = append(matches, Match{ID: id, Alias: ngrams[i]})
	}
	if len(matches) > 0 {
		return matches
	}

	// Prefix fallback pass.
	for _, ngram := range ngrams {
		if len(ngram) < idx.minPrefixLen {
			continue
		}
		for _, alias := range idx.aliasOrder {
			if len(alias) < idx.minPrefixLen {
				continue
			}
			if strings.HasPrefix(alias, ngram) || strings.HasPrefix(ngram, alias) {
				if id := idx.aliases[alias]; !seen[id] {
					seen[id] = true
					matches = append(matches, Match{ID: id, Alias: ngram})
				}
				break
			}
		}
	}

	return matches
}

// Entity returns the metadata registered for id.
func (idx *Index[M]) Entity(id string) (M, bool) {
	m, ok := idx.entities[id]
	return m, ok
}

// Entities returns all registered entities keyed by ID.
func (idx *Index[M]) Entities() map[string]M {
	return idx.entities
}

// AliasesFor returns every alias registered to id, in registration order.
func (idx *Index[M]) AliasesFor(id string) []string {
	var out []string
	for _, alias := range idx.aliasOrder {
		if idx.aliases[alias] == id {
			out = append(out, alias)
		}
	}
	return out
}

// AliasCount returns the number of registered aliases.
func (idx *Index[M]) AliasCount() int { return len(idx.aliases) }

// EntityCount returns the number of registered entities.
func (idx *Index[M]) EntityCount() int { return len(idx.entities) }
