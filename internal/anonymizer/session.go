// Package anonymizer assigns deterministic, session-scoped numbered tokens
// to entities and rewrites the document, producing a mapping artifact.
package anonymizer

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

type sessionKey struct {
	entityType string
	text       string
}

// Session guarantees deterministic token numbering within one document:
// identical normalized text and type always yield the same token, and a
// fresh session restarts numbering at 1 per type. Call Reset between
// documents.
type Session struct {
	mu       sync.Mutex
	counters map[string]int
	tokens   map[sessionKey]string
	aliases  map[string]string
}

// NewSession creates a session with the given type alias table
// (e.g. PERSON_NAME -> PERSON). The alias map may be nil.
func NewSession(aliases map[string]string) *Session {
	s := &Session{aliases: make(map[string]string, len(aliases))}
	for k, v := range aliases {
		s.aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	s.Reset()
	return s
}

// GetOrCreateToken returns the token for (type, text), minting a new
// numbered token on first sight of the normalized pair.
func (s *Session) GetOrCreateToken(text, entityType string) string {
	normType := s.NormalizeType(entityType)
	key := sessionKey{entityType: normType, text: normalizeText(text)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		return token
	}
	s.counters[normType]++
	token := fmt.Sprintf("[%s_%d]", normType, s.counters[normType])
	s.tokens[key] = token
	return token
}

// Reset clears counters and token assignments. Must be called once per new
// document so numbering restarts at 1.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int)
	s.tokens = make(map[sessionKey]string)
}

// NormalizeType uppercases the entity type and folds it through the alias
// table.
func (s *Session) NormalizeType(entityType string) string {
	t := strings.ToUpper(strings.TrimSpace(entityType))
	if alias, ok := s.aliases[t]; ok {
		return alias
	}
	return t
}

// normalizeText builds the dedup key: NFKC normalization, case fold, and
// whitespace collapse, so "  John Doe " and "john doe" share one token.
func normalizeText(text string) string {
	folded := strings.ToLower(norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}
