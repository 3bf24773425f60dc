package enrich

import (
	"context"
	"sync"
	"time"
)

// KeywordOptions controls a term-extraction request
type KeywordOptions struct {
	MaxKeywords       int  // Maximum number of terms to return
	UseTechnicalTerms bool // Prefer technical vocabulary over common words
}

// AnalysisClient is the term/code-analysis collaborator. Implementations
// wrap an external language-analysis engine; the scoring model behind it is
// not part of this system.
type AnalysisClient interface {
	// ExtractKeywords derives candidate terms from free text
	ExtractKeywords(ctx context.Context, text string, opts KeywordOptions) ([]string, error)

	// AnalyzeCode produces an opaque analysis of a code body
	AnalyzeCode(ctx context.Context, code string) (string, error)

	// IsTechnicalTerm reports whether a term belongs to the engine's
	// technical vocabulary
	IsTechnicalTerm(term string) bool
}

// Searcher is the external search collaborator
type Searcher interface {
	// Search looks up external references for the given terms
	Search(ctx context.Context, terms []string) ([]string, error)
}

// LearningEntry records what a processed submission taught the system
type LearningEntry struct {
	SubmissionID string    `json:"submission_id"`
	Subject      string    `json:"subject"`
	Keywords     []string  `json:"keywords"`
	Analysis     string    `json:"analysis,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LearningStore is the append-only learning record collaborator
type LearningStore interface {
	Append(ctx context.Context, entry LearningEntry) error
}

// ActivityEntry is one line in a capability's recent-activity log
type ActivityEntry struct {
	SubmissionID string    `json:"submission_id"`
	Subject      string    `json:"subject"`
	TermsAdded   int       `json:"terms_added"`
	At           time.Time `json:"at"`
}

// Capability tracks the vocabulary one consumer has accumulated
type Capability struct {
	Consumer       string          `json:"consumer"`
	Terms          []string        `json:"terms"`
	UpdateCount    int             `json:"update_count"`
	RecentActivity []ActivityEntry `json:"recent_activity"`
}

// CapabilityStore is the capability record collaborator. Load returns an
// empty capability for an unknown consumer.
type CapabilityStore interface {
	Load(ctx context.Context, consumer string) (*Capability, error)
	Save(ctx context.Context, cap *Capability) error
}

// MemoryCapabilityStore is an in-process CapabilityStore
type MemoryCapabilityStore struct {
	mu   sync.Mutex
	caps map[string]*Capability
}

// NewMemoryCapabilityStore creates an empty in-process capability store
func NewMemoryCapabilityStore() *MemoryCapabilityStore {
	return &MemoryCapabilityStore{caps: make(map[string]*Capability)}
}

// Load returns the stored capability for the consumer, or an empty one
func (s *MemoryCapabilityStore) Load(ctx context.Context, consumer string) (*Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caps[consumer]; ok {
		cp := *c
		cp.Terms = append([]string(nil), c.Terms...)
		cp.RecentActivity = append([]ActivityEntry(nil), c.RecentActivity...)
		return &cp, nil
	}
	return &Capability{Consumer: consumer}, nil
}

// Save stores the capability, replacing any prior record
func (s *MemoryCapabilityStore) Save(ctx context.Context, cap *Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps[cap.Consumer] = cap
	return nil
}

// MemoryLearningStore is an in-process LearningStore
type MemoryLearningStore struct {
	mu      sync.Mutex
	entries []LearningEntry
}

// NewMemoryLearningStore creates an empty in-process learning store
func NewMemoryLearningStore() *MemoryLearningStore {
	return &MemoryLearningStore{}
}

// Append adds a learning entry
func (s *MemoryLearningStore) Append(ctx context.Context, entry LearningEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a snapshot of the appended entries
func (s *MemoryLearningStore) Entries() []LearningEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LearningEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
