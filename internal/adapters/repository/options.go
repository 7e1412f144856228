package repository

import (
	"github.com/okian/leadflow/internal/domain/model"
	"golang.org/x/text/language"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSearchLanguage sets the language whose case rules fold search terms
// and lead fields, e.g. language.Turkish for dotted and dotless i.
func WithSearchLanguage(tag language.Tag) Option {
	return func(s *MemoryStore) {
		s.lang = tag
	}
}

// WithCapacity preallocates room for n leads.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.leads = make([]model.Lead, 0, n)
		}
	}
}
