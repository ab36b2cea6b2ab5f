// Package syllabus resolves a section's syllabus into the ordered list of downloadable lessons.
package syllabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrMalformedSyllabus = errors.New("malformed syllabus, some fields missing (please report this!)")
)

type Fetcher interface {
	URL(segments ...string) string
	GetJSON(ctx context.Context, rawURL string, v interface{}) error
}

// A Syllabus is the decoded top level of a section's syllabus document.
type Syllabus struct {
	Entries []Node
}

// Parse decodes a syllabus document; the whole document is rejected if any entry is malformed.
func Parse(data []byte) (*Syllabus, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSyllabus, err)
	}
	return doc.syllabus()
}

type document struct {
	Data *[]json.RawMessage `json:"data"`
}

func (d document) syllabus() (*Syllabus, error) {
	if d.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedSyllabus)
	}
	s := &Syllabus{Entries: make([]Node, 0, len(*d.Data))}
	for i, entry := range *d.Data {
		n, err := decodeNode(entry, fmt.Sprintf("data[%d]", i))
		if err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, n)
	}
	return s, nil
}

// LessonIDs returns the IDs of eligible lessons in on-screen order.
func (s *Syllabus) LessonIDs() []string {
	ids := []string{}
	for _, entry := range s.Entries {
		Visit(entry, func(l LessonNode) {
			if l.Eligible() {
				ids = append(ids, l.LessonID)
			}
		})
	}
	return ids
}

type Resolver struct {
	fetcher Fetcher
	log     *zap.SugaredLogger
}

func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		log:     zap.S().Named("syllabus"),
	}
}

// Fetch downloads and decodes the syllabus of a section.
func (r *Resolver) Fetch(ctx context.Context, sectionID string) (*Syllabus, error) {
	var doc document
	if err := r.fetcher.GetJSON(ctx, r.fetcher.URL("section", sectionID, "syllabus"), &doc); err != nil {
		return nil, fmt.Errorf("failed to get syllabus: %w", err)
	}
	return doc.syllabus()
}

// LessonIDs fetches the syllabus of a section and returns its eligible lesson IDs in on-screen order.
func (r *Resolver) LessonIDs(ctx context.Context, sectionID string) ([]string, error) {
	s, err := r.Fetch(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	ids := s.LessonIDs()
	r.log.Debugf("section %s: %d top-level entries, %d eligible lessons", sectionID, len(s.Entries), len(ids))
	return ids, nil
}
