package syllabus

import (
	"encoding/json"
	"fmt"
)

const (
	TypeLesson = "SyllabusLessonType"
	TypeGroup  = "SyllabusGroupType"
)

// A Node is one entry of a syllabus: a LessonNode, a GroupNode or an OtherNode.
type Node interface {
	node()
}

// LessonNode is a single lesson; only lessons with content and video are downloadable.
type LessonNode struct {
	HasContent bool
	HasVideo   bool
	LessonID   string
}

// GroupNode holds child entries in display order, and may itself contain groups.
type GroupNode struct {
	Name     string
	Children []Node
}

// OtherNode is any entry kind that is neither a lesson nor a group.
type OtherNode struct {
	Type string
}

func (LessonNode) node() {}
func (GroupNode) node()  {}
func (OtherNode) node()  {}

// Eligible reports whether the lesson should be downloaded.
func (n LessonNode) Eligible() bool {
	return n.HasContent && n.HasVideo
}

type rawEntry struct {
	Type      string             `json:"type"`
	Lesson    *rawLesson         `json:"lesson"`
	GroupInfo *rawGroupInfo      `json:"groupInfo"`
	Lessons   *[]json.RawMessage `json:"lessons"`
}

type rawGroupInfo struct {
	Name string `json:"name"`
}

type rawLessonRef struct {
	ID string `json:"id"`
}

type rawLesson struct {
	HasContent *bool         `json:"hasContent"`
	HasVideo   *bool         `json:"hasVideo"`
	Lesson     *rawLessonRef `json:"lesson"`
}

// decodeNode decodes one syllabus entry. path locates the entry in the document for error messages.
func decodeNode(data json.RawMessage, path string) (Node, error) {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSyllabus, path, err)
	}
	switch {
	case raw.Type == TypeGroup:
		return decodeGroup(raw, path)
	case raw.Type == TypeLesson, raw.Type == "" && raw.Lesson != nil:
		return decodeLesson(raw, path)
	default:
		return OtherNode{Type: raw.Type}, nil
	}
}

func decodeLesson(raw rawEntry, path string) (Node, error) {
	l := raw.Lesson
	switch {
	case l == nil:
		return nil, fmt.Errorf("%w: %s: missing lesson", ErrMalformedSyllabus, path)
	case l.HasContent == nil || l.HasVideo == nil:
		return nil, fmt.Errorf("%w: %s: missing hasContent/hasVideo", ErrMalformedSyllabus, path)
	}
	n := LessonNode{HasContent: *l.HasContent, HasVideo: *l.HasVideo}
	if l.Lesson != nil {
		n.LessonID = l.Lesson.ID
	}
	// The ID of a lesson that won't be downloaded is never looked at.
	if n.Eligible() && n.LessonID == "" {
		return nil, fmt.Errorf("%w: %s: missing lesson id", ErrMalformedSyllabus, path)
	}
	return n, nil
}

func decodeGroup(raw rawEntry, path string) (Node, error) {
	if raw.Lessons == nil {
		return nil, fmt.Errorf("%w: %s: group without lessons", ErrMalformedSyllabus, path)
	}
	group := GroupNode{Children: make([]Node, 0, len(*raw.Lessons))}
	if raw.GroupInfo != nil {
		group.Name = raw.GroupInfo.Name
	}
	for i, child := range *raw.Lessons {
		n, err := decodeNode(child, fmt.Sprintf("%s.lessons[%d]", path, i))
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, n)
	}
	return group, nil
}

// Visit calls f for every lesson under n, depth first, in document order.
func Visit(n Node, f func(LessonNode)) {
	switch n := n.(type) {
	case LessonNode:
		f(n)
	case GroupNode:
		for _, child := range n.Children {
			Visit(child, f)
		}
	case OtherNode:
	}
}
