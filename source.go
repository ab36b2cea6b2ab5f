package lecture_archiver

import (
	"context"
	"fmt"

	"github.com/alanbriolat/lecture-archiver/download"
)

// Origin is the scheme and host of the platform, e.g. "https://echo360.net.au". Every API request of a run is made
// against the Origin of the URL the user supplied.
type Origin string

type TargetKind int

const (
	TargetSection TargetKind = iota + 1
	TargetLesson
)

func (k TargetKind) String() string {
	switch k {
	case TargetSection:
		return "section"
	case TargetLesson:
		return "lesson"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// A Target is what the user asked to download: a whole section, or a single lesson.
type Target struct {
	Kind TargetKind
	ID   string
}

func Section(id string) Target {
	return Target{Kind: TargetSection, ID: id}
}

func Lesson(id string) Target {
	return Target{Kind: TargetLesson, ID: id}
}

func (t Target) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.ID)
}

// A LessonLister lists the downloadable lessons of a section in display order.
type LessonLister interface {
	LessonIDs(ctx context.Context, sectionID string) ([]string, error)
}

// A MediaResolver resolves a lesson into the ordered list of files to download.
type MediaResolver interface {
	Resolve(ctx context.Context, lessonID string) ([]download.Item, error)
}
