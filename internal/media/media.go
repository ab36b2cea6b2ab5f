// Package media resolves a lesson's media metadata into direct download URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/alanbriolat/lecture-archiver/download"
	"github.com/alanbriolat/lecture-archiver/generic"
	"github.com/alanbriolat/lecture-archiver/util"
)

var (
	ErrMalformedMedia = errors.New("malformed media info, the platform may have changed (please report this!)")
)

type Slot int

const (
	Primary Slot = iota
	Secondary
	Tertiary
	Quaternary
)

// Slots lists the video track slots in the order they are downloaded.
var Slots = []Slot{Primary, Secondary, Tertiary, Quaternary}

func (s Slot) String() string {
	switch s {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	case Tertiary:
		return "tertiary"
	case Quaternary:
		return "quaternary"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// A Variant is one encoding of a track; width is the only reliable indication of quality.
type Variant struct {
	Width int    `json:"width"`
	URL   string `json:"s3Url"`
}

// Policy selects which qualities and tracks to download.
type Policy struct {
	IncludeSD    bool
	IncludeHD    bool
	IncludeAudio bool
}

var DefaultPolicy = Policy{IncludeHD: true}

// Files is the set of encoded files of one lesson.
type Files struct {
	Primary    []Variant `json:"primaryFiles"`
	Secondary  []Variant `json:"secondaryFiles"`
	Tertiary   []Variant `json:"tertiaryFiles"`
	Quaternary []Variant `json:"quaternaryFiles"`
	Audio      []Variant `json:"audioFiles"`
}

func (f *Files) Slot(s Slot) []Variant {
	switch s {
	case Primary:
		return f.Primary
	case Secondary:
		return f.Secondary
	case Tertiary:
		return f.Tertiary
	case Quaternary:
		return f.Quaternary
	default:
		return nil
	}
}

// Select applies the policy to the files, returning URLs in slot order followed by audio in payload order.
func (p Policy) Select(files *Files) ([]string, error) {
	urls := []string{}
	for _, slot := range Slots {
		variants := files.Slot(slot)
		switch len(variants) {
		case 0:
			continue
		case 2:
		default:
			return nil, fmt.Errorf("%w: %s track has %d files, expected 2", ErrMalformedMedia, slot, len(variants))
		}
		pair := []Variant{variants[0], variants[1]}
		sort.SliceStable(pair, func(i, j int) bool {
			return pair[i].Width < pair[j].Width
		})
		if p.IncludeSD {
			urls = append(urls, pair[0].URL)
		}
		if p.IncludeHD {
			urls = append(urls, pair[1].URL)
		}
	}
	if p.IncludeAudio {
		for _, audio := range files.Audio {
			urls = append(urls, audio.URL)
		}
	}
	for _, u := range urls {
		if u == "" {
			return nil, fmt.Errorf("%w: file without a URL", ErrMalformedMedia)
		}
	}
	return urls, nil
}

type Fetcher interface {
	URL(segments ...string) string
	GetJSON(ctx context.Context, rawURL string, v interface{}) error
}

type Resolver struct {
	fetcher Fetcher
	policy  Policy
	log     *zap.SugaredLogger
}

func NewResolver(fetcher Fetcher, policy Policy) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		policy:  policy,
		log:     zap.S().Named("media"),
	}
}

// Resolve returns the files of a lesson selected by the Resolver's policy. A lesson without media resolves to an
// empty list, not an error.
func (r *Resolver) Resolve(ctx context.Context, lessonID string) ([]download.Item, error) {
	var info mediaInfo
	if err := r.fetcher.GetJSON(ctx, r.fetcher.URL("lesson", lessonID, "medias"), &info); err != nil {
		return nil, fmt.Errorf("failed to get media info: %w", err)
	}
	files, err := info.files()
	if err != nil {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, err)
	}
	if files == nil {
		r.log.Debugf("lesson %s has no media", lessonID)
		return []download.Item{}, nil
	}
	urls, err := r.policy.Select(files)
	if err != nil {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, err)
	}
	return Items(urls)
}

// Items names each URL after the last element of its path. Names that repeat within the list get a numeric prefix,
// chosen so that no two items share a name.
func Items(urls []string) ([]download.Item, error) {
	items := make([]download.Item, 0, len(urls))
	used := generic.NewSet[string]()
	for i, u := range urls {
		name, err := util.FilenameFromURLString(u)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMedia, u, err)
		}
		unique := name
		for n := i + 1; used.Contains(unique); n++ {
			unique = fmt.Sprintf("%d_%s", n, name)
		}
		used.Add(unique)
		name = unique
		items = append(items, download.Item{URL: u, Filename: name})
	}
	return items, nil
}

type mediaInfo struct {
	Data *[]lessonMedia `json:"data"`
}

type lessonMedia struct {
	HasContent bool `json:"hasContent"`
	HasVideo   bool `json:"hasVideo"`
	Video      *struct {
		Media *struct {
			Media *struct {
				Current *Files `json:"current"`
			} `json:"media"`
		} `json:"media"`
	} `json:"video"`
}

// files returns nil (and no error) if the lesson has no media.
func (i mediaInfo) files() (*Files, error) {
	if i.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedMedia)
	}
	if len(*i.Data) == 0 {
		return nil, nil
	}
	m := (*i.Data)[0]
	if !m.HasContent || !m.HasVideo {
		return nil, nil
	}
	if m.Video == nil || m.Video.Media == nil || m.Video.Media.Media == nil || m.Video.Media.Media.Current == nil {
		return nil, fmt.Errorf("%w: missing video.media.media.current", ErrMalformedMedia)
	}
	return m.Video.Media.Media.Current, nil
}
