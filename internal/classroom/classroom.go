// Package classroom resolves a lesson by scraping stream manifest URLs out of its rendered classroom page. It is
// the fallback for courses where the platform disables media downloads.
package classroom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/alanbriolat/lecture-archiver/download"
	"github.com/alanbriolat/lecture-archiver/generic"
	"github.com/alanbriolat/lecture-archiver/internal/api"
)

var (
	ErrNoStreamsFound = errors.New("no video streams found")
)

// Manifest URIs appear in the page as JSON embedded in a string, so quotes and slashes are backslash-escaped. The
// only escape allowed inside a URI is `\/`, which keeps a match from running past the end of its string.
var manifestPattern = regexp.MustCompile(`\\"uri\\":\\"(https:\\/\\/(?:[^"\\]|\\/)*?\\/s[0-9]+_(?:a|v|av)\.m3u8)\?`)

// Only the combined audio+video manifests are kept.
const combinedSuffix = "_av.m3u8"

// ItemName is the filename (without extension) of the nth (1-based) stream of a lesson.
func ItemName(n int) string {
	return fmt.Sprintf("hd%d", n)
}

// ExtractManifests returns the combined stream manifest URLs found in page, deduplicated and sorted by filename.
func ExtractManifests(page []byte) []string {
	var matches []string
	for _, m := range manifestPattern.FindAllSubmatch(page, -1) {
		matches = append(matches, string(m[1]))
	}
	urls := []string{}
	for _, u := range generic.Unique(matches) {
		if !strings.HasSuffix(u, combinedSuffix) {
			continue
		}
		urls = append(urls, strings.ReplaceAll(u, `\/`, `/`))
	}
	sort.SliceStable(urls, func(i, j int) bool {
		a, b := path.Base(urls[i]), path.Base(urls[j])
		if a != b {
			return a < b
		}
		return urls[i] < urls[j]
	})
	return urls
}

// looksLikeLogin reports whether page is a login form rather than a classroom.
func looksLikeLogin(page []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false
	}
	return doc.Find(`input[type="password"], form[action*="login"]`).Length() > 0
}

type Fetcher interface {
	URL(segments ...string) string
	GetPage(ctx context.Context, rawURL string) ([]byte, error)
}

type Extractor struct {
	fetcher Fetcher
	log     *zap.SugaredLogger
}

func NewExtractor(fetcher Fetcher) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		log:     zap.S().Named("classroom"),
	}
}

// Resolve returns the lesson's streams named hd1, hd2, ... in filename order.
func (e *Extractor) Resolve(ctx context.Context, lessonID string) ([]download.Item, error) {
	page, err := e.fetcher.GetPage(ctx, e.fetcher.URL("lesson", lessonID, "classroom"))
	if err != nil {
		return nil, fmt.Errorf("failed to get classroom page: %w", err)
	}
	urls := ExtractManifests(page)
	if len(urls) == 0 {
		if looksLikeLogin(page) {
			return nil, fmt.Errorf("lesson %s: %w: %w", lessonID, ErrNoStreamsFound, api.ErrAuth)
		}
		return nil, fmt.Errorf("lesson %s: %w", lessonID, ErrNoStreamsFound)
	}
	e.log.Debugf("lesson %s: found %d streams", lessonID, len(urls))
	items := make([]download.Item, len(urls))
	for i, u := range urls {
		items[i] = download.Item{URL: u, Filename: ItemName(i + 1)}
	}
	return items, nil
}
