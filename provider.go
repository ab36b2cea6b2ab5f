package lecture_archiver

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/lecture-archiver/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrUnknownProvider   = errors.New("unknown provider")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

var protocols = generic.NewSet("http", "https")

// A MatchFunc matches the path of a URL, e.g. "/section/xxxx/home", giving the Target it refers to.
type MatchFunc = func(path string) (Target, error)

// A Provider matches one shape of URL the platform uses.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
	// Example is shown to the user when nothing matches.
	Example string
}

func (p Provider) WithPriority(priority int16) Provider {
	p.Priority = priority
	return p
}

// A Match is the result of a Provider successfully matching a URL.
type Match struct {
	ProviderName string
	Origin       Origin
	Target       Target
}

// A ProviderRegistry is a collection of Provider instances which can be used to try to match URLs.
type ProviderRegistry struct {
	providers   []*Provider
	providerMap map[string]*Provider
}

// Add registers a Provider with the ProviderRegistry. Provider.Name and Provider.Match must be set, and
// Provider.Name must be unique within the ProviderRegistry.
func (r *ProviderRegistry) Add(p Provider) error {
	if r.providerMap == nil {
		r.providerMap = make(map[string]*Provider)
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if _, ok := r.providerMap[p.Name]; ok {
		return ErrDuplicateProvider
	}
	r.providerMap[p.Name] = &p
	r.providers = append(r.providers, r.providerMap[p.Name])
	r.sortByPriority()
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Examples returns an example URL path for each registered provider, in priority order.
func (r *ProviderRegistry) Examples() []string {
	var examples []string
	for _, p := range r.providers {
		if p.Example != "" {
			examples = append(examples, p.Example)
		}
	}
	return examples
}

// Match a URL against each Provider in priority order. If none match, the error wraps ErrInvalidURL and lists
// why each Provider rejected it.
func (r *ProviderRegistry) Match(s string) (*Match, error) {
	origin, path, err := splitURL(s)
	if err != nil {
		return nil, err
	}
	var result error
	for _, p := range r.providers {
		if target, err := p.Match(path); err == nil {
			return &Match{ProviderName: p.Name, Origin: origin, Target: target}, nil
		} else {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	if result == nil {
		return nil, fmt.Errorf("%w: no providers registered", ErrInvalidURL)
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidURL, result)
}

// MatchWith will attempt to match a URL against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, s string) (*Match, error) {
	p, ok := r.providerMap[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	origin, path, err := splitURL(s)
	if err != nil {
		return nil, err
	}
	target, err := p.Match(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return &Match{ProviderName: p.Name, Origin: origin, Target: target}, nil
}

func (r *ProviderRegistry) sortByPriority() {
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
}

// splitURL separates a URL into its origin (scheme://host) and path.
func splitURL(s string) (Origin, string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !protocols.Contains(parsedURL.Scheme) {
		return "", "", fmt.Errorf("%w: unknown URL scheme %q", ErrInvalidURL, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return Origin(parsedURL.Scheme + "://" + parsedURL.Host), parsedURL.Path, nil
}

// PathMatcher matches paths of the form /{prefix}/{id}/{suffix}, capturing id verbatim.
func PathMatcher(kind TargetKind, prefix string, suffix string) MatchFunc {
	return func(path string) (Target, error) {
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) != 3 || parts[0] != prefix || parts[2] != suffix {
			return Target{}, fmt.Errorf("path does not look like /%s/{id}/%s", prefix, suffix)
		}
		if parts[1] == "" {
			return Target{}, fmt.Errorf("missing %s id", kind)
		}
		return Target{Kind: kind, ID: parts[1]}, nil
	}
}

var SectionProvider = Provider{
	Name:    "section",
	Match:   PathMatcher(TargetSection, "section", "home"),
	Example: "/section/xxxxxx/home",
}

var LessonProvider = Provider{
	Name:    "lesson",
	Match:   PathMatcher(TargetLesson, "lesson", "classroom"),
	Example: "/lesson/xxxxxx/classroom",
}

var DefaultProviderRegistry ProviderRegistry

func init() {
	DefaultProviderRegistry.MustAdd(SectionProvider)
	DefaultProviderRegistry.MustAdd(LessonProvider)
}
