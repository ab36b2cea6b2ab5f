// Package cookies reads browser cookies exported in the Netscape cookie file format.
package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	ErrNotCookieFile = errors.New("not a recognized cookie file")
	ErrNoCookies     = errors.New("no cookies found")
)

var headers = []string{"# Netscape HTTP Cookie File", "# HTTP Cookie File"}

const httpOnlyPrefix = "#HttpOnly_"

// A Cookie is one row of a cookie file.
type Cookie struct {
	Domain string
	Path   string
	Secure bool
	Name   string
	Value  string
}

// A Jar is every cookie read from a cookie file, in file order.
type Jar struct {
	Cookies []Cookie
}

func ReadFile(path string) (*Jar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	jar, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jar, nil
}

func Parse(r io.Reader) (*Jar, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	jar := &Jar{}
	lineNo := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNo++
		if lineNo == 1 {
			if !isHeader(line) {
				return nil, ErrNotCookieFile
			}
			continue
		}
		line = strings.TrimPrefix(line, httpOnlyPrefix)
		if line == "" || line[0] == '#' {
			continue
		}
		items := strings.Split(line, "\t")
		if len(items) != 7 {
			return nil, fmt.Errorf("line %d: invalid number of columns (expected 7, got %d)", lineNo, len(items))
		}
		jar.Cookies = append(jar.Cookies, Cookie{
			Domain: items[0],
			Path:   items[2],
			Secure: strings.EqualFold(items[3], "TRUE"),
			Name:   items[5],
			Value:  items[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if lineNo == 0 {
		return nil, fmt.Errorf("%w: cookie file must not be empty", ErrNotCookieFile)
	}
	return jar, nil
}

func isHeader(line string) bool {
	for _, h := range headers {
		if line == h {
			return true
		}
	}
	return false
}

// ForOrigin returns the name -> value mapping of cookies that belong to the origin's host. A cookie belongs to the
// host if its domain is the host itself or shares the host's registrable domain; cookies set on exactly the host
// take precedence over same-named cookies from sibling domains.
func (j *Jar) ForOrigin(origin string) (map[string]string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	host := normalizeDomain(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}
	registrable := registrableDomain(host)

	exact := make(map[string]string)
	related := make(map[string]string)
	for _, c := range j.Cookies {
		domain := normalizeDomain(c.Domain)
		switch {
		case domain == host:
			exact[c.Name] = c.Value
		case registrableDomain(domain) == registrable:
			related[c.Name] = c.Value
		}
	}
	for name, value := range exact {
		related[name] = value
	}
	if len(related) == 0 {
		return nil, fmt.Errorf("%w for %s (export cookies while logged in)", ErrNoCookies, host)
	}
	return related, nil
}

// HTTPCookies converts a name -> value mapping into cookies ready for http.Request.AddCookie.
func HTTPCookies(values map[string]string) []*http.Cookie {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	res := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		res = append(res, &http.Cookie{Name: name, Value: values[name]})
	}
	return res
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return strings.TrimPrefix(domain, "www.")
}

func registrableDomain(domain string) string {
	if r, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return r
	}
	return domain
}
