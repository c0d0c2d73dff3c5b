package thumbnail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const (
	cacheTTL      = 6 * time.Hour
	maxPageBytes  = 1 << 20
	lookupTimeout = 5 * time.Second
)

type cached struct {
	image   string
	fetched time.Time
}

// Resolver looks up og:image tags on product pages, falling back to Derive.
type Resolver struct {
	client  *http.Client
	enabled bool
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]cached
}

// NewResolver creates a resolver. A disabled resolver only uses Derive.
func NewResolver(enabled bool) *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: 10 * time.Second},
		enabled: enabled,
		timeout: lookupTimeout,
		cache:   make(map[string]cached),
	}
}

// Resolve returns the best preview image for a product link. Page lookups
// are bounded by the resolver timeout and failures fall back to Derive.
func (r *Resolver) Resolve(ctx context.Context, raw string) *string {
	derived := Derive(raw)
	if derived == nil || !r.enabled {
		return derived
	}
	u := parse(raw)

	key := u.String()
	r.mu.RLock()
	c, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Since(c.fetched) < cacheTTL {
		if c.image == "" {
			return derived
		}
		return &c.image
	}

	image, err := r.lookup(ctx, u)
	r.mu.Lock()
	if err == nil {
		r.cache[key] = cached{image: image, fetched: time.Now()}
	}
	r.mu.Unlock()

	if err != nil || image == "" {
		return derived
	}
	return &image
}

func (r *Resolver) lookup(ctx context.Context, u *url.URL) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	image := findOGImage(io.LimitReader(resp.Body, maxPageBytes))
	if image == "" {
		return "", nil
	}
	ref, err := url.Parse(image)
	if err != nil {
		return "", nil
	}
	return u.ResolveReference(ref).String(), nil
}

// findOGImage scans the document head for og:image or twitter:image.
func findOGImage(body io.Reader) string {
	z := html.NewTokenizer(body)
	var twitter string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return twitter
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				return twitter
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var property, content string
			for {
				key, val, more := z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "property", "name":
					property = strings.ToLower(string(val))
				case "content":
					content = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
			switch property {
			case "og:image", "og:image:url", "og:image:secure_url":
				if content != "" {
					return content
				}
			case "twitter:image":
				if twitter == "" {
					twitter = content
				}
			}
		}
	}
}
