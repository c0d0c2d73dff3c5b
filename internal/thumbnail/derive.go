// Package thumbnail turns product links into preview image URLs.
package thumbnail

import (
	"net/url"
	"regexp"
	"strings"
)

const faviconService = "https://www.google.com/s2/favicons?sz=128&domain="

type retailer struct {
	host  *regexp.Regexp
	path  *regexp.Regexp
	image func(m []string) string
}

var retailers = []retailer{
	{
		// amazon.com/dp/B00X4WHP5E, amazon.de/gp/product/B00X4WHP5E, amzn.eu/d/B00X4WHP5E
		host:  regexp.MustCompile(`(^|\.)(amazon\.[a-z.]+|amzn\.[a-z]+)$`),
		path:  regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d|d)/([A-Z0-9]{10})(?:[/?]|$)`),
		image: func(m []string) string { return "https://images-na.ssl-images-amazon.com/images/P/" + m[1] + ".01.LZZZZZZZ.jpg" },
	},
	{
		// ebay.com/itm/123456789012
		host:  regexp.MustCompile(`(^|\.)ebay\.[a-z.]+$`),
		path:  regexp.MustCompile(`/itm/(?:[^/]+/)?(\d{9,15})`),
		image: func(m []string) string { return "https://i.ebayimg.com/images/i/" + m[1] + "-0-1/s-l500.jpg" },
	},
	{
		// etsy.com/listing/1234567/name
		host:  regexp.MustCompile(`(^|\.)etsy\.com$`),
		path:  regexp.MustCompile(`/listing/(\d+)`),
		image: func(m []string) string { return "https://www.etsy.com/listing/" + m[1] + "/image" },
	},
	{
		// walmart.com/ip/name/123456
		host:  regexp.MustCompile(`(^|\.)walmart\.com$`),
		path:  regexp.MustCompile(`/ip/(?:[^/]+/)?(\d+)`),
		image: func(m []string) string { return "https://i5.walmartimages.com/asr/" + m[1] + ".jpeg" },
	},
}

var imageExt = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|avif)$`)

// Derive returns a preview image URL for a product link. Known retailer
// shapes map to their image CDN, direct image links are returned as-is, and
// anything else falls back to the site's favicon. Returns nil when raw cannot
// be parsed into a URL with a host.
func Derive(raw string) *string {
	u := parse(raw)
	if u == nil {
		return nil
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, r := range retailers {
		if !r.host.MatchString(host) {
			continue
		}
		if m := r.path.FindStringSubmatch(u.Path); m != nil {
			s := r.image(m)
			return &s
		}
	}

	if imageExt.MatchString(u.Path) {
		s := u.String()
		return &s
	}

	return Favicon(u.Hostname())
}

// Favicon returns the favicon service URL for host, or nil for an empty
// host.
func Favicon(host string) *string {
	if host == "" {
		return nil
	}
	s := faviconService + url.QueryEscape(host)
	return &s
}

func parse(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}
