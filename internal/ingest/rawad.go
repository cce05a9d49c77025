// Package ingest loads one scraping run's output files into the store: run
// metadata from summary.json and the deduplicated ad records from
// dedup_ads.jsonl. Field names vary across scraper versions, so lookups
// tolerate the known aliases.
package ingest

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// RawAd is one line of dedup_ads.jsonl, kept schemaless because the scraper
// emits camelCase or snake_case depending on its version.
type RawAd map[string]any

// ReadDedupAds streams the JSONL file at path. Blank and malformed lines are
// skipped, matching the tolerance of the scraper output.
func ReadDedupAds(path string) ([]RawAd, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var ads []RawAd
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ad RawAd
		if err := json.Unmarshal([]byte(line), &ad); err != nil {
			continue
		}
		ads = append(ads, ad)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return ads, nil
}

// lookup walks a dot path ("snapshot.body.text", numeric parts index arrays)
// and returns the first non-nil value among the given paths.
func (a RawAd) lookup(paths ...string) any {
	for _, p := range paths {
		var val any = map[string]any(a)
		ok := true
		for _, part := range strings.Split(p, ".") {
			switch v := val.(type) {
			case map[string]any:
				val, ok = v[part]
			case []any:
				idx, err := strconv.Atoi(part)
				if err != nil || idx < 0 || idx >= len(v) {
					ok = false
				} else {
					val = v[idx]
				}
			default:
				ok = false
			}
			if !ok || val == nil {
				ok = false
				break
			}
		}
		if ok {
			return val
		}
	}
	return nil
}

func (a RawAd) str(paths ...string) string {
	switch v := a.lookup(paths...).(type) {
	case string:
		return v
	case float64:
		// Large numeric ids must not render in scientific notation.
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (a RawAd) boolean(paths ...string) bool {
	v, _ := a.lookup(paths...).(bool)
	return v
}

func (a RawAd) integer(paths ...string) int {
	if v, ok := a.lookup(paths...).(float64); ok {
		return int(v)
	}
	return 0
}

// PageID returns the advertiser id, falling back to a name-derived sentinel
// when the scraper omitted it.
func (a RawAd) PageID() string {
	if id := a.str("pageId", "pageID", "page_id"); id != "" {
		return id
	}
	if name := a.PageName(); name != "" {
		return "unknown_" + name
	}
	return ""
}

func (a RawAd) PageName() string {
	return a.str("snapshot.page_name", "page_name", "pageName", "advertiser.name")
}

func (a RawAd) ProfileURI() string {
	return a.str("snapshot.page_profile_uri", "page_profile_uri")
}

func (a RawAd) LikeCount() int {
	return a.integer("snapshot.page_like_count", "pageLikeCount", "page_like_count")
}

// Categories returns the advertiser's page categories, if present.
func (a RawAd) Categories() []string {
	raw, _ := a.lookup("snapshot.page_categories", "pageCategories", "page_categories").([]any)
	var cats []string
	for _, c := range raw {
		if s, ok := c.(string); ok {
			cats = append(cats, s)
		}
	}
	return cats
}

func (a RawAd) AdArchiveID() string {
	return a.str("adArchiveId", "adArchiveID", "ad_archive_id")
}

func (a RawAd) IsActive() bool {
	return a.boolean("isActive", "is_active")
}

func (a RawAd) StartDate() string { return a.str("startDate", "start_date") }
func (a RawAd) EndDate() string   { return a.str("endDate", "end_date") }
func (a RawAd) LinkURL() string   { return a.str("snapshot.link_url") }
func (a RawAd) Title() string     { return a.str("snapshot.title") }
func (a RawAd) CTAType() string   { return a.str("snapshot.cta_type") }

func (a RawAd) BodyText() string {
	return a.str("snapshot.body.text", "snapshot.body")
}

func (a RawAd) QueryMatched() string {
	return a.str("_query_matched")
}

// Domain extracts the host of the ad's landing page.
func (a RawAd) Domain() string {
	link := a.LinkURL()
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}

// ContentHash fingerprints the parts of an ad that matter for change
// detection: body, title, link, and the first creative URL.
func (a RawAd) ContentHash() string {
	parts := []string{
		a.BodyText(),
		a.Title(),
		a.LinkURL(),
		a.str("snapshot.images.0.original_image_url", "snapshot.videos.0.video_preview_image_url"),
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ImageURLs returns up to maxImages creative URLs in fidelity order: static
// images first, then extra images, then video thumbnails, then carousel
// cards.
func (a RawAd) ImageURLs(maxImages int) []string {
	if maxImages <= 0 {
		maxImages = 1
	}
	var urls []string
	seen := make(map[string]struct{})
	add := func(u string) bool {
		if u == "" {
			return len(urls) >= maxImages
		}
		if _, dup := seen[u]; dup {
			return len(urls) >= maxImages
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
		return len(urls) >= maxImages
	}

	items := func(path string) []any {
		v, _ := a.lookup(path).([]any)
		return v
	}
	pick := func(item any, keys ...string) string {
		m, _ := item.(map[string]any)
		for _, k := range keys {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	for _, it := range items("snapshot.images") {
		if add(pick(it, "resized_image_url", "original_image_url")) {
			return urls
		}
	}
	for _, it := range items("snapshot.extra_images") {
		if add(pick(it, "resized_image_url", "original_image_url")) {
			return urls
		}
	}
	for _, v := range items("snapshot.videos") {
		if add(pick(v, "video_preview_image_url")) {
			return urls
		}
	}
	for _, v := range items("snapshot.extra_videos") {
		if add(pick(v, "video_preview_image_url")) {
			return urls
		}
	}
	for _, c := range items("snapshot.cards") {
		if add(pick(c, "resized_image_url", "original_image_url", "video_preview_image_url")) {
			return urls
		}
	}
	return urls
}
