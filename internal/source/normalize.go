package source

import (
	"regexp"
	"strings"
	"time"

	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Source labels stored in listings.source.
const (
	SourceMarketplace = "marketplace"
	SourceGroup       = "facebook_group"
)

var (
	marketplaceIDPattern = regexp.MustCompile(`/item/(\d+)`)
	groupPostIDPattern   = regexp.MustCompile(`/permalink/(\d+)`)
	groupPathIDPattern   = regexp.MustCompile(`/groups/(\d+)`)
)

// Normalize turns raw export items into insertable listing rows. Items that
// carry a scraper error or yield no stable id are dropped. Group posts get a
// "group_post_" prefixed id so marketplace and group ids never collide, and
// their title and text are joined into the description since group posts
// have no separate description field.
func Normalize(items []Item, scrapedAt time.Time) []store.Listing {
	out := make([]store.Listing, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Error) != "" {
			continue
		}
		l, ok := normalizeOne(it, scrapedAt)
		if !ok {
			continue
		}
		if _, dup := seen[l.FBID]; dup {
			continue
		}
		seen[l.FBID] = struct{}{}
		out = append(out, l)
	}
	return out
}

func normalizeOne(it Item, scrapedAt time.Time) (store.Listing, bool) {
	link := strings.TrimSpace(it.URL)
	if link == "" {
		link = strings.TrimSpace(it.Link)
	}
	if link == "" {
		return store.Listing{}, false
	}

	l := store.Listing{
		Status:    store.StatusNew,
		ScrapedAt: &scrapedAt,
	}

	if m := marketplaceIDPattern.FindStringSubmatch(link); m != nil {
		l.FBID = m[1]
		l.Source = SourceMarketplace
		l.Title = trimmedOrNil(it.Title)
		l.Description = trimmedOrNil(it.Text)
		l.PriceRaw = trimmedOrNil(it.Price)
		l.Location = trimmedOrNil(it.Location)
	} else if m := groupPostIDPattern.FindStringSubmatch(link); m != nil {
		l.FBID = "group_post_" + m[1]
		l.Source = SourceGroup
		l.Title = trimmedOrNil(it.Title)
		l.Description = joinedOrNil(it.Title, it.Text)
		if gm := groupPathIDPattern.FindStringSubmatch(link); gm != nil {
			l.GroupID = &gm[1]
		} else if g := strings.TrimSpace(it.GroupID); g != "" {
			l.GroupID = &g
		}
	} else {
		return store.Listing{}, false
	}

	l.ListingURL = &link
	return l, true
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// joinedOrNil joins the post title and body the way the export presents
// them when read together.
func joinedOrNil(title, text string) *string {
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	switch {
	case title == "" && text == "":
		return nil
	case title == "":
		return &text
	case text == "":
		return &title
	}
	joined := title + "\n" + text
	return &joined
}
