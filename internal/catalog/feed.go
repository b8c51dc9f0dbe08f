package catalog

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const podcastsFolderID = "[podcasts]"

// FeedImporter adds RSS/Atom feeds to a description before the catalog is built.
type FeedImporter struct {
	HTTP *http.Client
	Log  *zap.Logger
}

// Import fetches each feed and appends one folder per feed, with its episodes
// as leaves, under a "Podcasts" folder below the root. Feeds that cannot be
// fetched are skipped.
func (f FeedImporter) Import(ctx context.Context, desc Description, urls []string) Description {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	podcasts := NodeSpec{ID: podcastsFolderID, Title: "Podcasts"}
	var specs []NodeSpec
	for _, feedURL := range urls {
		feedURL = strings.TrimSpace(feedURL)
		if feedURL == "" {
			continue
		}
		feed, err := fetchFeed(ctx, client, feedURL)
		if err != nil {
			log.Warn("feed import failed", zap.String("url", feedURL), zap.Error(err))
			continue
		}
		folder, episodes := feedNodes(feedURL, feed)
		if len(episodes) == 0 {
			log.Warn("feed has no playable episodes", zap.String("url", feedURL))
			continue
		}
		podcasts.Children = append(podcasts.Children, folder.ID)
		specs = append(specs, folder)
		specs = append(specs, episodes...)
		log.Debug("feed imported", zap.String("url", feedURL), zap.Int("episodes", len(episodes)))
	}
	if len(specs) == 0 {
		return desc
	}

	out := desc
	out.Nodes = append([]NodeSpec(nil), desc.Nodes...)
	rootID := strings.TrimSpace(desc.Root)
	if rootID == "" {
		rootID = DefaultRootID
		out.Root = rootID
	}
	attached := false
	for i := range out.Nodes {
		if out.Nodes[i].ID == rootID {
			out.Nodes[i].Children = append(append([]string(nil), out.Nodes[i].Children...), podcastsFolderID)
			attached = true
			break
		}
	}
	if !attached {
		title := desc.Title
		if title == "" {
			title = "Root"
		}
		out.Nodes = append(out.Nodes, NodeSpec{ID: rootID, Title: title, Children: []string{podcastsFolderID}})
	}
	out.Nodes = append(out.Nodes, podcasts)
	out.Nodes = append(out.Nodes, specs...)
	return out
}

func fetchFeed(ctx context.Context, client *http.Client, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "media_session/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed fetch failed: %s", resp.Status)
	}
	return gofeed.NewParser().Parse(resp.Body)
}

func feedNodes(feedURL string, feed *gofeed.Feed) (NodeSpec, []NodeSpec) {
	folder := NodeSpec{ID: hashID("feed", feedURL), Title: strings.TrimSpace(feed.Title)}
	if folder.Title == "" {
		folder.Title = feedURL
	}
	author := ""
	if feed.Author != nil {
		author = feed.Author.Name
	}
	image := ""
	if feed.Image != nil {
		image = feed.Image.URL
	}

	episodes := make([]NodeSpec, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		audioURL, audioType := pickEnclosure(item)
		if audioURL == "" {
			continue
		}
		key := strings.TrimSpace(item.GUID)
		if key == "" {
			key = audioURL
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = key
		}
		artwork := image
		if item.Image != nil && item.Image.URL != "" {
			artwork = item.Image.URL
		}
		id := hashID("episode", folder.ID+":"+key)
		folder.Children = append(folder.Children, id)
		episodes = append(episodes, NodeSpec{
			ID:    id,
			Title: title,
			Media: &Media{
				URL:        audioURL,
				Mime:       audioType,
				Artist:     author,
				Album:      folder.Title,
				ArtworkURL: artwork,
			},
		})
	}
	return folder, episodes
}

func pickEnclosure(item *gofeed.Item) (string, string) {
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if enc.URL != "" {
			return enc.URL, enc.Type
		}
	}
	return "", ""
}

func hashID(prefix string, input string) string {
	sum := sha1.Sum([]byte(input))
	return fmt.Sprintf("%s_%x", prefix, sum[:])
}
