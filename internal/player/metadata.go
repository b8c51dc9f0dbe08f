package player

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata is a metadata event reported by a driver while a stream plays.
// It is one of MetadataIcyInfo, MetadataIcyHeaders or MetadataOther.
type Metadata interface {
	isMetadata()
}

// MetadataIcyInfo carries in-band ICY stream info.
type MetadataIcyInfo struct {
	Title string
	URL   string
}

// MetadataIcyHeaders carries ICY response headers of a radio stream.
type MetadataIcyHeaders struct {
	Name        string
	Genre       string
	BitrateKbps int
}

// MetadataOther carries any other tag.
type MetadataOther struct {
	Key   string
	Value string
}

func (MetadataIcyInfo) isMetadata()    {}
func (MetadataIcyHeaders) isMetadata() {}
func (MetadataOther) isMetadata()      {}

// Describe renders a metadata event for logs.
func Describe(m Metadata) string {
	switch v := m.(type) {
	case MetadataIcyInfo:
		if v.URL != "" {
			return fmt.Sprintf("icy title=%q url=%s", v.Title, v.URL)
		}
		return fmt.Sprintf("icy title=%q", v.Title)
	case MetadataIcyHeaders:
		return fmt.Sprintf("icy station=%q genre=%q bitrate=%dkbps", v.Name, v.Genre, v.BitrateKbps)
	case MetadataOther:
		return fmt.Sprintf("%s=%q", v.Key, v.Value)
	case nil:
		return "none"
	default:
		panic(fmt.Sprintf("player: unhandled metadata %T", m))
	}
}

// MetadataFromTags maps stream tags to metadata events.
func MetadataFromTags(tags map[string]string) []Metadata {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []Metadata
	headers := MetadataIcyHeaders{}
	haveHeaders := false
	for _, key := range keys {
		value := tags[key]
		switch strings.ToLower(key) {
		case "title", "streamtitle":
			out = append(out, MetadataIcyInfo{Title: value, URL: streamURL(tags)})
		case "streamurl":
			// reported with the title
		case "icy-name", "organization":
			headers.Name = value
			haveHeaders = true
		case "icy-genre", "genre":
			headers.Genre = value
			haveHeaders = true
		case "icy-br", "bitrate":
			if kbps, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				headers.BitrateKbps = kbps
				haveHeaders = true
			}
		default:
			out = append(out, MetadataOther{Key: key, Value: value})
		}
	}
	if haveHeaders {
		out = append([]Metadata{headers}, out...)
	}
	return out
}

func streamURL(tags map[string]string) string {
	for key, value := range tags {
		if strings.EqualFold(key, "streamurl") {
			return value
		}
	}
	return ""
}
