package report

import (
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/linkscan/internal/model"
)

// MiscellaneousGroup is the key of the extension group holding URLs whose
// path has no extension. Real extension keys always start with a dot, so
// this key cannot collide with one.
const MiscellaneousGroup = "Miscellaneous"

// Group is a named subset of a link set.
type Group struct {
	Key   string   `json:"key"`
	Links []string `json:"links"`
}

// GroupByDomain partitions links by authority (host and port).
// Links without an authority are skipped.
// Groups are sorted by key and their links are sorted.
func GroupByDomain(set model.LinkSet) []Group {
	return group(set, func(link string) (string, bool) {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			return "", false
		}
		return u.Host, true
	})
}

// GroupByExtension partitions links by the extension of the last path
// segment. Links without an extension go to MiscellaneousGroup, which is
// listed last. Every link lands in exactly one group.
func GroupByExtension(set model.LinkSet) []Group {
	return group(set, func(link string) (string, bool) {
		if ext := Extension(link); ext != "" {
			return ext, true
		}
		return MiscellaneousGroup, true
	})
}

// Extension returns the extension of the last path segment of link,
// including the leading dot. Leading dots of the segment do not start an
// extension, so "/.htaccess" has none.
func Extension(link string) string {
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}
	segment := path[strings.LastIndex(path, "/")+1:]
	segment = strings.TrimLeft(segment, ".")
	i := strings.LastIndex(segment, ".")
	if i < 0 {
		return ""
	}
	return segment[i:]
}

func group(set model.LinkSet, keyOf func(string) (string, bool)) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, link := range set.Members() {
		key, ok := keyOf(link)
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Links = append(groups[i].Links, link)
	}

	slices.SortFunc(groups, func(a, b Group) int {
		switch {
		case a.Key == b.Key:
			return 0
		case a.Key == MiscellaneousGroup:
			return 1
		case b.Key == MiscellaneousGroup:
			return -1
		default:
			return strings.Compare(a.Key, b.Key)
		}
	})
	return groups
}
