package packp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hearthwood/gitcore/object"
)

// Filter is a partial-clone filter-spec, sent as the "filter" line of an
// upload-request to ask the server to omit objects from the packfile.
type Filter string

// FilterBlobNone excludes all blobs.
func FilterBlobNone() Filter {
	return "blob:none"
}

// FilterBlobLimit excludes blobs larger than limit bytes.
func FilterBlobLimit(limit uint64) Filter {
	return Filter(fmt.Sprintf("blob:limit=%d", limit))
}

// FilterTreeDepth excludes trees and blobs beyond depth levels from the
// root tree of each commit.
func FilterTreeDepth(depth uint64) Filter {
	return Filter(fmt.Sprintf("tree:%d", depth))
}

// FilterObjectType excludes every object whose type is not t.
func FilterObjectType(t object.Type) Filter {
	return Filter(fmt.Sprintf("object:type=%s", t))
}

// FilterCombine joins multiple filters into a single combine: filter-spec,
// each component percent-encoded and separated by '+'.
func FilterCombine(filters ...Filter) Filter {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = url.QueryEscape(string(f))
	}
	return Filter("combine:" + strings.Join(parts, "+"))
}
