package catalog

import (
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the catalog API host
	DefaultBaseURL = "https://api2.m-team.cc"

	// SearchEndpoint lists catalog items page by page
	SearchEndpoint = "/api/torrent/search"

	// TokenEndpoint issues a short-lived download URL for one item
	TokenEndpoint = "/api/torrent/genDlToken"
)

// SearchURL returns the listing endpoint for base
func SearchURL(base string) string {
	return strings.TrimRight(base, "/") + SearchEndpoint
}

// TokenURL returns the download-token endpoint for an item
func TokenURL(base, id string) string {
	params := url.Values{}
	params.Set("id", id)
	return strings.TrimRight(base, "/") + TokenEndpoint + "?" + params.Encode()
}
