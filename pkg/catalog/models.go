package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemID identifies a catalog item. The upstream sends ids as JSON strings
// but numbers are accepted too; the id is always handled in string form.
type ItemID string

func (id *ItemID) UnmarshalJSON(data []byte) error {
	s, err := flexString(data)
	if err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	*id = ItemID(s)
	return nil
}

func (id ItemID) String() string { return string(id) }

// Item is one entry of a listing page
type Item struct {
	ID    ItemID `json:"id"`
	Title string `json:"name"`
	Size  string `json:"size,omitempty"`
}

// responseCode is the envelope status, a string "0" or a number 0
type responseCode string

func (c *responseCode) UnmarshalJSON(data []byte) error {
	s, err := flexString(data)
	if err != nil {
		return fmt.Errorf("response code: %w", err)
	}
	*c = responseCode(s)
	return nil
}

// envelope wraps every JSON response of the catalog API
type envelope struct {
	Code    *responseCode   `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) ok() bool {
	return e.Code != nil && *e.Code == "0"
}

// searchRequest is the body of a listing call
type searchRequest struct {
	Mode          string   `json:"mode"`
	Visible       int      `json:"visible"`
	Categories    []string `json:"categories"`
	Teams         []string `json:"teams"`
	SortDirection string   `json:"sortDirection"`
	SortField     string   `json:"sortField"`
	PageNumber    int      `json:"pageNumber"`
	PageSize      int      `json:"pageSize"`
}

// searchData is the data member of a listing response
type searchData struct {
	Data []Item `json:"data"`
}

// flexString decodes a JSON string or number into its string form
func flexString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", data)
	}
	return n.String(), nil
}
