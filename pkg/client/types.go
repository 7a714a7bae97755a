package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Item is one entry of the storefront search results. The known fields are
// decoded for validation and appid extraction; the raw object is kept so the
// serialized output mirrors the upstream schema verbatim, including fields
// this tool has no interpretation for.
type Item struct {
	Name string
	Logo string

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and retains the raw object.
func (it *Item) UnmarshalJSON(data []byte) error {
	var known struct {
		Name string `json:"name"`
		Logo string `json:"logo"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	it.Name = known.Name
	it.Logo = known.Logo
	it.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the upstream object unchanged.
func (it Item) MarshalJSON() ([]byte, error) {
	if len(it.raw) > 0 {
		return it.raw, nil
	}
	return json.Marshal(struct {
		Name string `json:"name"`
		Logo string `json:"logo"`
	}{it.Name, it.Logo})
}

// searchResponse mirrors the storefront search payload envelope.
type searchResponse struct {
	Desc  string `json:"desc"`
	Items []Item `json:"items"`
	Total int    `json:"total_count"`
	Start int    `json:"start"`
}

// ExtractAppID derives the numeric appid from an item's logo URL. The CDN
// path contains ".../apps/<appid>/...", which is the only place the search
// payload exposes the id.
func ExtractAppID(logoURL string) (int64, error) {
	u, err := url.Parse(logoURL)
	if err != nil {
		return 0, fmt.Errorf("parse logo URL %q: %w", logoURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "apps" || i+1 >= len(segments) {
			continue
		}
		appID, err := strconv.ParseInt(segments[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse appid from logo URL %q: %w", logoURL, err)
		}
		return appID, nil
	}

	return 0, fmt.Errorf("no appid segment in logo URL %q", logoURL)
}
