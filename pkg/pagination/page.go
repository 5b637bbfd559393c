package pagination

import (
	"encoding/json"
	"fmt"
)

// Page is one decoded search response.
type Page struct {
	Items []json.RawMessage
	Total int
}

type paging struct {
	Total *int `json:"total"`
}

// DecodePage reads the records under itemsKey and the total count, which
// older servers send as "total" and newer ones as "paging.total".
// A missing items key decodes as an empty page.
func DecodePage(body []byte, itemsKey string) (Page, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return Page{}, err
	}

	items, err := itemsOf(fields, itemsKey)
	if err != nil {
		return Page{}, err
	}

	total, err := totalOf(fields)
	if err != nil {
		return Page{}, err
	}

	return Page{Items: items, Total: total}, nil
}

// DecodeItems reads the records under itemsKey from a response without a
// total count.
func DecodeItems(body []byte, itemsKey string) ([]json.RawMessage, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	return itemsOf(fields, itemsKey)
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode response: not a JSON object")
	}
	return fields, nil
}

func itemsOf(fields map[string]json.RawMessage, key string) ([]json.RawMessage, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return items, nil
}

func totalOf(fields map[string]json.RawMessage) (int, error) {
	if raw, ok := fields["total"]; ok {
		var total int
		if err := json.Unmarshal(raw, &total); err != nil {
			return 0, fmt.Errorf("decode total: %w", err)
		}
		return total, nil
	}

	if raw, ok := fields["paging"]; ok {
		var p paging
		if err := json.Unmarshal(raw, &p); err != nil {
			return 0, fmt.Errorf("decode paging: %w", err)
		}
		if p.Total != nil {
			return *p.Total, nil
		}
	}

	return 0, ErrMissingTotal
}
