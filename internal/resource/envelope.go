package resource

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"

	"github.com/Laisky/laisky-cms-admin/internal/query"
)

// count decodes a total sent as number or string.
type count int

func (c *count) UnmarshalJSON(data []byte) error {
	v := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if v == "" || v == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return errors.Wrapf(err, "decode total %s", data)
	}
	*c = count(n)
	return nil
}

type pageBody struct {
	Data  json.RawMessage `json:"data"`
	Total *count          `json:"total"`
}

// decodePage normalises `{data, total}` and `{<plural>: {data, total, ...}}`.
func decodePage[T any](raw []byte, plural string) (query.Page[T], error) {
	var page query.Page[T]

	var flat pageBody
	if err := json.Unmarshal(raw, &flat); err != nil {
		return page, errors.Wrap(err, "decode list response")
	}

	body := flat
	if len(flat.Data) == 0 {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return page, errors.Wrap(err, "decode list envelope")
		}
		inner, ok := nested[plural]
		if !ok {
			return page, errors.Errorf("list response has neither data nor %q", plural)
		}
		if err := json.Unmarshal(inner, &body); err != nil {
			return page, errors.Wrapf(err, "decode %q envelope", plural)
		}
	}

	if len(body.Data) > 0 && !bytes.Equal(bytes.TrimSpace(body.Data), []byte("null")) {
		if err := json.Unmarshal(body.Data, &page.Items); err != nil {
			return page, errors.Wrap(err, "decode list items")
		}
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	if body.Total != nil {
		page.TotalCount = int(*body.Total)
	}

	return page, nil
}

// decodeItem accepts a bare object, `{data: obj}` or `{<name>: obj}`.
func decodeItem[T any](raw []byte, name string) (*T, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode item response")
	}

	body := raw
	for _, k := range []string{"data", name} {
		if inner, ok := envelope[k]; ok && isObject(inner) {
			body = inner
			break
		}
	}

	item := new(T)
	if err := json.Unmarshal(body, item); err != nil {
		return nil, errors.Wrap(err, "decode item")
	}
	return item, nil
}

// decodeResult reads `{message, <name>|data: obj}`.
func decodeResult[T any](raw []byte, name string) (Result[T], error) {
	var res Result[T]
	if len(bytes.TrimSpace(raw)) == 0 {
		return res, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// arrays and scalars carry no message
		return res, nil // nolint: nilerr
	}
	if msg, ok := envelope["message"]; ok {
		_ = json.Unmarshal(msg, &res.Message)
	}
	for _, k := range []string{name, "data"} {
		if inner, ok := envelope[k]; ok && isObject(inner) {
			item := new(T)
			if err := json.Unmarshal(inner, item); err != nil {
				return res, errors.Wrapf(err, "decode %q", k)
			}
			res.Item = item
			break
		}
	}

	return res, nil
}

// decodeOptions reads the `non-sort` list: a bare array or `{data: [...]}`.
func decodeOptions(raw []byte) ([]Option, error) {
	items := []map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Data []map[string]json.RawMessage `json:"data"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, errors.Wrap(err, "decode options")
		}
		items = wrapped.Data
	}

	out := make([]Option, 0, len(items))
	for _, it := range items {
		var opt Option
		if v, ok := it["id"]; ok {
			if err := json.Unmarshal(v, &opt.Value); err != nil {
				return nil, errors.Wrap(err, "decode option id")
			}
		}
		for _, k := range []string{"name", "subcategory", "title", "label"} {
			if v, ok := it[k]; ok {
				if err := json.Unmarshal(v, &opt.Label); err == nil && opt.Label != "" {
					break
				}
			}
		}
		if v, ok := it["category_id"]; ok {
			_ = json.Unmarshal(v, &opt.Parent)
		}
		out = append(out, opt)
	}

	return out, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
