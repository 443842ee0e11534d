package resource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID_JSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "tmp-x", "c": null}`), &v))
	require.Equal(t, ID("12"), v.A)
	require.True(t, v.B.IsTemporary())
	require.Empty(t, v.C)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"a": 12, "b": "tmp-x", "c": ""}`, string(data))
}

func TestFlag_JSON(t *testing.T) {
	for raw, want := range map[string]Flag{
		`1`: true, `"1"`: true, `true`: true, `"active"`: true,
		`0`: false, `"0"`: false, `false`: false, `null`: false, `"inactive"`: false,
	} {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(raw), &f), raw)
		require.Equal(t, want, f, raw)
	}

	var f Flag
	require.Error(t, json.Unmarshal([]byte(`"maybe"`), &f))

	data, err := json.Marshal(struct {
		On  Flag `json:"on"`
		Off Flag `json:"off"`
	}{true, false})
	require.NoError(t, err)
	require.JSONEq(t, `{"on": 1, "off": 0}`, string(data))

	parsed, err := ParseFlag("1")
	require.NoError(t, err)
	require.Equal(t, "1", parsed.String())
}

func TestDecodePage(t *testing.T) {
	page, err := decodePage[Category]([]byte(`{"data": [{"id": 1, "name": "a"}], "total": 7}`), "categories")
	require.NoError(t, err)
	require.Equal(t, 7, page.TotalCount)
	require.Equal(t, ID("1"), page.Items[0].ID)

	page, err = decodePage[Category]([]byte(`{"categories": {"data": [], "total": "3", "last_page": 1}}`), "categories")
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalCount)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)

	page, err = decodePage[Category]([]byte(`{"data": null}`), "categories")
	require.NoError(t, err)
	require.Equal(t, 0, page.TotalCount)
	require.NotNil(t, page.Items)

	_, err = decodePage[Category]([]byte(`{"rows": []}`), "categories")
	require.Error(t, err)
}

func TestDecodeItemAndResult(t *testing.T) {
	for _, raw := range []string{
		`{"id": 3, "name": "bare"}`,
		`{"data": {"id": 3, "name": "bare"}}`,
		`{"category": {"id": 3, "name": "bare"}}`,
	} {
		item, err := decodeItem[Category]([]byte(raw), "category")
		require.NoError(t, err, raw)
		require.Equal(t, "bare", item.Name, raw)
	}

	res, err := decodeResult[Category]([]byte(`{"message": "ok", "category": {"id": 9}}`), "category")
	require.NoError(t, err)
	require.Equal(t, "ok", res.Message)
	require.Equal(t, ID("9"), res.Item.ID)

	res, err = decodeResult[Category]([]byte(`[1, 2]`), "category")
	require.NoError(t, err)
	require.Nil(t, res.Item)
}

func TestDecodeOptions(t *testing.T) {
	opts, err := decodeOptions([]byte(`[{"id": 1, "subcategory": "Go", "category_id": 4}]`))
	require.NoError(t, err)
	require.Equal(t, []Option{{Value: "1", Label: "Go", Parent: "4"}}, opts)

	opts, err = decodeOptions([]byte(`{"data": [{"id": "2", "title": "Post"}]}`))
	require.NoError(t, err)
	require.Equal(t, "Post", opts[0].Label)

	_, err = decodeOptions([]byte(`"nope"`))
	require.Error(t, err)
}

func TestRecord(t *testing.T) {
	r := Record{"id": float64(5), "name": "x"}
	require.Equal(t, ID("5"), r.EntityID())

	moved := r.WithID("tmp-1")
	require.Equal(t, ID("tmp-1"), moved.EntityID())
	require.Equal(t, ID("5"), r.EntityID())
}
