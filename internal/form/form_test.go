package form

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubFieldError struct {
	msg    string
	fields map[string]string
}

func (e *stubFieldError) Error() string                  { return e.msg }
func (e *stubFieldError) FieldErrors() map[string]string { return e.fields }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func validPost() Post {
	return Post{
		CategoryID:      "1",
		SubcategoryID:   "2",
		Title:           "Hello world",
		MetaDescription: "A short description",
		MetaKeyword:     "news",
		SeoTitle:        "Hello",
		Content:         "# Hello",
		IsActive:        "active",
	}
}

func TestValidate_Login(t *testing.T) {
	errs := Validate(Login{Email: "not-an-email", Password: "123"})
	require.Equal(t, "Invalid email address", errs["email"])
	require.Equal(t, "Please enter password", errs["password"])

	require.Nil(t, Validate(Login{Email: "admin@example.com", Password: "password"}))
}

func TestValidate_Category(t *testing.T) {
	errs := Validate(Category{Name: "ab"})
	require.Equal(t, Errors{"name": "Please insert category"}, errs)
	require.Nil(t, Validate(Category{Name: "News"}))
}

func TestValidate_Subcategory(t *testing.T) {
	errs := Validate(Subcategory{IsActive: "2"})
	require.Equal(t, "Category is required", errs["category_id"])
	require.Equal(t, "Subcategory is required", errs["subcategory"])
	require.Equal(t, "Is active is required", errs["is_active"])

	require.Nil(t, Validate(Subcategory{CategoryID: "1", Subcategory: "Go", IsActive: "0"}))
}

func TestValidatePost_ImageRules(t *testing.T) {
	p := validPost()

	errs := ValidatePost(p, true)
	require.Equal(t, Errors{"image": "Image is required"}, errs)

	require.Nil(t, ValidatePost(p, false))

	p.Image = NewUpload("cover.txt", []byte("plain text, not an image"))
	errs = ValidatePost(p, false)
	require.Equal(t, "Only image files are allowed", errs["image"])

	p.Image = &Upload{Name: "big.png", Size: MaxImageSize + 1, ContentType: "image/png"}
	errs = ValidatePost(p, true)
	require.Equal(t, "File must be less than 3MB", errs["image"])

	p.Image = NewUpload("cover.png", pngBytes(t))
	require.Equal(t, "image/png", p.Image.ContentType)
	require.Nil(t, ValidatePost(p, true))
}

func TestValidatePost_FieldMessages(t *testing.T) {
	p := validPost()
	p.Title = "abc"
	p.MetaDescription = strings.Repeat("x", 301)
	p.IsActive = "draft"
	p.SubcategoryID = ""

	errs := ValidatePost(p, false)
	require.Equal(t, "Please insert post title", errs["title"])
	require.Equal(t, "Meta description length should not be longer than 300 characters.", errs["meta_description"])
	require.Equal(t, "Please select status", errs["is_active"])
	require.Equal(t, "Please select subcategory", errs["subcategory_id"])
	require.Equal(t, []string{"is_active", "meta_description", "subcategory_id", "title"}, errs.Fields())
}

func TestErrors_Merge(t *testing.T) {
	base := Errors{"title": "Please insert post title"}

	merged := base.Merge(&stubFieldError{msg: "The given data was invalid.", fields: map[string]string{"slug": "The slug has already been taken."}})
	require.Equal(t, "The slug has already been taken.", merged["slug"])
	require.Equal(t, "Please insert post title", merged["title"])
	require.Empty(t, merged.Banner())
	require.Len(t, base, 1)

	merged = Errors(nil).Merge(&stubFieldError{msg: "Server exploded"})
	require.Equal(t, "Server exploded", merged.Banner())
	require.Equal(t, "Server exploded", merged.Error())
}

func TestOpenUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0o600))

	up, err := OpenUpload(path)
	require.NoError(t, err)
	require.Equal(t, "cover.png", up.Name)
	require.Equal(t, "image/png", up.ContentType)
	require.Positive(t, up.Size)

	_, err = OpenUpload(filepath.Dir(path))
	require.Error(t, err)
}

func TestRenderContent(t *testing.T) {
	out := RenderContent("# Title\n\nSome **bold** text <script>alert(1)</script>")
	require.Contains(t, out, "<h1")
	require.Contains(t, out, "<strong>bold</strong>")
	require.NotContains(t, out, "<script>")

	out = RenderContent(`<p onclick="x()">hi</p>`)
	require.Equal(t, "<p>hi</p>", out)

	require.Empty(t, RenderContent("   "))
}

func TestSlugPreview(t *testing.T) {
	require.Equal(t, "hello-world", SlugPreview("Hello World"))
}
