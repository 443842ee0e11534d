package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/form"
)

// Posts adds multipart create/update to the post resource.
type Posts struct {
	*Resource[Post]
}

// NewPosts creates the post resource.
func NewPosts(deps Deps) *Posts {
	return &Posts{Resource: New[Post](Spec{
		Name:       "post",
		Plural:     "posts",
		StaleTime:  LongStaleTime,
		FilterKeys: []string{"category_id", "subcategory_id", "is_active"},
	}, deps)}
}

func postFields(f form.Post) url.Values {
	return url.Values{
		"category_id":      {f.CategoryID},
		"subcategory_id":   {f.SubcategoryID},
		"title":            {f.Title},
		"meta_description": {f.MetaDescription},
		"meta_keyword":     {f.MetaKeyword},
		"seo_title":        {f.SeoTitle},
		"content":          {f.Content},
		"is_active":        {f.IsActive},
	}
}

func imagePart(up *form.Upload) []api.FilePart {
	if up == nil {
		return nil
	}
	return []api.FilePart{{
		Field:       "image",
		FileName:    up.Name,
		ContentType: up.ContentType,
		Reader:      up.Reader,
	}}
}

func (p *Posts) sendMultipart(ctx context.Context, target string, fields url.Values, files []api.FilePart) (Result[Post], error) {
	var raw json.RawMessage
	if err := p.api.PostMultipart(ctx, target, fields, files, &raw); err != nil {
		return Result[Post]{}, err
	}
	return decodeResult[Post](raw, p.spec.Name)
}

// CreatePost validates f and uploads it. An invalid form returns
// form.Errors without sending anything.
func (p *Posts) CreatePost(ctx context.Context, f form.Post) (Result[Post], error) {
	if errs := form.ValidatePost(f, true); errs != nil {
		return Result[Post]{}, errs
	}

	defer p.settle()
	return p.sendMultipart(ctx, p.path(), postFields(f), imagePart(f.Image))
}

// KeepsImage reports whether an edit keeps the stored image: no new file
// was chosen, or the chosen file has the stored file's name.
func KeepsImage(storedImage string, up *form.Upload) bool {
	if up == nil {
		return true
	}
	if storedImage == "" {
		return false
	}
	return path.Base(up.Name) == path.Base(storedImage)
}

// UpdatePost sends an edit as POST with _method=PATCH. When the stored
// image is kept the file part is omitted and old_image names it instead.
func (p *Posts) UpdatePost(ctx context.Context, id ID, storedImage string, f form.Post) (Result[Post], error) {
	if errs := form.ValidatePost(f, false); errs != nil {
		return Result[Post]{}, errs
	}

	fields := postFields(f)
	fields.Set("_method", "PATCH")

	var files []api.FilePart
	if KeepsImage(storedImage, f.Image) {
		if stored := strings.TrimSpace(storedImage); stored != "" {
			fields.Set("old_image", path.Base(stored))
		}
	} else {
		files = imagePart(f.Image)
	}

	p.logger.Debug("update post", zap.String("id", string(id)), zap.Bool("new_image", files != nil))
	defer p.settle()
	return p.sendMultipart(ctx, p.path(string(id)), fields, files)
}

// FormFromPost fills an edit form from a stored post.
func FormFromPost(post Post) form.Post {
	return form.Post{
		CategoryID:      string(post.CategoryID),
		SubcategoryID:   string(post.SubcategoryID),
		Title:           post.Title,
		MetaDescription: post.MetaDescription,
		MetaKeyword:     post.MetaKeyword,
		SeoTitle:        post.SeoTitle,
		Content:         post.Content,
		IsActive:        post.IsActive,
	}
}
