package resource

import (
	"context"
	"sync"

	errors "github.com/Laisky/errors/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/laisky-cms-admin/internal/form"
)

// PostEditor keeps the category and subcategory selects of a post form
// consistent: the subcategory must belong to the chosen category.
type PostEditor struct {
	categories    *Resource[Category]
	subcategories *Subcategories

	mu                 sync.Mutex
	categoryID         ID
	subcategoryID      ID
	categoryOptions    []Option
	subcategoryOptions []Option
}

// NewPostEditor starts from an existing selection (empty for a new post).
func NewPostEditor(categories *Resource[Category], subcategories *Subcategories, categoryID, subcategoryID ID) *PostEditor {
	return &PostEditor{
		categories:    categories,
		subcategories: subcategories,
		categoryID:    categoryID,
		subcategoryID: subcategoryID,
	}
}

// Load fetches both option lists concurrently.
func (e *PostEditor) Load(ctx context.Context) error {
	e.mu.Lock()
	categoryID := e.categoryID
	e.mu.Unlock()

	var cats, subs []Option
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if cats, err = e.categories.Options(gctx, nil); err != nil {
			return errors.Wrap(err, "load category options")
		}
		return nil
	})
	if categoryID != "" {
		g.Go(func() (err error) {
			if subs, err = e.subcategories.Options(gctx, categoryID); err != nil {
				return errors.Wrap(err, "load subcategory options")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.categoryOptions = cats
	if e.categoryID == categoryID {
		e.subcategoryOptions = subs
	}
	return nil
}

// SelectCategory switches the category, clears the subcategory, and
// refetches the subcategory options of the new category.
func (e *PostEditor) SelectCategory(ctx context.Context, id ID) error {
	e.mu.Lock()
	e.categoryID = id
	e.subcategoryID = ""
	e.subcategoryOptions = nil
	e.mu.Unlock()

	if id == "" {
		return nil
	}

	subs, err := e.subcategories.Options(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "load subcategories of category %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// a newer selection wins over this response
	if e.categoryID == id {
		e.subcategoryOptions = subs
	}
	return nil
}

// SelectSubcategory picks the subcategory.
func (e *PostEditor) SelectSubcategory(id ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subcategoryID = id
}

// Selection returns the chosen ids.
func (e *PostEditor) Selection() (categoryID, subcategoryID ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.categoryID, e.subcategoryID
}

// CategoryOptions returns the loaded category list.
func (e *PostEditor) CategoryOptions() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Option(nil), e.categoryOptions...)
}

// SubcategoryOptions returns the subcategories of the current category.
func (e *PostEditor) SubcategoryOptions() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Option(nil), e.subcategoryOptions...)
}

// Validate checks the selection. A subcategory outside the current
// category's options is rejected.
func (e *PostEditor) Validate() form.Errors {
	e.mu.Lock()
	defer e.mu.Unlock()

	errs := form.Errors{}
	if e.categoryID == "" {
		errs["category_id"] = "Please select category"
	}

	found := false
	for _, o := range e.subcategoryOptions {
		if o.Value == e.subcategoryID {
			found = true
			break
		}
	}
	if e.subcategoryID == "" || !found {
		errs["subcategory_id"] = "Please select subcategory"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Apply copies the selection into f.
func (e *PostEditor) Apply(f *form.Post) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f.CategoryID = string(e.categoryID)
	f.SubcategoryID = string(e.subcategoryID)
}
