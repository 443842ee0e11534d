package form

// MaxImageSize is the largest accepted post image, 3 MiB.
const MaxImageSize = 3 * 1024 * 1024

// Login is the sign-in form.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Messages implements Schema.
func (Login) Messages() map[string]string {
	return map[string]string{
		"email":    "Invalid email address",
		"password": "Please enter password",
	}
}

// Category is the create/edit form of a category.
type Category struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description,omitempty"`
}

// Messages implements Schema.
func (Category) Messages() map[string]string {
	return map[string]string{
		"name": "Please insert category",
	}
}

// Subcategory is one row of the subcategory table.
type Subcategory struct {
	CategoryID  string `json:"category_id" validate:"required"`
	Subcategory string `json:"subcategory" validate:"required"`
	Description string `json:"description,omitempty"`
	IsActive    string `json:"is_active" validate:"required,oneof=0 1"`
}

// Messages implements Schema.
func (Subcategory) Messages() map[string]string {
	return map[string]string{
		"category_id": "Category is required",
		"subcategory": "Subcategory is required",
		"is_active":   "Is active is required",
	}
}

// Post is the create/edit form of a post.
// Image stays nil on edit when the stored image is kept.
type Post struct {
	CategoryID      string `json:"category_id" validate:"required"`
	SubcategoryID   string `json:"subcategory_id" validate:"required"`
	Title           string `json:"title" validate:"min=5,max=300"`
	MetaDescription string `json:"meta_description" validate:"min=5,max=300"`
	MetaKeyword     string `json:"meta_keyword" validate:"min=3"`
	SeoTitle        string `json:"seo_title" validate:"min=3"`
	Content         string `json:"content" validate:"min=3"`
	IsActive        string `json:"is_active" validate:"oneof=active inactive"`

	Image *Upload `json:"-"`
}

// Messages implements Schema.
func (Post) Messages() map[string]string {
	return map[string]string{
		"category_id":          "Please select category",
		"subcategory_id":       "Please select subcategory",
		"title.min":            "Please insert post title",
		"title.max":            "Title length should not be longer than 300 characters.",
		"meta_description.min": "Please insert meta description",
		"meta_description.max": "Meta description length should not be longer than 300 characters.",
		"meta_keyword":         "Please insert meta keyword",
		"seo_title":            "Please insert seo title",
		"content":              "Please insert post content",
		"is_active":            "Please select status",
		"image.required":       "Image is required",
		"image.max":            "File must be less than 3MB",
		"image.startswith":     "Only image files are allowed",
	}
}

// postImage flattens an Upload so its rules run through the validator.
type postImage struct {
	Name string `field:"image" validate:"required"`
	Size int64  `field:"image" validate:"max=3145728"`
	Type string `field:"image" validate:"startswith=image/"`
}

// ValidatePost checks a post form. The image is mandatory only on create;
// on edit a chosen replacement is still checked for size and type.
func ValidatePost(p Post, create bool) Errors {
	errs := validateWith(p, p.Messages())

	if p.Image == nil && !create {
		return errs
	}

	img := postImage{}
	if p.Image != nil {
		img = postImage{Name: p.Image.Name, Size: p.Image.Size, Type: p.Image.ContentType}
	}
	imgErrs := validateWith(img, p.Messages())
	if len(imgErrs) == 0 {
		return errs
	}

	if errs == nil {
		errs = Errors{}
	}
	for k, v := range imgErrs {
		errs[k] = v
	}
	return errs
}
