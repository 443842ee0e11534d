package devserver

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
)

// Seed fills the store with sample rows for local runs.
func (s *Server) Seed() error {
	placeholder, err := placeholderPNG()
	if err != nil {
		return errors.Wrap(err, "render placeholder image")
	}
	s.mu.Lock()
	s.images["placeholder.png"] = placeholder
	s.mu.Unlock()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	insert := func(name string, r row) (row, error) {
		c, _ := s.store.collection(name)
		created, fe := s.store.insert(c, r)
		if len(fe) > 0 {
			return nil, errors.Errorf("seed %s: %v", name, fe)
		}
		return created, nil
	}

	for i, catName := range []string{"Technology", "Travel", "Cooking"} {
		cat, err := insert("category", row{
			"name":        catName,
			"description": catName + " articles",
		})
		if err != nil {
			return err
		}

		for j := 1; j <= 2; j++ {
			sub, err := insert("subcategory", row{
				"category_id": cat["id"],
				"subcategory": fmt.Sprintf("%s %d", catName, j),
				"is_active":   (i + j) % 2,
			})
			if err != nil {
				return err
			}

			for k := 1; k <= 6; k++ {
				status := "active"
				if k%3 == 0 {
					status = "inactive"
				}
				if _, err = insert("post", row{
					"category_id":      cat["id"],
					"subcategory_id":   sub["id"],
					"title":            fmt.Sprintf("%s post number %d", sub["subcategory"], k),
					"meta_description": "A sample post for local runs",
					"meta_keyword":     "sample",
					"seo_title":        fmt.Sprintf("Sample %d", k),
					"content":          "# Hello\n\nThis is **sample** content.",
					"is_active":        status,
					"image":            "storage/images/placeholder.png",
				}); err != nil {
					return err
				}
			}
		}
	}

	for _, r := range []struct {
		name string
		row  row
	}{
		{"role", row{"name": "admin"}},
		{"role", row{"name": "editor"}},
		{"permission", row{"name": "post.write"}},
		{"permission", row{"name": "category.write"}},
		{"menu", row{"name": "Content"}},
		{"submenu", row{"name": "Posts"}},
		{"message", row{"name": "Visitor", "email": "visitor@example.com", "message": "Nice blog"}},
		{"comment", row{"name": "Reader", "comment": "Thanks for sharing"}},
	} {
		if _, err = insert(r.name, r.row); err != nil {
			return err
		}
	}

	s.logger.Info("seeded sample data", zap.Int("collections", len(s.store.collections)))
	return nil
}

func placeholderPNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
