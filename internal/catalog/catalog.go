package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
)

// Course is the static description of a course sold on the marketplace.
// It carries no ownership data.
type Course struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage"`
	Link        string   `json:"link"`
	Slug        string   `json:"slug"`
	WSL         []string `json:"wsl,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	Index       int      `json:"index"`
}

// CourseID is the bytes16 identifier the contract hashes for this course.
func (c Course) CourseID() (identity.CourseID, error) {
	return identity.CourseIDFromString(c.ID)
}

// Catalog is an immutable, validated list of courses with lookups by id and
// slug.
type Catalog struct {
	courses []Course
	byID    map[string]int
	bySlug  map[string]int
}

// Load reads the catalog JSON at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a JSON array of courses.
func Parse(r io.Reader) (*Catalog, error) {
	var courses []Course
	if err := json.NewDecoder(r).Decode(&courses); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(courses)
}

// New validates courses and builds the lookup maps. Every problem is
// reported, not just the first one.
func New(courses []Course) (*Catalog, error) {
	c := &Catalog{
		courses: make([]Course, len(courses)),
		byID:    make(map[string]int, len(courses)),
		bySlug:  make(map[string]int, len(courses)),
	}
	var errs error
	for i, course := range courses {
		course.Index = i
		c.courses[i] = course

		if strings.TrimSpace(course.ID) == "" {
			errs = multierr.Append(errs, fmt.Errorf("course %d: id is required", i))
		} else if _, err := course.CourseID(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("course %d: %w", i, err))
		} else if prev, dup := c.byID[course.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("course %d: id %q already used by course %d", i, course.ID, prev))
		} else {
			c.byID[course.ID] = i
		}

		if strings.TrimSpace(course.Slug) == "" {
			errs = multierr.Append(errs, fmt.Errorf("course %d: slug is required", i))
		} else if prev, dup := c.bySlug[course.Slug]; dup {
			errs = multierr.Append(errs, fmt.Errorf("course %d: slug %q already used by course %d", i, course.Slug, prev))
		} else {
			c.bySlug[course.Slug] = i
		}

		if strings.TrimSpace(course.Title) == "" {
			errs = multierr.Append(errs, fmt.Errorf("course %d: title is required", i))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// All returns the courses in catalog order.
func (c *Catalog) All() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}

func (c *Catalog) Len() int { return len(c.courses) }

func (c *Catalog) ByID(id string) (Course, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Course{}, false
	}
	return c.courses[i], true
}

func (c *Catalog) BySlug(slug string) (Course, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Course{}, false
	}
	return c.courses[i], true
}

// CourseMap returns the courses keyed by id.
func (c *Catalog) CourseMap() map[string]Course {
	out := make(map[string]Course, len(c.courses))
	for id, i := range c.byID {
		out[id] = c.courses[i]
	}
	return out
}
