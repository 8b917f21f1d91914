package model

import (
	"fmt"
	"strings"
)

// Category partitions timers into independently ordered sections.
type Category int

const (
	CategoryCoffee Category = iota
	CategoryTea
)

// Categories returns every category in section order.
func Categories() []Category {
	return []Category{CategoryCoffee, CategoryTea}
}

func (c Category) IsValid() bool {
	return c == CategoryCoffee || c == CategoryTea
}

func (c Category) String() string {
	switch c {
	case CategoryCoffee:
		return "coffee"
	case CategoryTea:
		return "tea"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Title is the section header shown in lists.
func (c Category) Title() string {
	switch c {
	case CategoryCoffee:
		return "Coffees"
	case CategoryTea:
		return "Teas"
	default:
		return c.String()
	}
}

// ParseCategory accepts "coffee"/"tea" in any case, singular or plural.
func ParseCategory(raw string) (Category, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimSuffix(value, "s")
	switch value {
	case "coffee", "c", "0":
		return CategoryCoffee, nil
	case "tea", "t", "1":
		return CategoryTea, nil
	default:
		return 0, fmt.Errorf("unknown category %q", raw)
	}
}

// MarshalYAML renders the category by name.
func (c Category) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML accepts the category name.
func (c *Category) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
