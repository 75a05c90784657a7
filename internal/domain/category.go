// Package domain provides domain models used across the application.
package domain

import (
	"fmt"
	"strings"
)

// Category identifies an independent product line with its own identifier
// roster, MAP table, and schedule.
type Category string

const (
	// CategoryDNK is the DNK product line.
	CategoryDNK Category = "DNK"
	// CategoryCLK is the CLK product line.
	CategoryCLK Category = "CLK"
)

// Categories returns all known categories.
func Categories() []Category {
	return []Category{CategoryDNK, CategoryCLK}
}

// ParseCategory converts a string to a Category, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryDNK:
		return CategoryDNK, nil
	case CategoryCLK:
		return CategoryCLK, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// Valid reports whether the category is a known value.
func (c Category) Valid() bool {
	return c == CategoryDNK || c == CategoryCLK
}

func (c Category) String() string {
	return string(c)
}
