package service

import (
	"strings"

	"idle-market/internal/core/domain"
)

// StaticCatalog resolves item categories from configured item lists.
type StaticCatalog struct {
	food    map[string]struct{}
	general map[string]struct{}
}

// NewStaticCatalog builds a catalog. When general is empty, every item that is
// not food is accepted as a general item.
func NewStaticCatalog(food, general []string) *StaticCatalog {
	c := &StaticCatalog{
		food:    make(map[string]struct{}, len(food)),
		general: make(map[string]struct{}, len(general)),
	}
	for _, item := range food {
		c.food[item] = struct{}{}
	}
	for _, item := range general {
		c.general[item] = struct{}{}
	}
	return c
}

// Category implements ports.ItemCatalog.
func (c *StaticCatalog) Category(item string) (domain.ItemCategory, bool) {
	if strings.TrimSpace(item) == "" {
		return "", false
	}
	if _, ok := c.food[item]; ok {
		return domain.ItemCategoryFood, true
	}
	if len(c.general) == 0 {
		return domain.ItemCategoryGeneral, true
	}
	if _, ok := c.general[item]; ok {
		return domain.ItemCategoryGeneral, true
	}
	return "", false
}
