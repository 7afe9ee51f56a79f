package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Item types.
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// FilterAll is the dropdown sentinel meaning "no constraint".
const FilterAll = "all"

// MaxReportImages is the maximum number of images attached to one report.
const MaxReportImages = 3

// Contact types offered on the report form.
const (
	ContactPhone    = "Phone"
	ContactEmail    = "Email"
	ContactFacebook = "Facebook"
)

// ContactTypes lists the accepted contact methods in display order.
var ContactTypes = []string{ContactPhone, ContactEmail, ContactFacebook}

// Categories lists the item categories in display order.
var Categories = []string{
	"Bags",
	"Books",
	"Clothing",
	"Collector Items",
	"Documents",
	"Electronics",
	"Household",
	"Jewellry",
	"Media",
	"Money",
	"Musical Equipment",
	"Personal Accessories",
	"Pets",
	"Sporting Goods",
	"Tools",
	"Toys",
	"Transportation",
	"Wallet",
}

// Item is a lost or found listing as returned by the items API.
type Item struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ItemType    string    `json:"itemType"`
	Category    []string  `json:"category"`
	Location    string    `json:"location"`
	City        string    `json:"city"`
	Province    string    `json:"province"`
	Date        time.Time `json:"date"`
	Images      []string  `json:"images"`
	Reward      *float64  `json:"reward,omitempty"`
	Contact     string    `json:"contact"`
	ContactType string    `json:"contactType"`
	User        Owner     `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ShowReward reports whether the reward should be displayed. Rewards only
// mean something for lost items.
func (i Item) ShowReward() bool {
	return i.ItemType == ItemTypeLost && i.Reward != nil && *i.Reward > 0
}

// Owner is the reporting user as embedded in an item.
type Owner struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts either an embedded user object or a bare id, since
// the items API only populates the reference on some endpoints.
func (o *Owner) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*o = Owner{ID: id}
		return nil
	}
	type owner Owner
	var v owner
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Owner(v)
	return nil
}

// IsItemType reports whether t is a known item type.
func IsItemType(t string) bool {
	return t == ItemTypeLost || t == ItemTypeFound
}

// ParseItemType maps a route segment to an item type. Anything other than
// "found" is treated as a lost report.
func ParseItemType(s string) string {
	if strings.EqualFold(s, ItemTypeFound) {
		return ItemTypeFound
	}
	return ItemTypeLost
}

// Filters are the optional listing constraints. Empty or FilterAll means
// "no constraint".
type Filters struct {
	Search   string
	Category string
	City     string
	Province string
}

// Normalize trims whitespace and maps the FilterAll sentinel to "".
func (f Filters) Normalize() Filters {
	return Filters{
		Search:   strings.TrimSpace(f.Search),
		Category: normalizeFilter(f.Category),
		City:     normalizeFilter(f.City),
		Province: normalizeFilter(f.Province),
	}
}

func normalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if v == FilterAll {
		return ""
	}
	return v
}
