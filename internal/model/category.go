package model

import "time"

// CategoryKind is the closed set of category variants. Only KindUser and
// KindSystem are ever persisted; KindNone and KindUnknown are the in-memory
// placeholders NoCategory and UnknownCategory.
type CategoryKind string

const (
	KindUser    CategoryKind = "user"
	KindSystem  CategoryKind = "system"
	KindNone    CategoryKind = "none"
	KindUnknown CategoryKind = "unknown"
)

const (
	DefaultColor    = "#666666"
	NoCategoryTitle = "Без категории"
	UnknownTitle    = "?"
)

// Category labels tracked time for one user.
type Category struct {
	ID        uint         `gorm:"primaryKey"`
	UserID    uint         `gorm:"index;not null"`
	Title     string       `gorm:"not null"`
	Color     string       `gorm:"size:7;not null"`
	Visible   bool         `gorm:"not null"`
	SortOrder int          `gorm:"not null;default:0"`
	Kind      CategoryKind `gorm:"size:16;not null;default:user;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Category) TableName() string { return "categories" }

var (
	// NoCategory stands in for records without a category when the user has no
	// system category yet.
	NoCategory = Category{Title: NoCategoryTitle, Color: DefaultColor, Visible: true, Kind: KindNone}
	// UnknownCategory stands in for a category that was deleted after a record
	// referenced it.
	UnknownCategory = Category{Title: UnknownTitle, Color: DefaultColor, Kind: KindUnknown}
)

func (c Category) IsSystem() bool { return c.Kind == KindSystem }

// Persisted reports whether the category is a stored row rather than a placeholder.
func (c Category) Persisted() bool {
	return c.Kind == KindUser || c.Kind == KindSystem
}

// Selectable reports whether the category is offered when starting a timer.
func (c Category) Selectable() bool {
	return c.IsSystem() || (c.Kind == KindUser && c.Visible)
}
