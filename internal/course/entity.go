// AngelaMos | 2026
// entity.go

package course

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Class struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	IsPremium   bool      `db:"is_premium"`
	Chapters    Chapters  `db:"chapters"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// VisibleTo reports whether a caller with the given entitlement may open c.
func (c *Class) VisibleTo(entitled bool) bool {
	return !c.IsPremium || entitled
}

// Chapter and Lesson have no identity of their own. They live inside the
// class row and are replaced together with it.
type Chapter struct {
	Title   string   `json:"title"   validate:"required,max=200"`
	Lessons []Lesson `json:"lessons" validate:"dive"`
}

type Lesson struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	VideoURL    string `json:"videoUrl"    validate:"omitempty,url,max=2048"`
}

// Chapters maps the ordered chapter list onto a jsonb column.
type Chapters []Chapter

func (c Chapters) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal chapters: %w", err)
	}
	return b, nil
}

func (c *Chapters) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Chapters{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("Chapters.Scan: unexpected type %T", src)
	}

	var out Chapters
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal chapters: %w", err)
	}
	if out == nil {
		out = Chapters{}
	}
	*c = out
	return nil
}
