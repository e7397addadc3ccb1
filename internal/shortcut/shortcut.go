// Package shortcut builds Apple Shortcuts deep links that mirror a
// reminder into the user's device reminder app.
package shortcut

import (
	"net/url"
	"strings"
	"time"
)

// DefaultName is the Shortcuts automation expected on the device.
const DefaultName = "CriarLembrete"

// Builder renders shortcuts://run-shortcut deep links.
type Builder struct {
	name string
}

func NewBuilder(name string) *Builder {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return &Builder{name: name}
}

// URL builds the deep link. The text payload is "date time description
// urgency", which the device-side shortcut splits back apart.
func (b *Builder) URL(dueAt time.Time, description, urgency string) string {
	payload := strings.Join([]string{
		dueAt.Format("2006-01-02"),
		dueAt.Format("15:04"),
		description,
		urgency,
	}, " ")

	q := url.Values{}
	q.Set("name", b.name)
	q.Set("input", "text")
	q.Set("text", payload)
	return "shortcuts://run-shortcut?" + q.Encode()
}
