package studio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"veostudio/internal/domain"
)

// Templates keeps saved request shapes in insertion order.
type Templates struct {
	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	items []domain.Template
}

func NewTemplates() *Templates {
	return &Templates{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (t *Templates) Save(tpl domain.Template) (domain.Template, error) {
	tpl.Name = strings.TrimSpace(tpl.Name)
	tpl.Prompt = strings.TrimSpace(tpl.Prompt)
	tpl.NegativePrompt = strings.TrimSpace(tpl.NegativePrompt)
	if tpl.AspectRatio == "" {
		tpl.AspectRatio = domain.DefaultAspectRatio
	}
	switch {
	case tpl.Name == "":
		return domain.Template{}, fmt.Errorf("%w: name is required", domain.ErrInvalidTemplate)
	case tpl.Prompt == "":
		return domain.Template{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidTemplate)
	case !tpl.AspectRatio.Valid():
		return domain.Template{}, fmt.Errorf("%w: unsupported aspect ratio %q", domain.ErrInvalidTemplate, tpl.AspectRatio)
	}

	tpl.ID = t.newID()
	tpl.CreatedAt = t.now()

	t.mu.Lock()
	t.items = append(t.items, tpl)
	t.mu.Unlock()
	return tpl, nil
}

func (t *Templates) Get(id string) (domain.Template, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, tpl := range t.items {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return domain.Template{}, false
}

func (t *Templates) List() []domain.Template {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.Template(nil), t.items...)
}
