package studio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"veostudio/internal/domain"
)

const maxReferenceImageBytes = 20 << 20

// ImageInfo describes a decoded reference image.
type ImageInfo struct {
	MimeType string
	Width    int
	Height   int
}

// InspectReferenceImage checks that data (a data URI or raw base64) holds a
// png, jpeg, gif or webp image and reports its format and size.
func InspectReferenceImage(data string) (ImageInfo, error) {
	_, payload := domain.SplitDataURI(data)
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ImageInfo{}, fmt.Errorf("%w: reference image is required", domain.ErrInvalidCharacter)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxReferenceImageBytes {
		return ImageInfo{}, fmt.Errorf("%w: reference image exceeds %d bytes", domain.ErrInvalidCharacter, maxReferenceImageBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return ImageInfo{}, fmt.Errorf("%w: reference image is not valid base64", domain.ErrInvalidCharacter)
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: unsupported reference image: %v", domain.ErrInvalidCharacter, err)
	}
	return ImageInfo{MimeType: "image/" + format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Characters is the in-memory character registry for the session.
type Characters struct {
	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	items map[string]domain.Character
	order []string
}

func NewCharacters() *Characters {
	return &Characters{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		items: make(map[string]domain.Character),
	}
}

// Add validates the image and registers a new character. The stored data is
// normalised to a data URI carrying the detected media type.
func (c *Characters) Add(name, imageData string) (domain.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Character{}, fmt.Errorf("%w: name is required", domain.ErrInvalidCharacter)
	}
	info, err := InspectReferenceImage(imageData)
	if err != nil {
		return domain.Character{}, err
	}
	_, payload := domain.SplitDataURI(imageData)

	char := domain.Character{
		ID:                 c.newID(),
		Name:               name,
		ReferenceImageData: "data:" + info.MimeType + ";base64," + strings.TrimSpace(payload),
		MimeType:           info.MimeType,
		Width:              info.Width,
		Height:             info.Height,
		CreatedAt:          c.now(),
	}

	c.mu.Lock()
	c.items[char.ID] = char
	c.order = append(c.order, char.ID)
	c.mu.Unlock()
	return char, nil
}

// Delete removes a character. Jobs that referenced it keep the id.
func (c *Characters) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return fmt.Errorf("character %s: %w", id, domain.ErrNotFound)
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Characters) Character(id string) (domain.Character, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	char, ok := c.items[id]
	return char, ok
}

func (c *Characters) List() []domain.Character {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Character, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}
