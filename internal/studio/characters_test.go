package studio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"veostudio/internal/domain"
)

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestInspectReferenceImage(t *testing.T) {
	raw := pngBase64(t, 4, 3)

	for _, data := range []string{raw, "data:image/png;base64," + raw, "data:image/jpeg;base64," + raw} {
		info, err := InspectReferenceImage(data)
		if err != nil {
			t.Fatalf("InspectReferenceImage error: %v", err)
		}
		if info.MimeType != "image/png" || info.Width != 4 || info.Height != 3 {
			t.Fatalf("unexpected info %#v", info)
		}
	}

	for _, data := range []string{"", "data:image/png;base64,", "not base64!!", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		if _, err := InspectReferenceImage(data); !errors.Is(err, domain.ErrInvalidCharacter) {
			t.Fatalf("data %q: expected ErrInvalidCharacter, got %v", data, err)
		}
	}
}

func TestCharactersLifecycle(t *testing.T) {
	chars := NewCharacters()
	raw := pngBase64(t, 2, 2)

	if _, err := chars.Add("  ", raw); !errors.Is(err, domain.ErrInvalidCharacter) {
		t.Fatalf("expected ErrInvalidCharacter for empty name, got %v", err)
	}

	hero, err := chars.Add(" Hero ", raw)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if hero.Name != "Hero" || hero.ID == "" {
		t.Fatalf("unexpected character %#v", hero)
	}
	if !strings.HasPrefix(hero.ReferenceImageData, "data:image/png;base64,") {
		t.Fatalf("stored data = %q", hero.ReferenceImageData[:30])
	}
	sidekick, _ := chars.Add("Sidekick", raw)

	list := chars.List()
	if len(list) != 2 || list[0].ID != hero.ID || list[1].ID != sidekick.ID {
		t.Fatalf("unexpected list %#v", list)
	}
	if _, ok := chars.Character(hero.ID); !ok {
		t.Fatal("expected lookup to succeed")
	}

	if err := chars.Delete(hero.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := chars.Delete(hero.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := chars.Character(hero.ID); ok {
		t.Fatal("deleted character still resolvable")
	}
	if got := chars.List(); len(got) != 1 || got[0].ID != sidekick.ID {
		t.Fatalf("unexpected list after delete %#v", got)
	}
}
