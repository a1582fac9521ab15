package domain

import (
	"strings"
	"time"
)

// Character is a reusable reference image. Jobs refer to it by id only.
type Character struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ReferenceImageData string    `json:"reference_image_data"`
	MimeType           string    `json:"mime_type"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	CreatedAt          time.Time `json:"created_at"`
}

// SplitDataURI separates a `data:<mime>;base64,<payload>` URI into its media
// type and payload. Input that is not a data URI is returned unchanged as the
// payload with an empty media type.
func SplitDataURI(s string) (mime, payload string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return "", s
	}
	header, body, ok := strings.Cut(s, ",")
	if !ok {
		return "", s
	}
	mime, _, _ = strings.Cut(header[len("data:"):], ";")
	return strings.ToLower(strings.TrimSpace(mime)), body
}
