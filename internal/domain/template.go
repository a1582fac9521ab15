package domain

import "time"

// Template is a saved, reusable request shape.
type Template struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Prompt         string      `json:"prompt"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	NegativePrompt string      `json:"negative_prompt,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
