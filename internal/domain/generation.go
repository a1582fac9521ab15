package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AspectRatio of the generated video.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"

	DefaultAspectRatio = AspectLandscape
)

func (a AspectRatio) Valid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

const (
	MinBatchSize = 1
	MaxBatchSize = 4

	TransitionNone = "None"
)

// TransitionStyles are the editing transitions a prompt may ask for.
var TransitionStyles = []string{
	TransitionNone,
	"Cinematic Fade",
	"Hard Cut",
	"Dissolve",
	"Wipe Right",
	"Blur Transition",
}

var titleCaser = cases.Title(language.English)

// CanonicalTransition maps user input onto one of TransitionStyles. Empty
// input means no transition.
func CanonicalTransition(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return TransitionNone, true
	}
	candidate := titleCaser.String(strings.ToLower(s))
	for _, style := range TransitionStyles {
		if style == candidate {
			return style, true
		}
	}
	return "", false
}

// GenerationConfig is one batch submission from the UI.
type GenerationConfig struct {
	Prompt                 string      `json:"prompt"`
	Script                 string      `json:"script,omitempty"`
	Transition             string      `json:"transition,omitempty"`
	NegativePrompt         string      `json:"negative_prompt,omitempty"`
	AspectRatio            AspectRatio `json:"aspect_ratio"`
	CharacterID            string      `json:"character_id,omitempty"`
	UseConsistentCharacter bool        `json:"use_consistent_character"`
	WatermarkText          string      `json:"watermark_text,omitempty"`
	BatchSize              int         `json:"batch_size"`
}

// Normalize trims the config, applies the default aspect ratio and validates
// it. The receiver is left untouched.
func (c GenerationConfig) Normalize() (GenerationConfig, error) {
	out := c
	out.Prompt = strings.TrimSpace(c.Prompt)
	out.Script = strings.TrimSpace(c.Script)
	out.NegativePrompt = strings.TrimSpace(c.NegativePrompt)
	out.CharacterID = strings.TrimSpace(c.CharacterID)
	out.WatermarkText = strings.TrimSpace(c.WatermarkText)
	if out.AspectRatio == "" {
		out.AspectRatio = DefaultAspectRatio
	}

	if out.Prompt == "" {
		return c, fmt.Errorf("%w: prompt is required", ErrInvalidConfig)
	}
	if !out.AspectRatio.Valid() {
		return c, fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidConfig, c.AspectRatio)
	}
	if out.BatchSize < MinBatchSize || out.BatchSize > MaxBatchSize {
		return c, fmt.Errorf("%w: batch size must be between %d and %d", ErrInvalidConfig, MinBatchSize, MaxBatchSize)
	}
	transition, ok := CanonicalTransition(c.Transition)
	if !ok {
		return c, fmt.Errorf("%w: unknown transition style %q", ErrInvalidConfig, c.Transition)
	}
	out.Transition = transition
	return out, nil
}

// ComposePrompt builds the text sent to the model: the prompt, then the
// optional script and transition hints as separate paragraphs.
func (c GenerationConfig) ComposePrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Prompt))
	if script := strings.TrimSpace(c.Script); script != "" {
		b.WriteString("\n\nScript/Context: ")
		b.WriteString(script)
	}
	if t, ok := CanonicalTransition(c.Transition); ok && t != TransitionNone {
		b.WriteString("\n\nTransition style: ")
		b.WriteString(t)
	}
	return b.String()
}
