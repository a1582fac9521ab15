package video

import (
	"context"
	"strings"

	"veostudio/internal/providers/genai"
)

// GenerateRequest is one clip submission. ReferenceImage, when set, switches
// the request to the reference-capable model.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	ReferenceImage string
	ReferenceMIME  string
	RequestID      string
}

// Operation identifies a remote generation in progress.
type Operation struct {
	Name  string
	Model string
}

type Status struct {
	Done           bool
	ResultLocation string
}

// Generator is the remote job client the batch orchestrator drives.
type Generator interface {
	Model(withReference bool) string
	Submit(ctx context.Context, req GenerateRequest) (*Operation, error)
	Poll(ctx context.Context, op *Operation) (*Status, error)
	Resolve(ctx context.Context, location string) (string, error)
}

type VeoGenerator struct {
	client *genai.Client
}

func NewVeoGenerator(client *genai.Client) *VeoGenerator {
	return &VeoGenerator{client: client}
}

func (g *VeoGenerator) Model(withReference bool) string {
	return g.client.ModelFor(withReference)
}

func (g *VeoGenerator) Submit(ctx context.Context, req GenerateRequest) (*Operation, error) {
	sub := genai.SubmitRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		AspectRatio:    req.AspectRatio,
		RequestID:      req.RequestID,
	}
	if strings.TrimSpace(req.ReferenceImage) != "" {
		sub.Reference = &genai.Reference{Data: req.ReferenceImage, MimeType: req.ReferenceMIME}
	}
	op, err := g.client.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &Operation{Name: op.Name, Model: op.Model}, nil
}

func (g *VeoGenerator) Poll(ctx context.Context, op *Operation) (*Status, error) {
	var handle *genai.Operation
	if op != nil {
		handle = &genai.Operation{Name: op.Name, Model: op.Model}
	}
	res, err := g.client.Poll(ctx, handle)
	if err != nil {
		return nil, err
	}
	return &Status{Done: res.Done, ResultLocation: res.ResultLocation}, nil
}

func (g *VeoGenerator) Resolve(ctx context.Context, location string) (string, error) {
	return g.client.ResolveDownloadLocation(ctx, location)
}

// IsCredentialInvalid reports whether err means the remote service rejected
// the current credential.
func IsCredentialInvalid(err error) bool {
	return genai.IsCredentialInvalid(err)
}

var _ Generator = (*VeoGenerator)(nil)
