// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pipeline turns a vague user idea into exactly one generated
// image plus the prompt that produced it.
//
// Two refinement modes exist. Combined makes one JSON call that returns
// the image prompt together with a headline and subtext for the overlay.
// Staged makes three dependent calls (concept, scene, format) and yields
// only the prompt. Each step's output feeds the next; there are no
// retries.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"branddos/internal/ai"
	"branddos/internal/models"
	"branddos/internal/prompt"
)

// Mode selects how many model calls refinement uses.
type Mode string

const (
	ModeCombined Mode = "combined"
	ModeStaged   Mode = "staged"
)

// Fixed image generation parameters.
const (
	ImageSize      = 1024
	ImageSteps     = 30
	ImageCFGScale  = 7
	ImageStyle     = "photographic"
	NegativePrompt = "text, caption, watermark, signature, logo, words"
)

// ErrEmptyIdea is returned before any provider call when the idea is blank.
var ErrEmptyIdea = errors.New("pipeline: empty idea")

// TextGenerator is the part of ai.Registry the refiner needs.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator is the part of ai.ImageRegistry the refiner needs.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ai.ImageRequest) (*ai.Image, error)
}

// Stage names a step of the staged refinement.
type Stage string

const (
	StageConcept Stage = "concept extraction"
	StageScene   Stage = "scene design"
	StageFormat  Stage = "prompt formatting"
)

// StageError reports which staged step failed. Err is either
// ai.ErrEmptyCompletion or the provider's transport error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ParseError means the combined call answered, but not with the
// expected JSON object.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return "pipeline: invalid refinement JSON: " + e.Reason
}

// Refinement is the output of the refinement step. Headline and Subtext
// are only filled in combined mode.
type Refinement struct {
	RefinedPrompt string `json:"refinedPrompt"`
	Headline      string `json:"headline"`
	Subtext       string `json:"subtext"`
}

// Result is one finished run.
type Result struct {
	Refinement
	Image *ai.Image
}

// Refiner runs the refinement and synthesis steps.
type Refiner struct {
	texts  TextGenerator
	images ImageGenerator
	mode   Mode
}

// New creates a Refiner. An unknown mode falls back to combined.
func New(texts TextGenerator, images ImageGenerator, mode Mode) *Refiner {
	if mode != ModeStaged {
		mode = ModeCombined
	}
	return &Refiner{texts: texts, images: images, mode: mode}
}

// Mode returns the refinement mode in use.
func (r *Refiner) Mode() Mode { return r.mode }

// Refine turns idea into an image prompt using the brand's context.
func (r *Refiner) Refine(ctx context.Context, brand *models.BrandSettings, idea string) (*Refinement, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, ErrEmptyIdea
	}
	if r.mode == ModeStaged {
		return r.refineStaged(ctx, brand, idea)
	}
	return r.refineCombined(ctx, brand, idea)
}

func (r *Refiner) refineCombined(ctx context.Context, brand *models.BrandSettings, idea string) (*Refinement, error) {
	raw, err := r.texts.GenerateJSON(ctx, prompt.RefineCombined(brand), idea)
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	return ParseRefinement(raw)
}

func (r *Refiner) refineStaged(ctx context.Context, brand *models.BrandSettings, idea string) (*Refinement, error) {
	sys, user := prompt.Concept(brand, idea)
	concept, err := r.texts.Generate(ctx, sys, user)
	if err != nil {
		return nil, &StageError{Stage: StageConcept, Err: err}
	}

	sys, user = prompt.Scene(concept)
	scene, err := r.texts.Generate(ctx, sys, user)
	if err != nil {
		return nil, &StageError{Stage: StageScene, Err: err}
	}

	sys, user = prompt.Format(scene)
	formatted, err := r.texts.Generate(ctx, sys, user)
	if err != nil {
		return nil, &StageError{Stage: StageFormat, Err: err}
	}
	formatted = prompt.StripQuotes(formatted)
	if formatted == "" {
		return nil, &StageError{Stage: StageFormat, Err: ai.ErrEmptyCompletion}
	}

	return &Refinement{RefinedPrompt: formatted}, nil
}

// Synthesize generates one image from the refined prompt.
func (r *Refiner) Synthesize(ctx context.Context, ref *Refinement) (*ai.Image, error) {
	return r.SynthesizePrompt(ctx, ref.RefinedPrompt)
}

// SynthesizePrompt generates one image from a prompt with the fixed
// generation parameters.
func (r *Refiner) SynthesizePrompt(ctx context.Context, p string) (*ai.Image, error) {
	img, err := r.images.GenerateImage(ctx, ai.ImageRequest{
		Prompt:         p,
		NegativePrompt: NegativePrompt,
		Width:          ImageSize,
		Height:         ImageSize,
		Steps:          ImageSteps,
		CFGScale:       ImageCFGScale,
		StylePreset:    ImageStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return img, nil
}

// Run refines idea and synthesizes exactly one image from the result.
func (r *Refiner) Run(ctx context.Context, brand *models.BrandSettings, idea string) (*Result, error) {
	ref, err := r.Refine(ctx, brand, idea)
	if err != nil {
		return nil, err
	}
	img, err := r.Synthesize(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Result{Refinement: *ref, Image: img}, nil
}

// ParseRefinement decodes a combined-mode answer. Markdown code fences
// around the object are tolerated and unknown fields are ignored;
// refinedPrompt must be present and non-blank.
func ParseRefinement(raw string) (*Refinement, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, &ParseError{Raw: raw, Reason: "empty response"}
	}

	var ref Refinement
	if err := json.Unmarshal([]byte(body), &ref); err != nil {
		return nil, &ParseError{Raw: raw, Reason: err.Error()}
	}

	ref.RefinedPrompt = strings.TrimSpace(ref.RefinedPrompt)
	ref.Headline = strings.TrimSpace(ref.Headline)
	ref.Subtext = strings.TrimSpace(ref.Subtext)
	if ref.RefinedPrompt == "" {
		return nil, &ParseError{Raw: raw, Reason: "refinedPrompt is missing"}
	}
	return &ref, nil
}

// stripCodeFence removes ```json ... ``` or ``` ... ``` wrappers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i != -1 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
