package models

import (
	"errors"
	"slices"
	"sort"
	"strings"
)

var (
	ErrEmptyPrompt         = errors.New("prompt cannot be empty")
	ErrInvalidAspectRatio  = errors.New("invalid aspect ratio")
	ErrInvalidSize         = errors.New("invalid image size")
	ErrReferenceUnreadable = errors.New("reference image unreadable")
	ErrEmptyResult         = errors.New("no image returned")
)

// DefaultModel is used when no model is given on the command line.
const DefaultModel = "google/gemini-3-pro-image-preview"

// aspectRatios maps each supported ratio to the pixel dimensions the API
// produces for it.
var aspectRatios = map[string]string{
	"1:1":  "1024x1024",
	"2:3":  "832x1248",
	"3:2":  "1248x832",
	"3:4":  "864x1184",
	"4:3":  "1184x864",
	"4:5":  "896x1152",
	"5:4":  "1152x896",
	"9:16": "768x1344",
	"16:9": "1344x768",
	"21:9": "1536x672",
}

func ValidAspectRatios() []string {
	ratios := make([]string, 0, len(aspectRatios))
	for r := range aspectRatios {
		ratios = append(ratios, r)
	}
	sort.Strings(ratios)
	return ratios
}

func IsValidAspectRatio(ratio string) bool {
	_, ok := aspectRatios[ratio]
	return ok
}

// AspectRatioDimensions returns the pixel dimensions for a supported ratio.
func AspectRatioDimensions(ratio string) (string, bool) {
	dims, ok := aspectRatios[ratio]
	return dims, ok
}

// Image sizes, meaningful for Gemini-family models only. Other models ignore
// or reject the setting server-side; that is surfaced as a transport error.
var imageSizes = []string{"1K", "2K", "4K"}

func ValidSizes() []string {
	return slices.Clone(imageSizes)
}

func IsValidSize(size string) bool {
	return slices.Contains(imageSizes, size)
}

// ReferenceImage is one image attached to a generation request, resolved to
// bytes before transport.
type ReferenceImage struct {
	Path     string
	Data     []byte
	MIMEType string
}

// Request is the assembled generation request. Ephemeral; never persisted.
type Request struct {
	Prompt      string
	Model       string
	AspectRatio string
	Size        string
	References  []ReferenceImage
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt: prompt,
		Model:  DefaultModel,
	}
}

// Validate checks the request parameters. It runs before any reference file
// is read and before any network call.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if r.AspectRatio != "" && !IsValidAspectRatio(r.AspectRatio) {
		return ErrInvalidAspectRatio
	}
	if r.Size != "" && !IsValidSize(r.Size) {
		return ErrInvalidSize
	}
	return nil
}

type Response struct {
	Images []GeneratedImage
	Text   string
}

type GeneratedImage struct {
	Data     []byte
	URL      string
	MIMEType string
	Index    int
}

// ModelInfo describes one entry from the model catalog.
type ModelInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ContextLength int     `json:"context_length,omitempty"`
	ImagePrice    float64 `json:"image_price,omitempty"`
	PriceKnown    bool    `json:"price_known,omitempty"`
}
