package iiif

import "fmt"

// ImageInfo is a IIIF Image API 2 info.json document for a level 0
// (static tiles only) image service.
type ImageInfo struct {
	Context  string   `json:"@context"`
	ID       string   `json:"@id"`
	Protocol string   `json:"protocol"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Profile  []string `json:"profile"`
	Sizes    []Size   `json:"sizes"`
}

// Size is one pre-rendered size advertised by a level 0 service
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MakeImageInfo builds the info.json for an image backed by the given
// pre-rendered sizes. The full width/height is the largest size on offer.
func MakeImageInfo(imageID, baseURL string, sizes []Size) *ImageInfo {
	info := &ImageInfo{
		Context:  ImageContext,
		ID:       fmt.Sprintf("%s/iiif/image/%s", baseURL, imageID),
		Protocol: ImageProtocol,
		Profile:  []string{ImageLevel0Profile},
		Sizes:    sizes,
	}
	for _, s := range sizes {
		if s.Width > info.Width {
			info.Width = s.Width
			info.Height = s.Height
		}
	}
	return info
}
