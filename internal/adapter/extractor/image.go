package extractor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"quiz-solver/internal/domain"
)

// parseImage validates that the bytes decode as an image and keeps the
// raw payload for pixel-level processing by the solver.
func parseImage(body []byte) (*domain.ExtractedContent, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewParseError("image", err)
	}

	return &domain.ExtractedContent{
		Kind:  domain.ContentImage,
		Image: body,
		Fields: map[string]string{
			"format": format,
			"width":  fmt.Sprint(cfg.Width),
			"height": fmt.Sprint(cfg.Height),
		},
	}, nil
}

// DominantColorHex decodes an image and returns its most frequent
// pixel color as "#rrggbb".
func DominantColorHex(body []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return "", domain.NewParseError("image", err)
	}

	counts := make(map[uint32]int)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 8-bit channels packed into one key
			key := (r>>8)<<16 | (g>>8)<<8 | b>>8
			counts[key]++
		}
	}

	var best uint32
	bestCount := -1
	for key, count := range counts {
		if count > bestCount {
			best = key
			bestCount = count
		}
	}
	if bestCount < 0 {
		return "", domain.NewParseError("image", fmt.Errorf("image has no pixels"))
	}

	return fmt.Sprintf("#%06x", best), nil
}
