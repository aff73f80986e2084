// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Upload kinds. Each kind maps to a fixed output geometry and a
// subdirectory under the uploads root.
const (
	KindAvatar = "avatar"
	KindCover  = "cover"
	KindPost   = "post"
	KindThumb  = "thumb"
)

// VariantConfig describes the output geometry for one upload kind.
type VariantConfig struct {
	Width   int
	Height  int
	Quality int
	Crop    bool // crop to exact size from center; otherwise fit within bounds
}

// Variants holds the processing configuration per upload kind.
var Variants = map[string]VariantConfig{
	KindAvatar: {Width: 256, Height: 256, Quality: 85, Crop: true},
	KindCover:  {Width: 1200, Height: 400, Quality: 85, Crop: true},
	KindPost:   {Width: 1600, Height: 1200, Quality: 90, Crop: false},
	KindThumb:  {Width: 400, Height: 300, Quality: 80, Crop: true},
}

// Supported MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// ProcessResult contains the result of processing an uploaded image.
type ProcessResult struct {
	RelPath  string // path relative to the uploads root, e.g. "avatar/xxx.jpg"
	Width    int
	Height   int
	MimeType string
	Size     int64
}

// Processor resizes and stores uploaded images using pure Go libraries.
type Processor struct {
	uploadDir string
}

// NewProcessor creates a new image processor rooted at uploadDir.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
	}
}

// SaveImage decodes an uploaded image, corrects EXIF orientation, resizes it
// per the kind's variant config, and stores it under the uploads root.
// For KindPost a thumbnail with the same file name is written under the
// thumb directory as well.
// Returns the stored path relative to the uploads root.
func (p *Processor) SaveImage(r io.Reader, kind string) (*ProcessResult, error) {
	cfg, ok := Variants[kind]
	if !ok {
		return nil, fmt.Errorf("unknown upload kind %q", kind)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("unsupported image format")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Read EXIF orientation and auto-rotate
	orientation := readExifOrientation(bytes.NewReader(data))
	img = applyOrientation(img, orientation)

	resized := resize(img, cfg)
	bounds := resized.Bounds()

	// WebP decoding is supported but pure Go encoding is not; re-encode as JPEG.
	if format == "webp" {
		format = "jpeg"
	}

	processed, err := encodeImage(resized, format, cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	name := uuid.New().String() + formatToExt(format)
	if err := p.saveImageFile(kind, name, processed); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	if kind == KindPost {
		if err := p.saveThumb(img, name, format); err != nil {
			// Thumb failure must not lose the already stored main image.
			_ = p.DeleteImage(filepath.Join(KindPost, name))
			return nil, err
		}
	}

	return &ProcessResult{
		RelPath:  filepath.Join(kind, name),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MimeType: formatToMimeType(format),
		Size:     int64(len(processed)),
	}, nil
}

// saveThumb writes the post thumbnail variant, reusing the main image's name.
func (p *Processor) saveThumb(img image.Image, name, format string) error {
	cfg := Variants[KindThumb]
	thumb := resize(img, cfg)
	encoded, err := encodeImage(thumb, format, cfg.Quality)
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := p.saveImageFile(KindThumb, name, encoded); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}

// DeleteImage removes a stored image by its relative path. For post images
// the matching thumbnail is removed too. Missing files are not an error.
func (p *Processor) DeleteImage(relPath string) error {
	abs, err := p.resolvePath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	dir, name := filepath.Split(filepath.Clean(relPath))
	if filepath.Clean(dir) == KindPost {
		thumbAbs, err := p.resolvePath(filepath.Join(KindThumb, name))
		if err != nil {
			return err
		}
		if err := os.Remove(thumbAbs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete thumbnail: %w", err)
		}
	}
	return nil
}

// ThumbPath returns the thumbnail path for a stored post image path, or ""
// if the path is not a post image.
func ThumbPath(relPath string) string {
	dir, name := filepath.Split(filepath.Clean(relPath))
	if filepath.Clean(dir) != KindPost {
		return ""
	}
	return filepath.Join(KindThumb, name)
}

// GetImageDimensions returns the dimensions of an image file.
func (p *Processor) GetImageDimensions(relPath string) (width, height int, err error) {
	abs, err := p.resolvePath(relPath)
	if err != nil {
		return 0, 0, err
	}

	file, err := os.Open(abs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Decode config only for efficiency (doesn't decode full image)
	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image config: %w", err)
	}

	return config.Width, config.Height, nil
}

// IsImage checks if a MIME type represents an image that can be processed.
func (p *Processor) IsImage(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// DetectMimeType detects the MIME type of image data.
func (p *Processor) DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	// http.DetectContentType returns types like "image/jpeg; charset=utf-8"
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// resize applies the variant geometry to an image.
func resize(img image.Image, cfg VariantConfig) image.Image {
	if cfg.Crop {
		// Crop to exact size from center
		return imaging.Fill(img, cfg.Width, cfg.Height, imaging.Center, imaging.Lanczos)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= cfg.Width && bounds.Dy() <= cfg.Height {
		// Never upscale
		return img
	}
	// Fit within bounds while maintaining aspect ratio
	return imaging.Fit(img, cfg.Width, cfg.Height, imaging.Lanczos)
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes an image to bytes with the specified format and quality.
func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		// Default to JPEG
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// formatToExt returns the file extension for a format.
func formatToExt(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return MimeTypeJPEG
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}

// resolvePath resolves a relative upload path to an absolute one, rejecting
// traversal outside the uploads root.
func (p *Processor) resolvePath(relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid upload path")
	}

	absBase, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	absTarget := filepath.Join(absBase, clean)
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected")
	}
	return absTarget, nil
}

// saveImageFile creates the kind directory if needed and writes image data.
func (p *Processor) saveImageFile(kind, name string, data []byte) error {
	abs, err := p.resolvePath(filepath.Join(kind, name))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
