package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageBatchSize is the number of images sent per call
const DefaultImageBatchSize = 5

// PhotoDescriptionFile is written into the source folder after photos are described
const PhotoDescriptionFile = "_photo_inventory_description.txt"

const photoSystemPrompt = "You are an expert inventory specialist and auction cataloger. " +
	"Describe the items shown in the images in detail, suitable for an auction proposal or inventory list."

const photoUserPrompt = "Describe every distinct item visible in these photos. " +
	"Group similar items, note condition, materials and notable brands or markings."

// BatchResult is the outcome of describing one batch of images
type BatchResult struct {
	Index  int
	Images []string
	Text   string
	Err    error
}

// PhotoDescription merges the successful batches in submission order
type PhotoDescription struct {
	Text    string
	Batches []BatchResult
	Usage   Usage
}

// Failed returns the number of batches that produced no description
func (d *PhotoDescription) Failed() int {
	n := 0
	for _, b := range d.Batches {
		if b.Err != nil {
			n++
		}
	}
	return n
}

// DescribePhotos sends images to the assistant in batches of batchSize.
// A failed batch is recorded and skipped; later batches still run.
func (c *Client) DescribePhotos(ctx context.Context, images []string, batchSize int) *PhotoDescription {
	if batchSize <= 0 {
		batchSize = DefaultImageBatchSize
	}

	desc := &PhotoDescription{}
	var parts []string

	for start, idx := 0, 0; start < len(images); start, idx = start+batchSize, idx+1 {
		end := min(start+batchSize, len(images))
		batch := images[start:end]
		res := BatchResult{Index: idx, Images: batch}

		if err := ctx.Err(); err != nil {
			res.Err = err
			desc.Batches = append(desc.Batches, res)
			continue
		}

		text, usage, err := c.describeBatch(ctx, batch)
		if err != nil {
			c.log.Warn("assistant.photos.batch_failed", "batch", idx, "images", len(batch), "error", err)
			res.Err = err
		} else {
			res.Text = text
			parts = append(parts, text)
			desc.Usage.Add(usage)
		}
		desc.Batches = append(desc.Batches, res)
	}

	desc.Text = strings.Join(parts, "\n\n")
	return desc
}

func (c *Client) describeBatch(ctx context.Context, batch []string) (string, Usage, error) {
	content := []ContentPart{{Type: "text", Text: photoUserPrompt}}
	for _, path := range batch {
		url, err := readAsDataURL(path)
		if err != nil {
			c.log.Warn("assistant.photos.unreadable", "file", filepath.Base(path), "error", err)
			continue
		}
		content = append(content, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url, Detail: "auto"}})
	}
	if len(content) == 1 {
		return "", Usage{}, fmt.Errorf("no readable images in batch")
	}

	completion, err := c.Complete(ctx, []Message{
		{Role: "system", Content: photoSystemPrompt},
		{Role: "user", Content: content},
	}, false)
	if err != nil {
		return "", Usage{}, err
	}
	return completion.Content, completion.Usage, nil
}

// SavePhotoDescription writes text next to the source documents
func SavePhotoDescription(dir, text string) (string, error) {
	path := filepath.Join(dir, PhotoDescriptionFile)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("save photo description: %w", err)
	}
	return path, nil
}

func readAsDataURL(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	ext := strings.ToLower(filepath.Ext(path))
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		switch ext {
		case ".jpg", ".jpeg":
			mt = "image/jpeg"
		case ".png":
			mt = "image/png"
		default:
			mt = "application/octet-stream"
		}
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
