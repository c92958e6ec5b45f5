package extract

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Kind is the detected type of a source file
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

// SniffLen is the number of leading bytes used for content sniffing
const SniffLen = 512

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".csv":  true,
	".json": true,
	".html": true,
	".xml":  true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
}

// sniffedImages are the detected image types matching imageExtensions
var sniffedImages = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
}

// IsImageExtension reports whether name has a supported image extension
func IsImageExtension(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Classify detects the kind of name by extension, falling back to
// sniffing head, the first bytes of the file
func Classify(name string, head []byte) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		return KindPDF
	case textExtensions[ext]:
		return KindText
	case imageExtensions[ext]:
		return KindImage
	}

	if len(head) == 0 {
		return KindUnsupported
	}
	return kindFromMIME(http.DetectContentType(head))
}

func kindFromMIME(mime string) Kind {
	switch {
	case mime == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mime, "text/"):
		return KindText
	case sniffedImages[mime]:
		return KindImage
	default:
		return KindUnsupported
	}
}
