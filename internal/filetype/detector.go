package filetype

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Renderable  bool // MuPDF can paginate and rasterize it
	Description string
}

// fallbackMIME is used when sniffing finds nothing more specific.
const fallbackMIME = "application/octet-stream"

// DetectBytes sniffs data by magic bytes. It never fails; unknown content
// comes back as application/octet-stream and not renderable.
func DetectBytes(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	// drop parameters such as "; charset=utf-8"
	if i := strings.Index(info.MIMEType, ";"); i >= 0 {
		info.MIMEType = strings.TrimSpace(info.MIMEType[:i])
	}
	if info.MIMEType == "" {
		info.MIMEType = fallbackMIME
	}
	classify(info)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("renderable", info.Renderable).Int("bytes", len(data)).Msg("detected content type")
	return info
}

// classify marks the formats go-fitz can open as paginated documents.
func classify(info *FileTypeInfo) {
	switch info.MIMEType {
	case "application/pdf":
		info.Renderable = true
		info.Description = "PDF document"
	case "application/vnd.ms-xpsdocument", "application/oxps":
		info.Renderable = true
		info.Description = "XPS document"
	case "application/epub+zip":
		info.Renderable = true
		info.Description = "EPUB book"
	case "application/x-fictionbook+xml":
		info.Renderable = true
		info.Description = "FictionBook"
	case "image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff":
		info.Renderable = true
		info.Description = "Image file"
	default:
		info.Renderable = false
		info.Description = "Unsupported content: " + info.MIMEType
	}
}
