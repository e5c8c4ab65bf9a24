package content

import (
	"context"
	"path"
	"strings"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
)

type MediaType string

const (
	MediaAudio   MediaType = "audio"
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaModel   MediaType = "model"
	MediaUnknown MediaType = "unknown"
)

var mediaTypesByExtension = map[string]MediaType{
	"mp3":   MediaAudio,
	"jpg":   MediaImage,
	"jpeg":  MediaImage,
	"png":   MediaImage,
	"webp":  MediaImage,
	"fset":  MediaImage,
	"fset3": MediaImage,
	"iset":  MediaImage,
	"mp4":   MediaVideo,
	"webm":  MediaVideo,
	"glb":   MediaModel,
	"gltf":  MediaModel,
	"obj":   MediaModel,
	"mtl":   MediaModel,
}

// MediaTypeOf classifies a file by its extension.
func MediaTypeOf(filename string) MediaType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if mediaType, ok := mediaTypesByExtension[ext]; ok {
		return mediaType
	}
	return MediaUnknown
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
}

func isImageFile(filename string) bool {
	return imageExtensions[strings.ToLower(path.Ext(filename))]
}

// listMedia returns every file below dir on trunk, skipping placeholders.
func (b *base) listMedia(ctx context.Context, dir string) ([]gitrepo.Entry, error) {
	entries, err := b.repo.ListFilesRecursive(ctx, dir)
	if err != nil {
		return nil, err
	}
	files := make([]gitrepo.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == ".gitkeep" {
			continue
		}
		files = append(files, entry)
	}
	return files, nil
}

// uploadName validates an uploaded file name and strips any directory part.
func uploadName(filename string, data []byte) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", cmserr.Validation("invalid file name %q", filename)
	}
	if len(data) == 0 {
		return "", cmserr.Validation("no file uploaded")
	}
	return name, nil
}
