package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// HandlerConfig configures the upload handler.
type HandlerConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes.
	// Default: 10MB.
	MaxFileSize int64

	// AllowedTypes is a list of allowed MIME types. If empty, common
	// image types are allowed.
	AllowedTypes []string

	// KeyFunc derives the storage key for an upload. The default places
	// objects under the first two characters of a random ID.
	KeyFunc func(filename string) string

	// OnSaved is called after a successful save, letting the application
	// record the object in its catalog. Returning an error fails the
	// upload; the stored object is removed.
	OnSaved func(ctx context.Context, obj *Object, filename string) (id string, err error)
}

// DefaultHandlerConfig returns a HandlerConfig with sensible defaults.
func DefaultHandlerConfig() *HandlerConfig {
	return &HandlerConfig{
		MaxFileSize: 10 * 1024 * 1024,
		AllowedTypes: []string{
			"image/png", "image/jpeg", "image/gif", "image/webp", "image/svg+xml",
		},
	}
}

// Handler returns an http.Handler for media uploads.
//
// The handler expects a multipart form with a "file" field and responds
// with JSON:
//
//	{"id": "...", "key": "ab/abcdef-cat.png", "size": 1234}
func Handler(store Store, config *HandlerConfig) http.Handler {
	if config == nil {
		config = DefaultHandlerConfig()
	}
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	allowed := config.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultHandlerConfig().AllowedTypes
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultKey
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Limit request body size BEFORE parsing to prevent DoS.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !typeAllowed(allowed, contentType) {
			http.Error(w, "Unsupported media type", http.StatusUnsupportedMediaType)
			return
		}

		key := keyFunc(header.Filename)
		obj, err := store.Save(r.Context(), key, contentType, file)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Upload failed", http.StatusInternalServerError)
			return
		}

		var id string
		if config.OnSaved != nil {
			id, err = config.OnSaved(r.Context(), obj, header.Filename)
			if err != nil {
				store.Delete(r.Context(), key)
				http.Error(w, "Upload failed", http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   id,
			"key":  obj.Key,
			"size": obj.Size,
		})
	})
}

// defaultKey derives a collision-free storage key that keeps the original
// extension and fans keys out over 256 prefixes.
func defaultKey(filename string) string {
	id := uuid.NewString()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s%s", id[:2], id, ext)
}

func typeAllowed(allowed []string, contentType string) bool {
	for _, t := range allowed {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}
