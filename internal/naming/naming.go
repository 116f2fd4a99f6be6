// Package naming implements the file naming policy: snake_case
// normalization of user-supplied captions and filenames, detection of
// placeholder names that require a user-provided base name, and batch
// renaming for upload.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Word characters plus ñ and Spanish accented vowels. Everything else is stripped.
	invalidCharRe = regexp.MustCompile(`[^\wñáéíóúü]`)

	// Autogenerated Telegram placeholder names: photo_<uniqueId>.jpg and
	// friends. Telegram unique ids are long opaque strings; requiring at
	// least 5 id characters keeps short human-chosen names like
	// "photo_x.jpg" out of the match.
	generatedNameRe = regexp.MustCompile(`^(photo|video)_[A-Za-z0-9_-]{5,}\.[A-Za-z0-9]+$`)
)

// Literal placeholder names some Telegram clients attach to media.
const (
	placeholderPhoto = "foto.jpg"
	placeholderVideo = "video.mp4"
)

// ToSnakeCase lowercases text, collapses whitespace runs into single
// underscores, strips characters other than word characters, ñ and Spanish
// accented vowels, and trims leading and trailing underscores.
func ToSnakeCase(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = invalidCharRe.ReplaceAllString(s, "")
	return strings.Trim(s, "_")
}

// ApplySnakeCaseToFileName snake-cases a filename while preserving its
// extension. The extension is everything after the LAST dot, so a multi-dot
// name keeps only its final extension: "archivo.tar.gz" becomes
// "archivotar.gz". That quirk is intentional behavior, pinned by tests; do
// not change it without product input.
// An empty name stays empty.
func ApplySnakeCaseToFileName(name string) string {
	if name == "" {
		return ""
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ToSnakeCase(name)
	}
	return ToSnakeCase(name[:idx]) + strings.ToLower(name[idx:])
}

// NeedsUserProvidedName reports whether a filename is a placeholder that the
// conversational flow should replace with a user-chosen base name: empty,
// one of the literal client defaults, or an autogenerated photo_<id>/
// video_<id> name.
func NeedsUserProvidedName(fileName string) bool {
	if fileName == "" {
		return true
	}
	if fileName == placeholderPhoto || fileName == placeholderVideo {
		return true
	}
	return generatedNameRe.MatchString(fileName)
}

// File is the minimal view of an upload candidate the naming policy needs.
type File struct {
	Name string
	Mime string
}

// SkipKeyword bypasses the base name prompt, keeping autogenerated names.
const SkipKeyword = "skip"

// IsSkip reports whether text is the case-insensitive skip keyword.
func IsSkip(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), SkipKeyword)
}

// RenameForUpload computes the storage name of every file in order.
//
// Files whose name needs user input receive baseName with a 1-based sequence
// suffix before the extension (basename_1.ext, basename_2.ext, ...). The
// sequence counts only across files needing a name; files with a good name
// keep it, passed through ApplySnakeCaseToFileName, and do not consume a
// sequence number. When baseName is empty or the skip keyword, files needing
// a name keep their autogenerated name unchanged.
func RenameForUpload(files []File, baseName string) []string {
	skip := baseName == "" || IsSkip(baseName)
	base := ToSnakeCase(baseName)

	names := make([]string, len(files))
	seq := 0
	for i, f := range files {
		if !NeedsUserProvidedName(f.Name) {
			names[i] = ApplySnakeCaseToFileName(f.Name)
			continue
		}
		if skip || base == "" {
			names[i] = f.Name
			continue
		}
		seq++
		names[i] = fmt.Sprintf("%s_%d%s", base, seq, extensionOf(f))
	}
	return names
}

// extensionOf returns the extension (with dot) of a file, falling back to
// the mime type when the name has none.
func extensionOf(f File) string {
	if idx := strings.LastIndex(f.Name, "."); idx >= 0 {
		return strings.ToLower(f.Name[idx:])
	}
	return ExtensionForMime(f.Mime)
}

// ExtensionForMime maps common Telegram media mime types to an extension.
func ExtensionForMime(mime string) string {
	switch {
	case mime == "image/jpeg" || mime == "image/jpg":
		return ".jpg"
	case mime == "image/png":
		return ".png"
	case mime == "video/mp4":
		return ".mp4"
	case mime == "application/pdf":
		return ".pdf"
	case strings.HasPrefix(mime, "image/"):
		return ".jpg"
	case strings.HasPrefix(mime, "video/"):
		return ".mp4"
	default:
		return ".bin"
	}
}

// DefaultFileName builds the deterministic placeholder name used when
// Telegram provides no filename: photo_<uniqueId>.jpg or video_<uniqueId>.mp4.
func DefaultFileName(mime, uniqueID string) string {
	if strings.HasPrefix(mime, "video/") {
		return "video_" + uniqueID + ".mp4"
	}
	return "photo_" + uniqueID + ".jpg"
}
