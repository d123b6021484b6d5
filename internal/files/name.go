package files

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeName reduces an uploaded filename to a safe ASCII base name.
// Directory parts are dropped, runs of whitespace become underscores and
// leading dots or underscores are trimmed. When nothing usable remains, a
// random name is generated that keeps the original extension.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	ext := strings.ToLower(Ext(name))

	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	clean := strings.Join(strings.Fields(b.String()), "_")
	clean = unsafeNameChars.ReplaceAllString(clean, "")
	clean = strings.TrimLeft(clean, "._")

	stem := strings.TrimSuffix(clean, filepath.Ext(clean))
	if clean == "" || stem == "" || (ext != "" && !strings.EqualFold(filepath.Ext(clean), "."+ext)) {
		clean = "file_" + uuid.NewString()[:8]
		if ext != "" {
			clean += "." + ext
		}
	}
	return clean
}

// Ext returns the extension of name without the dot, as written.
func Ext(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}
