package capture

import "strings"

var fileNameReplacer = strings.NewReplacer("https://", "", "http://", "", "/", "_")

// FileName derives the image file name for a URL: the scheme is dropped and
// slashes become underscores. Distinct URLs may collide; the later capture
// overwrites the earlier one.
func FileName(rawURL string) string {
	return fileNameReplacer.Replace(rawURL) + ".png"
}
