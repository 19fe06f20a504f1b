package chat

import "strings"

// markerReplacer strips the markdown emphasis and heading markers that chat
// models sprinkle into replies. The text is spoken aloud, so the literal
// marker runs must not survive into the synthesized audio.
var markerReplacer = strings.NewReplacer(
	"**", "",
	"*", "",
	"__", "",
	"_", "",
	"##", "",
	"#", "",
)

// SanitizeReply removes markdown marker runs and trims surrounding whitespace.
func SanitizeReply(s string) string {
	return strings.TrimSpace(markerReplacer.Replace(s))
}
