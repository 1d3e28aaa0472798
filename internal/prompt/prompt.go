// Package prompt resolves generation templates against a transcription.
package prompt

import "strings"

// Placeholder is the reserved token replaced by Resolve. It is the only
// substitution syntax templates support.
const Placeholder = "{transcription}"

// Resolve replaces every occurrence of the placeholder with the transcription
// text. Templates without the placeholder come back unchanged; Resolve never
// fails.
func Resolve(template, transcription string) string {
	return strings.ReplaceAll(template, Placeholder, transcription)
}
