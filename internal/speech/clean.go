package speech

import (
	"regexp"
	"strings"
)

// annotation matches bracketed or parenthesized sound-effect tags the
// transcription model emits for non-speech audio: "(keyboard clicking)",
// "[BLANK_AUDIO]", "[Music]".
var annotation = regexp.MustCompile(`[\(\[][A-Za-z][A-Za-z_\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[[0-9:.,\s\->]+\]\s*`)

// cleanTranscription normalizes raw transcription text. It returns "" when
// nothing usable is left.
func cleanTranscription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = timestampPrefix.ReplaceAllString(s, "")
	s = annotation.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

var (
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	bracketPrefix = regexp.MustCompile(`^\[[A-Z]+\]\s*`)
)

// markdown rewrites are applied in order. Only paired emphasis and line-start
// markers are touched, so "Route #5" and "3 * 4" survive.
var markdown = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("(?m)^[ \t]*```\\w*[ \t]*$"), ""},
	{regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[*-][ \t]+`), ""},
	{regexp.MustCompile(`\*\*([^*\n]+)\*\*`), "$1"},
	{regexp.MustCompile(`__([^_\n]+)__`), "$1"},
	{regexp.MustCompile(`(^|[^\w*])\*([^*\s](?:[^*\n]*[^*\s])?)\*`), "${1}${2}"},
	{regexp.MustCompile("`([^`\\n]+)`"), "$1"},
}

// cleanForSpeech strips terminal styling and markdown formatting so the
// synthesizer does not read them aloud.
func cleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	for _, m := range markdown {
		cleaned = m.re.ReplaceAllString(cleaned, m.repl)
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
