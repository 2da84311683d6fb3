package audio

import "strings"

// Format is an audio container/codec tag understood by the upstream provider.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatM4A  Format = "m4a"
	FormatAAC  Format = "aac"
	FormatOpus Format = "opus"
)

// rule lists the MIME substrings and filename suffixes that identify a format.
type rule struct {
	format   Format
	mimeSubs []string
	exts     []string
}

// rules are evaluated in order; the first match wins. audio/mp4 must hit m4a
// before any weaker signal, and "audio/ogg; codecs=opus" stays ogg.
var rules = []rule{
	{FormatWAV, []string{"wav"}, []string{".wav"}},
	{FormatMP3, []string{"mp3", "mpeg"}, []string{".mp3"}},
	{FormatOGG, []string{"ogg"}, []string{".ogg", ".oga"}},
	{FormatFLAC, []string{"flac"}, []string{".flac"}},
	{FormatM4A, []string{"m4a", "mp4"}, []string{".m4a"}},
	{FormatAAC, []string{"aac"}, []string{".aac"}},
	{FormatOpus, []string{"opus"}, []string{".opus"}},
}

// Detect classifies an upload from its declared content type and filename.
// Both inputs are untrusted and may be empty. Matching is case-insensitive.
// Returns FormatWAV when nothing matches.
func Detect(mimeType, filename string) Format {
	m := strings.ToLower(mimeType)
	name := strings.ToLower(filename)

	for _, r := range rules {
		for _, sub := range r.mimeSubs {
			if strings.Contains(m, sub) {
				return r.format
			}
		}
		for _, ext := range r.exts {
			if strings.HasSuffix(name, ext) {
				return r.format
			}
		}
	}
	return FormatWAV
}

// Known reports whether f is one of the enumerated formats.
func (f Format) Known() bool {
	for _, r := range rules {
		if r.format == f {
			return true
		}
	}
	return false
}

// Extension returns the file extension (with dot) used when writing audio of
// this format to disk. Unknown formats get ".bin".
func (f Format) Extension() string {
	if !f.Known() {
		return ".bin"
	}
	return "." + string(f)
}

func (f Format) String() string { return string(f) }
