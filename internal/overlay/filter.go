package overlay

import (
	"strconv"
	"strings"

	"video-overlay/internal/mediatypes"
)

// Fixed virtual filesystem names and the download name offered to the user.
const (
	InputName    = "input.mp4"
	OutputName   = "output.mp4"
	DownloadName = "processed-video.mp4"
	OutputMIME   = mediatypes.MP4
)

// TextStyle describes how the caption is drawn.
type TextStyle struct {
	FontSize    int
	FontColor   string
	BorderWidth int
	BorderColor string
	// X and Y are drawtext position expressions.
	X string
	Y string
}

// DefaultStyle draws white 48px text with a 4px black border, centered
// horizontally and 50px above the bottom edge.
var DefaultStyle = TextStyle{
	FontSize:    48,
	FontColor:   "white",
	BorderWidth: 4,
	BorderColor: "black",
	X:           "(w-text_w)/2",
	Y:           "(h-text_h)-50",
}

// whitespace matches the set FFmpeg's tokenizer skips and trims.
const whitespace = " \n\t\r"

// EscapeText quotes caption for use as the value of drawtext's text option
// inside a -vf argument.
//
// The option value is escaped first: backslash, quote and colon get a
// backslash, as do leading and trailing whitespace so the option parser
// keeps them. The result is then wrapped in single quotes for the
// filtergraph parser, with embedded quotes written as '\''. NUL bytes cannot
// be passed to a process and are dropped.
func EscapeText(caption string) string {
	caption = strings.ReplaceAll(caption, "\x00", "")

	lead := len(caption) - len(strings.TrimLeft(caption, whitespace))
	trail := len(strings.TrimRight(caption, whitespace))

	var opt strings.Builder
	opt.Grow(len(caption) + 8)
	for i := 0; i < len(caption); i++ {
		c := caption[i]
		switch {
		case c == '\\' || c == '\'' || c == ':':
			opt.WriteByte('\\')
		case (i < lead || i >= trail) && strings.IndexByte(whitespace, c) >= 0:
			opt.WriteByte('\\')
		}
		opt.WriteByte(c)
	}

	return "'" + strings.ReplaceAll(opt.String(), "'", `'\''`) + "'"
}

// DrawTextFilter returns the drawtext filter description for caption.
// Text expansion is disabled so the caption is drawn literally.
func DrawTextFilter(caption string, style TextStyle) string {
	opts := []string{
		"text=" + EscapeText(caption),
		"expansion=none",
		"fontsize=" + strconv.Itoa(style.FontSize),
		"fontcolor=" + style.FontColor,
		"borderw=" + strconv.Itoa(style.BorderWidth),
		"bordercolor=" + style.BorderColor,
		"x=" + style.X,
		"y=" + style.Y,
	}
	return "drawtext=" + strings.Join(opts, ":")
}

// Command returns the engine arguments that burn caption into InputName and
// write OutputName, copying the audio stream unchanged.
func Command(caption string, style TextStyle) []string {
	return []string{
		"-i", InputName,
		"-vf", DrawTextFilter(caption, style),
		"-codec:a", "copy",
		"-y", OutputName,
	}
}
