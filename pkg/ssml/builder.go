// Package ssml renders the fixed-shape synthesis document the speech
// endpoint accepts. The shape is deliberately rigid: one voice, one
// expressive style at fixed intensity, one prosody element.
package ssml

import (
	"fmt"
	"html"
	"strings"
)

const document = `<speak xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="http://www.w3.org/2001/mstts" version="1.0" xml:lang="zh-CN">
  <voice name="%s">
    <mstts:express-as style="%s" styledegree="1.0" role="default">
      <prosody rate="%s%%" pitch="%s%%">
        %s
      </prosody>
    </mstts:express-as>
  </voice>
</speak>`

// Build renders the SSML body for one utterance. All inputs are escaped
// so embedded markup cannot inject additional elements.
func Build(text, voiceName, rate, pitch, style string) string {
	return strings.TrimSpace(fmt.Sprintf(document,
		html.EscapeString(voiceName),
		html.EscapeString(style),
		html.EscapeString(rate),
		html.EscapeString(pitch),
		html.EscapeString(text),
	))
}
