package ssml

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
)

func mustParse(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("document is not well-formed xml: %v\n%s", err, doc)
		}
	}
}

func TestBuildWellFormed(t *testing.T) {
	doc := Build("Hello", "zh-CN-XiaoxiaoMultilingualNeural", "0", "0", "general")

	mustParse(t, doc)
	if got := strings.Count(doc, "Hello"); got != 1 {
		t.Fatalf("expected text exactly once, found %d times", got)
	}
	if !strings.Contains(doc, `rate="0%"`) || !strings.Contains(doc, `pitch="0%"`) {
		t.Fatalf("rate/pitch must be rendered as percentages: %s", doc)
	}
	if !strings.Contains(doc, `<voice name="zh-CN-XiaoxiaoMultilingualNeural">`) {
		t.Fatalf("voice element missing: %s", doc)
	}
	if !strings.Contains(doc, `style="general" styledegree="1.0" role="default"`) {
		t.Fatalf("expressive style element missing: %s", doc)
	}
}

func TestBuildEscapesMarkup(t *testing.T) {
	doc := Build(`<break time="10s"/> & "quotes"`, "voice", "0", "0", "general")

	if strings.Contains(doc, "<break") {
		t.Fatalf("unescaped element injected: %s", doc)
	}
	if strings.Contains(doc, `& "`) {
		t.Fatalf("bare ampersand survived: %s", doc)
	}
	if !strings.Contains(doc, "&lt;break") {
		t.Fatalf("expected escaped markup: %s", doc)
	}
	mustParse(t, doc)
}

func TestBuildEscapesAttributes(t *testing.T) {
	doc := Build("hi", `v" rate="99`, "0", "0", "general")
	mustParse(t, doc)
	if strings.Contains(doc, `name="v" rate="99"`) {
		t.Fatalf("attribute value not escaped: %s", doc)
	}
}

func TestBuildNegativeRates(t *testing.T) {
	doc := Build("hi", "voice", "-20", "15", "cheerful")
	if !strings.Contains(doc, `rate="-20%"`) || !strings.Contains(doc, `pitch="15%"`) {
		t.Fatalf("signed percentages not preserved: %s", doc)
	}
}
