// Package captions turns raw caption payloads into plain transcript text and
// chooses which caption track and format to fetch.
package captions

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"golang.org/x/net/html/charset"
)

// Format names a caption payload encoding as used by the timedtext fmt
// parameter and extractor subtitle entries.
type Format string

const (
	FormatNone  Format = ""
	FormatVTT   Format = "vtt"
	FormatJSON3 Format = "json3"
	FormatSRV3  Format = "srv3"
	FormatSRV2  Format = "srv2"
	FormatSRV1  Format = "srv1"
	FormatTTML  Format = "ttml"
	FormatXML   Format = "xml"
)

// Parse extracts plain text from a caption payload. A vtt hint or header
// selects the VTT parser; a json3 hint or leading brace tries JSON3 and falls
// through to markup sniffing when that yields nothing. An empty result means
// the payload held no usable text.
func Parse(raw []byte, hint Format) string {
	body := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))
	if body == "" {
		return ""
	}
	if hint == FormatVTT || strings.HasPrefix(body, "WEBVTT") {
		return parseVTT(body)
	}
	if hint == FormatJSON3 || strings.HasPrefix(body, "{") {
		if text := parseJSON3(body); text != "" {
			return text
		}
	}
	switch {
	case strings.Contains(body, "<text") || strings.Contains(body, "<transcript"):
		return parseMarkup(body, "text")
	case strings.Contains(body, "<p") && strings.Contains(body, "</p>"):
		return parseMarkup(body, "p")
	}
	return ""
}

// parseVTT drops the header block, cue timings, cue numbers and inline markup.
// Rolling auto-captions repeat the previous line, so consecutive duplicates
// are folded.
func parseVTT(body string) string {
	var parts []string
	inHeader := strings.HasPrefix(body, "WEBVTT")
	prev := ""
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if inHeader {
			if line != "" && !strings.Contains(line, "-->") {
				continue
			}
			inHeader = false
		}
		if line == "" || strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") ||
			strings.Contains(line, "-->") || isDigits(line) {
			continue
		}
		text := engine.CleanHTML(line)
		if text == "" || text == prev {
			continue
		}
		parts = append(parts, text)
		prev = text
	}
	return engine.CollapseSpace(strings.Join(parts, " "))
}

type json3Doc struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// parseJSON3 concatenates every events[].segs[].utf8 fragment.
func parseJSON3(body string) string {
	var doc json3Doc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, ev := range doc.Events {
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		sb.WriteByte(' ')
	}
	return engine.CollapseSpace(sb.String())
}

// parseMarkup collects the text of every <tag> element in a timedtext, srv
// or TTML document, including text in nested spans. The decoder is lenient so
// stray entities and unclosed <br> tags do not end the document early.
func parseMarkup(body, tag string) string {
	d := xml.NewDecoder(strings.NewReader(body))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	var (
		parts []string
		cur   strings.Builder
		depth int
	)
	flush := func() {
		if text := engine.CleanHTML(cur.String()); text != "" {
			parts = append(parts, text)
		}
		cur.Reset()
	}
	for {
		tok, err := d.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("caption markup truncated", slog.Any("error", err))
			}
			if depth > 0 {
				flush()
			}
			return engine.CollapseSpace(strings.Join(parts, " "))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == tag:
				depth++
			case depth > 0 && t.Name.Local == "br":
				cur.WriteByte(' ')
			}
		case xml.EndElement:
			if t.Name.Local == tag && depth > 0 {
				depth--
				if depth == 0 {
					flush()
				}
			}
		case xml.CharData:
			if depth > 0 {
				cur.Write(t)
			}
		}
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
