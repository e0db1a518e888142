package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Variant is one rendition entry in a master playlist.
type Variant struct {
	URI       string
	Bandwidth int
	Width     int
	Height    int
}

// WriteMaster writes a minimal master playlist referencing the given
// variants. Variant URIs are written as-is; callers pass paths relative
// to the playlist location (e.g. "v0/index.m3u8").
func WriteMaster(w io.Writer, variants []Variant) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, v := range variants {
		buf.WriteString(fmt.Sprintf(
			"#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n%s\n",
			v.Bandwidth, v.Width, v.Height, v.URI,
		))
	}
	_, err := io.Copy(w, buf)
	return err
}

// WriteMasterFile writes a master playlist to path.
func WriteMasterFile(path string, variants []Variant) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create master playlist: %w", err)
	}
	if err := WriteMaster(f, variants); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseMaster parses a master playlist and returns its variants.
// Attributes other than BANDWIDTH and RESOLUTION are ignored.
func ParseMaster(r io.Reader) ([]Variant, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty playlist")
	}
	if header := strings.TrimSpace(scanner.Text()); header != "#EXTM3U" {
		return nil, fmt.Errorf("not an m3u8 playlist: first line %q", header)
	}

	var variants []Variant
	var pending *Variant

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v := Variant{}
			for _, attr := range splitAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:")) {
				key, value, ok := strings.Cut(attr, "=")
				if !ok {
					continue
				}
				switch strings.ToUpper(strings.TrimSpace(key)) {
				case "BANDWIDTH":
					v.Bandwidth, _ = strconv.Atoi(strings.TrimSpace(value))
				case "RESOLUTION":
					if wStr, hStr, ok := strings.Cut(strings.TrimSpace(value), "x"); ok {
						v.Width, _ = strconv.Atoi(wStr)
						v.Height, _ = strconv.Atoi(hStr)
					}
				}
			}
			pending = &v
		case strings.HasPrefix(line, "#"):
			continue
		default:
			// A non-comment line after a STREAM-INF tag is its URI.
			if pending != nil {
				pending.URI = line
				variants = append(variants, *pending)
				pending = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return variants, nil
}

// ParseMasterFile parses the master playlist at path.
func ParseMasterFile(path string) ([]Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMaster(f)
}

// splitAttributes splits an attribute list on commas, honoring quoted
// values (CODECS="avc1.4d401f,mp4a.40.2" is a single attribute).
func splitAttributes(s string) []string {
	var attrs []string
	var b strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			attrs = append(attrs, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		attrs = append(attrs, b.String())
	}
	return attrs
}
