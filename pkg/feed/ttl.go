package feed

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// extractTTL scans raw feed XML for an RSS <ttl> element directly inside
// <channel> and returns its value in minutes. Returns 0 when the element is
// absent, malformed or not positive. Atom feeds have no ttl and fall through
// to 0 naturally.
func extractTTL(body []byte) int {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false

	inChannel := false
	for {
		tok, err := dec.Token()
		if err == io.EOF || err != nil {
			return 0
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch strings.ToLower(t.Name.Local) {
			case "channel":
				inChannel = true
			case "ttl":
				if !inChannel {
					continue
				}
				var val string
				if err := dec.DecodeElement(&val, &t); err != nil {
					return 0
				}
				n, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil || n <= 0 {
					return 0
				}
				return n
			}
		case xml.EndElement:
			if strings.ToLower(t.Name.Local) == "channel" {
				return 0
			}
		}
	}
}
