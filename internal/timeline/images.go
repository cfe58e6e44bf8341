package timeline

import "strings"

const dataImagePrefix = "data:image/"

// extractDataImages pulls inline image data URIs out of message text,
// returning the cleaned prose and the extracted URIs in order of
// appearance. The scan is a single forward pass, so large base64 payloads
// cost linear time, and running it over already-cleaned text is a no-op.
func extractDataImages(text string) (string, []string) {
	start := strings.Index(text, dataImagePrefix)
	if start < 0 {
		return text, nil
	}
	var cleaned strings.Builder
	var images []string
	rest := text
	for start >= 0 {
		prefix := rest[:start]
		end := start + len(dataImagePrefix)
		for end < len(rest) && isDataURIByte(rest[end]) {
			end++
		}
		uri := rest[start:end]
		if strings.Contains(uri, ";base64,") {
			images = append(images, uri)
			cleaned.WriteString(strings.TrimRight(prefix, " \t"))
		} else {
			cleaned.WriteString(prefix)
			cleaned.WriteString(uri)
		}
		rest = rest[end:]
		start = strings.Index(rest, dataImagePrefix)
	}
	cleaned.WriteString(rest)
	clean := cleaned.String()
	if len(images) > 0 {
		clean = strings.TrimSpace(clean)
	}
	return clean, images
}

// isDataURIByte reports whether b can appear inside a data URI: the
// mediatype, the base64 marker, and the payload alphabet.
func isDataURIByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '+', '/', '=', ';', ',', '-', '.':
		return true
	}
	return false
}
