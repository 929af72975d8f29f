package workflow

import (
	"regexp"
	"strconv"
	"strings"
)

// Inbound messages may carry upload markers appended by the transport:
//
//	grade these please [attached: /uploads/a.pdf, /uploads/b.zip]
//
// ParseAttachments splits the marker off and returns the refs plus the
// remaining text.
var attachmentRe = regexp.MustCompile(`\[attached:\s*([^\]]+)\]`)

func ParseAttachments(message string) (refs []string, text string) {
	matches := attachmentRe.FindStringSubmatch(message)
	text = strings.TrimSpace(attachmentRe.ReplaceAllString(message, ""))
	if matches == nil {
		return nil, text
	}
	for _, part := range strings.Split(matches[1], ",") {
		if p := strings.TrimSpace(part); p != "" {
			refs = append(refs, p)
		}
	}
	return refs, text
}

var negativeWords = map[string]struct{}{
	"no": {}, "none": {}, "nope": {}, "skip": {}, "nothing": {},
}

// isNegative reports whether the message declines an optional item.
func isNegative(message string) bool {
	for _, w := range tokenize(message) {
		if _, ok := negativeWords[w]; ok {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// parseFormatAndCount extracts the essay format marker and an optional
// student count from a message like "handwritten, 23 students".
func parseFormatAndCount(message string) (format string, count int) {
	for _, w := range tokenize(message) {
		switch w {
		case "handwritten", "scanned":
			format = "handwritten"
		case "typed", "digital":
			format = "typed"
		default:
			if n, err := strconv.Atoi(w); err == nil && n > 0 && count == 0 {
				count = n
			}
		}
	}
	return format, count
}

// parseCorrections reads teacher corrections from a validate-phase message.
// Accepted forms, one per line:
//
//	essay-12: Jane Doe
//	Jon Doe -> John Doe
func parseCorrections(message string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.Index(line, "->"); i >= 0 {
			key := strings.TrimSpace(line[:i])
			val := strings.TrimSpace(line[i+2:])
			if key != "" && val != "" {
				out[key] = val
			}
			continue
		}
		if i := strings.Index(line, ":"); i >= 0 {
			key := strings.TrimSpace(line[:i])
			val := strings.TrimSpace(line[i+1:])
			if key != "" && val != "" {
				out[key] = val
			}
		}
	}
	return out
}
