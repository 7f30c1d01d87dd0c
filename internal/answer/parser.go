package answer

import (
	"fmt"
	"regexp"
	"strings"
)

// Fallback texts used when a section is missing from the reply.
const (
	NoResponse  = "No response generated."
	NoKeyPoints = "No key points provided due to incomplete response."
	NoGuidance  = "No guidance provided due to incomplete response."
)

// Section identifies the part of the reply a line belongs to.
type Section int

const (
	SectionNone Section = iota
	SectionSummary
	SectionKeyPoints
	SectionGuidance
)

func (s Section) String() string {
	switch s {
	case SectionSummary:
		return "summary"
	case SectionKeyPoints:
		return "key_points"
	case SectionGuidance:
		return "guidance"
	default:
		return "none"
	}
}

// Header describes one section heading. Label is a case-insensitive regular
// expression fragment for the heading text, without decoration.
type Header struct {
	Section Section
	Label   string
}

// DefaultHeaders accept the heading variants seen from common providers,
// e.g. "Summary:", "**Summary**:", "## Summary", "Key Points (3 bullets):"
// and "**Guidance for Use**".
func DefaultHeaders() []Header {
	return []Header{
		{Section: SectionSummary, Label: `summary`},
		{Section: SectionKeyPoints, Label: `key\s+points(?:\s*\([^)]*\))?`},
		{Section: SectionGuidance, Label: `guidance(?:\s+for\s+use)?`},
	}
}

type compiledHeader struct {
	section Section
	re      *regexp.Regexp
}

// Parser turns a free-text reply into the three answer sections. It is a
// small state machine: heading lines move the cursor, other lines are
// accumulated into the current section.
type Parser struct {
	headers []compiledHeader
}

// Parsed holds the sections of one reply.
type Parsed struct {
	Summary   string
	KeyPoints []string
	Guidance  string
}

// NewParser compiles the given headers, or DefaultHeaders when none are given.
func NewParser(headers ...Header) (*Parser, error) {
	if len(headers) == 0 {
		headers = DefaultHeaders()
	}
	p := &Parser{}
	for _, h := range headers {
		// Groups: 1 hash prefix, 2 open bold, 3 close bold, 4 colon, 5 bold after colon, 6 rest.
		re, err := regexp.Compile(`(?i)^(#{1,6}\s*)?(\*\*|__)?\s*(?:` + h.Label + `)\s*(\*\*|__)?\s*(:)?\s*(\*\*|__)?\s*(.*)$`)
		if err != nil {
			return nil, fmt.Errorf("compiling %s header %q: %w", h.Section, h.Label, err)
		}
		p.headers = append(p.headers, compiledHeader{section: h.Section, re: re})
	}
	return p, nil
}

// MustParser is NewParser that panics on an invalid pattern.
func MustParser(headers ...Header) *Parser {
	p, err := NewParser(headers...)
	if err != nil {
		panic(err)
	}
	return p
}

// match reports whether line is a heading, and any text trailing it.
// A heading needs some decoration: a leading '#', bold that is closed, or
// a colon. "Summary of the lease" is body text, "Summary:" is a heading.
// Bold after the colon closes the heading only when the heading opened bold
// and left it open ("**Summary:**"); otherwise it belongs to the body.
func (p *Parser) match(line string) (Section, string, bool) {
	for _, h := range p.headers {
		idx := h.re.FindStringSubmatchIndex(line)
		if idx == nil {
			continue
		}
		group := func(i int) string {
			if idx[2*i] < 0 {
				return ""
			}
			return line[idx[2*i]:idx[2*i+1]]
		}
		hash, open, closeBold, colon, afterColon := group(1), group(2), group(3), group(4), group(5)

		restStart := idx[12]
		if afterColon != "" && (open == "" || closeBold != "") {
			restStart = idx[10]
			afterColon = ""
		}

		bold := open != "" && (closeBold != "" || afterColon != "")
		if open != "" && !bold {
			continue
		}
		if hash == "" && !bold && colon == "" {
			continue
		}
		return h.section, strings.TrimSpace(line[restStart:]), true
	}
	return SectionNone, "", false
}

// Parse scans reply line by line. Lines before the first heading are ignored.
// Summary lines are joined with spaces, guidance lines with newlines, and
// key points are bullet lines ("-" or "*") with the marker stripped.
func (p *Parser) Parse(reply string) Parsed {
	var (
		out      Parsed
		current  = SectionNone
		summary  []string
		guidance []string
	)

	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if section, rest, ok := p.match(line); ok {
			current = section
			switch section {
			case SectionSummary:
				summary = nil
				if rest != "" {
					summary = append(summary, rest)
				}
			case SectionGuidance:
				guidance = nil
				if rest != "" {
					guidance = append(guidance, rest)
				}
			}
			continue
		}

		switch current {
		case SectionKeyPoints:
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
				out.KeyPoints = append(out.KeyPoints, strings.TrimSpace(line[1:]))
			}
		case SectionSummary:
			summary = append(summary, line)
		case SectionGuidance:
			guidance = append(guidance, line)
		}
	}

	out.Summary = strings.Join(summary, " ")
	out.Guidance = strings.Join(guidance, "\n")
	return out
}

// WithFallbacks fills every empty section. An empty summary becomes the raw
// reply verbatim, or NoResponse when the reply is empty.
func (pr Parsed) WithFallbacks(reply string) (Parsed, []Section) {
	var filled []Section
	if pr.Summary == "" {
		pr.Summary = reply
		if reply == "" {
			pr.Summary = NoResponse
		}
		filled = append(filled, SectionSummary)
	}
	if len(pr.KeyPoints) == 0 {
		pr.KeyPoints = []string{NoKeyPoints}
		filled = append(filled, SectionKeyPoints)
	}
	if pr.Guidance == "" {
		pr.Guidance = NoGuidance
		filled = append(filled, SectionGuidance)
	}
	return pr, filled
}
