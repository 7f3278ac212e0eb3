package domain

import "strings"

// PromptPayload is the assembled request for the generation service.
// Images hold base64 JPEG/PNG data without a data-URL prefix.
type PromptPayload struct {
	Blocks []string
	Images []string
}

// Text joins the text blocks in order.
func (p *PromptPayload) Text() string {
	return strings.Join(p.Blocks, "\n\n")
}

func (p *PromptPayload) HasImages() bool {
	return len(p.Images) > 0
}
