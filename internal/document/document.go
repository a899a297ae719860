package document

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

// Sample is the built-in demo document.
const Sample = `The extractive summarization feature uses natural language processing techniques to locate key sentences in an unstructured text document.
    These sentences collectively convey the main idea of the document. This feature is provided as an API for developers.
    They can use it to build intelligent solutions based on the relevant information extracted to support various use cases.
    In the public preview, extractive summarization supports several languages. It is based on pretrained multilingual transformer models, part of our quest for holistic representations.
    It draws its strength from transfer learning across monolingual and harness the shared nature of languages to produce models of improved quality and efficiency.`

// Normalize trims every line, collapses runs of blanks inside lines and drops
// leading and trailing empty lines. With stripURLs, links are removed first.
func Normalize(text string, stripURLs bool) string {
	if stripURLs {
		text = xurls.Relaxed().ReplaceAllString(text, "")
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}
