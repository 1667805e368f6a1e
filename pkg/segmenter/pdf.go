package segmenter

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDFPages extracts text from each page independently. Pages with no
// extractable text are dropped; page numbers are 1-based. A PDF that
// cannot be opened at all contributes nothing.
func readPDFPages(data []byte) []pageText {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	var pages []pageText
	for i := 1; i <= reader.NumPage(); i++ {
		text := extractPage(reader, i)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, pageText{text: text, page: i, pdf: true})
	}
	return pages
}

func extractPage(reader *pdf.Reader, num int) (text string) {
	// The pdf package panics on some malformed content streams; a corrupt
	// page counts as empty, not as a failure of the whole file.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}
