package action

import (
	"fmt"
	"strings"
)

// DocumentsPath is the dashboard documents route, team scoped when teamURL is set.
func DocumentsPath(teamURL string) string {
	if teamURL == "" {
		return "/documents"
	}
	return fmt.Sprintf("/t/%s/documents", teamURL)
}

func EditPath(teamURL string, docID uint64) string {
	return fmt.Sprintf("%s/%d", DocumentsPath(teamURL), docID)
}

func SigningPath(token string) string {
	return "/sign/" + token
}

// DownloadFileName turns a document title into the name of the signed copy.
// "Contract.pdf" becomes "Contract_signed.pdf"; an empty base gives "document.pdf".
func DownloadFileName(title string) string {
	base, _, _ := strings.Cut(title, ".pdf")
	if base == "" {
		return "document.pdf"
	}
	return base + "_signed.pdf"
}
