package action

import (
	"esign-dashboard/internal/i18n"
	"fmt"
	"net/http"
)

// Control is the single interactive element rendered for a document row.
type Control struct {
	Action   Kind   `json:"action"`
	Label    string `json:"label"`
	Href     string `json:"href,omitempty"`
	Method   string `json:"method,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Present binds a resolved kind to a control. KindNone renders nothing.
func Present(kind Kind, s Subject, t i18n.Translator) *Control {
	switch kind {
	case KindEdit:
		return &Control{
			Action: kind,
			Label:  t.T("edit"),
			Href:   EditPath(teamURL(s), s.Document.ID),
			Method: http.MethodGet,
		}
	case KindSign, KindApprove, KindView:
		c := &Control{Action: kind, Label: t.T(string(kind)), Method: http.MethodGet}
		if r := s.Recipient(); r != nil {
			c.Href = SigningPath(r.Token)
		}
		return c
	case KindViewDisabled:
		return &Control{Action: kind, Label: t.T("view"), Disabled: true}
	case KindDownload:
		return &Control{
			Action: kind,
			Label:  t.T("download"),
			Href:   apiPath(s, "download"),
			Method: http.MethodGet,
		}
	case KindShare:
		return &Control{
			Action: kind,
			Label:  t.T("share"),
			Href:   apiPath(s, "share"),
			Method: http.MethodPost,
		}
	}
	return nil
}

// PresentMenu fills in the item labels.
func PresentMenu(items []MenuItem, t i18n.Translator) []MenuItem {
	for i := range items {
		items[i].Label = t.T(string(items[i].Action))
	}
	return items
}

func apiPath(s Subject, op string) string {
	path := fmt.Sprintf("/documents/%d/%s", s.Document.ID, op)
	if url := teamURL(s); url != "" {
		path += "?team=" + url
	}
	return path
}
