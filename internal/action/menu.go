package action

type MenuAction string

const (
	MenuSign           MenuAction = "sign"
	MenuEdit           MenuAction = "edit"
	MenuDownload       MenuAction = "download"
	MenuSaveAsTemplate MenuAction = "save-as-template"
	MenuDelete         MenuAction = "delete"
	MenuShare          MenuAction = "share"
)

type MenuItem struct {
	Action  MenuAction `json:"action"`
	Label   string     `json:"label"`
	Enabled bool       `json:"enabled"`
}

// Menu lists the secondary actions of a document row. Unlike the primary
// action every item is always present; only its enabled state changes.
func Menu(s Subject) []MenuItem {
	if s.Viewer == nil || s.Document == nil {
		return nil
	}

	f := FlagsFor(s)
	return []MenuItem{
		{Action: MenuSign, Enabled: f.IsRecipient && !f.IsComplete},
		{Action: MenuEdit, Enabled: f.IsOwner && !f.IsComplete},
		{Action: MenuDownload, Enabled: f.IsComplete},
		{Action: MenuSaveAsTemplate, Enabled: f.IsOwner && !f.IsComplete},
		{Action: MenuDelete, Enabled: f.IsOwner && f.IsDraft},
		{Action: MenuShare, Enabled: !f.IsDraft},
	}
}

// Allowed reports whether the menu item is enabled for the subject.
func Allowed(s Subject, a MenuAction) bool {
	for _, item := range Menu(s) {
		if item.Action == a {
			return item.Enabled
		}
	}
	return false
}
