package models

// Filter is the current selector state. Empty fields are inactive.
type Filter struct {
	Stage       string `json:"stage"`
	Participant string `json:"participant"`
	Building    string `json:"building"`
}

// Options are the dropdown sources derived from a workbook.
type Options struct {
	Stages       []string `json:"stages"`
	Participants []string `json:"participants"`
	Buildings    []string `json:"buildings"`
}

// ActionKind is what a result item does when activated.
type ActionKind string

const (
	ActionOpenURL  ActionKind = "open-url"
	ActionCopyPath ActionKind = "copy-path"
	ActionNone     ActionKind = "none"
)

// ResultItem is one rendered row of the results list.
type ResultItem struct {
	Label       string     `json:"label" msgpack:"label"`
	Stage       string     `json:"stage,omitempty" msgpack:"stage,omitempty"`
	Participant string     `json:"participant,omitempty" msgpack:"participant,omitempty"`
	Building    string     `json:"building,omitempty" msgpack:"building,omitempty"`
	Filename    string     `json:"filename,omitempty" msgpack:"filename,omitempty"`
	Action      ActionKind `json:"action" msgpack:"action"`
	Target      string     `json:"target,omitempty" msgpack:"target,omitempty"`
	Disabled    bool       `json:"disabled,omitempty" msgpack:"disabled,omitempty"`
	Placeholder bool       `json:"placeholder,omitempty" msgpack:"placeholder,omitempty"`
}

// View is everything a client needs to draw the lookup page.
type View struct {
	SessionID string           `json:"sessionId"`
	Workbook  *WorkbookSummary `json:"workbook,omitempty"`
	Options   Options          `json:"options"`
	Filter    Filter           `json:"filter"`
	LocalRoot string           `json:"localRoot"`
	Results   []ResultItem     `json:"results"`
}
