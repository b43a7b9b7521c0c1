package nodes

// Button is a quick-reply button. Its ID doubles as the output handle of
// the node that owns it.
type Button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ListRow is one selectable row of a list message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListSection groups rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ProductSection groups catalog products under a title.
type ProductSection struct {
	Title      string   `json:"title"`
	ProductIDs []string `json:"productIds"`
}

// StartData configures the entry point of a flow.
type StartData struct {
	Keywords  []string `json:"keywords"`
	MatchType string   `json:"matchType"`
}

func (*StartData) NodeType() Type { return Start }

// DelayData pauses the flow.
type DelayData struct {
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
}

func (*DelayData) NodeType() Type { return Delay }

// GoalData marks a conversion point.
type GoalData struct {
	GoalName    string `json:"goalName"`
	Description string `json:"description"`
}

func (*GoalData) NodeType() Type { return Goal }

// AskQuestionData asks the contact a question and stores the validated
// answer in a variable.
type AskQuestionData struct {
	QuestionText   string `json:"questionText"`
	ValidationType string `json:"validationType"`
	VariableName   string `json:"variableName"`
	ErrorMessage   string `json:"errorMessage"`
}

func (*AskQuestionData) NodeType() Type { return AskQuestion }

// MediaButtonData sends a media message with reply buttons.
type MediaButtonData struct {
	MediaType string   `json:"mediaType"`
	MediaURL  string   `json:"mediaUrl"`
	Caption   string   `json:"caption"`
	Buttons   []Button `json:"buttons"`
}

func (*MediaButtonData) NodeType() Type { return MediaButton }

func (d *MediaButtonData) Handles() []string { return buttonHandles(d.Buttons) }

// TextButtonData sends a text message with reply buttons.
type TextButtonData struct {
	HeaderText string   `json:"headerText"`
	BodyText   string   `json:"bodyText"`
	FooterText string   `json:"footerText"`
	Buttons    []Button `json:"buttons"`
}

func (*TextButtonData) NodeType() Type { return TextButton }

func (d *TextButtonData) Handles() []string { return buttonHandles(d.Buttons) }

// TemplateData sends an approved message template.
type TemplateData struct {
	TemplateName string   `json:"templateName"`
	Language     string   `json:"language"`
	Variables    []string `json:"variables"`
}

func (*TemplateData) NodeType() Type { return Template }

// ListData sends an interactive list message.
type ListData struct {
	HeaderText string        `json:"headerText"`
	BodyText   string        `json:"bodyText"`
	FooterText string        `json:"footerText"`
	ButtonText string        `json:"buttonText"`
	Sections   []ListSection `json:"sections"`
}

func (*ListData) NodeType() Type { return List }

// Handles returns one handle per row, across all sections.
func (d *ListData) Handles() []string {
	var out []string
	for _, s := range d.Sections {
		for _, r := range s.Rows {
			if r.ID != "" {
				out = append(out, r.ID)
			}
		}
	}
	return out
}

// SingleProductData sends one product from a catalog.
type SingleProductData struct {
	CatalogID  string `json:"catalogId"`
	ProductID  string `json:"productId"`
	BodyText   string `json:"bodyText"`
	FooterText string `json:"footerText"`
}

func (*SingleProductData) NodeType() Type { return SingleProduct }

// MultiProductData sends several products grouped in sections.
type MultiProductData struct {
	CatalogID  string           `json:"catalogId"`
	HeaderText string           `json:"headerText"`
	BodyText   string           `json:"bodyText"`
	FooterText string           `json:"footerText"`
	Sections   []ProductSection `json:"sections"`
}

func (*MultiProductData) NodeType() Type { return MultiProduct }

// CatalogData sends the whole catalog.
type CatalogData struct {
	CatalogID          string `json:"catalogId"`
	BodyText           string `json:"bodyText"`
	FooterText         string `json:"footerText"`
	ThumbnailProductID string `json:"thumbnailProductId"`
}

func (*CatalogData) NodeType() Type { return Catalog }

// SetVariableData assigns a value to a contact or flow variable.
type SetVariableData struct {
	VariableName string `json:"variableName"`
	Value        string `json:"value"`
	Scope        string `json:"scope"`
}

func (*SetVariableData) NodeType() Type { return SetVariable }

// SummaryData sends a recap of collected variables.
type SummaryData struct {
	Title     string   `json:"title"`
	Variables []string `json:"variables"`
}

func (*SummaryData) NodeType() Type { return Summary }

func buttonHandles(buttons []Button) []string {
	var out []string
	for _, b := range buttons {
		if b.ID != "" {
			out = append(out, b.ID)
		}
	}
	return out
}
