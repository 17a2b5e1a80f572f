package types

// InputKind names the UI element a NeedInput event asks for.
type InputKind string

const (
	InputForm         InputKind = "form"
	InputWizard       InputKind = "wizard"
	InputConfirm      InputKind = "confirm"
	InputOAuthFlow    InputKind = "oauth_flow"
	InputAPIKeyEntry  InputKind = "api_key_entry"
	InputCLISelection InputKind = "cli_selection"
)

// FormSpec describes a form. It is the payload of a form request and the
// body of every wizard step.
type FormSpec struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []FormField `json:"fields,omitempty" validate:"dive"`
	FormID      string      `json:"form_id,omitempty"`
	SubmitLabel string      `json:"submit_label,omitempty"`
}

// FormField is one input of a form.
type FormField struct {
	Name         string         `json:"name" validate:"required"`
	Label        string         `json:"label"`
	FieldType    string         `json:"field_type"`
	Required     bool           `json:"required"`
	DefaultValue string         `json:"default_value,omitempty"`
	Options      []SelectOption `json:"options,omitempty"`
	Placeholder  string         `json:"placeholder,omitempty"`
	HelpText     string         `json:"help_text,omitempty"`
}

// SelectOption is one choice of a select field.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// WizardStep is one page of a wizard.
type WizardStep struct {
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Form        FormSpec `json:"form"`
}

// CLIOption is one selectable tool in a cli_selection request.
type CLIOption struct {
	Name        string `json:"name"`
	Installed   bool   `json:"installed"`
	Description string `json:"description"`
}

// InputRequest is a request for human input, tagged by Kind. Only the
// fields belonging to Kind are meaningful; it is passed to the UI unchanged.
type InputRequest struct {
	Kind InputKind `json:"type" validate:"required,oneof=form wizard confirm oauth_flow api_key_entry cli_selection"`

	// form (and wizard title)
	FormSpec

	// wizard
	Steps       []WizardStep `json:"steps,omitempty"`
	CurrentStep int          `json:"current_step,omitempty"`
	WizardID    string       `json:"wizard_id,omitempty"`

	// confirm
	Message      string `json:"message,omitempty"`
	ConfirmID    string `json:"confirm_id,omitempty"`
	ConfirmLabel string `json:"confirm_label,omitempty"`
	CancelLabel  string `json:"cancel_label,omitempty"`

	// oauth_flow
	Provider     string `json:"provider,omitempty"`
	LoginCommand string `json:"login_command,omitempty"`
	Instructions string `json:"instructions,omitempty"`

	// api_key_entry (Provider shared with oauth_flow)
	EnvVar  string `json:"env_var,omitempty"`
	HelpURL string `json:"help_url,omitempty"`

	// cli_selection (Message shared with confirm)
	Available []CLIOption `json:"available,omitempty"`
}
