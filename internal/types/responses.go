package types

import (
	"encoding/json"
	"fmt"
)

// ResponseType tags a UserResponse variant.
type ResponseType string

const (
	ResponseFormSubmit    ResponseType = "form_submit"
	ResponseWizardStep    ResponseType = "wizard_step"
	ResponseConfirm       ResponseType = "confirm"
	ResponseOAuthComplete ResponseType = "oauth_complete"
	ResponseAPIKey        ResponseType = "api_key"
	ResponseCLISelection  ResponseType = "cli_selection"
	ResponseSkip          ResponseType = "skip"
	ResponseCancel        ResponseType = "cancel"
)

// UserResponse is a human answer delivered to a suspended session.
// The set of implementations is closed.
type UserResponse interface {
	ResponseType() ResponseType
	isUserResponse()
}

// FormSubmit answers a form request.
type FormSubmit struct {
	FormID string            `json:"form_id"`
	Values map[string]string `json:"values"`
}

// WizardStepSubmit answers one wizard step.
type WizardStepSubmit struct {
	WizardID string            `json:"wizard_id"`
	Step     int               `json:"step"`
	Values   map[string]string `json:"values"`
}

// ConfirmResponse answers a confirm request.
type ConfirmResponse struct {
	ConfirmID string `json:"confirm_id"`
	Confirmed bool   `json:"confirmed"`
}

// OAuthComplete reports the outcome of an out-of-band login.
type OAuthComplete struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
}

// APIKeyResponse carries an API key typed by the user.
type APIKeyResponse struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// CLISelectionResponse lists the tools the user picked.
type CLISelectionResponse struct {
	Selected []string `json:"selected"`
}

// Skip declines the request without ending the session.
type Skip struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel ends the session.
type Cancel struct{}

func (FormSubmit) ResponseType() ResponseType           { return ResponseFormSubmit }
func (WizardStepSubmit) ResponseType() ResponseType     { return ResponseWizardStep }
func (ConfirmResponse) ResponseType() ResponseType      { return ResponseConfirm }
func (OAuthComplete) ResponseType() ResponseType        { return ResponseOAuthComplete }
func (APIKeyResponse) ResponseType() ResponseType       { return ResponseAPIKey }
func (CLISelectionResponse) ResponseType() ResponseType { return ResponseCLISelection }
func (Skip) ResponseType() ResponseType                 { return ResponseSkip }
func (Cancel) ResponseType() ResponseType               { return ResponseCancel }

func (FormSubmit) isUserResponse()           {}
func (WizardStepSubmit) isUserResponse()     {}
func (ConfirmResponse) isUserResponse()      {}
func (OAuthComplete) isUserResponse()        {}
func (APIKeyResponse) isUserResponse()       {}
func (CLISelectionResponse) isUserResponse() {}
func (Skip) isUserResponse()                 {}
func (Cancel) isUserResponse()               {}

func (r FormSubmit) MarshalJSON() ([]byte, error) {
	type alias FormSubmit
	return marshalTagged("type", string(ResponseFormSubmit), alias(r))
}

func (r WizardStepSubmit) MarshalJSON() ([]byte, error) {
	type alias WizardStepSubmit
	return marshalTagged("type", string(ResponseWizardStep), alias(r))
}

func (r ConfirmResponse) MarshalJSON() ([]byte, error) {
	type alias ConfirmResponse
	return marshalTagged("type", string(ResponseConfirm), alias(r))
}

func (r OAuthComplete) MarshalJSON() ([]byte, error) {
	type alias OAuthComplete
	return marshalTagged("type", string(ResponseOAuthComplete), alias(r))
}

func (r APIKeyResponse) MarshalJSON() ([]byte, error) {
	type alias APIKeyResponse
	return marshalTagged("type", string(ResponseAPIKey), alias(r))
}

func (r CLISelectionResponse) MarshalJSON() ([]byte, error) {
	type alias CLISelectionResponse
	return marshalTagged("type", string(ResponseCLISelection), alias(r))
}

func (r Skip) MarshalJSON() ([]byte, error) {
	type alias Skip
	return marshalTagged("type", string(ResponseSkip), alias(r))
}

func (r Cancel) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"cancel"}`), nil
}

// ParseUserResponse decodes a type-tagged UserResponse.
func ParseUserResponse(data []byte) (UserResponse, error) {
	tag, err := peekTag(data, "type")
	if err != nil {
		return nil, fmt.Errorf("invalid user response: %w", err)
	}

	var resp UserResponse
	switch ResponseType(tag) {
	case ResponseFormSubmit:
		resp, err = decodeAs[FormSubmit](data)
	case ResponseWizardStep:
		resp, err = decodeAs[WizardStepSubmit](data)
	case ResponseConfirm:
		resp, err = decodeAs[ConfirmResponse](data)
	case ResponseOAuthComplete:
		resp, err = decodeAs[OAuthComplete](data)
	case ResponseAPIKey:
		resp, err = decodeAs[APIKeyResponse](data)
	case ResponseCLISelection:
		resp, err = decodeAs[CLISelectionResponse](data)
	case ResponseSkip:
		resp, err = decodeAs[Skip](data)
	case ResponseCancel:
		return Cancel{}, nil
	default:
		return nil, fmt.Errorf("invalid user response: unknown type %q", tag)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s response: %w", tag, err)
	}
	return resp, nil
}

func decodeAs[T UserResponse](data []byte) (UserResponse, error) {
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}
