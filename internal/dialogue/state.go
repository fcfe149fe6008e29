// ABOUTME: Dialogue state machine steps and per-contact state record
// ABOUTME: State is owned by the StateStore and mutated only under the contact's lease

package dialogue

// Step identifies the contact's position in the dialogue state machine
type Step string

const (
	StepStart      Step = "START"
	StepAskForName Step = "ASK_FOR_NAME"
	StepMainMenu   Step = "MAIN_MENU"
	StepDisclaimer Step = "DISCLAIMER"
	StepAwaitID    Step = "AWAIT_ID"
	StepSurvey     Step = "SURVEY"
)

// State is the per-contact dialogue state. Cedula is transient session data,
// only meaningful between AWAIT_ID and the end of the session.
type State struct {
	Step          Step   `json:"step"`
	TermsAccepted bool   `json:"terms_accepted"`
	Cedula        string `json:"cedula,omitempty"`
}

// DefaultState returns the state a brand-new or expired contact starts in
func DefaultState() State {
	return State{Step: StepStart}
}
