// ABOUTME: Pure state-transition engine for the automated dialogue
// ABOUTME: Maps (step, flags, input) to a typed outcome, never to magic strings

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/solvencia/chatdesk/internal/store"
)

// OutcomeKind discriminates what the router must do with an engine result
type OutcomeKind int

const (
	// OutcomeReply means Text should be sent back to the contact
	OutcomeReply OutcomeKind = iota
	// OutcomeEscalate means a human agent must take over; Text carries no reply
	OutcomeEscalate
	// OutcomeSurveyStarted means Text is the rating prompt and the session is ending
	OutcomeSurveyStarted
)

// SurveyResult carries a classified rating or a free-text comment. Exactly
// one of the two fields is set.
type SurveyResult struct {
	Rating  string
	Comment string
}

// Outcome is the engine's full answer for one inbound message. The router
// persists State, applies CapturedName and Survey, then acts on Kind.
type Outcome struct {
	Kind         OutcomeKind
	Text         string
	State        State
	CapturedName string        // set when ASK_FOR_NAME accepted a name
	Survey       *SurveyResult // set when a SURVEY answer ended the session
	ResetState   bool          // set when the session ended and state must be wiped
}

// ClientDirectory is the read-only slice of the repository the engine needs
// for debt consultation.
type ClientDirectory interface {
	FindClientByID(ctx context.Context, id string) (*store.Client, error)
	FindDebtContractsForClient(ctx context.Context, clientID string) ([]*store.DebtContract, error)
	FindDebtDetail(ctx context.Context, contractID string, selfOwned bool) (*store.DebtDetail, error)
}

// Engine evaluates one dialogue step per inbound message. It holds no
// mutable state of its own; all session state travels in and out through
// the State value.
type Engine struct {
	clients ClientDirectory
	logger  *slog.Logger
}

// NewEngine creates a dialogue engine. Pass nil logger for the default.
func NewEngine(clients ClientDirectory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clients: clients,
		logger:  logger.With("component", "dialogue"),
	}
}

type handlerFunc func(e *Engine, ctx context.Context, st State, customerName, input string) (Outcome, error)

// handlers is the step dispatch table. Steps missing from the table fall
// through to the corrupted-state recovery in Handle.
var handlers = map[Step]handlerFunc{
	StepStart:      (*Engine).handleStart,
	StepAskForName: (*Engine).handleAskForName,
	StepMainMenu:   (*Engine).handleMainMenu,
	StepDisclaimer: (*Engine).handleDisclaimer,
	StepAwaitID:    (*Engine).handleAwaitID,
	StepSurvey:     (*Engine).handleSurvey,
}

// exit keyword classification
type exitKind int

const (
	exitNone exitKind = iota
	exitShowMenu
	exitFarewell
	exitReset
)

var exitKeywords = map[string]exitKind{
	"menu":        exitShowMenu,
	"menú":        exitShowMenu,
	"inicio":      exitShowMenu,
	"salir":       exitFarewell,
	"adios":       exitFarewell,
	"adiós":       exitFarewell,
	"chao":        exitFarewell,
	"hasta luego": exitFarewell,
	"cancelar":    exitReset,
	"0":           exitReset,
}

// Handle evaluates one inbound message. customerName is the name already on
// file for the chat, empty if none. It never returns a zero Outcome: every
// path yields a defined result or an I/O error for the router boundary.
func (e *Engine) Handle(ctx context.Context, st State, customerName, rawText string) (Outcome, error) {
	input := normalize(rawText)

	// Global exit detection runs before any step logic
	switch kind := exitKeywords[input]; {
	case kind == exitFarewell:
		return Outcome{
			Kind:  OutcomeSurveyStarted,
			Text:  surveyPrompt,
			State: State{Step: StepSurvey, TermsAccepted: st.TermsAccepted},
		}, nil
	case kind == exitShowMenu && st.Step == StepMainMenu:
		return Outcome{Kind: OutcomeReply, Text: mainMenuText, State: st}, nil
	case kind == exitShowMenu || kind == exitReset:
		return Outcome{
			Kind:  OutcomeReply,
			Text:  resetNotice + mainMenuText,
			State: State{Step: StepMainMenu},
		}, nil
	}

	handler, ok := handlers[st.Step]
	if !ok {
		// Stored state referenced a step this build does not know.
		// Recover to the main menu rather than stall the contact.
		e.logger.Warn("unknown dialogue step, recovering", "step", string(st.Step))
		return Outcome{
			Kind:  OutcomeReply,
			Text:  ApologyText + "\n\n" + mainMenuText,
			State: State{Step: StepMainMenu},
		}, nil
	}

	return handler(e, ctx, st, customerName, input)
}

func (e *Engine) handleStart(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	if customerName != "" {
		return Outcome{
			Kind:  OutcomeReply,
			Text:  greeting(customerName),
			State: State{Step: StepMainMenu, TermsAccepted: st.TermsAccepted},
		}, nil
	}
	return Outcome{
		Kind:  OutcomeReply,
		Text:  askNamePrompt,
		State: State{Step: StepAskForName},
	}, nil
}

func (e *Engine) handleAskForName(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	name := strings.TrimSpace(input)
	if len([]rune(name)) < 3 || containsDigit(name) {
		return Outcome{Kind: OutcomeReply, Text: nameRejectedPrompt, State: st}, nil
	}

	name = titleCase(name)
	return Outcome{
		Kind:         OutcomeReply,
		Text:         welcome(name),
		State:        State{Step: StepMainMenu, TermsAccepted: st.TermsAccepted},
		CapturedName: name,
	}, nil
}

func (e *Engine) handleMainMenu(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	switch {
	case input == "1" || strings.Contains(input, "consult") || strings.Contains(input, "deuda"):
		if st.TermsAccepted {
			return Outcome{
				Kind:  OutcomeReply,
				Text:  askCedulaPrompt,
				State: State{Step: StepAwaitID, TermsAccepted: true},
			}, nil
		}
		return Outcome{
			Kind:  OutcomeReply,
			Text:  disclaimerText,
			State: State{Step: StepDisclaimer},
		}, nil

	case input == "2" || strings.Contains(input, "asesor") || strings.Contains(input, "agente"):
		return Outcome{Kind: OutcomeEscalate, State: st}, nil

	default:
		return Outcome{
			Kind:  OutcomeReply,
			Text:  unrecognizedPrefix + mainMenuText,
			State: st,
		}, nil
	}
}

func (e *Engine) handleDisclaimer(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	switch {
	case input == "1" || input == "si" || input == "sí" || strings.Contains(input, "acept"):
		return Outcome{
			Kind:  OutcomeReply,
			Text:  askCedulaPrompt,
			State: State{Step: StepAwaitID, TermsAccepted: true},
		}, nil

	case input == "2" || input == "no" || strings.Contains(input, "rechaz"):
		return Outcome{
			Kind:  OutcomeReply,
			Text:  mainMenuText,
			State: State{Step: StepMainMenu},
		}, nil

	default:
		return Outcome{Kind: OutcomeReply, Text: disclaimerReprompt, State: st}, nil
	}
}

func (e *Engine) handleAwaitID(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	cedula := strings.TrimSpace(input)
	if len(cedula) < 5 {
		return Outcome{Kind: OutcomeReply, Text: cedulaRejectedPrompt, State: st}, nil
	}

	client, err := e.clients.FindClientByID(ctx, cedula)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{
			Kind:  OutcomeReply,
			Text:  clientNotFoundText + "\n\n" + mainMenuText,
			State: State{Step: StepMainMenu, TermsAccepted: st.TermsAccepted},
		}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("looking up client %s: %w", cedula, err)
	}

	summary, err := e.debtSummary(ctx, client)
	if err != nil {
		return Outcome{}, fmt.Errorf("building debt summary for %s: %w", cedula, err)
	}

	text := debtSummaryHeader + summary
	if summary == NoPendingDebtText {
		text = goodNewsPrefix + NoPendingDebtText
	}

	return Outcome{
		Kind:  OutcomeReply,
		Text:  text + "\n\n" + mainMenuText,
		State: State{Step: StepMainMenu, TermsAccepted: st.TermsAccepted, Cedula: cedula},
	}, nil
}

func (e *Engine) handleSurvey(ctx context.Context, st State, customerName, input string) (Outcome, error) {
	result := &SurveyResult{}
	switch {
	case strings.Contains(input, "1") || strings.Contains(input, "mal"):
		result.Rating = store.RatingBad
	case strings.Contains(input, "2") || strings.Contains(input, "regular"):
		result.Rating = store.RatingRegular
	case strings.Contains(input, "3") || strings.Contains(input, "excelente"):
		result.Rating = store.RatingExcellent
	default:
		result.Comment = strings.TrimSpace(input)
	}

	// The session ends here regardless of how the answer classified
	return Outcome{
		Kind:       OutcomeReply,
		Text:       surveyThanksText,
		State:      DefaultState(),
		Survey:     result,
		ResetState: true,
	}, nil
}

// normalize lowercases and trims an inbound text for matching
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// titleCase uppercases the first letter of each word of a captured name
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
