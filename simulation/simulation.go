package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/invoker"
	"github.com/hupe1980/patientsim/logging"
	"github.com/hupe1980/patientsim/model"
	"github.com/hupe1980/patientsim/rotation"
	"github.com/hupe1980/patientsim/scenario"
	"github.com/hupe1980/patientsim/session"
)

var (
	// ErrNoIdentity is returned by Intake when the identity token is empty
	// after trimming.
	ErrNoIdentity = errors.New("intake requires an identity")
	// ErrEmptyMessage is returned by SubmitTurn for blank input.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrWrongState is returned when an operation does not match the
	// session's lifecycle phase.
	ErrWrongState = errors.New("operation not allowed in current session state")
	// ErrDebriefLocked is returned by Debrief while the conversation is still
	// too short to evaluate.
	ErrDebriefLocked = errors.New("conversation too short for debrief")
)

// Options configure a Simulation.
type Options struct {
	// ContextTurns is the number of trailing window turns sent to the model
	// on each dialogue exchange.
	ContextTurns int
	// DebriefAfter is the minimum window size before a debrief is allowed.
	DebriefAfter int
	// SurveyURL, when set, is attached to every debrief report.
	SurveyURL string
	// Sessions is the registry of live sessions.
	Sessions core.SessionStore

	Logger logging.Logger
}

// Simulation drives trainee/patient sessions end to end.
type Simulation struct {
	rotator     *rotation.Rotator
	invoker     *invoker.Invoker
	transcripts core.TranscriptStore
	scen        scenario.Scenario
	sessions    core.SessionStore
	opts        Options
}

// New creates a Simulation. The rotator, invoker and transcript store are
// required; the session registry defaults to an in-memory store.
func New(rot *rotation.Rotator, inv *invoker.Invoker, transcripts core.TranscriptStore, scen scenario.Scenario, optFns ...func(o *Options)) *Simulation {
	opts := Options{
		ContextTurns: 10,
		DebriefAfter: 20,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 10
	}
	if opts.DebriefAfter <= 0 {
		opts.DebriefAfter = 20
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if scen.StudentLabel == "" {
		scen.StudentLabel = "Student"
	}
	if scen.PatientLabel == "" {
		scen.PatientLabel = "Patient"
	}
	if scen.PatientName == "" {
		scen.PatientName = scen.PatientLabel
	}

	return &Simulation{
		rotator:     rot,
		invoker:     inv,
		transcripts: transcripts,
		scen:        scen,
		sessions:    opts.Sessions,
		opts:        opts,
	}
}

// IntakeRequest identifies the trainee opening a session.
type IntakeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TurnResult is the outcome of one successful dialogue exchange.
type TurnResult struct {
	UserTurn   core.Turn `json:"user_turn"`
	AgentTurn  core.Turn `json:"agent_turn"`
	WindowSize int       `json:"window_size"`
	// DebriefReady reports whether the conversation is long enough for
	// Debrief to be accepted.
	DebriefReady bool `json:"debrief_ready"`
}

// DebriefReport is the evaluation produced at the end of a session.
type DebriefReport struct {
	SessionID   string    `json:"session_id"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
	SurveyURL   string    `json:"survey_url,omitempty"`
}

// Intake registers the trainee and opens a new session in the dialogue
// phase. User creation is idempotent on the identity token; the rotator is
// consulted exactly once and the returned credential stays pinned to the
// session for its whole lifetime.
func (s *Simulation) Intake(ctx context.Context, req IntakeRequest) (*core.Session, error) {
	identity := strings.TrimSpace(req.Email)
	if identity == "" {
		return nil, ErrNoIdentity
	}

	user, err := s.transcripts.SaveUser(ctx, strings.TrimSpace(req.Name), identity)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	cred, err := s.rotator.Next()
	if err != nil {
		return nil, fmt.Errorf("assign credential: %w", err)
	}

	sess := core.NewSession(core.NewID(), identity, user.Name)
	sess.Credential = string(cred)

	if err := sess.AdvanceTo(core.StateDialogue); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(sess); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	s.opts.Logger.Info("session opened", "session_id", sess.ID, "identity", identity)

	return sess, nil
}

// SubmitTurn sends one trainee message through the model and, on success,
// appends the exchange to the window and persists both turns. On an
// invocation failure nothing is appended and the trainee may resubmit. A
// persistence failure is returned together with the result; the window is
// never rolled back.
func (s *Simulation) SubmitTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if state := sess.State(); state != core.StateDialogue {
		return nil, fmt.Errorf("%w: submit turn in %s", ErrWrongState, state)
	}

	resp, err := s.invoker.Invoke(ctx, s.buildDialogueRequest(sess, text))
	if err != nil {
		s.opts.Logger.Warn("model exchange failed", "session_id", sess.ID, "error", err)
		return nil, err
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return nil, fmt.Errorf("model returned an empty reply")
	}

	userTurn := core.NewUserTurn(text)
	agentTurn := core.NewAgentTurn(reply)
	if err := sess.Window().Append(userTurn); err != nil {
		return nil, err
	}
	if err := sess.Window().Append(agentTurn); err != nil {
		return nil, err
	}

	size := sess.Window().Size()
	result := &TurnResult{
		UserTurn:     userTurn,
		AgentTurn:    agentTurn,
		WindowSize:   size,
		DebriefReady: size >= s.opts.DebriefAfter,
	}

	if err := s.persistExchange(ctx, sess, userTurn, agentTurn); err != nil {
		s.opts.Logger.Error("transcript write failed", "session_id", sess.ID, "error", err)
		return result, err
	}

	s.opts.Logger.Debug("exchange completed", "session_id", sess.ID, "window_size", size)

	return result, nil
}

// Debrief evaluates the whole conversation once the window is long enough.
// On success the session enters its terminal phase. An invocation or
// persistence failure leaves the session in the dialogue phase so the call
// can be retried; a retry after a persistence failure may store a duplicate
// result row.
func (s *Simulation) Debrief(ctx context.Context, sessionID string) (*DebriefReport, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if state := sess.State(); state != core.StateDialogue {
		return nil, fmt.Errorf("%w: debrief in %s", ErrWrongState, state)
	}
	if size := sess.Window().Size(); size < s.opts.DebriefAfter {
		return nil, fmt.Errorf("%w: %d of %d turns", ErrDebriefLocked, size, s.opts.DebriefAfter)
	}

	prompt, err := s.scen.DebriefPrompt(sess.Window().Turns())
	if err != nil {
		return nil, fmt.Errorf("render rubric: %w", err)
	}

	resp, err := s.invoker.Invoke(ctx, model.Request{
		Messages:   []model.Message{{Role: core.SpeakerUser, Text: prompt}},
		Credential: sess.Credential,
	})
	if err != nil {
		s.opts.Logger.Warn("debrief invocation failed", "session_id", sess.ID, "error", err)
		return nil, err
	}

	report := &DebriefReport{
		SessionID:   sess.ID,
		Content:     resp.Text,
		GeneratedAt: time.Now().UTC(),
		SurveyURL:   s.opts.SurveyURL,
	}

	rec := core.ResultRecord{
		SessionID: sess.ID,
		Identity:  sess.Identity,
		Content:   report.Content,
		Timestamp: report.GeneratedAt,
	}
	if err := s.transcripts.SaveResult(ctx, rec); err != nil {
		s.opts.Logger.Error("debrief write failed", "session_id", sess.ID, "error", err)
		return report, fmt.Errorf("persist debrief: %w", err)
	}

	if err := sess.AdvanceTo(core.StateDebrief); err != nil {
		return report, err
	}

	s.opts.Logger.Info("session debriefed", "session_id", sess.ID, "window_size", sess.Window().Size())

	return report, nil
}

// Session returns the live session with the given id.
func (s *Simulation) Session(id string) (*core.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", id, err)
	}

	return sess, nil
}

// EndSession removes the session from the registry. The durable transcript
// is unaffected.
func (s *Simulation) EndSession(id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return fmt.Errorf("session %q: %w", id, err)
	}

	s.opts.Logger.Info("session ended", "session_id", id)

	return nil
}

// Scenario returns the case this simulation runs.
func (s *Simulation) Scenario() scenario.Scenario {
	return s.scen
}

// DebriefAfter returns the minimum window size before a debrief is allowed.
func (s *Simulation) DebriefAfter() int {
	return s.opts.DebriefAfter
}

// buildDialogueRequest assembles the model context: the scenario
// instructions, the trailing window turns, and the just-submitted trainee
// message, which enters the window only after the exchange succeeds.
func (s *Simulation) buildDialogueRequest(sess *core.Session, text string) model.Request {
	history := sess.Window().ContextSuffix(s.opts.ContextTurns)

	messages := make([]model.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, model.Message{Role: turn.Speaker, Text: turn.Content})
	}
	messages = append(messages, model.Message{Role: core.SpeakerUser, Text: text})

	return model.Request{
		Instructions: s.scen.Instructions,
		Messages:     messages,
		Credential:   sess.Credential,
	}
}

// persistExchange writes both turns of an exchange. Both writes are always
// attempted; errors are joined so a failed user row does not suppress the
// agent row.
func (s *Simulation) persistExchange(ctx context.Context, sess *core.Session, userTurn, agentTurn core.Turn) error {
	userErr := s.transcripts.SaveTurn(ctx, core.TurnRecord{
		SessionID:      sess.ID,
		Identity:       sess.Identity,
		SenderRole:     core.SpeakerUser,
		SenderLabel:    sess.DisplayName,
		RecipientLabel: s.scen.PatientName,
		Content:        userTurn.Content,
		Timestamp:      userTurn.Timestamp,
	})
	agentErr := s.transcripts.SaveTurn(ctx, core.TurnRecord{
		SessionID:      sess.ID,
		Identity:       sess.Identity,
		SenderRole:     core.SpeakerAgent,
		SenderLabel:    s.scen.PatientName,
		RecipientLabel: sess.DisplayName,
		Content:        agentTurn.Content,
		Timestamp:      agentTurn.Timestamp,
	})

	return errors.Join(userErr, agentErr)
}
