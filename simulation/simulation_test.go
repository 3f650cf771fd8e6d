package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/internal/testutil"
	"github.com/hupe1980/patientsim/invoker"
	"github.com/hupe1980/patientsim/model"
	"github.com/hupe1980/patientsim/rotation"
	"github.com/hupe1980/patientsim/scenario"
	"github.com/hupe1980/patientsim/session"
	"github.com/hupe1980/patientsim/transcript"
)

// flakyStore wraps the in-memory transcript store with switchable write
// failures.
type flakyStore struct {
	*transcript.InMemoryStore
	failTurns   bool
	failResults bool
}

func (s *flakyStore) SaveTurn(ctx context.Context, rec core.TurnRecord) error {
	if s.failTurns {
		return &transcript.StoreError{Op: "save turn", Err: errors.New("sink offline")}
	}
	return s.InMemoryStore.SaveTurn(ctx, rec)
}

func (s *flakyStore) SaveResult(ctx context.Context, rec core.ResultRecord) error {
	if s.failResults {
		return &transcript.StoreError{Op: "save result", Err: errors.New("sink offline")}
	}
	return s.InMemoryStore.SaveResult(ctx, rec)
}

func instantSleep(context.Context, time.Duration) error { return nil }

func newTestSim(mock *model.MockModel, store core.TranscriptStore, optFns ...func(o *Options)) *Simulation {
	rot, err := rotation.New([]rotation.Credential{"key-a", "key-b"}, rotation.NewMemoryCursorStore())
	if err != nil {
		panic(err)
	}
	inv := invoker.New(mock, func(o *invoker.Options) {
		o.Sleep = instantSleep
	})

	return New(rot, inv, store, scenario.Default(), optFns...)
}

func TestIntakeOpensDialogueSession(t *testing.T) {
	store := transcript.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), store)

	sess, err := sim.Intake(context.Background(), IntakeRequest{Name: "Jordan Lee", Email: "jordan@clinic.example"})
	require.NoError(t, err)

	assert.Equal(t, core.StateDialogue, sess.State())
	assert.Equal(t, "jordan@clinic.example", sess.Identity)
	assert.Equal(t, "Jordan Lee", sess.DisplayName)
	assert.Equal(t, "key-a", sess.Credential)
	assert.Equal(t, 0, sess.Window().Size())
	assert.Equal(t, 1, store.UserCount())

	got, err := sim.Session(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestIntakeRequiresIdentity(t *testing.T) {
	store := transcript.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), store)

	for _, email := range []string{"", "   ", "\t\n"} {
		_, err := sim.Intake(context.Background(), IntakeRequest{Name: "Jordan", Email: email})
		assert.ErrorIs(t, err, ErrNoIdentity)
	}
	assert.Equal(t, 0, store.UserCount())
}

func TestIntakeIdempotentOnIdentity(t *testing.T) {
	store := transcript.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), store)
	ctx := context.Background()

	first, err := sim.Intake(ctx, IntakeRequest{Name: "Jordan Lee", Email: "jordan@clinic.example"})
	require.NoError(t, err)

	second, err := sim.Intake(ctx, IntakeRequest{Name: "Jordan L.", Email: "jordan@clinic.example"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, store.UserCount())
	// The stored record wins on a repeat identity.
	assert.Equal(t, "Jordan Lee", second.DisplayName)
}

func TestIntakeRotatesCredentialsAcrossSessions(t *testing.T) {
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore())
	ctx := context.Background()

	want := []string{"key-a", "key-b", "key-a"}
	for i, expected := range want {
		sess, err := sim.Intake(ctx, IntakeRequest{Email: "trainee@clinic.example"})
		require.NoError(t, err)
		assert.Equal(t, expected, sess.Credential, "session %d", i)
	}
}

func TestSubmitTurnAppendsAndPersistsBothTurns(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	mock.AddResponse("Hello Anna, what brings you to call?", "My belly hurts, low down.")
	store := transcript.NewInMemoryStore()
	sim := newTestSim(mock, store)
	ctx := context.Background()

	sess, err := sim.Intake(ctx, IntakeRequest{Name: "Jordan Lee", Email: "jordan@clinic.example"})
	require.NoError(t, err)

	result, err := sim.SubmitTurn(ctx, sess.ID, "Hello Anna, what brings you to call?")
	require.NoError(t, err)

	assert.Equal(t, "Hello Anna, what brings you to call?", result.UserTurn.Content)
	assert.Equal(t, "My belly hurts, low down.", result.AgentTurn.Content)
	assert.Equal(t, 2, result.WindowSize)
	assert.False(t, result.DebriefReady)

	turns := sess.Window().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, core.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, core.SpeakerAgent, turns[1].Speaker)

	records, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.SpeakerUser, records[0].SenderRole)
	assert.Equal(t, "Jordan Lee", records[0].SenderLabel)
	assert.Equal(t, "Anna", records[0].RecipientLabel)
	assert.Equal(t, core.SpeakerAgent, records[1].SenderRole)
	assert.Equal(t, "Anna", records[1].SenderLabel)
	assert.Equal(t, "Jordan Lee", records[1].RecipientLabel)
}

func TestSubmitTurnRejectsBlankMessage(t *testing.T) {
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore())
	ctx := context.Background()

	sess, err := sim.Intake(ctx, IntakeRequest{Email: "jordan@clinic.example"})
	require.NoError(t, err)

	_, err = sim.SubmitTurn(ctx, sess.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, sess.Window().Size())
}

func TestSubmitTurnUnknownSession(t *testing.T) {
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore())

	_, err := sim.SubmitTurn(context.Background(), "no-such-session", "hello")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSubmitTurnWrongState(t *testing.T) {
	reg := session.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore(), func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	intake := testutil.NewSessionBuilder("sess-intake").Intake().Build()
	require.NoError(t, reg.Put(intake))

	_, err := sim.SubmitTurn(ctx, "sess-intake", "hello")
	assert.ErrorIs(t, err, ErrWrongState)

	done := testutil.NewSessionBuilder("sess-done").Build()
	require.NoError(t, done.AdvanceTo(core.StateDebrief))
	require.NoError(t, reg.Put(done))

	_, err = sim.SubmitTurn(ctx, "sess-done", "hello")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestSubmitTurnInvocationFailureLeavesWindowUntouched(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	mock.EnqueueError(model.Fatal(errors.New("401 unauthorized")))
	store := transcript.NewInMemoryStore()
	sim := newTestSim(mock, store)
	ctx := context.Background()

	sess, err := sim.Intake(ctx, IntakeRequest{Email: "jordan@clinic.example"})
	require.NoError(t, err)

	_, err = sim.SubmitTurn(ctx, sess.ID, "Hello?")
	require.Error(t, err)

	var invErr *invoker.InvocationError
	assert.ErrorAs(t, err, &invErr)

	assert.Equal(t, core.StateDialogue, sess.State())
	assert.Equal(t, 0, sess.Window().Size())
	records, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The trainee can simply resubmit.
	result, err := sim.SubmitTurn(ctx, sess.ID, "Hello?")
	require.NoError(t, err)
	assert.Equal(t, 2, result.WindowSize)
}

func TestSubmitTurnPersistenceFailureKeepsWindow(t *testing.T) {
	store := &flakyStore{InMemoryStore: transcript.NewInMemoryStore(), failTurns: true}
	sim := newTestSim(model.NewMockModel("test-model", "mock"), store)
	ctx := context.Background()

	sess, err := sim.Intake(ctx, IntakeRequest{Email: "jordan@clinic.example"})
	require.NoError(t, err)

	result, err := sim.SubmitTurn(ctx, sess.ID, "Hello?")
	require.Error(t, err)

	var storeErr *transcript.StoreError
	assert.ErrorAs(t, err, &storeErr)

	// The exchange happened: the caller still gets the result and the window
	// keeps both turns.
	require.NotNil(t, result)
	assert.Equal(t, 2, result.WindowSize)
	assert.Equal(t, 2, sess.Window().Size())
	assert.Equal(t, core.StateDialogue, sess.State())
}

func TestSubmitTurnBuildsBoundedContext(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	reg := session.NewInMemoryStore()
	sim := newTestSim(mock, transcript.NewInMemoryStore(), func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("sess-1").Exchanges(6).Build()
	require.NoError(t, reg.Put(sess))

	_, err := sim.SubmitTurn(ctx, "sess-1", "Is the wound red?")
	require.NoError(t, err)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	req := requests[0]

	assert.Equal(t, scenario.Default().Instructions, req.Instructions)
	// Twelve window turns collapse to the last ten, plus the new message.
	require.Len(t, req.Messages, 11)
	assert.Equal(t, "question 2", req.Messages[0].Text)
	assert.Equal(t, core.SpeakerUser, req.Messages[0].Role)
	assert.Equal(t, "Is the wound red?", req.Messages[10].Text)
}

func TestDebriefLockedUntilWindowLongEnough(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	reg := session.NewInMemoryStore()
	store := transcript.NewInMemoryStore()
	sim := newTestSim(mock, store, func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	// Eighteen turns: two short of the threshold.
	sess := testutil.NewSessionBuilder("sess-1").Exchanges(9).Build()
	require.NoError(t, reg.Put(sess))

	_, err := sim.Debrief(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrDebriefLocked)
	assert.Equal(t, core.StateDialogue, sess.State())

	// One more exchange reaches twenty and unlocks the debrief.
	result, err := sim.SubmitTurn(ctx, "sess-1", "Let me summarize what you told me.")
	require.NoError(t, err)
	assert.Equal(t, 20, result.WindowSize)
	assert.True(t, result.DebriefReady)

	report, err := sim.Debrief(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", report.SessionID)
	assert.NotEmpty(t, report.Content)
	assert.Equal(t, core.StateDebrief, sess.State())

	results, err := store.Results(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// The session is terminal now.
	_, err = sim.SubmitTurn(ctx, "sess-1", "one more")
	assert.ErrorIs(t, err, ErrWrongState)
	_, err = sim.Debrief(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestDebriefEvaluatesEntireWindow(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	reg := session.NewInMemoryStore()
	sim := newTestSim(mock, transcript.NewInMemoryStore(), func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("sess-1").Exchanges(10).Build()
	require.NoError(t, reg.Put(sess))

	_, err := sim.Debrief(ctx, "sess-1")
	require.NoError(t, err)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	req := requests[0]

	assert.Empty(t, req.Instructions)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Text
	// The whole conversation is present, not just the dialogue suffix.
	assert.Contains(t, prompt, "Student: question 1")
	assert.Contains(t, prompt, "Patient: answer 10")
	assert.Contains(t, prompt, "Points for improvement")
}

func TestDebriefInvocationFailureIsRetryable(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	mock.EnqueueError(model.Fatal(errors.New("401 unauthorized")))
	reg := session.NewInMemoryStore()
	store := transcript.NewInMemoryStore()
	sim := newTestSim(mock, store, func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("sess-1").Exchanges(10).Build()
	require.NoError(t, reg.Put(sess))

	_, err := sim.Debrief(ctx, "sess-1")
	require.Error(t, err)
	assert.Equal(t, core.StateDialogue, sess.State())

	results, err := store.Results(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, results)

	report, err := sim.Debrief(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotEmpty(t, report.Content)
	assert.Equal(t, core.StateDebrief, sess.State())
}

func TestDebriefPersistenceFailureStaysRetryable(t *testing.T) {
	store := &flakyStore{InMemoryStore: transcript.NewInMemoryStore(), failResults: true}
	reg := session.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), store, func(o *Options) {
		o.Sessions = reg
	})
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("sess-1").Exchanges(10).Build()
	require.NoError(t, reg.Put(sess))

	report, err := sim.Debrief(ctx, "sess-1")
	require.Error(t, err)

	var storeErr *transcript.StoreError
	assert.ErrorAs(t, err, &storeErr)
	// The evaluation text is still handed back, and the session can retry.
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Content)
	assert.Equal(t, core.StateDialogue, sess.State())

	store.failResults = false

	_, err = sim.Debrief(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.StateDebrief, sess.State())
}

func TestDebriefReportCarriesSurveyURL(t *testing.T) {
	reg := session.NewInMemoryStore()
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore(), func(o *Options) {
		o.Sessions = reg
		o.SurveyURL = "https://survey.example/form"
	})
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("sess-1").Exchanges(10).Build()
	require.NoError(t, reg.Put(sess))

	report, err := sim.Debrief(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "https://survey.example/form", report.SurveyURL)
}

func TestEndSessionRemovesRegistryEntryOnly(t *testing.T) {
	mock := model.NewMockModel("test-model", "mock")
	store := transcript.NewInMemoryStore()
	sim := newTestSim(mock, store)
	ctx := context.Background()

	sess, err := sim.Intake(ctx, IntakeRequest{Email: "jordan@clinic.example"})
	require.NoError(t, err)
	_, err = sim.SubmitTurn(ctx, sess.ID, "Hello?")
	require.NoError(t, err)

	require.NoError(t, sim.EndSession(sess.ID))

	_, err = sim.Session(sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, sim.EndSession(sess.ID), session.ErrNotFound)

	// The durable transcript survives the registry removal.
	records, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestScenarioAccessor(t *testing.T) {
	sim := newTestSim(model.NewMockModel("test-model", "mock"), transcript.NewInMemoryStore())

	assert.Equal(t, "Anna", sim.Scenario().PatientName)
	assert.NotEmpty(t, sim.Scenario().Briefing)
}
