package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"
	"quiz-eval-service/internal/infra/memory"
)

type fixture struct {
	service *app.QuizService
	store   *memory.Store
	feed    *app.ResultsFeed
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(sampleQuiz()),
		feed:  app.NewResultsFeed(),
		now:   time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	tokens := memory.NewTokenStoreWithClock(time.Hour, clock)
	f.service = app.NewQuizService(f.store, f.store, f.store, tokens,
		app.WithFeed(f.feed),
		app.WithClock(clock),
	)
	return f
}

func principal(userID int64, session string) domain.Principal {
	return domain.Principal{Kind: domain.PrincipalUser, ID: userID, SessionID: session}
}

// render fetches the active quiz for p and returns the submission token.
func (f *fixture) render(t *testing.T, p domain.Principal) string {
	t.Helper()
	active, err := f.service.ActiveQuizForUser(context.Background(), p)
	if err != nil {
		t.Fatalf("render active quiz: %v", err)
	}
	return active.SubmitToken
}

func TestSubmitQuizScoresRecordsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	updates, cancel := f.feed.Subscribe()
	defer cancel()

	p := principal(7, "s1")
	token := f.render(t, p)
	startedAt := f.now
	f.now = f.now.Add(4 * time.Minute)

	result, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
		QuizID:    1,
		UserID:    p.ID,
		SessionID: p.SessionID,
		Token:     token,
		Answers:   domain.Submission{10: {101, 102}, 20: {200}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Question 10 is an exact match (+4); question 20 picks only the wrong option (-1).
	if result.FinalScore != 3 || result.MaxScore != 8 {
		t.Fatalf("expected 3/8, got %d/%d", result.FinalScore, result.MaxScore)
	}
	if result.Status != domain.StatusFailed || result.Percentage.String() != "37.5" {
		t.Fatalf("expected Failed at 37.5%%, got %s at %s", result.Status, result.Percentage)
	}
	if result.AttemptID == 0 {
		t.Fatalf("expected attempt id")
	}

	attempt, found, err := f.store.FindAttempt(ctx, p.ID, 1)
	if err != nil || !found {
		t.Fatalf("expected stored attempt, found=%v err=%v", found, err)
	}
	if !attempt.StartedAt.Equal(startedAt) || !attempt.SubmittedAt.Equal(f.now) {
		t.Fatalf("unexpected timestamps: started %v submitted %v", attempt.StartedAt, attempt.SubmittedAt)
	}

	detail, err := f.store.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if len(detail.Answers) != 3 {
		t.Fatalf("expected one answer per selected option, got %d", len(detail.Answers))
	}

	select {
	case summary := <-updates:
		if summary.AttemptID != attempt.ID || summary.QuizTitle != "Safety basics" || summary.Score != 3 {
			t.Fatalf("unexpected feed summary %+v", summary)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected feed update")
	}
}

func TestSubmitQuizAlreadyAttemptedReturnsPriorResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := principal(7, "s1")

	first, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
		QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: f.render(t, p),
		Answers: domain.Submission{10: {101, 102}},
	})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	again, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
		QuizID: 1, UserID: p.ID, SessionID: "s2", Token: "anything",
		Answers: domain.Submission{10: {100}},
	})
	if !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	if again.AttemptID != first.AttemptID || again.FinalScore != 4 || again.Status != domain.StatusPassed {
		t.Fatalf("expected prior result, got %+v", again)
	}

	active, err := f.service.ActiveQuizForUser(ctx, p)
	if !errors.Is(err, domain.ErrAlreadyAttempted) || active.Result == nil {
		t.Fatalf("expected rendering to report the prior attempt, got %v", err)
	}
	if active.SubmitToken != "" {
		t.Fatalf("no token should be issued after an attempt")
	}
}

func TestSubmitQuizRejectsInvalidTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := principal(7, "s1")

	_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: "never-issued"})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid submission without a rendered quiz, got %v", err)
	}

	token := f.render(t, p)
	_, err = f.service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: token + "x"})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected mismatch rejected, got %v", err)
	}
	_, err = f.service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: token})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected token burnt by the mismatch, got %v", err)
	}

	if _, found, _ := f.store.FindAttempt(ctx, p.ID, 1); found {
		t.Fatalf("rejected submissions must not be recorded")
	}
}

func TestSubmitQuizRejectsForeignIdentifiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := principal(7, "s1")

	cases := []domain.Submission{
		{99: {101}},
		{10: {200}},
		{10: {101, 101}},
	}
	for i, answers := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
				QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: f.render(t, p), Answers: answers,
			})
			if !errors.Is(err, domain.ErrInvalidSubmission) {
				t.Fatalf("expected invalid submission, got %v", err)
			}
		})
	}

	_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 404, UserID: p.ID, SessionID: p.SessionID, Token: f.render(t, p)})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected unknown quiz to be an invalid submission, got %v", err)
	}
}

func TestSubmitQuizRequiresActiveQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := principal(7, "s1")
	token := f.render(t, p)

	if err := f.service.DeactivateQuiz(ctx, 1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: token})
	if !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected no active quiz, got %v", err)
	}
	if _, err := f.service.ActiveQuizForUser(ctx, p); !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected no active quiz on render, got %v", err)
	}
}

func TestSubmitQuizConcurrentSessionsRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const sessions = 16
	tokens := make([]string, sessions)
	for i := range tokens {
		tokens[i] = f.render(t, principal(7, fmt.Sprintf("s%d", i)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		rejects int
	)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
				QuizID: 1, UserID: 7, SessionID: fmt.Sprintf("s%d", i), Token: tokens[i],
				Answers: domain.Submission{10: {101}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyAttempted):
				rejects++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || rejects != sessions-1 {
		t.Fatalf("expected exactly one recorded attempt, got ok=%d rejected=%d", ok, rejects)
	}
	if n, _ := f.store.CountAttempts(ctx); n != 1 {
		t.Fatalf("expected 1 stored attempt, got %d", n)
	}
}

func TestActiveQuizForUserLocalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := principal(7, "s1")
	p.Language = domain.LangArabic
	active, err := f.service.ActiveQuizForUser(ctx, p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if active.Quiz.Language != domain.LangArabic {
		t.Fatalf("expected ar view, got %s", active.Quiz.Language)
	}
	q := active.Quiz.Questions[0]
	if q.Title != "ما هي المعدات الإلزامية؟" {
		t.Fatalf("expected arabic title, got %q", q.Title)
	}
	if q.Options[0].Text != "Sandals" {
		t.Fatalf("expected base text fallback, got %q", q.Options[0].Text)
	}

	plain, err := f.service.ActiveQuizForUser(ctx, principal(8, "s9"))
	if err != nil {
		t.Fatalf("render default: %v", err)
	}
	if plain.Quiz.Language != domain.DefaultLanguage || plain.Quiz.Questions[0].Title != "Which equipment is mandatory?" {
		t.Fatalf("expected base texts in the default language, got %+v", plain.Quiz.Questions[0])
	}
}

func TestActivationKeepsSingleActiveQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := []int64{1}
	for i := 0; i < 4; i++ {
		quiz, err := f.service.CreateQuiz(ctx, app.NewQuiz{
			Title:    fmt.Sprintf("Quiz %d", i),
			Language: "fr",
			Questions: []app.NewQuestion{{
				Title:   "Q",
				Options: []app.NewOption{{Text: "yes", Correct: true}, {Text: "no"}},
			}},
		})
		if err != nil {
			t.Fatalf("create quiz: %v", err)
		}
		ids = append(ids, quiz.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := f.service.ActivateQuiz(ctx, id); err != nil {
				t.Errorf("activate %d: %v", id, err)
			}
		}(ids[i%len(ids)])
	}
	wg.Wait()

	summaries, err := f.service.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, s := range summaries {
		if s.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active quiz, got %d", active)
	}

	if err := f.service.ActivateQuiz(ctx, 999); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestCreateQuizValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invalid := []app.NewQuiz{
		{Language: "fr", Questions: []app.NewQuestion{{Title: "Q", Options: []app.NewOption{{Text: "a"}}}}},
		{Title: "No questions", Language: "fr"},
		{Title: "Bad language", Language: "de", Questions: []app.NewQuestion{{Title: "Q", Options: []app.NewOption{{Text: "a"}}}}},
		{Title: "No options", Language: "fr", Questions: []app.NewQuestion{{Title: "Q"}}},
	}
	for i, in := range invalid {
		if _, err := f.service.CreateQuiz(ctx, in); !errors.Is(err, domain.ErrInvalidQuiz) {
			t.Fatalf("case %d: expected invalid quiz, got %v", i, err)
		}
	}

	quiz, err := f.service.CreateQuiz(ctx, app.NewQuiz{
		Title:    "Ergonomics",
		Language: "fr",
		Activate: true,
		Questions: []app.NewQuestion{{
			Title:        "Hauteur de l'écran ?",
			Translations: map[domain.Language]string{domain.LangEnglish: "Screen height?"},
			Options:      []app.NewOption{{Text: "Yeux", Correct: true}, {Text: "Genoux"}},
		}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !quiz.Active || quiz.Questions[0].Options[0].ID == 0 {
		t.Fatalf("expected active quiz with assigned ids, got %+v", quiz)
	}
	loaded, err := f.service.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Questions[0].Translations[domain.LangEnglish] != "Screen height?" {
		t.Fatalf("expected translation stored, got %+v", loaded.Questions[0].Translations)
	}
}

func TestUserResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := principal(7, "s1")

	if _, err := f.service.UserResult(ctx, p.ID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}
	_, err := f.service.SubmitQuiz(ctx, app.SubmitRequest{
		QuizID: 1, UserID: p.ID, SessionID: p.SessionID, Token: f.render(t, p),
		Answers: domain.Submission{10: {101}, 20: {201}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	result, err := f.service.UserResult(ctx, p.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	// 10: one of two correct (+1); 20: exact (+4).
	if result.FinalScore != 5 || result.MaxScore != 8 || result.Percentage.String() != "62.5" {
		t.Fatalf("unexpected result %+v", result)
	}
}

type failingAttempts struct{}

func (failingAttempts) FindAttempt(context.Context, int64, int64) (domain.Attempt, bool, error) {
	return domain.Attempt{}, false, fmt.Errorf("%w: connection refused", domain.ErrStorageFailure)
}

func (failingAttempts) RecordAttempt(context.Context, domain.Attempt, []domain.Answer) (domain.Attempt, error) {
	return domain.Attempt{}, fmt.Errorf("%w: connection refused", domain.ErrStorageFailure)
}

func TestSubmitQuizPropagatesStorageFailure(t *testing.T) {
	store := memory.NewStore(sampleQuiz())
	tokens := memory.NewTokenStore(time.Hour)
	service := app.NewQuizService(store, store, failingAttempts{}, tokens)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "s1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = service.SubmitQuiz(ctx, app.SubmitRequest{QuizID: 1, UserID: 7, SessionID: "s1", Token: token.Value})
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if _, err := tokens.Consume(ctx, "s1", token.Value); err != nil {
		t.Fatalf("token should survive a failed lookup: %v", err)
	}
}

// gatedReader blocks active-quiz loads until release is closed or the load ctx ends.
type gatedReader struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedReader) LoadActiveQuiz(ctx context.Context) (domain.Quiz, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return domain.Quiz{}, ctx.Err()
	}
	return r.Store.LoadActiveQuiz(ctx)
}

func TestActiveQuizLoadSurvivesFirstCallerCancel(t *testing.T) {
	store := memory.NewStore(sampleQuiz())
	reader := &gatedReader{Store: store, started: make(chan struct{}), release: make(chan struct{})}
	service := app.NewQuizService(reader, store, store, memory.NewTokenStore(time.Hour))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := service.ActiveQuizForUser(ctxA, principal(1, "a"))
		errA <- err
	}()
	<-reader.started

	type outcome struct {
		active app.ActiveQuiz
		err    error
	}
	doneB := make(chan outcome, 1)
	go func() {
		active, err := service.ActiveQuizForUser(context.Background(), principal(2, "b"))
		doneB <- outcome{active, err}
	}()
	// Give the second caller time to join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancelled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller kept waiting on the shared load")
	}

	close(reader.release)
	select {
	case got := <-doneB:
		if got.err != nil {
			t.Fatalf("second caller failed: %v", got.err)
		}
		if got.active.Quiz.ID != 1 || got.active.SubmitToken == "" {
			t.Fatalf("unexpected active quiz %+v", got.active)
		}
	case <-time.After(time.Second):
		t.Fatalf("second caller never returned")
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       1,
		Title:    "Safety basics",
		Language: domain.LangEnglish,
		Active:   true,
		Questions: []domain.Question{
			{
				ID:           10,
				Title:        "Which equipment is mandatory?",
				Translations: map[domain.Language]string{domain.LangArabic: "ما هي المعدات الإلزامية؟"},
				Options: []domain.Option{
					{ID: 100, Text: "Sandals"},
					{ID: 101, Text: "Helmet", Correct: true, Translations: map[domain.Language]string{domain.LangArabic: "خوذة"}},
					{ID: 102, Text: "Gloves", Correct: true},
				},
			},
			{
				ID:    20,
				Title: "Where is the assembly point?",
				Options: []domain.Option{
					{ID: 200, Text: "Canteen"},
					{ID: 201, Text: "Parking lot", Correct: true},
				},
			},
		},
	}
}
