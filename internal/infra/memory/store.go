package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-eval-service/internal/domain"
)

type attemptKey struct {
	userID int64
	quizID int64
}

// Store is an in-memory implementation of the quiz, attempt, account and report
// stores (useful for tests/demos). A single mutex makes every write atomic.
type Store struct {
	mu   sync.RWMutex
	next int64

	quizzes      map[int64]domain.Quiz
	quizOrder    []int64
	activeQuizID int64

	users  map[int64]domain.User
	admins map[int64]domain.Admin

	attempts      map[int64]domain.Attempt
	attemptOrder  []int64
	attemptByPair map[attemptKey]int64
	answers       map[int64][]domain.Answer
}

// NewStore returns a store seeded with quizzes. Seeded IDs are kept; zero IDs are
// assigned. A seeded quiz marked Active becomes the active quiz.
func NewStore(seed ...domain.Quiz) *Store {
	s := &Store{
		quizzes:       make(map[int64]domain.Quiz),
		users:         make(map[int64]domain.User),
		admins:        make(map[int64]domain.Admin),
		attempts:      make(map[int64]domain.Attempt),
		attemptByPair: make(map[attemptKey]int64),
		answers:       make(map[int64][]domain.Answer),
	}
	for _, q := range seed {
		s.bump(q.ID)
		for _, question := range q.Questions {
			s.bump(question.ID)
			for _, o := range question.Options {
				s.bump(o.ID)
			}
		}
	}
	for _, q := range seed {
		s.insertQuizLocked(q, q.Active)
	}
	return s
}

func (s *Store) bump(id int64) {
	if id > s.next {
		s.next = id
	}
}

func (s *Store) id(existing int64) int64 {
	if existing != 0 {
		return existing
	}
	s.next++
	return s.next
}

func (s *Store) insertQuizLocked(q domain.Quiz, activate bool) domain.Quiz {
	q = cloneQuiz(q)
	q.ID = s.id(q.ID)
	for i := range q.Questions {
		question := &q.Questions[i]
		question.ID = s.id(question.ID)
		question.QuizID = q.ID
		for j := range question.Options {
			option := &question.Options[j]
			option.ID = s.id(option.ID)
			option.QuestionID = question.ID
		}
	}
	q.Active = false
	s.quizzes[q.ID] = q
	s.quizOrder = append(s.quizOrder, q.ID)
	if activate {
		s.activeQuizID = q.ID
	}
	return s.viewLocked(q.ID)
}

func (s *Store) viewLocked(quizID int64) domain.Quiz {
	q := cloneQuiz(s.quizzes[quizID])
	q.Active = quizID == s.activeQuizID
	return q
}

// LoadQuiz implements app.QuizReader.
func (s *Store) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return s.viewLocked(quizID), nil
}

// LoadActiveQuiz implements app.QuizReader.
func (s *Store) LoadActiveQuiz(_ context.Context) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeQuizID == 0 {
		return domain.Quiz{}, domain.ErrNoActiveQuiz
	}
	return s.viewLocked(s.activeQuizID), nil
}

// CreateQuiz implements app.QuizStore.
func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz, activate bool) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz = cloneQuiz(quiz)
	quiz.ID = 0
	for i := range quiz.Questions {
		quiz.Questions[i].ID = 0
		for j := range quiz.Questions[i].Options {
			quiz.Questions[i].Options[j].ID = 0
		}
	}
	return s.insertQuizLocked(quiz, activate), nil
}

// ListQuizzes implements app.QuizStore.
func (s *Store) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizSummary, 0, len(s.quizOrder))
	for _, id := range s.quizOrder {
		q := s.quizzes[id]
		out = append(out, domain.QuizSummary{
			ID:            q.ID,
			Title:         q.Title,
			Language:      q.Language,
			Active:        q.ID == s.activeQuizID,
			QuestionCount: len(q.Questions),
		})
	}
	return out, nil
}

// ActivateQuiz implements app.QuizStore.
func (s *Store) ActivateQuiz(_ context.Context, quizID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.activeQuizID = quizID
	return nil
}

// DeactivateQuiz implements app.QuizStore.
func (s *Store) DeactivateQuiz(_ context.Context, quizID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	if s.activeQuizID == quizID {
		s.activeQuizID = 0
	}
	return nil
}

// ActiveCount reports how many quizzes are active; it is always 0 or 1.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeQuizID == 0 {
		return 0
	}
	return 1
}

// FindAttempt implements app.AttemptStore.
func (s *Store) FindAttempt(_ context.Context, userID, quizID int64) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.attemptByPair[attemptKey{userID: userID, quizID: quizID}]
	if !ok {
		return domain.Attempt{}, false, nil
	}
	return s.attempts[id], true, nil
}

// RecordAttempt implements app.AttemptStore.
func (s *Store) RecordAttempt(_ context.Context, attempt domain.Attempt, answers []domain.Answer) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey{userID: attempt.UserID, quizID: attempt.QuizID}
	if id, ok := s.attemptByPair[key]; ok {
		return s.attempts[id], domain.ErrAlreadyAttempted
	}

	s.next++
	attempt.ID = s.next
	stored := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		s.next++
		a.ID = s.next
		a.AttemptID = attempt.ID
		stored = append(stored, a)
	}
	s.attempts[attempt.ID] = attempt
	s.attemptOrder = append(s.attemptOrder, attempt.ID)
	s.attemptByPair[key] = attempt.ID
	s.answers[attempt.ID] = stored
	return attempt, nil
}

// CreateUser implements app.AccountStore.
func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.EmpID == user.EmpID || u.CIN == user.CIN {
			return domain.User{}, domain.ErrUserExists
		}
	}
	s.next++
	user.ID = s.next
	s.users[user.ID] = user
	return user, nil
}

// FindUserByEmpID implements app.AccountStore.
func (s *Store) FindUserByEmpID(_ context.Context, empID string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.EmpID == empID {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// ListUsers implements app.AccountStore.
func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAdmin implements app.AccountStore.
func (s *Store) CreateAdmin(_ context.Context, admin domain.Admin) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Username == admin.Username {
			return domain.Admin{}, domain.ErrAdminExists
		}
	}
	s.next++
	admin.ID = s.next
	s.admins[admin.ID] = admin
	return admin, nil
}

// FindAdminByUsername implements app.AccountStore.
func (s *Store) FindAdminByUsername(_ context.Context, username string) (domain.Admin, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.Username == username {
			return a, true, nil
		}
	}
	return domain.Admin{}, false, nil
}

// ListAttempts implements app.ReportStore.
func (s *Store) ListAttempts(_ context.Context) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, 0, len(s.attemptOrder))
	for _, id := range s.attemptOrder {
		a := s.attempts[id]
		u := s.users[a.UserID]
		out = append(out, domain.AttemptRecord{
			Attempt:   a,
			EmpID:     u.EmpID,
			CIN:       u.CIN,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Service:   u.Service,
			Site:      u.Site,
			QuizTitle: s.quizzes[a.QuizID].Title,
		})
	}
	return out, nil
}

// GetAttempt implements app.ReportStore.
func (s *Store) GetAttempt(_ context.Context, attemptID int64) (domain.AttemptDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.AttemptDetail{}, domain.ErrAttemptNotFound
	}
	answers := append([]domain.Answer(nil), s.answers[attemptID]...)
	return domain.AttemptDetail{Attempt: a, Answers: answers}, nil
}

// CountUsers implements app.ReportStore.
func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CountQuizzes implements app.ReportStore.
func (s *Store) CountQuizzes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes), nil
}

// CountAttempts implements app.ReportStore.
func (s *Store) CountAttempts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts), nil
}

// AttemptsPerQuiz implements app.ReportStore.
func (s *Store) AttemptsPerQuiz(_ context.Context) ([]domain.QuizAttemptCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]*domain.QuizAttemptCount, len(s.quizOrder))
	out := make([]domain.QuizAttemptCount, len(s.quizOrder))
	for i, id := range s.quizOrder {
		out[i] = domain.QuizAttemptCount{QuizID: id, Title: s.quizzes[id].Title}
		counts[id] = &out[i]
	}
	for _, a := range s.attempts {
		c := counts[a.QuizID]
		if c == nil {
			continue
		}
		c.Attempts++
		if a.Status == domain.StatusPassed {
			c.Passed++
		}
	}
	return out, nil
}

// ScoreSummary implements app.ReportStore.
func (s *Store) ScoreSummary(_ context.Context) (domain.ScoreSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.attempts) == 0 {
		return domain.ScoreSummary{}, nil
	}
	first := true
	var lo, hi, sum int
	for _, a := range s.attempts {
		if first || a.Score < lo {
			lo = a.Score
		}
		if first || a.Score > hi {
			hi = a.Score
		}
		first = false
		sum += a.Score
	}
	avg := float64(sum) / float64(len(s.attempts))
	return domain.ScoreSummary{Avg: &avg, Min: &lo, Max: &hi}, nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		cq := question
		cq.Translations = cloneTranslations(question.Translations)
		cq.Options = make([]domain.Option, len(question.Options))
		for j, o := range question.Options {
			co := o
			co.Translations = cloneTranslations(o.Translations)
			cq.Options[j] = co
		}
		out.Questions[i] = cq
	}
	return out
}

func cloneTranslations(in map[domain.Language]string) map[domain.Language]string {
	if in == nil {
		return nil
	}
	out := make(map[domain.Language]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
