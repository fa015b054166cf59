package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"quiz-eval-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ReportStore serves the administrator read models.
type ReportStore interface {
	ListAttempts(ctx context.Context) ([]domain.AttemptRecord, error)
	// GetAttempt returns domain.ErrAttemptNotFound for an unknown ID.
	GetAttempt(ctx context.Context, attemptID int64) (domain.AttemptDetail, error)
	CountUsers(ctx context.Context) (int, error)
	CountQuizzes(ctx context.Context) (int, error)
	CountAttempts(ctx context.Context) (int, error)
	AttemptsPerQuiz(ctx context.Context) ([]domain.QuizAttemptCount, error)
	ScoreSummary(ctx context.Context) (domain.ScoreSummary, error)
}

// ReportService builds dashboards, attempt listings and exports.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// ListAttempts returns every attempt joined with its user and quiz.
func (s *ReportService) ListAttempts(ctx context.Context) ([]domain.AttemptRecord, error) {
	return s.store.ListAttempts(ctx)
}

// GetAttempt returns one attempt with the answers stored at submission time.
func (s *ReportService) GetAttempt(ctx context.Context, attemptID int64) (domain.AttemptDetail, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

// Dashboard gathers the admin metrics; the queries are independent and run concurrently.
func (s *ReportService) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var d domain.Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.TotalUsers, err = s.store.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.TotalQuizzes, err = s.store.CountQuizzes(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.TotalAttempts, err = s.store.CountAttempts(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.AttemptsPerQuiz, err = s.store.AttemptsPerQuiz(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.Scores, err = s.store.ScoreSummary(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}
	if d.AttemptsPerQuiz == nil {
		d.AttemptsPerQuiz = []domain.QuizAttemptCount{}
	}
	return d, nil
}

var exportHeader = []string{
	"LastName",
	"FirstName",
	"CIN",
	"Service",
	"Site",
	"Quiz",
	"Points",
	"Result",
	"Date",
}

// ExportCSV writes every attempt as one CSV row.
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.store.ListAttempts(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.LastName,
			r.FirstName,
			r.CIN,
			r.Service,
			r.Site,
			r.QuizTitle,
			strconv.Itoa(r.Score),
			r.Status,
			r.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
