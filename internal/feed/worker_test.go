package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, source string) ([]Row, error) {
	args := m.Called(ctx, source)
	rows, _ := args.Get(0).([]Row)
	return rows, args.Error(1)
}

func TestRefreshWorkerLoadAll(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, "teams.csv").Return([]Row{{"TeamID": "A"}}, nil)
	fetcher.On("Fetch", mock.Anything, "questions.csv").Return(nil, errors.New("boom"))

	var applied []Row
	w := NewRefreshWorker(fetcher, []Target{
		{Name: "roster", Source: "teams.csv", Apply: func(rows []Row) error { applied = rows; return nil }},
		{Name: "questions", Source: "questions.csv", Apply: func([]Row) error { return nil }},
		{Name: "unset", Source: "", Apply: func([]Row) error { return errors.New("never called") }},
	}, 0, 0, zerolog.Nop())

	err := w.LoadAll(context.Background())
	assert.ErrorContains(t, err, "load questions")
	assert.Equal(t, []Row{{"TeamID": "A"}}, applied)
	fetcher.AssertExpectations(t)
}
