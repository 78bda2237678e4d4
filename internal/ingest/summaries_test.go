package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/importer"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository/memory"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T) (*SummaryGenerator, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger, _ := test.NewNullLogger()
	svc := summary.NewService(config.SummaryConfig{}, nil, logger, nil)
	stores := Stores{Companies: store, Rooms: store.Rooms(), Messages: store, Summaries: store}
	return NewSummaryGenerator(stores, svc, logger, 2), store
}

func seedMessages(t *testing.T, store *memory.Store, roomID, prefix string, n int, newest time.Time) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	imp := importer.New(store, logger, nil)

	raw := make([]importer.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		raw = append(raw, importer.RawMessage{
			ChatworkMessageID: fmt.Sprintf("%s-%d", prefix, i),
			SenderName:        "Taro",
			SentAt:            newest.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			BodyText:          fmt.Sprintf("note %d", i),
		})
	}
	_, err := imp.Import(context.Background(), roomID, raw)
	require.NoError(t, err)
}

func TestGenerateForCompany(t *testing.T) {
	gen, store := newGenerator(t)
	company := store.AddCompany("Acme")
	sales := store.AddRoom("11", "Sales", company.ID)
	support := store.AddRoom("12", "Support", company.ID)
	other := store.AddRoom("13", "Other", "")

	recent := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedMessages(t, store, sales.ID, "new", 3, recent)
	seedMessages(t, store, support.ID, "new", 2, recent)
	seedMessages(t, store, other.ID, "new", 4, recent)
	seedMessages(t, store, sales.ID, "old", 1, recent.AddDate(0, 0, -60))

	result, err := gen.GenerateForCompany(context.Background(), company.ID, summary.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.SourceHeuristic, result.Source)
	assert.Equal(t, models.PeriodRecent, result.PeriodType)
	assert.Equal(t, company.ID, result.CompanyID)
	assert.Equal(t, 5, result.Stats.MessageCount)
	assert.ElementsMatch(t, []string{"Sales", "Support"}, result.Stats.Rooms)
	assert.True(t, strings.HasPrefix(result.Content, "Period: "))

	latest, err := gen.Latest(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ID, latest.ID)
}

func TestGenerateForCompanyWithoutMessages(t *testing.T) {
	gen, store := newGenerator(t)
	company := store.AddCompany("Quiet Co")

	result, err := gen.GenerateForCompany(context.Background(), company.ID, summary.Options{})
	require.NoError(t, err)
	assert.Equal(t, "No messages in the selected period.", result.Content)
	assert.Equal(t, models.SourceHeuristic, result.Source)
}

func TestGenerateForUnknownCompany(t *testing.T) {
	gen, _ := newGenerator(t)

	_, err := gen.GenerateForCompany(context.Background(), "missing", summary.Options{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = gen.Latest(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = gen.History(context.Background(), "missing", 5)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHistoryNewestFirst(t *testing.T) {
	gen, store := newGenerator(t)
	company := store.AddCompany("Acme")

	empty, err := gen.History(context.Background(), company.ID, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(context.Background(), &models.Summary{
			CompanyID:   company.ID,
			PeriodType:  models.PeriodRecent,
			Content:     fmt.Sprintf("s%d", i),
			GeneratedAt: time.Date(2024, 5, i+1, 0, 0, 0, 0, time.UTC),
		}))
	}

	list, err := gen.History(context.Background(), company.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].Content)
	assert.Equal(t, "s1", list[1].Content)
}

func TestGenerateAll(t *testing.T) {
	gen, store := newGenerator(t)
	var linked []string
	for i := 0; i < 5; i++ {
		c := store.AddCompany(fmt.Sprintf("Company %d", i))
		store.AddRoom(fmt.Sprintf("%d", 100+i), "room", c.ID)
		linked = append(linked, c.ID)
	}
	idle := store.AddCompany("No rooms")

	report, err := gen.GenerateAll(context.Background(), summary.Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Generated)
	assert.Empty(t, report.Failures)

	for _, id := range linked {
		_, err := gen.Latest(context.Background(), id)
		assert.NoError(t, err)
	}
	_, err = gen.Latest(context.Background(), idle.ID)
	assert.Error(t, err)
}
