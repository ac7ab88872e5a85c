package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/profile/models"
	"showcase/internal/profile/source"
	id "showcase/pkg/domain"
)

const subject = id.SubjectID("A123")

func ptr[T any](v T) *T { return &v }

func TestRecordToPublication(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		pub, ok := RecordToPublication(subject, source.WorkRecord{
			ID:              "https://openalex.org/W42",
			DOI:             ptr("https://doi.org/10.1/abc"),
			Title:           ptr("  Graph Theory  "),
			PublicationYear: ptr(2021),
			CitedByCount:    ptr(9),
			PrimaryLocation: &source.LocationRecord{Source: &source.NamedNode{DisplayName: ptr("Journal")}},
			OpenAccess:      &source.OpenAccess{IsOA: ptr(true), OAURL: ptr("https://oa.example/x")},
			Authorships:     []json.RawMessage{[]byte(`{}`), []byte(`{}`)},
		})
		require.True(t, ok)
		assert.Equal(t, "W42", pub.WorkID)
		assert.Equal(t, "Graph Theory", pub.Title)
		assert.Equal(t, 2021, *pub.Year)
		assert.Equal(t, 9, pub.CitedByCount)
		assert.Equal(t, "Journal", pub.Venue)
		assert.True(t, pub.IsOpenAccess)
		assert.Equal(t, 2, pub.AuthorCount)
		assert.Equal(t, subject, pub.SubjectID)
	})

	t.Run("defaults for missing fields", func(t *testing.T) {
		pub, ok := RecordToPublication(subject, source.WorkRecord{ID: "W1", CitedByCount: ptr(-3)})
		require.True(t, ok)
		assert.Equal(t, UntitledPlaceholder, pub.Title)
		assert.Zero(t, pub.CitedByCount, "negative counts clamp to zero")
		assert.Nil(t, pub.Year)
		assert.False(t, pub.IsOpenAccess)
	})

	t.Run("display name stands in for title", func(t *testing.T) {
		pub, _ := RecordToPublication(subject, source.WorkRecord{ID: "W1", Title: ptr(" "), DisplayName: ptr("Alt")})
		assert.Equal(t, "Alt", pub.Title)
	})

	t.Run("no id is skipped", func(t *testing.T) {
		_, ok := RecordToPublication(subject, source.WorkRecord{Title: ptr("orphan")})
		assert.False(t, ok)
	})
}

func TestPublications_BadRecordDoesNotAbortBatch(t *testing.T) {
	works := []source.WorkRecord{
		{ID: "W1", Title: ptr("first")},
		{},
		{ID: "W2"},
		{ID: "W1", Title: ptr("duplicate")},
	}
	pubs, skipped := Publications(subject, works)

	require.Len(t, pubs, 2)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, "first", pubs[0].Title, "first occurrence wins")
	assert.Equal(t, UntitledPlaceholder, pubs[1].Title)
}

func TestTopics(t *testing.T) {
	topics, skipped := Topics(subject, []source.TopicRecord{
		{ID: "https://openalex.org/T1", DisplayName: ptr("Graphs"), Count: ptr(4),
			Field: &source.NamedNode{DisplayName: ptr("Mathematics")}},
		{ID: "T2"},
		{DisplayName: ptr("no id")},
	})
	require.Len(t, topics, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "T1", topics[0].TopicID)
	assert.Equal(t, "Mathematics", topics[0].Field)
	assert.Equal(t, "T2", topics[1].DisplayName, "id stands in for missing name")
	assert.Zero(t, topics[1].Count)
}

func TestRecordToAffiliation(t *testing.T) {
	t.Run("years derive start and end", func(t *testing.T) {
		aff, ok := RecordToAffiliation(subject, source.AffiliationRecord{
			Institution: source.InstitutionRecord{ID: "https://openalex.org/I9", DisplayName: ptr("Uni")},
			Years:       []int{2019, 2021, 2020, 2021, 0},
		})
		require.True(t, ok)
		assert.Equal(t, "I9", aff.InstitutionID)
		assert.Equal(t, []int{2021, 2020, 2019}, aff.Years)
		assert.Equal(t, 2019, *aff.StartYear)
		assert.Equal(t, 2021, *aff.EndYear)
	})

	t.Run("no years gives nil range", func(t *testing.T) {
		aff, ok := RecordToAffiliation(subject, source.AffiliationRecord{Institution: source.InstitutionRecord{ID: "I1"}})
		require.True(t, ok)
		assert.Nil(t, aff.StartYear)
		assert.Nil(t, aff.EndYear)
		assert.Empty(t, aff.Years)
	})
}

func TestYearRangeOf(t *testing.T) {
	assert.Nil(t, YearRangeOf(nil))
	assert.Nil(t, YearRangeOf([]models.Publication{{WorkID: "W1"}, {WorkID: "W2"}}), "no years means no range, not zero")

	r := YearRangeOf([]models.Publication{{Year: ptr(2018)}, {}, {Year: ptr(2022)}, {Year: ptr(2020)}})
	require.NotNil(t, r)
	assert.Equal(t, models.YearRange{From: 2018, To: 2022}, *r)
}

func TestRecordToStats(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	author := &source.AuthorRecord{
		DisplayName:  ptr("Ada"),
		WorksCount:   ptr(3),
		CitedByCount: nil,
		SummaryStats: &source.SummaryStats{HIndex: ptr(2)},
		CountsByYear: []source.CountsByYearRecord{
			{Year: ptr(2020), WorksCount: ptr(1)},
			{Year: ptr(2022), CitedByCount: ptr(5)},
			{WorksCount: ptr(9)},
		},
		LastKnownInstitutions: []source.InstitutionRecord{
			{ID: "I1", DisplayName: ptr("Uni")},
			{ID: "I1", DisplayName: ptr(" Uni ")},
			{ID: "I2"},
		},
		DisplayNameAlternatives: []string{"A. Lovelace", " A. Lovelace", ""},
	}

	cs, err := RecordToStats(subject, author, nil, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatsKindProfile, cs.Kind)
	assert.Equal(t, now, cs.LastUpdated)

	var stats models.ProfileStats
	require.NoError(t, json.Unmarshal(cs.Data, &stats))
	assert.Equal(t, "Ada", stats.DisplayName)
	assert.Equal(t, 3, stats.WorksCount)
	assert.Zero(t, stats.CitedByCount)
	assert.Equal(t, 2, stats.HIndex)
	assert.Nil(t, stats.PublicationYears)
	require.Len(t, stats.CountsByYear, 2)
	assert.Equal(t, 2022, stats.CountsByYear[0].Year)
	assert.Equal(t, []string{"Uni"}, stats.LastInstitutions)
	assert.Equal(t, []string{"A. Lovelace"}, stats.AltNames)
}

func TestRecordToStats_NilAuthor(t *testing.T) {
	cs, err := RecordToStats(subject, nil, nil, time.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{"displayName":"","worksCount":0,"citedByCount":0,"hIndex":0,"i10Index":0,
		"twoYearMeanCitedness":0,"countsByYear":[],"publicationYears":null,"lastKnownInstitutions":[]}`, string(cs.Data))
}
