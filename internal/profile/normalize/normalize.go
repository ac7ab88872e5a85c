// Package normalize maps upstream records to cache records.
//
// Every function is pure and total: a malformed record yields a best-effort
// value with defaults (missing title becomes UntitledPlaceholder, missing or
// negative counts become 0) instead of failing the batch.
package normalize

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"showcase/internal/profile/models"
	"showcase/internal/profile/source"
	id "showcase/pkg/domain"
	platformstrings "showcase/pkg/platform/strings"
)

// UntitledPlaceholder replaces a missing or blank work title.
const UntitledPlaceholder = "Untitled"

const openAlexPrefix = "https://openalex.org/"

// RecordToPublication maps one work. ok is false when the record has no
// stable id and must be skipped.
func RecordToPublication(subjectID id.SubjectID, w source.WorkRecord) (pub models.Publication, ok bool) {
	workID := shortID(w.ID)
	if workID == "" {
		return models.Publication{}, false
	}
	title := str(w.Title)
	if title == "" {
		title = str(w.DisplayName)
	}
	if title == "" {
		title = UntitledPlaceholder
	}
	pub = models.Publication{
		SubjectID:       subjectID,
		WorkID:          workID,
		Title:           title,
		DOI:             str(w.DOI),
		Year:            validYear(w.PublicationYear),
		PublicationDate: str(w.PublicationDate),
		CitedByCount:    count(w.CitedByCount),
		Type:            str(w.Type),
		AuthorCount:     len(w.Authorships),
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		pub.Venue = str(w.PrimaryLocation.Source.DisplayName)
	}
	if w.OpenAccess != nil {
		pub.IsOpenAccess = w.OpenAccess.IsOA != nil && *w.OpenAccess.IsOA
		pub.OAURL = str(w.OpenAccess.OAURL)
	}
	return pub, true
}

// RecordToTopic maps one topic; ok is false without an id.
func RecordToTopic(subjectID id.SubjectID, t source.TopicRecord) (models.Topic, bool) {
	topicID := shortID(t.ID)
	if topicID == "" {
		return models.Topic{}, false
	}
	name := str(t.DisplayName)
	if name == "" {
		name = topicID
	}
	return models.Topic{
		SubjectID:   subjectID,
		TopicID:     topicID,
		DisplayName: name,
		Count:       count(t.Count),
		Subfield:    nodeName(t.Subfield),
		Field:       nodeName(t.Field),
		Domain:      nodeName(t.Domain),
	}, true
}

// RecordToAffiliation maps one affiliation. Start and end years are the
// min and max of the year list, nil when the list is empty.
func RecordToAffiliation(subjectID id.SubjectID, a source.AffiliationRecord) (models.Affiliation, bool) {
	instID := shortID(a.Institution.ID)
	if instID == "" {
		return models.Affiliation{}, false
	}
	years := make([]int, 0, len(a.Years))
	for _, y := range a.Years {
		if y > 0 {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	years = slices.Compact(years)
	slices.Reverse(years)

	aff := models.Affiliation{
		SubjectID:     subjectID,
		InstitutionID: instID,
		DisplayName:   str(a.Institution.DisplayName),
		CountryCode:   str(a.Institution.CountryCode),
		Type:          str(a.Institution.Type),
		ROR:           str(a.Institution.ROR),
		Years:         years,
	}
	if aff.DisplayName == "" {
		aff.DisplayName = instID
	}
	if len(years) > 0 {
		end, start := years[0], years[len(years)-1]
		aff.StartYear, aff.EndYear = &start, &end
	}
	return aff, true
}

// RecordToStats builds the profile-stats blob. pubs supplies the publication
// year range.
func RecordToStats(subjectID id.SubjectID, a *source.AuthorRecord, pubs []models.Publication, now time.Time) (models.CachedStats, error) {
	stats := models.ProfileStats{
		CountsByYear:     []models.YearCount{},
		LastInstitutions: []string{},
		PublicationYears: YearRangeOf(pubs),
	}
	if a != nil {
		stats.DisplayName = str(a.DisplayName)
		stats.ORCID = str(a.ORCID)
		stats.WorksCount = count(a.WorksCount)
		stats.CitedByCount = count(a.CitedByCount)
		stats.AltNames = platformstrings.DedupeAndTrim(a.DisplayNameAlternatives)
		if s := a.SummaryStats; s != nil {
			stats.HIndex = count(s.HIndex)
			stats.I10Index = count(s.I10Index)
			if s.TwoYearMeanCitedness != nil && *s.TwoYearMeanCitedness > 0 {
				stats.TwoYearMeanCitedness = *s.TwoYearMeanCitedness
			}
		}
		for _, c := range a.CountsByYear {
			year := validYear(c.Year)
			if year == nil {
				continue
			}
			stats.CountsByYear = append(stats.CountsByYear, models.YearCount{
				Year:         *year,
				WorksCount:   count(c.WorksCount),
				CitedByCount: count(c.CitedByCount),
			})
		}
		slices.SortFunc(stats.CountsByYear, func(x, y models.YearCount) int { return y.Year - x.Year })
		names := make([]string, 0, len(a.LastKnownInstitutions))
		for _, inst := range a.LastKnownInstitutions {
			names = append(names, str(inst.DisplayName))
		}
		if deduped := platformstrings.DedupeAndTrim(names); len(deduped) > 0 {
			stats.LastInstitutions = deduped
		}
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return models.CachedStats{}, err
	}
	return models.CachedStats{
		SubjectID:   subjectID,
		Kind:        models.StatsKindProfile,
		Data:        data,
		LastUpdated: now,
	}, nil
}

// Publications maps a batch, skipping id-less records and keeping the first
// of any duplicate ids.
func Publications(subjectID id.SubjectID, works []source.WorkRecord) (pubs []models.Publication, skipped int) {
	pubs = make([]models.Publication, 0, len(works))
	seen := make(map[string]struct{}, len(works))
	for _, w := range works {
		p, ok := RecordToPublication(subjectID, w)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[p.WorkID]; dup {
			skipped++
			continue
		}
		seen[p.WorkID] = struct{}{}
		pubs = append(pubs, p)
	}
	return pubs, skipped
}

// Topics maps a batch with the same skip and dedupe rules as Publications.
func Topics(subjectID id.SubjectID, records []source.TopicRecord) (topics []models.Topic, skipped int) {
	topics = make([]models.Topic, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		t, ok := RecordToTopic(subjectID, r)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[t.TopicID]; dup {
			skipped++
			continue
		}
		seen[t.TopicID] = struct{}{}
		topics = append(topics, t)
	}
	return topics, skipped
}

// Affiliations maps a batch with the same skip and dedupe rules as Publications.
func Affiliations(subjectID id.SubjectID, records []source.AffiliationRecord) (affs []models.Affiliation, skipped int) {
	affs = make([]models.Affiliation, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		a, ok := RecordToAffiliation(subjectID, r)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[a.InstitutionID]; dup {
			skipped++
			continue
		}
		seen[a.InstitutionID] = struct{}{}
		affs = append(affs, a)
	}
	return affs, skipped
}

// YearRangeOf spans the years present in pubs; nil when none has a year.
func YearRangeOf(pubs []models.Publication) *models.YearRange {
	var r *models.YearRange
	for _, p := range pubs {
		if p.Year == nil {
			continue
		}
		y := *p.Year
		if r == nil {
			r = &models.YearRange{From: y, To: y}
			continue
		}
		r.From = min(r.From, y)
		r.To = max(r.To, y)
	}
	return r
}

func shortID(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), openAlexPrefix))
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func count(n *int) int {
	if n == nil || *n < 0 {
		return 0
	}
	return *n
}

func validYear(y *int) *int {
	if y == nil || *y <= 0 {
		return nil
	}
	v := *y
	return &v
}

func nodeName(n *source.NamedNode) string {
	if n == nil {
		return ""
	}
	return str(n.DisplayName)
}
