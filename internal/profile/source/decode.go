package source

import (
	"encoding/json"
)

type worksEnvelope struct {
	Meta    Meta              `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

func decodeWorksPage(op string, body []byte) (*WorksPage, error) {
	var env worksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewError(CategoryBadData, op, "decode works envelope", err)
	}
	page := &WorksPage{Meta: env.Meta, Results: make([]WorkRecord, 0, len(env.Results))}
	for _, raw := range env.Results {
		var w WorkRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			w = salvageWork(raw)
			page.Salvaged++
		}
		page.Results = append(page.Results, w)
	}
	return page, nil
}

// salvageWork decodes what it can from a record that failed strict decoding.
// Fields of the wrong type are left empty; a non-object yields a record with
// no id, which the normalizer skips.
func salvageWork(raw json.RawMessage) WorkRecord {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return WorkRecord{}
	}
	var w WorkRecord
	decodeField(fields, "id", &w.ID)
	decodeField(fields, "doi", &w.DOI)
	decodeField(fields, "title", &w.Title)
	decodeField(fields, "display_name", &w.DisplayName)
	decodeField(fields, "publication_year", &w.PublicationYear)
	decodeField(fields, "publication_date", &w.PublicationDate)
	decodeField(fields, "cited_by_count", &w.CitedByCount)
	decodeField(fields, "type", &w.Type)
	decodeField(fields, "primary_location", &w.PrimaryLocation)
	decodeField(fields, "open_access", &w.OpenAccess)
	decodeField(fields, "authorships", &w.Authorships)
	return w
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// decodeAuthor decodes strictly first. When that fails on an object, every
// field is decoded on its own and nested lists are salvaged per element, so a
// single malformed topic or affiliation does not cost the whole profile.
func decodeAuthor(op string, body []byte) (*AuthorRecord, error) {
	var rec AuthorRecord
	if err := json.Unmarshal(body, &rec); err == nil {
		return &rec, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, NewError(CategoryBadData, op, "decode author", err)
	}

	rec = AuthorRecord{}
	decodeField(fields, "id", &rec.ID)
	decodeField(fields, "display_name", &rec.DisplayName)
	decodeField(fields, "orcid", &rec.ORCID)
	decodeField(fields, "works_count", &rec.WorksCount)
	decodeField(fields, "cited_by_count", &rec.CitedByCount)
	if raw, ok := fields["summary_stats"]; ok {
		rec.SummaryStats = salvageSummaryStats(raw)
	}

	var n int
	rec.DisplayNameAlternatives, n = decodeEach(fields, "display_name_alternatives", salvageString)
	rec.Salvaged += n
	rec.CountsByYear, n = decodeEach(fields, "counts_by_year", salvageCountsByYear)
	rec.Salvaged += n
	rec.LastKnownInstitutions, n = decodeEach(fields, "last_known_institutions", salvageInstitution)
	rec.Salvaged += n
	rec.Affiliations, n = decodeEach(fields, "affiliations", salvageAffiliation)
	rec.Salvaged += n
	rec.Topics, n = decodeEach(fields, "topics", salvageTopic)
	rec.Salvaged += n
	return &rec, nil
}

// decodeEach decodes fields[key] as a list, salvaging elements that fail
// strict decoding. It returns the number of salvaged elements; a value that is
// not a list counts as one.
func decodeEach[T any](fields map[string]json.RawMessage, key string, salvage func(json.RawMessage) T) ([]T, int) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil, 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 1
	}
	out := make([]T, 0, len(items))
	salvaged := 0
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			v = salvage(item)
			salvaged++
		}
		out = append(out, v)
	}
	return out, salvaged
}

func objectFields(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func salvageString(json.RawMessage) string {
	return ""
}

func salvageSummaryStats(raw json.RawMessage) *SummaryStats {
	var s SummaryStats
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	fields := objectFields(raw)
	if fields == nil {
		return nil
	}
	decodeField(fields, "2yr_mean_citedness", &s.TwoYearMeanCitedness)
	decodeField(fields, "h_index", &s.HIndex)
	decodeField(fields, "i10_index", &s.I10Index)
	return &s
}

func salvageCountsByYear(raw json.RawMessage) CountsByYearRecord {
	var c CountsByYearRecord
	fields := objectFields(raw)
	decodeField(fields, "year", &c.Year)
	decodeField(fields, "works_count", &c.WorksCount)
	decodeField(fields, "cited_by_count", &c.CitedByCount)
	return c
}

func salvageInstitution(raw json.RawMessage) InstitutionRecord {
	var in InstitutionRecord
	fields := objectFields(raw)
	decodeField(fields, "id", &in.ID)
	decodeField(fields, "display_name", &in.DisplayName)
	decodeField(fields, "ror", &in.ROR)
	decodeField(fields, "country_code", &in.CountryCode)
	decodeField(fields, "type", &in.Type)
	return in
}

// salvageAffiliation keeps the valid years of a malformed year list.
func salvageAffiliation(raw json.RawMessage) AffiliationRecord {
	var a AffiliationRecord
	fields := objectFields(raw)
	if inst, ok := fields["institution"]; ok {
		if err := json.Unmarshal(inst, &a.Institution); err != nil {
			a.Institution = salvageInstitution(inst)
		}
	}
	var years []json.RawMessage
	decodeField(fields, "years", &years)
	for _, y := range years {
		var year int
		if err := json.Unmarshal(y, &year); err == nil {
			a.Years = append(a.Years, year)
		}
	}
	return a
}

func salvageTopic(raw json.RawMessage) TopicRecord {
	var t TopicRecord
	fields := objectFields(raw)
	decodeField(fields, "id", &t.ID)
	decodeField(fields, "display_name", &t.DisplayName)
	decodeField(fields, "count", &t.Count)
	decodeField(fields, "subfield", &t.Subfield)
	decodeField(fields, "field", &t.Field)
	decodeField(fields, "domain", &t.Domain)
	return t
}
