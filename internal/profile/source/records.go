package source

import "encoding/json"

// Upstream record shapes. Every scalar is a pointer so "absent" and "null"
// survive decoding; the normalizer applies defaults.

// AuthorRecord is the single-record author payload. Salvaged counts nested
// records that failed strict decoding and were recovered field by field.
type AuthorRecord struct {
	ID                      string               `json:"id"`
	DisplayName             *string              `json:"display_name"`
	DisplayNameAlternatives []string             `json:"display_name_alternatives"`
	ORCID                   *string              `json:"orcid"`
	WorksCount              *int                 `json:"works_count"`
	CitedByCount            *int                 `json:"cited_by_count"`
	SummaryStats            *SummaryStats        `json:"summary_stats"`
	CountsByYear            []CountsByYearRecord `json:"counts_by_year"`
	LastKnownInstitutions   []InstitutionRecord  `json:"last_known_institutions"`
	Affiliations            []AffiliationRecord  `json:"affiliations"`
	Topics                  []TopicRecord        `json:"topics"`
	Salvaged                int                  `json:"-"`
}

type SummaryStats struct {
	TwoYearMeanCitedness *float64 `json:"2yr_mean_citedness"`
	HIndex               *int     `json:"h_index"`
	I10Index             *int     `json:"i10_index"`
}

type CountsByYearRecord struct {
	Year         *int `json:"year"`
	WorksCount   *int `json:"works_count"`
	CitedByCount *int `json:"cited_by_count"`
}

type InstitutionRecord struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	ROR         *string `json:"ror"`
	CountryCode *string `json:"country_code"`
	Type        *string `json:"type"`
}

type AffiliationRecord struct {
	Institution InstitutionRecord `json:"institution"`
	Years       []int             `json:"years"`
}

type TopicRecord struct {
	ID          string     `json:"id"`
	DisplayName *string    `json:"display_name"`
	Count       *int       `json:"count"`
	Subfield    *NamedNode `json:"subfield"`
	Field       *NamedNode `json:"field"`
	Domain      *NamedNode `json:"domain"`
}

type NamedNode struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
}

// WorkRecord is one entry of the works listing.
type WorkRecord struct {
	ID              string            `json:"id"`
	DOI             *string           `json:"doi"`
	Title           *string           `json:"title"`
	DisplayName     *string           `json:"display_name"`
	PublicationYear *int              `json:"publication_year"`
	PublicationDate *string           `json:"publication_date"`
	CitedByCount    *int              `json:"cited_by_count"`
	Type            *string           `json:"type"`
	PrimaryLocation *LocationRecord   `json:"primary_location"`
	OpenAccess      *OpenAccess       `json:"open_access"`
	Authorships     []json.RawMessage `json:"authorships"`
}

type LocationRecord struct {
	Source *NamedNode `json:"source"`
}

type OpenAccess struct {
	IsOA  *bool   `json:"is_oa"`
	OAURL *string `json:"oa_url"`
}

// Meta is the listing envelope's paging metadata.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// WorksPage is one decoded listing page. Salvaged counts records that failed
// strict decoding and were recovered field by field.
type WorksPage struct {
	Meta     Meta
	Results  []WorkRecord
	Salvaged int
}
