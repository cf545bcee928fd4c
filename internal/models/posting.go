package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// JobPosting is one scraped job advert. The field order of CSVRow matches
// the header produced by CSVHeader; downstream consumers depend on both.
type JobPosting struct {
	ID               string    `json:"id"`
	SearchURL        string    `json:"job_search_url"`
	URL              string    `json:"job_url"`
	Title            string    `json:"title"`
	Company          string    `json:"company"`
	CompanyLogo      string    `json:"company_logo"`
	Location         string    `json:"location"`
	Country          string    `json:"country"`
	Region           string    `json:"region"`
	DatePosted       string    `json:"date_posted"`
	ValidThrough     string    `json:"valid_through"`
	EmploymentType   string    `json:"employment_type"`
	MonthsExperience int       `json:"months_experience"`
	Education        string    `json:"education"`
	Seniority        string    `json:"seniority"`
	JobFunction      string    `json:"job_function"`
	Industries       string    `json:"industries"`
	Summary          string    `json:"summary"`
	ApplyURL         string    `json:"apply_url"`
	ScrapedAt        time.Time `json:"scraped_at"`
}

func CSVHeader() []string {
	return []string{
		"job_search_url", "job_url", "title", "company", "company_logo",
		"location", "country", "region", "date_posted", "valid_through",
		"employment_type", "months_experience", "education", "seniority",
		"job_function", "industries", "summary", "apply_url", "scraped_at",
	}
}

func (p *JobPosting) CSVRow() []string {
	return []string{
		p.SearchURL, p.URL, p.Title, p.Company, p.CompanyLogo,
		p.Location, p.Country, p.Region, p.DatePosted, p.ValidThrough,
		p.EmploymentType, strconv.Itoa(p.MonthsExperience), p.Education,
		p.Seniority, p.JobFunction, p.Industries, p.Summary, p.ApplyURL,
		p.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

func (p JobPosting) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

func (p *JobPosting) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}
