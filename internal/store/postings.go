package store

import (
	"context"

	"jobspider/internal/errors"
	"jobspider/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Postings persists scraped job postings.
type Postings struct {
	conn clickhouse.Conn
}

func NewPostings(conn clickhouse.Conn) *Postings {
	return &Postings{conn: conn}
}

func (s *Postings) Insert(ctx context.Context, posting *models.JobPosting) error {
	query := `
		INSERT INTO postings (
			id, search_url, url, title, company, company_logo,
			location, country, region, date_posted, valid_through,
			employment_type, months_experience, education, seniority,
			job_function, industries, summary, apply_url, scraped_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`

	if err := s.conn.Exec(ctx, query,
		posting.ID,
		posting.SearchURL,
		posting.URL,
		posting.Title,
		posting.Company,
		posting.CompanyLogo,
		posting.Location,
		posting.Country,
		posting.Region,
		posting.DatePosted,
		posting.ValidThrough,
		posting.EmploymentType,
		posting.MonthsExperience,
		posting.Education,
		posting.Seniority,
		posting.JobFunction,
		posting.Industries,
		posting.Summary,
		posting.ApplyURL,
		posting.ScrapedAt,
	); err != nil {
		return errors.Internal("inserting job posting", err)
	}

	return nil
}
