package migrations

import "jobspider/internal/store/schema"

var CreatePostingsTable = schema.Migration{
	Version:     1,
	Description: "Create postings table",
	Up: `
		CREATE TABLE IF NOT EXISTS postings (
			id UUID,
			search_url String,
			url String,
			title String,
			company String,
			company_logo String,
			location String,
			country String,
			region String,
			date_posted String,
			valid_through String,
			employment_type String,
			months_experience Int32,
			education String,
			seniority String,
			job_function String,
			industries String,
			summary String,
			apply_url String,
			scraped_at DateTime,
			PRIMARY KEY (id)
		) ENGINE = ReplacingMergeTree(scraped_at)
		PARTITION BY toYYYYMM(scraped_at)
		ORDER BY (id, scraped_at)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS postings`,
}
