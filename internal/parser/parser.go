package parser

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"jobspider/internal/errors"
	"jobspider/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const pageSize = 25

var (
	digitsPattern     = regexp.MustCompile(`[^0-9]`)
	applyURLPattern   = regexp.MustCompile(`<!--"(.*?)"-->`)
	lineEndingPattern = regexp.MustCompile(`[\r\n]+`)
	emptyLinePattern  = regexp.MustCompile(`\n\s*\n`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	leadSpacePattern  = regexp.MustCompile(`\n\s+`)
	trailSpacePattern = regexp.MustCompile(`\s+\n`)
	newlineRunPattern = regexp.MustCompile(`\n{3,}`)
)

var idNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// PostingID derives a stable UUID from the canonical job URL so re-scrapes
// of the same advert collapse to one row downstream.
func PostingID(jobURL string) string {
	return uuid.NewSHA1(idNamespace, []byte(jobURL)).String()
}

func NewDocument(htmlBody string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, errors.Internal("parsing HTML document", err)
	}
	return doc, nil
}

// JobCount reads the total result count from the search results header.
func JobCount(doc *goquery.Document) (int, error) {
	text := doc.Find("h1.results-context-header__context span.results-context-header__job-count").First().Text()
	if text == "" {
		text = doc.Find("span.results-context-header__job-count").First().Text()
	}
	if text == "" {
		return 0, errors.NotFound("job count not present in search results", nil)
	}

	digits := digitsPattern.ReplaceAllString(text, "")
	if digits == "" {
		return 0, errors.InvalidInput("job count contains no digits", nil)
	}

	var count int
	if _, err := fmt.Sscanf(digits, "%d", &count); err != nil {
		return 0, errors.InvalidInput("parsing job count", err)
	}
	return count, nil
}

// HasBlurredContent reports whether the results are behind the logged-out
// blur overlay, in which case only the first page is real.
func HasBlurredContent(doc *goquery.Document) bool {
	return doc.Find("div.blurred-content.blur ul li").Length() > 0
}

// JobLinks extracts job detail URLs from a search results page.
func JobLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a.base-card__full-link").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	if len(links) > 0 {
		return links
	}

	doc.Find(`a[href*="/jobs/view/"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links
}

// PaginatedURLs expands a search URL into one URL per page of results,
// carrying over the keywords, location and geoId parameters.
func PaginatedURLs(searchURL string, total int) ([]string, error) {
	parsed, err := url.Parse(searchURL)
	if err != nil {
		return nil, errors.InvalidInput("parsing search URL", err)
	}

	query := parsed.Query()
	keywords := query.Get("keywords")
	location := query.Get("location")
	geoID := query.Get("geoId")

	var urls []string
	for start := 0; start < total; start += pageSize {
		urls = append(urls, fmt.Sprintf(
			"https://www.linkedin.com/jobs/search"+
				"?keywords=%s"+
				"&location=%s"+
				"&geoId=%s"+
				"&trk=public_jobs_jobs-search-bar_search-submit"+
				"&start=%d",
			url.QueryEscape(keywords),
			url.QueryEscape(location),
			geoID,
			start,
		))
	}
	return urls, nil
}

// ldJobPosting is the schema.org JobPosting JSON-LD block as LinkedIn emits
// it. Nested objects arrive in inconsistent shapes, so they stay raw until
// decoded leniently.
type ldJobPosting struct {
	Type                   string          `json:"@type"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	DatePosted             string          `json:"datePosted"`
	ValidThrough           string          `json:"validThrough"`
	EmploymentType         flexString      `json:"employmentType"`
	HiringOrganization     json.RawMessage `json:"hiringOrganization"`
	JobLocation            json.RawMessage `json:"jobLocation"`
	ExperienceRequirements json.RawMessage `json:"experienceRequirements"`
	EducationRequirements  json.RawMessage `json:"educationRequirements"`
}

// flexString accepts a JSON string or an array of strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = flexString(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*f = flexString(strings.Join(many, ", "))
		return nil
	}
	*f = ""
	return nil
}

type ldAddress struct {
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  string `json:"addressCountry"`
}

func decodeLocation(raw json.RawMessage) ldAddress {
	var loc struct {
		Address ldAddress `json:"address"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &loc) != nil {
		return ldAddress{}
	}
	return loc.Address
}

func decodeOrganizationName(raw json.RawMessage) string {
	var org struct {
		Name string `json:"name"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &org) != nil {
		return ""
	}
	return org.Name
}

func decodeMonthsExperience(raw json.RawMessage) int {
	var req struct {
		MonthsOfExperience int `json:"monthOfExperience"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &req) != nil {
		return 0
	}
	return req.MonthsOfExperience
}

func decodeEducation(raw json.RawMessage) string {
	var req struct {
		CredentialCategory string `json:"credentialCategory"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &req) != nil {
		return ""
	}
	return req.CredentialCategory
}

// ParseJobDetail extracts a posting from a job detail page. Pages carry
// several JSON-LD blocks; the first JobPosting block wins.
func ParseJobDetail(doc *goquery.Document, pageURL, searchURL string) (*models.JobPosting, error) {
	companyLogo, _ := doc.
		Find("div.top-card-layout__card img.artdeco-entity-image").
		First().
		Attr("data-delayed-url")

	var posting *models.JobPosting

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var ld ldJobPosting
		if err := json.Unmarshal([]byte(s.Text()), &ld); err != nil {
			return true
		}
		if ld.Type != "JobPosting" {
			return true
		}

		address := decodeLocation(ld.JobLocation)

		posting = &models.JobPosting{
			ID:               PostingID(pageURL),
			SearchURL:        searchURL,
			URL:              pageURL,
			Title:            ld.Title,
			Company:          decodeOrganizationName(ld.HiringOrganization),
			CompanyLogo:      companyLogo,
			Location:         address.AddressLocality,
			Country:          address.AddressCountry,
			Region:           address.AddressRegion,
			DatePosted:       ld.DatePosted,
			ValidThrough:     ld.ValidThrough,
			EmploymentType:   string(ld.EmploymentType),
			MonthsExperience: decodeMonthsExperience(ld.ExperienceRequirements),
			Education:        decodeEducation(ld.EducationRequirements),
			Summary:          CleanText(ld.Description),
			ScrapedAt:        time.Now(),
		}
		return false
	})

	if posting == nil {
		return nil, errors.NotFound("no JobPosting JSON-LD block on page", nil)
	}

	applyCriteria(doc, posting)
	posting.ApplyURL = extractApplyURL(doc)

	return posting, nil
}

func applyCriteria(doc *goquery.Document, posting *models.JobPosting) {
	doc.Find("ul.description__job-criteria-list li").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3").First().Text())
		value := strings.TrimSpace(s.Find("span").First().Text())
		if title == "" || value == "" {
			return
		}

		switch title {
		case "Seniority level":
			posting.Seniority = value
		case "Employment type":
			if posting.EmploymentType == "" {
				posting.EmploymentType = value
			}
		case "Job function":
			posting.JobFunction = value
		case "Industries":
			posting.Industries = value
		}
	})
}

// extractApplyURL digs the external apply link out of the applyUrl code
// block, where it hides inside an HTML comment as a redirect URL.
func extractApplyURL(doc *goquery.Document) string {
	raw, err := doc.Find("code#applyUrl").First().Html()
	if err != nil || raw == "" {
		return ""
	}

	match := applyURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return ""
	}

	redirect, err := url.Parse(html.UnescapeString(match[1]))
	if err != nil {
		return ""
	}

	encoded := redirect.Query().Get("url")
	if encoded == "" {
		return ""
	}

	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return ""
	}
	return decoded
}

// CleanText strips markup and collapses whitespace in a job description:
// entities decoded, tags removed, runs of blank lines reduced to at most
// one empty line.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = html.UnescapeString(text)

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		text = doc.Text()
	}

	text = lineEndingPattern.ReplaceAllString(text, "\n")
	text = emptyLinePattern.ReplaceAllString(text, "\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = leadSpacePattern.ReplaceAllString(text, "\n")
	text = trailSpacePattern.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)
	text = newlineRunPattern.ReplaceAllString(text, "\n\n")

	return text
}
