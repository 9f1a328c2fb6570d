package dto

// ScrapeRequest is the payload used by the job-scraping endpoint.
type ScrapeRequest struct {
	JobTitle         string `json:"job_title"`
	Location         string `json:"location,omitempty"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country,omitempty"`
	PostedWithinDays int    `json:"posted_within_days,omitempty"`
	ICPID            string `json:"icp_id,omitempty"`
}
