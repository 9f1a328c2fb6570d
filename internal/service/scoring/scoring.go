package scoring

import (
	"net/url"
	"strings"
)

const (
	categoryReachability = "reachability"
	categoryProfile      = "professional_profile"
	categorySocial       = "social_presence"
	categoryCompleteness = "profile_completeness"
)

var freeMailboxDomains = []string{
	"gmail.com",
	"googlemail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"live.com",
	"icloud.com",
	"aol.com",
	"proton.me",
	"protonmail.com",
}

var seniorityWeights = map[string]int{
	"owner":    20,
	"founder":  20,
	"c_suite":  20,
	"vp":       16,
	"director": 14,
	"manager":  10,
	"senior":   6,
	"entry":    2,
	"intern":   2,
}

// ContactFeatures captures the signals of one enriched person used for scoring.
type ContactFeatures struct {
	Email         string
	Phone         string
	LinkedinURL   string
	JobTitle      string
	Seniority     string
	Department    string
	Location      string
	CompanyDomain string
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// ComputeScore evaluates how actionable a contact is on a 0-100 scale.
func ComputeScore(input ContactFeatures) ScoreResult {
	breakdown := map[string]int{
		categoryReachability: scoreReachability(input),
		categoryProfile:      scoreProfessionalProfile(input),
		categorySocial:       scoreSocialPresence(input),
		categoryCompleteness: scoreCompleteness(input),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return ScoreResult{
		Total:     total,
		Breakdown: breakdown,
	}
}

func scoreReachability(input ContactFeatures) int {
	score := 0
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email != "" {
		score += 25
		if workEmail(email, input.CompanyDomain) {
			score += 5
		}
	}
	if hasValue(input.Phone) {
		score += 10
	}
	if score > 40 {
		return 40
	}
	return score
}

func scoreProfessionalProfile(input ContactFeatures) int {
	score := 0
	if hasValue(input.JobTitle) {
		score += 10
	}
	score += seniorityWeights[strings.ToLower(strings.TrimSpace(input.Seniority))]
	if score > 30 {
		return 30
	}
	return score
}

func scoreSocialPresence(input ContactFeatures) int {
	host := extractDomain(input.LinkedinURL)
	if host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com") {
		return 20
	}
	return 0
}

func scoreCompleteness(input ContactFeatures) int {
	score := 0
	if hasValue(input.Location) {
		score += 5
	}
	if hasValue(input.Department) {
		score += 5
	}
	return score
}

func hasValue(value string) bool {
	return strings.TrimSpace(value) != ""
}

// workEmail reports whether the mailbox belongs to the company rather than a free provider.
func workEmail(email, companyDomain string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, free := range freeMailboxDomains {
		if domain == free {
			return false
		}
	}
	companyDomain = extractDomain(companyDomain)
	if companyDomain == "" {
		return true
	}
	return domain == companyDomain || strings.HasSuffix(domain, "."+companyDomain)
}

func extractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	host := strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	host = strings.TrimPrefix(host, "www.")
	return host
}
