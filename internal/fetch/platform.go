package fetch

import (
	"net/url"
	"strings"
)

// Platform is a job board the fetcher knows how to read.
type Platform string

// Known platforms.
const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

type platformRules struct {
	hosts   []string
	content []string
	noise   []string
}

var platforms = map[Platform]platformRules{
	PlatformGreenhouse: {
		hosts:   []string{"greenhouse.io"},
		content: []string{".job__description", "#content", ".job-post-container"},
		noise:   []string{"#application", ".application--wrapper", ".voluntary-self-id", "#usa_self_id_section"},
	},
	PlatformLever: {
		hosts:   []string{"lever.co"},
		content: []string{".posting-page", ".posting-description", ".content"},
		noise:   []string{".posting-apply", ".apply-section", ".lever-application-form"},
	},
	PlatformWorkday: {
		hosts:   []string{"myworkdayjobs.com", "workday.com"},
		content: []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']"},
		noise:   []string{"[data-automation-id='applyButton']", "[data-automation-id='similarJobs']"},
	},
	PlatformAshby: {
		hosts:   []string{"ashbyhq.com"},
		content: []string{"[class*='descriptionText']", "main"},
		noise:   []string{"[class*='applicationForm']"},
	},
}

// genericContent follows the platform selectors for every page.
var genericContent = []string{
	".job-description", "#job-description", ".job-details", ".posting-content",
	"[data-testid='job-description']", "main", "article", "#content", ".content",
}

var genericNoise = []string{".eeo-statement", ".legal-disclosure", ".apply-button-container", ".sidebar"}

// DetectPlatform identifies the job board from the URL host.
func DetectPlatform(rawURL string) Platform {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for platform, rules := range platforms {
		for _, h := range rules.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return platform
			}
		}
	}
	return PlatformUnknown
}

// ContentSelectors returns the selectors for the posting body, most specific
// first. Generic selectors are always appended as a fallback.
func ContentSelectors(p Platform) []string {
	return append(append([]string(nil), platforms[p].content...), genericContent...)
}

// NoiseSelectors returns elements to strip before extraction.
func NoiseSelectors(p Platform) []string {
	return append(append([]string(nil), platforms[p].noise...), genericNoise...)
}
