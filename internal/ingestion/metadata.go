package ingestion

import (
	"net/url"
	"strings"
)

// Topic labels attached to documents and chunks as metadata["topic"].
const (
	TopicInternet = "internet"
	TopicTV       = "tv"
	TopicMobile   = "mobile"
	TopicBilling  = "billing"
	TopicSupport  = "support"
	TopicGeneral  = "general"
)

// topicKeywords maps URL path segments to a topic. Checked in path order, so
// the first recognised segment wins.
var topicKeywords = map[string]string{
	"internet":       TopicInternet,
	"glasvezel":      TopicInternet,
	"fiber":          TopicInternet,
	"wifi":           TopicInternet,
	"broadband":      TopicInternet,
	"tv":             TopicTV,
	"televisie":      TopicTV,
	"zenders":        TopicTV,
	"streaming":      TopicTV,
	"mobiel":         TopicMobile,
	"mobile":         TopicMobile,
	"sim-only":       TopicMobile,
	"abonnement":     TopicMobile,
	"factuur":        TopicBilling,
	"betalen":        TopicBilling,
	"billing":        TopicBilling,
	"invoice":        TopicBilling,
	"payment":        TopicBilling,
	"klantenservice": TopicSupport,
	"service":        TopicSupport,
	"support":        TopicSupport,
	"help":           TopicSupport,
	"contact":        TopicSupport,
	"storing":        TopicSupport,
}

// InferTopic inspects a source URL and returns a best-effort topic label.
// Unknown or unparseable URLs yield TopicGeneral.
//
// Examples:
//
//	https://www.ziggo.nl/internet            → internet
//	https://www.ziggo.nl/klantenservice/...  → support
//	sample://billing-faq                     → billing
func InferTopic(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TopicGeneral
	}
	// Opaque schemes such as sample://name carry the name in Host.
	segments := trimSegments(strings.ToLower(parsed.Host + "/" + parsed.Path))
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		segments = trimSegments(strings.ToLower(parsed.Path))
	}
	for _, seg := range segments {
		if topic, ok := topicKeywords[seg]; ok {
			return topic
		}
		for _, part := range strings.Split(seg, "-") {
			if topic, ok := topicKeywords[part]; ok {
				return topic
			}
		}
	}
	return TopicGeneral
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
