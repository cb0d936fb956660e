package services

import (
	"strings"

	"debatehub/models"
)

type referenceRule struct {
	refType models.ReferenceType
	matches func(url string) bool
}

func containsAny(subs ...string) func(string) bool {
	return func(url string) bool {
		for _, s := range subs {
			if strings.Contains(url, s) {
				return true
			}
		}
		return false
	}
}

func hasDocumentExtension(url string) bool {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(path, ".pdf") || strings.HasSuffix(path, ".doc") || strings.HasSuffix(path, ".docx")
}

// Order matters: the first matching rule wins, so an academic mirror on a .gov host is
// still an ACADEMIC_PAPER.
var referenceRules = []referenceRule{
	{models.ReferenceAcademicPaper, func(url string) bool {
		return containsAny("arxiv.org", "researchgate.net", ".edu", "academic")(url) || hasDocumentExtension(url)
	}},
	{models.ReferenceVideo, containsAny("youtube.com", "youtu.be", "vimeo.com", "ted.com")},
	{models.ReferenceNewsArticle, containsAny("news.", "reuters.com", "bbc.co", "bbc.com", "cnn.com")},
	{models.ReferenceGovernmentDocument, containsAny(".gov", "government")},
	{models.ReferenceBook, containsAny("amazon.", "books.google.")},
}

// ClassifyReference maps a source URL to a reference category. It never fails; an empty or
// unrecognised URL is a WEBSITE.
func ClassifyReference(url string) models.ReferenceType {
	url = strings.ToLower(strings.TrimSpace(url))
	if url == "" {
		return models.ReferenceWebsite
	}
	for _, rule := range referenceRules {
		if rule.matches(url) {
			return rule.refType
		}
	}
	return models.ReferenceWebsite
}
