package conduit

import (
	"strings"

	"github.com/samber/lo"
)

// ParsedMessage is a commit message split into revision fields.
type ParsedMessage struct {
	Title     string
	Summary   string
	TestPlan  string
	Reviewers []string
	CCs       []string
}

type section int

const (
	sectionSummary section = iota
	sectionTestPlan
	sectionReviewers
	sectionCCs
	sectionIgnored
)

var labels = map[string]section{
	"summary":               sectionSummary,
	"test plan":             sectionTestPlan,
	"testplan":              sectionTestPlan,
	"reviewer":              sectionReviewers,
	"reviewers":             sectionReviewers,
	"cc":                    sectionCCs,
	"ccs":                   sectionCCs,
	"differential revision": sectionIgnored,
	"reviewed by":           sectionIgnored,
}

// ParseCommitMessage reads the title from the first line and the labelled
// sections ("Test Plan:", "Reviewers:", "CC:") from the rest. Unlabelled
// text is summary.
func ParseCommitMessage(text string) ParsedMessage {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), "\n")

	var parsed ParsedMessage
	parsed.Title = strings.TrimSpace(lines[0])

	parts := map[section][]string{}
	current := sectionSummary
	for _, line := range lines[1:] {
		if label, rest, ok := strings.Cut(line, ":"); ok {
			if sec, known := labels[strings.ToLower(strings.TrimSpace(label))]; known {
				current = sec
				line = rest
			}
		}
		parts[current] = append(parts[current], line)
	}

	parsed.Summary = joinText(parts[sectionSummary])
	parsed.TestPlan = joinText(parts[sectionTestPlan])
	parsed.Reviewers = splitNames(parts[sectionReviewers])
	parsed.CCs = splitNames(parts[sectionCCs])

	return parsed
}

func joinText(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func splitNames(lines []string) []string {
	names := strings.FieldsFunc(strings.Join(lines, " "), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	return lo.Uniq(lo.Map(names, func(n string, _ int) string {
		return strings.TrimPrefix(n, "@")
	}))
}
