// Package classifier turns raw monitoring-alert titles into structured case
// info: a subject line, form-field defaults, and an alert type name.
//
// Titles follow loose conventions, not a grammar. The package is a
// best-effort heuristic matcher: a prefix resolver over the un-quoted part of
// the title, a noise-stripping pipeline over the quoted part, and an ordered
// rule table where the first matching rule wins.
package classifier

import (
	"regexp"
	"strings"
)

var (
	reQuoted      = regexp.MustCompile(`'([^']+)'`)
	reDMCarriers  = regexp.MustCompile(`(?i)DM-CARRIERS-DM(\d)`)
	reDMScheduler = regexp.MustCompile(`(?i)DM-SCHEDULER-DM(\d)`)
	reMPSegment   = regexp.MustCompile(`_MP_([A-Za-z0-9]+)_`)
	reHostSegment = regexp.MustCompile(`^([a-zA-Z0-9]+)\.`)
	reMetricQ     = regexp.MustCompile(`(?i)^Metric\s+query`)
	reTransQ      = regexp.MustCompile(`(?i)^Transaction\s+query`)

	reCriticalMarker = regexp.MustCompile(`(?i)\s*\*\*\*CRITICAL\*\*\*\s*-\s*`)
	reInfoMarker     = regexp.MustCompile(`(?i)\s*\*\*\*INFO\*\*\*\s*`)
	reAnyMarker      = regexp.MustCompile(`(?i)\s*\*\*\*[A-Za-z]+\*\*\*\s*`)

	reLeadingPolicyIDs = regexp.MustCompile(`(?i)^(DM\d+\s*-\s*|SHD\d*\s*-\s*|SHD\s*-\s*|HM\d+\s*-\s*|JLP\d*\s*-\s*)+`)
	reMidPolicyDM      = regexp.MustCompile(`\s*-\s*DM\d+\s*-\s*`)
	reMidPolicyPRD     = regexp.MustCompile(`(?i)\s*PRD\s*-\s*DM\d+\s*`)
	reErrorCode        = regexp.MustCompile(`\s*E\d+\s*`)

	reDMNativeAllocation = regexp.MustCompile(`(?i)^DM\s+Native\s+Allocation\s+`)
	reDMAllocation       = regexp.MustCompile(`(?i)^DM\s+Allocation\s+`)
	reDMBare             = regexp.MustCompile(`(?i)^DM\s+`)

	reTransferCodeQuery = regexp.MustCompile(`(?i)_([A-Za-z0-9\-]+)\s+query`)
	reTransferCodeTail  = regexp.MustCompile(`_([A-Za-z0-9\-]+)$`)
	reTrepCarrier       = regexp.MustCompile(`(?i)^([a-z0-9_\-]+)_prd`)

	rePipelinePath    = regexp.MustCompile(`(?i)Failed Pipeline:\s*(.+)`)
	rePipelineSegment = regexp.MustCompile(`(?i)([a-z0-9\-]+(?:-[a-z0-9\-]+)*)\s*#\d+`)
	rePipelineDMTail  = regexp.MustCompile(`(?i)-dm\d+.*$`)
	rePipelineDeploy  = regexp.MustCompile(`(?i)-build-and-deploy$`)
)

// collapse trims s and squeezes whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// beforeQuote returns the part of the title preceding the first single quote,
// or the whole title if there is none.
func beforeQuote(rawTitle string) string {
	head, _, _ := strings.Cut(rawTitle, "'")
	return head
}

// ExtractQuoted returns the part of the title inside single quotes, or "".
func ExtractQuoted(rawTitle string) string {
	m := reQuoted.FindStringSubmatch(rawTitle)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ResolvePrefix derives the carrier/system code from the un-quoted part of
// the raw title (policy path, hostname segment, or query literal). Patterns
// are tried in order; returns "" when none apply.
func ResolvePrefix(rawTitle string) string {
	head := beforeQuote(rawTitle)
	if m := reDMCarriers.FindStringSubmatch(head); m != nil {
		return "DM" + m[1]
	}
	if m := reDMScheduler.FindStringSubmatch(head); m != nil {
		return "DM" + m[1]
	}
	if m := reMPSegment.FindStringSubmatch(head); m != nil {
		return strings.ToUpper(m[1])
	}
	// Prefix = everything before the first dot (e.g. hermes, mpm4dm01, hm, cycleon)
	if m := reHostSegment.FindStringSubmatch(rawTitle); m != nil {
		seg := m[1]
		if strings.ContainsAny(seg, "0123456789") {
			return strings.ToUpper(seg)
		}
		return SentenceCase(seg)
	}
	trimmed := strings.TrimSpace(rawTitle)
	if reMetricQ.MatchString(trimmed) {
		return "DM"
	}
	if reTransQ.MatchString(trimmed) {
		return "DM ALL"
	}
	return ""
}

// StripSeverity removes ***CRITICAL*** / ***INFO*** markers and any other
// ***Word*** marker, mid-string included.
func StripSeverity(s string) string {
	if s == "" {
		return s
	}
	s = reCriticalMarker.ReplaceAllString(s, " ")
	s = reInfoMarker.ReplaceAllString(s, " ")
	s = reAnyMarker.ReplaceAllString(s, " ")
	return collapse(s)
}

// StripLeadingPolicyIDs removes leading policy IDs: DM01 -, SHD02 -, HM01 -,
// JLP01 -, etc. (repeated greedily).
func StripLeadingPolicyIDs(s string) string {
	if s == "" {
		return s
	}
	return collapse(reLeadingPolicyIDs.ReplaceAllString(s, ""))
}

// StripMidPolicyFragments removes mid-string fragments like " - DM02 - " or
// "PRD - DM5 ".
func StripMidPolicyFragments(s string) string {
	if s == "" {
		return s
	}
	s = reMidPolicyDM.ReplaceAllString(s, " ")
	s = reMidPolicyPRD.ReplaceAllString(s, " ")
	return collapse(s)
}

// StripErrorCodes removes floating error codes like E15001. Use only when
// the rule does not need them in the body.
func StripErrorCodes(s string) string {
	if s == "" {
		return s
	}
	return collapse(reErrorCode.ReplaceAllString(s, " "))
}

// StripDMBodyPrefix collapses "DM Native Allocation " / "DM Allocation " and
// a remaining bare leading "DM ".
func StripDMBodyPrefix(s string) string {
	if s == "" {
		return s
	}
	s = reDMNativeAllocation.ReplaceAllString(s, "")
	s = reDMAllocation.ReplaceAllString(s, "Allocation ")
	s = reDMBare.ReplaceAllString(s, "")
	return collapse(s)
}

// NormalizeForMatching is the light normalization used for keyword matching
// only: severity markers and leading policy IDs.
func NormalizeForMatching(quoted string) string {
	if quoted == "" {
		return ""
	}
	return StripLeadingPolicyIDs(StripSeverity(quoted))
}

// NormalizeBodyDefault is the full body normalization used for the subject
// when the rule has no body logic of its own:
// severity, mid fragments, leading IDs, error codes, DM body prefix.
func NormalizeBodyDefault(quoted string) string {
	if quoted == "" {
		return ""
	}
	s := StripSeverity(quoted)
	s = StripMidPolicyFragments(s)
	s = StripLeadingPolicyIDs(s)
	s = StripErrorCodes(s)
	s = StripDMBodyPrefix(s)
	return s
}

// SentenceCase upper-cases the first rune and lower-cases the rest.
func SentenceCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// FailedTransferCode extracts the optional trailing code token from the
// un-quoted part of the title ("_CHANEL query ..." or a "_CHANEL" tail).
// A literal "null" code counts as absent.
func FailedTransferCode(rawTitle string) string {
	head := beforeQuote(rawTitle)
	m := reTransferCodeQuery.FindStringSubmatch(head)
	if m == nil {
		m = reTransferCodeTail.FindStringSubmatch(head)
	}
	if m == nil {
		return ""
	}
	code := strings.TrimSpace(m[1])
	if strings.EqualFold(code, "null") {
		return ""
	}
	return code
}

// TrepCarrier extracts a carrier code from a trep/microservices hostname
// prefix ("royalmail_prd..." -> "royalmail").
func TrepCarrier(rawTitle string) string {
	m := reTrepCarrier.FindStringSubmatch(rawTitle)
	if m == nil {
		return ""
	}
	return m[1]
}

// FailedPipelineName extracts the pipeline/job segment from a
// "Failed Pipeline: ..." title: the "name #123" segment if present, else the
// last "»"-delimited breadcrumb, else the whole path.
func FailedPipelineName(rawTitle string) string {
	m := rePipelinePath.FindStringSubmatch(rawTitle)
	if m == nil {
		return ""
	}
	path := strings.TrimSpace(m[1])
	if part := rePipelineSegment.FindStringSubmatch(path); part != nil {
		return part[1]
	}
	crumbs := strings.Split(path, "»")
	if last := strings.TrimSpace(crumbs[len(crumbs)-1]); last != "" {
		return last
	}
	return path
}

// PipelineDisplayName converts a kebab-case pipeline segment to Title Case,
// trimming known suffixes (-build-and-deploy, trailing -dmN...).
func PipelineDisplayName(segment string) string {
	if segment == "" {
		return ""
	}
	base := rePipelineDMTail.ReplaceAllString(segment, "")
	base = rePipelineDeploy.ReplaceAllString(base, "")
	words := strings.Split(base, "-")
	for i, w := range words {
		words[i] = SentenceCase(w)
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
