package classifier

import (
	"regexp"
	"strings"

	"github.com/sftools/incident-classifier/pkg/models"
)

// DefaultFormDefaults returns the base form defaults merged under every
// rule's overrides.
func DefaultFormDefaults() []models.FormField {
	return []models.FormField{
		{FieldLabel: "Type", Value: "Allocation"},
		{FieldLabel: "Team", Value: "Support"},
		{FieldLabel: "Severity", Value: "3"},
		{FieldLabel: "Carrier module", Value: "Unknown"},
	}
}

// DefaultPrefixOverrides maps lower-cased resolved prefixes to their
// canonical display strings. Applied at subject-rendering time only; rule
// predicates always see the raw prefix.
func DefaultPrefixOverrides() map[string]string {
	return map[string]string{
		"hm":          "H&M",
		"pierceab":    "PierceAB",
		"jlp":         "JLP",
		"michaelkors": "MICHAELKORS",
		"cycleon":     "Cycleon",
		"mpm4dm01":    "MPM4DM01",
		"mpm4dm02":    "MPM4DM02",
		"mpm4dm03":    "MPM4DM03",
		"mpm4dm04":    "MPM4DM04",
		"mpm4dmasos":  "MPM4DMASOS",
	}
}

// extracted is what a rule's body logic produces for the subject template.
type extracted struct {
	body          string
	carrierModule string
}

// matchContext is built once per classification attempt and shared by every
// rule predicate.
type matchContext struct {
	quoted    string // part of the title inside single quotes, "" if absent
	prefix    string // raw resolved prefix, "" if none
	matchBody string // NormalizeForMatching(quoted), for keyword predicates
}

// alertType is one entry in the ordered rule table. Raw-title rules set
// rawMatch+subject and ignore the quoted body entirely; quoted-title rules
// match keywords and/or a prefix pattern against the context and render
// subjectFormat with {prefix}/{body}. A rule whose extraction comes up empty
// rejects the match and evaluation continues with the next rule.
type alertType struct {
	id   string
	name string

	// raw-title rules
	rawMatch func(raw string) bool
	subject  func(raw string) string // "" rejects the match

	// quoted-title rules
	keywords      []string       // lower-case; any-of, substring match on matchBody
	prefixPattern *regexp.Regexp // raw prefix must match, when set
	prefixExclude *regexp.Regexp // raw prefix must NOT match, when set
	body          func(raw string, ctx *matchContext) extracted
	subjectFormat string

	// sentenceCasePrefix renders the display prefix sentence-cased instead
	// of passing the raw casing through (override table still wins)
	sentenceCasePrefix bool

	formOverrides []models.FormField
}

// matches evaluates a quoted-title rule's predicate against the context.
func (t *alertType) matches(ctx *matchContext) bool {
	if len(t.keywords) > 0 {
		lower := strings.ToLower(ctx.matchBody)
		found := false
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if t.prefixPattern != nil && !t.prefixPattern.MatchString(ctx.prefix) {
		return false
	}
	if t.prefixExclude != nil && t.prefixExclude.MatchString(ctx.prefix) {
		return false
	}
	return true
}

var (
	reRawFailedPipeline = regexp.MustCompile(`(?i)Failed Pipeline:`)
	reRawFailedTransfer = regexp.MustCompile(`(?i)Failed Transfer`)
	reRawNoEvents       = regexp.MustCompile(`(?i)NoEventsFound`)
	reRawNotValidFile   = regexp.MustCompile(`(?i)NotValidFileName`)
	reRawTrep           = regexp.MustCompile(`(?i)\btrep\b`)
	reRawMicroservices  = regexp.MustCompile(`(?i)microservices`)

	rePrefixDM      = regexp.MustCompile(`^DM`)
	rePrefixDMNum   = regexp.MustCompile(`^DM\d+$`)
	rePrefixDMAll   = regexp.MustCompile(`^DM ALL$`)
	rePrefixUpper   = regexp.MustCompile(`^[A-Z]`)
	rePrefixHM      = regexp.MustCompile(`(?i)^hm$`)
	reAllocationCut = regexp.MustCompile(`(?i)^Allocation\s+`)
)

// trepHostMatch is the shared raw predicate for the trep/microservices
// failure rules.
func trepHostMatch(raw string) bool {
	return reRawTrep.MatchString(raw) || reRawMicroservices.MatchString(raw)
}

// alertTypes is the ordered rule table. Order IS the disambiguation
// mechanism: the most specific and rare patterns come first, the generic
// keyword catch-alls last. Adding support for a new title format means
// adding one entry here.
var alertTypes = []alertType{
	{
		id:   "failed-pipeline",
		name: "Failed Pipeline",
		rawMatch: func(raw string) bool {
			return reRawFailedPipeline.MatchString(raw)
		},
		subject: func(raw string) string {
			name := FailedPipelineName(raw)
			if name == "" {
				return ""
			}
			display := PipelineDisplayName(name)
			if display == "" {
				display = name
			}
			return "DM|" + display + "|Failed Pipeline for " + name
		},
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Setup"}},
	},
	{
		id:   "dm-failed-transfer",
		name: "DM Failed Transfer",
		rawMatch: func(raw string) bool {
			return strings.Contains(raw, "DM-SCHEDULER") && reRawFailedTransfer.MatchString(raw)
		},
		subject: func(raw string) string {
			num := ""
			if m := reDMScheduler.FindStringSubmatch(raw); m != nil {
				num = m[1]
			}
			// <Customer>/<Module> stay unresolved here; Enrich fills them
			// from the structured incident payload when available.
			return "DM" + num + "|<Customer>|PD|Failed Transfer for <Module>"
		},
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Manifesting"}},
	},
	{
		id:   "mpm-no-events",
		name: "MPM NoEventsFound",
		rawMatch: func(raw string) bool {
			return reRawNoEvents.MatchString(raw) && trepHostMatch(raw)
		},
		subject: func(raw string) string {
			c := TrepCarrier(raw)
			if c == "" {
				c = "unknown"
			}
			return "MP ALL|PD|NoEventsFound for carrier " + c
		},
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Tracking"}},
	},
	{
		id:   "mpm-not-valid-filename",
		name: "MPM NotValidFileName",
		rawMatch: func(raw string) bool {
			return reRawNotValidFile.MatchString(raw) && trepHostMatch(raw)
		},
		subject: func(raw string) string {
			c := TrepCarrier(raw)
			if c == "" {
				c = "unknown"
			}
			return "MP ALL|PD|NotValidFileName for " + c
		},
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Tracking"}},
	},
	{
		id:       "failed-transfer",
		name:     "MPM Failed Transfer",
		keywords: []string{"failed transfer", "edi failed transfer"},
		body: func(raw string, ctx *matchContext) extracted {
			code := FailedTransferCode(raw)
			if code == "" {
				return extracted{body: "Failed transfer"}
			}
			return extracted{body: "Failed transfer for " + code, carrierModule: code}
		},
		subjectFormat:      "{prefix}|PD|{body}",
		sentenceCasePrefix: true,
		formOverrides:      []models.FormField{{FieldLabel: "Type", Value: "Manifesting"}},
	},
	{
		id:            "dm-missing-route-codes",
		name:          "DM Missing Route Codes",
		keywords:      []string{"e15001", "missing route code"},
		prefixPattern: rePrefixDM,
		body: func(raw string, ctx *matchContext) extracted {
			// Error codes deliberately kept: E15001 must stay visible.
			s := StripSeverity(ctx.quoted)
			s = StripMidPolicyFragments(s)
			s = StripLeadingPolicyIDs(s)
			s = StripDMBodyPrefix(s)
			return extracted{body: s}
		},
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Setup"}},
	},
	{
		id:            "dm-web-transaction",
		name:          "DM Web Transaction",
		keywords:      []string{"high web transaction time", "web transaction time"},
		prefixPattern: rePrefixDM,
		subjectFormat: "DM|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Performance"}},
	},
	{
		id:            "mpm-error90",
		name:          "MPM Error90",
		keywords:      []string{"error rate above 90%", "90% of requests"},
		prefixPattern: rePrefixUpper,
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Performance"}},
	},
	{
		id:            "hm-print-duration",
		name:          "HM PrintDuration",
		keywords:      []string{"print duration"},
		prefixPattern: rePrefixHM,
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Performance"}},
	},
	{
		id:            "dm-duration",
		name:          "DM Duration (System Performance)",
		keywords:      []string{"average duration"},
		prefixPattern: rePrefixDMNum,
		body: func(raw string, ctx *matchContext) extracted {
			// "Allocation X Average Duration" reads better without the
			// leading Allocation token in a duration subject.
			s := NormalizeBodyDefault(ctx.quoted)
			return extracted{body: collapse(reAllocationCut.ReplaceAllString(s, ""))}
		},
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Performance"}},
	},
	{
		id:            "dm-allocation-error-percentage",
		name:          "DM Allocation (Error Percentage)",
		keywords:      []string{"error percentage"},
		prefixPattern: rePrefixDMNum,
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Allocation"}},
	},
	{
		id:            "dm-allocation-error-rate",
		name:          "DM Allocation (Error Rate)",
		prefixPattern: rePrefixDMAll,
		subjectFormat: "DM ALL|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Allocation"}},
	},
	{
		id:            "mpm-duration",
		name:          "MPM Duration (System Performance)",
		keywords:      []string{"printparcel duration", "increased printparcel duration"},
		prefixExclude: rePrefixDM,
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "System Performance"}},
	},
	{
		id:            "mpm-allocation-error-rate",
		name:          "MPM Allocation (Error Rate)",
		keywords:      []string{"increased error rate"},
		prefixExclude: rePrefixDM,
		subjectFormat: "{prefix}|PD|{body}",
		formOverrides: []models.FormField{{FieldLabel: "Type", Value: "Allocation"}},
	},
}
