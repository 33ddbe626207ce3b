package classifier

import (
	"strings"

	"github.com/sftools/incident-classifier/pkg/models"
)

// Config holds the tunable tables of a Classifier. The rule table itself is
// fixed; display overrides and base form defaults are configuration.
type Config struct {
	// PrefixOverrides maps lower-cased raw prefixes to display strings
	PrefixOverrides map[string]string

	// BaseFormDefaults is the form-default set every rule's overrides are
	// merged onto
	BaseFormDefaults []models.FormField
}

// DefaultConfig returns the compiled-in override and form-default tables.
func DefaultConfig() Config {
	return Config{
		PrefixOverrides:  DefaultPrefixOverrides(),
		BaseFormDefaults: DefaultFormDefaults(),
	}
}

// Classifier classifies raw alert titles. It is stateless per call and safe
// for concurrent use.
type Classifier struct {
	prefixOverrides map[string]string
	baseDefaults    []models.FormField
}

// New creates a classifier from the given config. Nil or empty tables fall
// back to the compiled-in defaults.
func New(cfg Config) *Classifier {
	if cfg.PrefixOverrides == nil {
		cfg.PrefixOverrides = DefaultPrefixOverrides()
	}
	if len(cfg.BaseFormDefaults) == 0 {
		cfg.BaseFormDefaults = DefaultFormDefaults()
	}
	overrides := make(map[string]string, len(cfg.PrefixOverrides))
	for k, v := range cfg.PrefixOverrides {
		overrides[strings.ToLower(k)] = v
	}
	return &Classifier{
		prefixOverrides: overrides,
		baseDefaults:    cfg.BaseFormDefaults,
	}
}

// NewDefault creates a classifier with the compiled-in tables.
func NewDefault() *Classifier {
	return New(DefaultConfig())
}

// Classify runs the title through the ordered rule table and returns the
// structured case info for the first rule that both matches and extracts
// something usable, or nil when no rule applies. Callers are expected to
// fall back to the raw title as the subject on nil.
func (c *Classifier) Classify(rawTitle string) *models.CaseInfo {
	trimmed := strings.TrimSpace(rawTitle)
	if trimmed == "" {
		return nil
	}

	ctx := &matchContext{
		quoted: ExtractQuoted(trimmed),
		prefix: ResolvePrefix(trimmed),
	}
	if ctx.quoted != "" {
		ctx.matchBody = NormalizeForMatching(ctx.quoted)
	}

	for i := range alertTypes {
		t := &alertTypes[i]

		if t.rawMatch != nil {
			if !t.rawMatch(trimmed) {
				continue
			}
			subject := t.subject(trimmed)
			if subject == "" {
				// Extraction rejected: a weak partial match must not
				// shadow later rules.
				continue
			}
			return &models.CaseInfo{
				Subject:       subject,
				FormDefaults:  c.mergeFormDefaults(t.formOverrides),
				AlertTypeName: t.name,
			}
		}

		// Quoted-title rules need a quoted body and a resolved prefix.
		if ctx.quoted == "" || ctx.matchBody == "" || ctx.prefix == "" {
			continue
		}
		if !t.matches(ctx) {
			continue
		}

		ext := extracted{}
		if t.body != nil {
			ext = t.body(trimmed, ctx)
		} else {
			ext.body = NormalizeBodyDefault(ctx.quoted)
		}
		if ext.body == "" {
			continue
		}

		subject := renderSubject(t.subjectFormat, c.displayPrefix(ctx.prefix, t.sentenceCasePrefix), ext.body)
		return &models.CaseInfo{
			Subject:       subject,
			FormDefaults:  c.mergeFormDefaults(t.formOverrides),
			AlertTypeName: t.name,
			CarrierModule: ext.carrierModule,
		}
	}

	return nil
}

// displayPrefix resolves the subject-rendering form of a raw prefix: the
// override table wins, then either sentence case or raw-case passthrough.
func (c *Classifier) displayPrefix(prefix string, sentence bool) string {
	if v, ok := c.prefixOverrides[strings.ToLower(prefix)]; ok {
		return v
	}
	if sentence {
		return SentenceCase(prefix)
	}
	return prefix
}

// renderSubject fills the {prefix}/{body} placeholders of a subject format.
func renderSubject(format, prefix, body string) string {
	return strings.NewReplacer("{prefix}", prefix, "{body}", body).Replace(format)
}

// mergeFormDefaults layers a rule's overrides onto the base defaults by
// field label. Base order is preserved; new labels append in override order.
func (c *Classifier) mergeFormDefaults(overrides []models.FormField) []models.FormField {
	merged := make([]models.FormField, len(c.baseDefaults))
	copy(merged, c.baseDefaults)

	index := make(map[string]int, len(merged))
	for i, f := range merged {
		index[f.FieldLabel] = i
	}
	for _, o := range overrides {
		if o.FieldLabel == "" {
			continue
		}
		if i, ok := index[o.FieldLabel]; ok {
			merged[i].Value = o.Value
			continue
		}
		index[o.FieldLabel] = len(merged)
		merged = append(merged, o)
	}
	return merged
}
