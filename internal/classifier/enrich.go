package classifier

import (
	"strings"

	"github.com/sftools/incident-classifier/pkg/models"
)

// Alert type names with post-classification refinements.
const (
	typeNameDMFailedTransfer  = "DM Failed Transfer"
	typeNameMPMFailedTransfer = "MPM Failed Transfer"
)

// AlertDetails is the structured incident payload available for some alerts
// from the alerting tool, outside the title itself. All fields optional.
type AlertDetails struct {
	// ClientName is the customer the failing transfer belongs to
	ClientName string `json:"client_name,omitempty"`

	// ModuleName is the carrier module identifier; the literal "null" counts
	// as absent
	ModuleName string `json:"module_name,omitempty"`

	// SingleCarrier reports that the module identifier resolved to a
	// single-carrier configuration
	SingleCarrier bool `json:"single_carrier,omitempty"`
}

// moduleName returns the module identifier, or "" when absent.
func (d *AlertDetails) moduleName() string {
	if d == nil {
		return ""
	}
	if strings.EqualFold(strings.TrimSpace(d.ModuleName), "null") {
		return ""
	}
	return strings.TrimSpace(d.ModuleName)
}

// Enrich applies the business-rule refinements layered on top of
// classification, keyed off the matched alert type:
//
//   - DM Failed Transfer subjects carry <Customer>/<Module> placeholders;
//     they are substituted from the details when available and left in place
//     otherwise.
//   - MPM Failed Transfer with no module identifier gets the literal
//     " for GenericExport" suffix and an explicit Unknown carrier module.
//   - A single-carrier module identifier forces Carrier module to Single,
//     whatever the alert type.
//
// info may be nil (unclassified title); details may be nil (no payload).
func Enrich(info *models.CaseInfo, details *AlertDetails) {
	if info == nil {
		return
	}

	module := details.moduleName()

	switch info.AlertTypeName {
	case typeNameDMFailedTransfer:
		if details != nil && details.ClientName != "" {
			info.Subject = strings.ReplaceAll(info.Subject, "<Customer>", details.ClientName)
		}
		if module != "" {
			info.Subject = strings.ReplaceAll(info.Subject, "<Module>", module)
		}

	case typeNameMPMFailedTransfer:
		if module == "" {
			if strings.HasSuffix(info.Subject, "Failed transfer") {
				info.Subject += " for GenericExport"
			}
			info.SetFormValue("Carrier module", "Unknown")
		}
	}

	if details != nil && details.SingleCarrier {
		info.SetFormValue("Carrier module", "Single")
	}
}
