package classifier

import (
	"strings"
	"testing"

	"github.com/sftools/incident-classifier/pkg/models"
)

func TestEnrich_DMFailedTransfer(t *testing.T) {
	c := NewDefault()
	title := "PRD DM-SCHEDULER-DM1 query Failed Transfer detected"

	tests := []struct {
		name    string
		details *AlertDetails
		subject string
	}{
		{
			name:    "Both placeholders filled",
			details: &AlertDetails{ClientName: "Asos", ModuleName: "DPD UK"},
			subject: "DM1|Asos|PD|Failed Transfer for DPD UK",
		},
		{
			name:    "Missing details leave placeholders in place",
			details: nil,
			subject: "DM1|<Customer>|PD|Failed Transfer for <Module>",
		},
		{
			name:    "Null module leaves module placeholder",
			details: &AlertDetails{ClientName: "Asos", ModuleName: "null"},
			subject: "DM1|Asos|PD|Failed Transfer for <Module>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := c.Classify(title)
			if info == nil {
				t.Fatal("expected a match")
			}
			Enrich(info, tt.details)
			if info.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", info.Subject, tt.subject)
			}
		})
	}
}

func TestEnrich_MPMFailedTransferGenericExport(t *testing.T) {
	c := NewDefault()

	// Null module code in the title, none in the details either.
	info := c.Classify("sftp.clasp-infra.com_MP_CHANEL_null query result is > 0.5 on '***CRITICAL*** - SHD - Edi Failed Transfer LOW'")
	if info == nil {
		t.Fatal("expected a match")
	}
	Enrich(info, nil)

	if !strings.HasSuffix(info.Subject, "Failed transfer for GenericExport") {
		t.Errorf("subject = %q, want GenericExport suffix", info.Subject)
	}
	if v := info.FormValue("Carrier module"); v != "Unknown" {
		t.Errorf("Carrier module = %q, want Unknown", v)
	}
}

func TestEnrich_MPMFailedTransferWithModule(t *testing.T) {
	c := NewDefault()

	info := c.Classify("sftp.clasp-infra.com_MP_CHANEL_DPD query result is > 0.5 on '***CRITICAL*** - SHD - Edi Failed Transfer LOW'")
	if info == nil {
		t.Fatal("expected a match")
	}
	before := info.Subject
	Enrich(info, &AlertDetails{ModuleName: "DPD UK"})

	// Subject already names the carrier code; no suffix appended.
	if info.Subject != before {
		t.Errorf("subject changed from %q to %q", before, info.Subject)
	}
	if strings.Contains(info.Subject, "GenericExport") {
		t.Errorf("subject %q must not mention GenericExport", info.Subject)
	}
}

func TestEnrich_SingleCarrier(t *testing.T) {
	c := NewDefault()

	info := c.Classify("jlp.mpm.metapack.net_BlackBox query result is > 5.0 on '***CRITICAL*** - JLP01 - Amazon Shipping - Increased Error Rate'")
	if info == nil {
		t.Fatal("expected a match")
	}
	Enrich(info, &AlertDetails{ModuleName: "Amazon Shipping", SingleCarrier: true})

	if v := info.FormValue("Carrier module"); v != "Single" {
		t.Errorf("Carrier module = %q, want Single", v)
	}
}

func TestEnrich_NilSafe(t *testing.T) {
	// Must not panic on nil info or nil details.
	Enrich(nil, nil)
	Enrich(nil, &AlertDetails{ClientName: "x"})

	info := &models.CaseInfo{Subject: "s", AlertTypeName: "Unrelated"}
	Enrich(info, nil)
	if info.Subject != "s" {
		t.Errorf("unrelated type must be untouched, got %q", info.Subject)
	}
}
