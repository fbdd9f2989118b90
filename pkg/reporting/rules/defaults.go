package rules

import (
	"github.com/sirosfoundation/peppol-support/pkg/reporting"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/report"
)

// Rules guard each path with an "in" test so a missing element fails the
// rule rather than the evaluation.
const (
	hasPeriod = "'Header/ReportPeriod/StartDate' in values && 'Header/ReportPeriod/EndDate' in values"
	start     = "values['Header/ReportPeriod/StartDate'][0]"
	end       = "values['Header/ReportPeriod/EndDate'][0]"
)

// DefaultRuleSet returns the built-in rules for TSR 1.0 and EUSR 1.1.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		reporting.TypeTSR: append(commonRules("TSR",
			"TransactionStatisticsReport", report.CustomizationTSR),
			Rule{
				ID:         "SCH-TSR-10",
				Severity:   "error",
				Expression: "'Total/Incoming' in values && 'Total/Outgoing' in values",
				Message:    "The report must contain the total incoming and outgoing counts",
			},
			Rule{
				ID:         "SCH-TSR-11",
				Severity:   "warning",
				Expression: "'Subtotal/@type' in values && 'PerTP' in values['Subtotal/@type']",
				Message:    "The report should contain a subtotal per transport protocol",
			},
			Rule{
				ID:       "SCH-TSR-12",
				Severity: "warning",
				Expression: "!('Total/Incoming' in values && 'Total/Outgoing' in values) || " +
					"int(values['Total/Incoming'][0]) + int(values['Total/Outgoing'][0]) > 0",
				Message: "The report contains no transactions",
			},
		),
		reporting.TypeEUSR: append(commonRules("EUSR",
			"EndUserStatisticsReport", report.CustomizationEUSR),
			Rule{
				ID:       "SCH-EUSR-10",
				Severity: "error",
				Expression: "'FullSet/SendingEndUsers' in values && 'FullSet/ReceivingEndUsers' in values && " +
					"'FullSet/SendingOrReceivingEndUsers' in values",
				Message: "The full set must contain all end user counts",
			},
			Rule{
				ID:       "SCH-EUSR-11",
				Severity: "error",
				Expression: "!('FullSet/SendingOrReceivingEndUsers' in values) || (" +
					"int(values['FullSet/SendingOrReceivingEndUsers'][0]) >= int(values['FullSet/SendingEndUsers'][0]) && " +
					"int(values['FullSet/SendingOrReceivingEndUsers'][0]) >= int(values['FullSet/ReceivingEndUsers'][0]))",
				Message: "SendingOrReceivingEndUsers must be at least the number of sending and of receiving end users",
			},
			Rule{
				ID:       "SCH-EUSR-12",
				Severity: "error",
				Expression: "!('FullSet/SendingOrReceivingEndUsers' in values) || " +
					"int(values['FullSet/SendingOrReceivingEndUsers'][0]) <= " +
					"int(values['FullSet/SendingEndUsers'][0]) + int(values['FullSet/ReceivingEndUsers'][0])",
				Message: "SendingOrReceivingEndUsers must not exceed the sum of sending and receiving end users",
			},
		),
	}
}

func commonRules(prefix, rootName, customization string) []Rule {
	return []Rule{
		{
			ID:         "SCH-" + prefix + "-01",
			Severity:   "error",
			Expression: "root == '" + rootName + "'",
			Message:    "The document element must be " + rootName,
		},
		{
			ID:         "SCH-" + prefix + "-02",
			Severity:   "error",
			Expression: "'CustomizationID' in values && values['CustomizationID'][0] == '" + customization + "'",
			Message:    "The CustomizationID must be " + customization,
		},
		{
			ID:         "SCH-" + prefix + "-03",
			Severity:   "error",
			Expression: "'ProfileID' in values && values['ProfileID'][0] == '" + report.ProfileReporting + "'",
			Message:    "The ProfileID must be " + report.ProfileReporting,
		},
		{
			ID:         "SCH-" + prefix + "-04",
			Severity:   "error",
			Expression: hasPeriod + " && " + start + " <= " + end,
			Message:    "The report period start date must not be after the end date",
		},
		{
			ID:         "SCH-" + prefix + "-05",
			Severity:   "error",
			Expression: hasPeriod + " && " + start + ".substring(0, 7) == " + end + ".substring(0, 7)",
			Message:    "The report period must lie within a single month",
		},
		{
			ID:         "SCH-" + prefix + "-06",
			Severity:   "warning",
			Expression: hasPeriod + " && " + start + ".endsWith('-01')",
			Message:    "The report period should start on the first day of the month",
		},
		{
			ID:         "SCH-" + prefix + "-07",
			Severity:   "error",
			Expression: "'Header/ReporterID' in values && values['Header/ReporterID'][0] != ''",
			Message:    "The reporter ID must be present",
		},
	}
}
