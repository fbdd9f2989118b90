// Package rules checks serialized reports against business rules written as
// CEL expressions.
//
// Each rule sees two variables:
//
//	root    string                     local name of the document element
//	values  map(string, list(string))  element texts and attributes by path
//
// Paths are relative to the document element, e.g. "Header/ReportPeriod/StartDate"
// or "Subtotal/@type". A rule expression evaluates to true when the report
// passes it.
package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// ErrRuleSet is returned when a rule does not compile
var ErrRuleSet = errors.New("invalid rule set")

// Rule is a single business rule
type Rule struct {
	ID         string `yaml:"id"`
	Severity   string `yaml:"severity"` // "error" or "warning"
	Expression string `yaml:"expression"`
	Message    string `yaml:"message"`
}

// RuleSet holds the rules per report type
type RuleSet map[reporting.ReportType][]Rule

type compiledRule struct {
	rule     Rule
	severity reporting.Severity
	program  cel.Program
}

// Checker implements reporting.RuleChecker.
type Checker struct {
	rules map[reporting.ReportType][]compiledRule
}

var _ reporting.RuleChecker = (*Checker)(nil)

// NewChecker compiles a rule set.
func NewChecker(set RuleSet) (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable("root", cel.StringType),
		cel.Variable("values", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	c := &Checker{rules: make(map[reporting.ReportType][]compiledRule, len(set))}
	for reportType, rules := range set {
		for _, r := range rules {
			compiled, err := compile(env, r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", reportType.ID(), err)
			}
			c.rules[reportType] = append(c.rules[reportType], compiled)
		}
	}
	return c, nil
}

// NewDefaultChecker compiles the built-in TSR and EUSR rules.
func NewDefaultChecker() (*Checker, error) {
	return NewChecker(DefaultRuleSet())
}

// LoadRuleSet reads a rule set from a YAML file keyed by report type ID:
//
//	tsr10:
//	  - id: SCH-TSR-01
//	    severity: error
//	    expression: "values['CustomizationID'][0] == '...'"
//	    message: Wrong customization ID
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule set: %w", err)
	}

	var raw map[string][]Rule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing rule set: %w", err)
	}

	set := make(RuleSet, len(raw))
	for id, rules := range raw {
		reportType, err := reporting.ParseReportType(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRuleSet, err)
		}
		set[reportType] = rules
	}
	return set, nil
}

func compile(env *cel.Env, r Rule) (compiledRule, error) {
	var severity reporting.Severity
	switch strings.ToLower(r.Severity) {
	case "error", "fatal":
		severity = reporting.SeverityError
	case "warning", "warn":
		severity = reporting.SeverityWarning
	default:
		return compiledRule{}, fmt.Errorf("%w: rule %s has unknown severity %q", ErrRuleSet, r.ID, r.Severity)
	}

	ast, issues := env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return compiledRule{}, fmt.Errorf("%w: failed to compile rule %s: %w", ErrRuleSet, r.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return compiledRule{}, fmt.Errorf("%w: rule %s must return bool, got %s", ErrRuleSet, r.ID, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return compiledRule{}, fmt.Errorf("failed to create program for rule %s: %w", r.ID, err)
	}
	return compiledRule{rule: r, severity: severity, program: program}, nil
}

// Check implements reporting.RuleChecker. Failed rules become diagnostics;
// unparsable markup or a rule that cannot be evaluated is an error.
func (c *Checker) Check(ctx context.Context, reportType reporting.ReportType, markup []byte) ([]reporting.Diagnostic, error) {
	root, values, err := flatten(markup)
	if err != nil {
		return nil, err
	}

	activation := map[string]any{
		"root":   root,
		"values": values,
	}

	var findings []reporting.Diagnostic
	for _, r := range c.rules[reportType] {
		if err := ctx.Err(); err != nil {
			return findings, err
		}

		out, _, err := r.program.ContextEval(ctx, activation)
		if err != nil {
			return findings, fmt.Errorf("evaluating rule %s: %w", r.rule.ID, err)
		}
		if passed, ok := out.(types.Bool); ok && bool(passed) {
			continue
		}
		findings = append(findings, reporting.Diagnostic{
			Severity: r.severity,
			Source:   reporting.SourceRules,
			RuleID:   r.rule.ID,
			Message:  r.rule.Message,
		})
	}
	return findings, nil
}

// flatten collects element texts and attribute values by path.
func flatten(markup []byte) (string, map[string][]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(markup); err != nil {
		return "", nil, fmt.Errorf("parsing markup: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", nil, errors.New("markup has no document element")
	}

	values := make(map[string][]string)
	var walk func(el *etree.Element, path string)
	walk = func(el *etree.Element, path string) {
		for _, attr := range el.Attr {
			if attr.Space == "xmlns" || attr.Key == "xmlns" {
				continue
			}
			key := "@" + attr.Key
			if path != "" {
				key = path + "/" + key
			}
			values[key] = append(values[key], attr.Value)
		}

		children := el.ChildElements()
		if len(children) == 0 && path != "" {
			values[path] = append(values[path], strings.TrimSpace(el.Text()))
			return
		}
		for _, child := range children {
			childPath := child.Tag
			if path != "" {
				childPath = path + "/" + child.Tag
			}
			walk(child, childPath)
		}
	}
	walk(root, "")

	return root.Tag, values, nil
}
