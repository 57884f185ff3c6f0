package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/flakework/checkmatrix/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one pipeline run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one matrix entry.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a failed check build.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a check whose build command could not be invoked.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a check as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a PipelineOutcome to JUnit XML format.
func ConvertToJUnit(outcome *models.PipelineOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      outcome.RunID,
		Tests:     outcome.Digest.TotalChecks,
		Failures:  outcome.Digest.Failed,
		Errors:    outcome.Digest.Errors,
		Skipped:   outcome.Digest.Skipped,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "target", Value: outcome.Target},
			{Name: "system", Value: outcome.System},
			{Name: "evaluator", Value: outcome.Setup.Evaluator},
			{Name: "builder", Value: outcome.Setup.Builder},
		},
	}

	for _, co := range outcome.CheckOutcomes {
		suite.TestCases = append(suite.TestCases, convertCheckOutcome(outcome.System, &co))
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalChecks,
		Failures:   outcome.Digest.Failed,
		Errors:     outcome.Digest.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertCheckOutcome(system string, co *models.CheckOutcome) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      co.Name,
		Classname: "checks." + system,
		Time:      float64(co.DurationMs) / 1000.0,
	}

	switch co.Status {
	case models.StatusFailed:
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%s: exit code %d", co.Name, co.ExitCode),
			Type:    "BuildFailure",
			Body:    co.OutputTail,
		}
	case models.StatusError:
		tc.Error = &JUnitError{
			Message: co.ErrorMsg,
			Type:    "InvocationError",
		}
	case models.StatusSkipped:
		tc.Skipped = &JUnitSkipped{Message: "canceled by fail-fast"}
	}

	return tc
}

// WriteJUnitFile writes the outcome as JUnit XML to the given path.
func WriteJUnitFile(outcome *models.PipelineOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	content := append([]byte(xml.Header), data...)
	content = append(content, '\n')

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing JUnit file: %w", err)
	}
	return nil
}
