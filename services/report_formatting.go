package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
)

// ReportFormattingService renders an aggregation as HTML (for email),
// plain text, and CSV. All three render the byType and byHour breakdowns
// and handle empty aggregations cleanly; HTML output is auto-escaped by
// html/template.
type ReportFormattingService struct {
	htmlTemplate *template.Template
}

const reportHTMLTemplate = `<!DOCTYPE html>
<html>
  <body>
    <h1>Daily Transaction Report</h1>
    <table border="1" cellpadding="4" cellspacing="0">
      <tr><td>Total Transactions</td><td>{{.TotalTransactions}}</td></tr>
      <tr><td>Successful</td><td>{{.SuccessfulTransactions}}</td></tr>
      <tr><td>Failed</td><td>{{.FailedTransactions}}</td></tr>
      <tr><td>Volume</td><td>{{.Volume}}</td></tr>
      <tr><td>Average Value</td><td>{{.AverageValue}}</td></tr>
    </table>
    <h2>By Type</h2>
    {{if .ByType}}<table border="1" cellpadding="4" cellspacing="0">
      <tr><th>Type</th><th>Count</th></tr>
      {{range .ByType}}<tr><td>{{.Key}}</td><td>{{.Count}}</td></tr>
      {{end}}
    </table>{{else}}<p>No transactions</p>{{end}}
    <h2>By Hour</h2>
    {{if .ByHour}}<table border="1" cellpadding="4" cellspacing="0">
      <tr><th>Hour</th><th>Count</th></tr>
      {{range .ByHour}}<tr><td>{{.Key}}</td><td>{{.Count}}</td></tr>
      {{end}}
    </table>{{else}}<p>No transactions</p>{{end}}
  </body>
</html>`

type reportBucket struct {
	Key   string
	Count int
}

type reportTemplateData struct {
	TotalTransactions      int
	SuccessfulTransactions int
	FailedTransactions     int
	Volume                 string
	AverageValue           string
	ByType                 []reportBucket
	ByHour                 []reportBucket
}

func NewReportFormattingService() *ReportFormattingService {
	return &ReportFormattingService{
		htmlTemplate: template.Must(template.New("report").Parse(reportHTMLTemplate)),
	}
}

// sortedBuckets flattens a breakdown map into key-sorted rows so renders
// are deterministic
func sortedBuckets(breakdown map[string]int) []reportBucket {
	keys := make([]string, 0, len(breakdown))
	for key := range breakdown {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buckets := make([]reportBucket, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, reportBucket{Key: key, Count: breakdown[key]})
	}
	return buckets
}

func templateData(aggregation *AggregationResult) reportTemplateData {
	return reportTemplateData{
		TotalTransactions:      aggregation.TotalTransactions,
		SuccessfulTransactions: aggregation.SuccessfulTransactions,
		FailedTransactions:     aggregation.FailedTransactions,
		Volume:                 aggregation.TransactionVolume.String(),
		AverageValue:           aggregation.AverageTransactionValue.String(),
		ByType:                 sortedBuckets(aggregation.ByType),
		ByHour:                 sortedBuckets(aggregation.ByHour),
	}
}

// FormatAsHTML renders the aggregation as an HTML email body
func (rfs *ReportFormattingService) FormatAsHTML(aggregation *AggregationResult) (string, error) {
	var buffer bytes.Buffer
	if err := rfs.htmlTemplate.Execute(&buffer, templateData(aggregation)); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buffer.String(), nil
}

// FormatAsText renders the aggregation as plain text
func (rfs *ReportFormattingService) FormatAsText(aggregation *AggregationResult) string {
	data := templateData(aggregation)

	lines := []string{
		"Daily Transaction Report",
		fmt.Sprintf("Total Transactions: %d", data.TotalTransactions),
		fmt.Sprintf("Successful: %d", data.SuccessfulTransactions),
		fmt.Sprintf("Failed: %d", data.FailedTransactions),
		fmt.Sprintf("Volume: %s", data.Volume),
		fmt.Sprintf("Average Value: %s", data.AverageValue),
		"",
		"By Type:",
	}
	for _, bucket := range data.ByType {
		lines = append(lines, fmt.Sprintf("  %s: %d", bucket.Key, bucket.Count))
	}
	lines = append(lines, "", "By Hour:")
	for _, bucket := range data.ByHour {
		lines = append(lines, fmt.Sprintf("  %s: %d", bucket.Key, bucket.Count))
	}
	return strings.Join(lines, "\n")
}

// FormatAsCSV renders the aggregation as metric/value rows. encoding/csv
// handles quoting for values that need escaping.
func (rfs *ReportFormattingService) FormatAsCSV(aggregation *AggregationResult) (string, error) {
	data := templateData(aggregation)

	records := [][]string{
		{"Metric", "Value"},
		{"Total Transactions", strconv.Itoa(data.TotalTransactions)},
		{"Successful", strconv.Itoa(data.SuccessfulTransactions)},
		{"Failed", strconv.Itoa(data.FailedTransactions)},
		{"Volume", data.Volume},
		{"Average Value", data.AverageValue},
	}
	for _, bucket := range data.ByType {
		records = append(records, []string{"Type: " + bucket.Key, strconv.Itoa(bucket.Count)})
	}
	for _, bucket := range data.ByHour {
		records = append(records, []string{"Hour: " + bucket.Key, strconv.Itoa(bucket.Count)})
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if err := writer.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to render CSV report: %w", err)
	}
	return buffer.String(), nil
}
