package cmd

import "github.com/turbocompute/gpulogs/internal/client/output"

// OutputInterface defines the interface for output operations to enable dependency injection and testing.
type OutputInterface interface {
	Infof(format string, a ...any)
	Errorf(format string, a ...any)
	Successf(format string, a ...any)
	Warningf(format string, a ...any)
	Printf(format string, a ...any)
	Blank()
	Bold(text string) string
	Cyan(text string) string
	Gray(text string) string
	Highlight(text string) string
	LineNumber(n int) string
	StatusBadge(status string) string
	KeyValue(key, value string)
	Table(headers []string, rows [][]string)
	Println(a ...any)
}

// outputWrapper wraps the global output package functions to implement OutputInterface.
type outputWrapper struct{}

// NewOutputWrapper creates a new output wrapper that implements OutputInterface.
func NewOutputWrapper() OutputInterface {
	return &outputWrapper{}
}

func (o *outputWrapper) Infof(format string, a ...any) {
	output.Infof(format, a...)
}

func (o *outputWrapper) Errorf(format string, a ...any) {
	output.Errorf(format, a...)
}

func (o *outputWrapper) Successf(format string, a ...any) {
	output.Successf(format, a...)
}

func (o *outputWrapper) Warningf(format string, a ...any) {
	output.Warningf(format, a...)
}

func (o *outputWrapper) Printf(format string, a ...any) {
	output.Printf(format, a...)
}

func (o *outputWrapper) Blank() {
	output.Blank()
}

func (o *outputWrapper) Bold(text string) string {
	return output.Bold(text)
}

func (o *outputWrapper) Cyan(text string) string {
	return output.Cyan(text)
}

func (o *outputWrapper) Gray(text string) string {
	return output.Gray(text)
}

func (o *outputWrapper) Highlight(text string) string {
	return output.Highlight(text)
}

func (o *outputWrapper) LineNumber(n int) string {
	return output.LineNumber(n)
}

func (o *outputWrapper) StatusBadge(status string) string {
	return output.StatusBadge(status)
}

func (o *outputWrapper) KeyValue(key, value string) {
	output.KeyValue(key, value)
}

func (o *outputWrapper) Println(a ...any) {
	output.Println(a...)
}

func (o *outputWrapper) Table(headers []string, rows [][]string) {
	output.Table(headers, rows)
}
