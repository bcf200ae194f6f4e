// Package main provides the entry point for the docveil CLI.
//
// Docveil detects and anonymizes personally identifiable information in
// text documents. It runs fully offline: all detection and anonymization
// happens on the local machine.
//
// Usage:
//
//	docveil scan <file>...
//	docveil serve
//	docveil recognizers list
//
// See --help for all available options.
package main

func main() {
	Execute()
}
