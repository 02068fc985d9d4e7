// Package report renders crawl results.
//
// This package contains:
//   - grouping helpers: GroupByDomain and GroupByExtension
//   - TextWriter: the plain-text layout printed to the terminal
//   - MarkdownWriter: GitHub Flavored Markdown for sharing
//   - JSONWriter: structured output for tool integration
//   - Destination: the output file or stdout fallback
//   - WriteDiffText, WriteDiffJSON, WriteDiffMarkdown: link changes between two archived crawls
//
// Writers implement the Writer interface, so they can be used
// interchangeably and composed with MultiWriter.
package report
