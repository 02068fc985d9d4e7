// Package main provides the entry point for the linkscan CLI.
//
// linkscan crawls a website from one or more seed URLs, up to a depth
// threshold, and reports the internal and external links it discovered.
//
// Usage:
//
//	linkscan crawl -u https://example.com
//	linkscan crawl -u https://example.com -t 3 -o links.txt
//	linkscan history --seed https://example.com --diff
//
// See --help for all available options.
package main

func main() {
	Execute()
}
