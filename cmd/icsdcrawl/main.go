// Package main provides the entry point for the icsdcrawl CLI.
//
// icsdcrawl drives the ICSD web interface with a real browser: it runs
// Basic Search queries, walks the Detailed View, and saves each entry's
// metadata and CIF file into a per-collection-code directory.
//
// Usage:
//
//	icsdcrawl scrape --composition "Na Cl"
//	icsdcrawl enumerate --start 1 --ranges 3
//	icsdcrawl crawl
//
// See --help for all available options.
package main

func main() {
	Execute()
}
