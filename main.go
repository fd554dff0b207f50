// Command logocrawler finds a logo or favicon for every domain in a list.
//
// Domains are read from files or stdin, fanned out to a worker pool sized
// from the input (one worker per 50 domains unless overridden), fetched with
// per-host rate limiting and exponential backoff, and parsed for JSON-LD
// logos and icon links. A single stats collector owns the records, feeds the
// log, Prometheus and optional Postgres sinks, and hands back the ordered
// report that is written as CSV or XLSX.
//
// Configuration comes from config.yaml and LOGOCRAWLER_* environment
// variables; see internal/config for the keys.
package main

import (
	"github.com/yokurang/logo-crawler/cmd"
)

func main() {
	cmd.Execute()
}
