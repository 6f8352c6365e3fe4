package main

// © 2026 robinstat authors. MIT License.

import (
	"flag"
	"time"
)

type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.target, "target", "http://localhost:7070", "base URL of the process exposing the debug snapshot endpoint")
	flag.BoolVar(&o.json, "json", false, "print the raw JSON snapshot instead of a pretty summary")
	flag.BoolVar(&o.watch, "watch", false, "poll the target repeatedly instead of a single shot")
	flag.DurationVar(&o.interval, "interval", 2*time.Second, "polling interval when -watch is set")
	flag.StringVar(&o.heapProfile, "heap-profile", "", "download a heap pprof profile to this path and exit")
	flag.StringVar(&o.goroutineProfile, "goroutine-profile", "", "download a goroutine pprof profile to this path and exit")
	flag.BoolVar(&o.version, "version", false, "print the build version and exit")
	flag.Parse()
	return o
}
