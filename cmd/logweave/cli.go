package main

import (
	"flag"
	"time"
)

var (
	flagPath             string
	flagNormalOut        string
	flagSizeThreshold    int
	flagMaxPerMicroBatch int
	flagChunkLines       int
	flagMicroBatch       int
	flagMatchWorkers     int
	flagConfigFile       string
	flagForceFlush       bool
	flagOpsAddr          string
	flagGops             bool
	flagLogLevel         string
	flagWatchDir         string
	flagWatchInterval    time.Duration
)

func cliInit() {
	flag.StringVar(&flagPath, "path", "", "Path to the log file to ingest (plain text or .gz)")
	flag.StringVar(&flagNormalOut, "normal-out", "", "Directory for normalized output files (default: alongside --path)")
	flag.IntVar(&flagSizeThreshold, "size-threshold", 0, "Diversity buffer size that triggers a committee firing (0: use config)")
	flag.IntVar(&flagMaxPerMicroBatch, "max-per-micro-batch", 0, "Max diversity-buffer admissions per micro-batch (0: use config)")
	flag.IntVar(&flagChunkLines, "chunk-lines", 0, "Stream-read chunk size in lines (0: use config)")
	flag.IntVar(&flagMicroBatch, "micro-batch", 0, "Records per match micro-batch (0: use config)")
	flag.IntVar(&flagMatchWorkers, "match-workers", 0, "Match worker pool width (0: use config)")
	flag.StringVar(&flagConfigFile, "config", "", "Path to the pipeline YAML configuration")
	flag.BoolVar(&flagForceFlush, "force-flush", false, "Run the committee once more at end-of-file on whatever remains buffered")
	flag.StringVar(&flagOpsAddr, "ops-addr", "", "Address to serve the read-only ops HTTP surface on (empty: disabled)")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLogLevel, "loglevel", "warn", "Sets the logging level: `[debug, info, warn, err]`")
	flag.StringVar(&flagWatchDir, "watch-dir", "", "Run as a daemon: periodically scan this directory for new log files (empty: process --path once and exit)")
	flag.DurationVar(&flagWatchInterval, "watch-interval", time.Minute, "Scan interval in daemon mode")
	flag.Parse()
}
