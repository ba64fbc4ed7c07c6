// dblp-extract downloads the DBLP XML dump and extracts entities like
// articles, books or authors into tabular files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/miku/dblpkit"
	"github.com/miku/dblpkit/config"
	"github.com/miku/dblpkit/dateutil"
	"github.com/miku/dblpkit/feeds"
	"github.com/miku/dblpkit/normal"
	"github.com/miku/dblpkit/output"
	"github.com/miku/dblpkit/pproc"
	"github.com/miku/dblpkit/schema/dblp"
	"github.com/miku/dblpkit/xio"
	"github.com/miku/dblpkit/xmlstream"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# dblp-extract - tabular data from the DBLP XML dump

Downloads dblp.xml.gz and dblp.dtd from https://dblp.org/xml/, then streams
the dump once per entity and writes one file per entity into the dataset
directory. Records with missing features are kept; a summary line per entity
reports how many records have all features.

## list entities

$ dblp-extract -l
article [article] -> title, author, year, journal, pages
...

## extract everything

$ dblp-extract -d dataset -f csv

## only articles, from a local dump, with keys

$ dblp-extract -skip-download -i dblp.xml.gz -only article -k

## list dated releases

$ dblp-extract -releases

## config file

YAML, keys as in the flags below, plus additional entity profiles:

	format: json
	workers: 2
	profiles:
	  - name: thesis
	    types: [phdthesis, mastersthesis]
	    features: [title, author, school, year]

## flags

`, "\n")

var (
	skipDownload = flag.Bool("skip-download", false, "do not download the dump")
	skipParsing  = flag.Bool("skip-parsing", false, "only download, do not extract")
	only         = flag.String("only", "", "comma separated list of entities to extract, e.g. article,author")
	datasetDir   = flag.String("d", "", "dataset directory for the output files")
	inputFile    = flag.String("i", "", "input file, plain, .gz or .zst, default: downloaded dump")
	format       = flag.String("f", "", "output format: csv, json, xlsx, sqlite")
	compression  = flag.String("z", "", "compress outputs: gz, zst")
	includeKey   = flag.Bool("k", false, "include the record key as first column")
	withUUID     = flag.Bool("uuid", false, "add an id column, derived from the record key, implies -k")
	since        = flag.String("since", "", "only records modified since date or offset, e.g. 2024-01-01 or 30d")
	limit        = flag.Int("n", 0, "limit number of records per entity, 0 means no limit")
	workers      = flag.Int("w", 0, "number of entities to extract in parallel")
	force        = flag.Bool("force", false, "overwrite existing outputs")
	normalize    = flag.Bool("normalize", false, "apply unicode NFC and collapse whitespace in values")
	strict       = flag.Bool("strict", false, "strict XML parsing, drops more records")
	decompress   = flag.Bool("x", false, "decompress the dump once before extraction")
	configFile   = flag.String("config", "", "path to YAML config file")
	listProfiles = flag.Bool("l", false, "list entity profiles")
	listReleases = flag.Bool("releases", false, "list dated releases of the dump")
	maxRetries   = flag.Int("r", 0, "max retries for downloads")
	timeout      = flag.Duration("T", 0, "download timeout")
	verbose      = flag.Bool("verbose", false, "verbose output")
	showVersion  = flag.Bool("version", false, "show version")
)

func main() {
	flag.Usage = func() {
		io.WriteString(os.Stderr, docs)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(dblpkit.Version)
		os.Exit(0)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	cfg := config.Default()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			log.Fatal(err)
		}
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	profiles, err := cfg.EntityProfiles()
	if err != nil {
		log.Fatal(err)
	}
	if *listProfiles {
		for _, p := range profiles {
			fmt.Println(p)
		}
		os.Exit(0)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = cfg.MaxRetries
	client.RetryOnHTTP429 = true
	client.Timeout = cfg.Timeout
	fetcher, err := feeds.NewDBLPFetcher(cfg.BaseURL, cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	fetcher.Client = client
	if *listReleases {
		releases, err := fetcher.Releases(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for _, r := range releases {
			fmt.Printf("%s\t%s\t%s\n", r.Date.Format("2006-01-02"), r.Size, r.URL)
		}
		os.Exit(0)
	}
	if !*skipDownload && cfg.Input == "" {
		started := time.Now()
		if err := fetcher.Download(ctx); err != nil {
			log.Fatal(err)
		}
		log.WithField("elapsed", time.Since(started).Round(time.Second)).Info("download done")
	}
	if *skipParsing {
		return
	}
	input := cfg.InputPath(feeds.DumpFilename)
	if *decompress && xio.CompressionOf(input) == xio.Gzip {
		dst := strings.TrimSuffix(input, ".gz")
		log.WithField("file", dst).Info("decompressing")
		if err := feeds.Decompress(input, dst); err != nil {
			log.Fatal(err)
		}
		input = dst
	}
	selected, err := selectProfiles(profiles, *only)
	if err != nil {
		log.Fatal(err)
	}
	jobs, err := makeJobs(cfg, selected, input)
	if err != nil {
		log.Fatal(err)
	}
	opts, err := runnerOptions(cfg, filepath.Dir(input))
	if err != nil {
		log.Fatal(err)
	}
	runner := pproc.NewRunner(opts...)
	started := time.Now()
	if _, err := runner.Run(ctx, jobs); err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"entities": len(jobs),
		"elapsed":  time.Since(started).Round(time.Millisecond),
		"dir":      cfg.DatasetDir,
	}).Info("extraction done")
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.DatasetDir = *datasetDir
		case "i":
			cfg.Input = *inputFile
		case "f":
			cfg.Format = *format
		case "z":
			cfg.Compression = *compression
		case "k":
			cfg.IncludeKey = *includeKey
		case "uuid":
			cfg.UUID = *withUUID
		case "since":
			cfg.Since = *since
		case "n":
			cfg.Limit = *limit
		case "w":
			cfg.Workers = *workers
		case "normalize":
			cfg.Normalize = *normalize
		case "strict":
			cfg.Strict = *strict
		case "r":
			cfg.MaxRetries = *maxRetries
		case "T":
			cfg.Timeout = *timeout
		}
	})
}

// selectProfiles returns the profiles named in a comma separated list, or
// all profiles, if the list is empty.
func selectProfiles(profiles []dblp.Profile, names string) ([]dblp.Profile, error) {
	if strings.TrimSpace(names) == "" {
		return profiles, nil
	}
	var result []dblp.Profile
	for _, name := range strings.Split(names, ",") {
		p, err := dblp.FindProfile(profiles, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func makeJobs(cfg config.Config, profiles []dblp.Profile, input string) ([]pproc.Job, error) {
	f, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if f == output.Text {
		return nil, fmt.Errorf("text format is only available for authors")
	}
	c, err := xio.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if f == output.SQLite && c != xio.None {
		return nil, output.ErrCompressedDatabase
	}
	var jobs []pproc.Job
	for _, p := range profiles {
		jobs = append(jobs, pproc.Job{
			Profile: p,
			Input:   input,
			Output:  filepath.Join(cfg.DatasetDir, p.Name+f.Ext()+c.Ext()),
			Format:  f,
		})
	}
	return jobs, nil
}

func runnerOptions(cfg config.Config, dumpDir string) ([]pproc.RunnerOption, error) {
	sinceTime, err := dateutil.ParseSince(cfg.Since, time.Now())
	if err != nil {
		return nil, err
	}
	opts := []pproc.RunnerOption{
		pproc.WithWorkers(cfg.Workers),
		pproc.WithForce(*force),
		pproc.WithKey(cfg.IncludeKey),
		pproc.WithUUID(cfg.UUID),
		pproc.WithSince(sinceTime),
		pproc.WithLimit(cfg.Limit),
		pproc.WithLogger(log.StandardLogger()),
		pproc.WithWalkerOptions(xmlstream.WithStrict(cfg.Strict)),
	}
	if cfg.Normalize {
		opts = append(opts, pproc.WithNormalizer(&normal.Pipeline{
			Normalizer: []normal.Normalizer{normal.NFC, normal.Whitespace},
		}))
	}
	dtd := filepath.Join(dumpDir, feeds.DTDFilename)
	if xio.Exists(dtd) {
		f, err := os.Open(dtd)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		entities, err := xmlstream.ReadEntities(f)
		if err != nil {
			return nil, err
		}
		log.WithField("count", len(entities)).Debug("loaded entities from DTD")
		opts = append(opts, pproc.WithWalkerOptions(xmlstream.WithEntities(entities)))
	}
	return opts, nil
}
