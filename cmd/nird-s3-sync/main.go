package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
	"github.com/dashjay/nird-s3-sync/pkg/config"
	"github.com/dashjay/nird-s3-sync/pkg/core"
	"github.com/dashjay/nird-s3-sync/pkg/journal"
	"github.com/dashjay/nird-s3-sync/pkg/transfer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logrus.WithError(err).Errorln("nird-s3-sync failed")
		stop()
		os.Exit(1)
	}
}

func parseConfig(args []string) (*config.Config, []string, error) {
	def := config.Default()
	flags := pflag.NewFlagSet("nird-s3-sync", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nird-s3-sync [flags] SOURCE DESTINATION\n\n"+
			"SOURCE and DESTINATION are local paths or s3://bucket/key.\n\n")
		flags.PrintDefaults()
	}

	configFile := flags.String("config-file", "", "JSON or YAML config file")
	s3Accesskey := flags.String("s3.accesskey", "", "accesskey of s3, defaults to $"+config.AccessKeyEnv)
	s3Secretkey := flags.String("s3.secretkey", "", "secretkey of s3, defaults to $"+config.SecretKeyEnv)
	s3Endpoint := flags.String("s3.endpoint", def.S3Endpoint, "endpoint of s3")
	s3Bucket := flags.String("s3.bucket", def.S3Bucket, "default bucket of s3")
	s3Prefix := flags.String("s3.prefix", def.S3Prefix, "key prefix inside the bucket")
	s3Region := flags.String("s3.region", def.S3Region, "region of s3")
	chunkSize := flags.Int("chunk-size", def.ChunkSize, "bytes per read and write")
	retries := flags.Int("retries", def.Retries, "copies to attempt before giving up")
	checksumAlgo := flags.String("checksum", def.Checksum, "checksum algorithm: sha256 or blake2b-256")
	journalPath := flags.String("journal", def.JournalPath, "bbolt file recording copy outcomes")
	logLevel := flags.String("log-level", def.LogLevel, "log level")
	pprofPort := flags.String("pprof-port", def.PProfPort, "address for pprof, empty to disable")

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := def
	if *configFile != "" {
		var err error
		if cfg, err = config.FromFile(*configFile); err != nil {
			return nil, nil, err
		}
	}
	// flags given explicitly win over the config file
	overrides := map[string]func(){
		"s3.accesskey": func() { cfg.S3Accesskey = *s3Accesskey },
		"s3.secretkey": func() { cfg.S3Secretkey = *s3Secretkey },
		"s3.endpoint":  func() { cfg.S3Endpoint = *s3Endpoint },
		"s3.bucket":    func() { cfg.S3Bucket = *s3Bucket },
		"s3.prefix":    func() { cfg.S3Prefix = *s3Prefix },
		"s3.region":    func() { cfg.S3Region = *s3Region },
		"chunk-size":   func() { cfg.ChunkSize = *chunkSize },
		"retries":      func() { cfg.Retries = *retries },
		"checksum":     func() { cfg.Checksum = *checksumAlgo },
		"journal":      func() { cfg.JournalPath = *journalPath },
		"log-level":    func() { cfg.LogLevel = *logLevel },
		"pprof-port":   func() { cfg.PProfPort = *pprofPort },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return nil, nil, fmt.Errorf("expected SOURCE and DESTINATION, got %d arguments", flags.NArg())
	}
	return cfg, flags.Args(), nil
}

func openBackend(ctx context.Context, cfg *config.Config, loc core.Location) (backend.Interface, error) {
	if !loc.IsS3() {
		return core.NewLocalFS(""), nil
	}
	bucketCfg := *cfg
	bucketCfg.S3Bucket = loc.Bucket
	return core.NewS3Client(ctx, &bucketCfg)
}

func run(ctx context.Context, args []string) error {
	cfg, locations, err := parseConfig(args)
	if err != nil {
		return err
	}

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err == nil {
		logrus.SetLevel(lvl)
		logrus.Debugln("running nird-s3-sync in level ", logrus.GetLevel())
	}

	if cfg.PProfPort != "" {
		go http.ListenAndServe(cfg.PProfPort, nil)
	}

	srcLoc, err := core.ParseLocation(locations[0])
	if err != nil {
		return err
	}
	dstLoc, err := core.ParseLocation(locations[1])
	if err != nil {
		return err
	}
	src, err := openBackend(ctx, cfg, srcLoc)
	if err != nil {
		return err
	}
	dst, err := openBackend(ctx, cfg, dstLoc)
	if err != nil {
		return err
	}

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		if jr, err = journal.Open(cfg.JournalPath); err != nil {
			return err
		}
		defer jr.Close()
	}

	opts, err := cfg.CopyOptions()
	if err != nil {
		return err
	}
	copyID := uuid.NewString()
	log := logrus.WithField("copy_id", copyID)
	opts.Logger = log

	info, err := src.Stat(ctx, srcLoc.Path)
	if err != nil {
		return err
	}
	if logrus.GetLevel() < logrus.DebugLevel {
		opts.Progress = progressbar.DefaultBytes(info.Size, srcLoc.String())
	}

	var last transfer.Attempt
	opts.OnAttempt = func(a transfer.Attempt) { last = a }

	log.WithField("source", srcLoc.String()).
		WithField("destination", dstLoc.String()).
		WithField("size", info.Size).Infoln("start verified copy")
	copyErr := transfer.VerifiedCopy(ctx, src, srcLoc.Path, dst, dstLoc.Path, opts)

	if jr != nil {
		entry := journal.Entry{
			ID:          copyID,
			Source:      srcLoc.String(),
			Destination: dstLoc.String(),
			Algorithm:   string(opts.Algorithm),
			Attempts:    last.Number,
			Status:      journal.StatusVerified,
		}
		if copyErr != nil {
			entry.Status = journal.StatusFailed
			entry.Error = copyErr.Error()
		} else {
			entry.Checksum = last.SourceChecksum
		}
		if err := jr.Record(entry); err != nil {
			log.WithError(err).Warnln("failed to record copy in journal")
		} else {
			log.WithField("entry", entry.String()).Debugln("recorded copy in journal")
		}
	}
	if copyErr != nil {
		return copyErr
	}
	log.WithField("checksum", last.SourceChecksum).
		WithField("attempts", last.Number).Infoln("copy verified")
	return nil
}
