package main

import (
	"context"

	"github.com/atinyakov/EnrollKeeper/internal/config"
	"github.com/atinyakov/EnrollKeeper/internal/relay"
	"go.uber.org/zap"
)

// newRelay builds the replication relay for the file store from options.
// It returns nil when replication is off or no target could be opened; a
// target that fails to open is skipped with a warning.
func newRelay(ctx context.Context, options *config.Options, log *zap.Logger) *relay.Relay {
	switch {
	case options.DatabaseDSN != "":
		log.Warn("external replication is off in postgres mode; history stays in collection_history of the same database")
		return nil
	case options.DisableRelay:
		log.Info("replication disabled by configuration")
		return nil
	}

	var targets relay.Fanout

	pub, err := relay.NewGitPublisher(relay.GitConfig{
		RepoPath: options.RepoPath,
		Remote:   options.Remote,
		Branch:   options.Branch,
	})
	if err != nil {
		log.Warn("git replication disabled", zap.String("repo", options.RepoPath), zap.Error(err))
	} else {
		targets = append(targets, pub)
	}

	if options.S3Bucket != "" {
		s3pub, err := relay.NewS3Publisher(ctx, relay.S3Config{
			Bucket:    options.S3Bucket,
			Prefix:    options.S3Prefix,
			Region:    options.S3Region,
			Endpoint:  options.S3Endpoint,
			AccessKey: options.S3AccessKey,
			SecretKey: options.S3SecretKey,
		})
		if err != nil {
			log.Warn("s3 replication disabled", zap.String("bucket", options.S3Bucket), zap.Error(err))
		} else {
			targets = append(targets, s3pub)
		}
	}

	if len(targets) == 0 {
		log.Warn("no replication target available")
		return nil
	}
	return relay.New(relay.Config{Timeout: options.RelayTimeout.Duration}, targets, log)
}
