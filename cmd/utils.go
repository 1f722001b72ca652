package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dindinbro/discreen/pkg/bridge"
	"github.com/dindinbro/discreen/pkg/config"
	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/log"
	"github.com/dindinbro/discreen/pkg/objstore"
	"github.com/dindinbro/discreen/pkg/search"
	"github.com/dindinbro/discreen/pkg/storage"
)

// searchCore bundles everything a command needs to run federated searches.
type searchCore struct {
	cfg          *config.Config
	registry     *storage.Registry
	orchestrator *search.Orchestrator
}

// buildSearchCore loads config, discovers local sources and wires up the
// configured participants.
func buildSearchCore(ctx context.Context, configPath string, debug bool) (*searchCore, error) {
	if debug {
		log.SetGlobalDebug(true)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	parser := lineparse.NewParser(lineparse.NewHeaderCache())

	registry := storage.NewRegistry(cfg.DataDir, parser)
	if err := registry.Discover(); err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}

	opts := []search.Option{
		search.WithLocal(registry),
		search.WithDeadline(cfg.GlobalTimeout.Duration),
	}

	if cfg.HasBridge() {
		client := bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Secret, cfg.Bridge.Timeout.Duration, parser)
		opts = append(opts, search.WithBridge(client))
	}

	if cfg.HasS3() {
		searcher, err := objstore.NewSearcher(ctx, objstore.Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			Denylist:        cfg.S3.Denylist,
		}, parser)
		if err != nil {
			return nil, fmt.Errorf("building object-storage searcher: %w", err)
		}
		opts = append(opts, search.WithObjectStore(searcher))
	}

	return &searchCore{
		cfg:          cfg,
		registry:     registry,
		orchestrator: search.NewOrchestrator(ctx, opts...),
	}, nil
}

func (c *searchCore) Close() {
	if err := c.registry.Close(); err != nil {
		fmt.Printf("Warning: failed to close registry: %v\n", err)
	}
}

// parseCriteriaArgs converts type=value pairs into criteria.
func parseCriteriaArgs(pairs []string) ([]core.Criterion, error) {
	criteria := make([]core.Criterion, 0, len(pairs))
	for _, pair := range pairs {
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("criterion %q is not in type=value form", pair)
		}
		criterion := core.Criterion{
			Type:  core.CriterionType(pair[:idx]),
			Value: pair[idx+1:],
		}
		if !criterion.Type.Valid() {
			return nil, fmt.Errorf("unknown criterion type %q", pair[:idx])
		}
		criteria = append(criteria, criterion)
	}
	return criteria, nil
}
