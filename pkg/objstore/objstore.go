// Package objstore streams raw dump files straight out of an S3-compatible
// bucket, line by line, for queries that local stores and the bridge cannot
// answer. It trades completeness for latency: a bounded number of concurrent
// streams, a per-file hit budget and a hard timer that cuts the search off
// with a partial result.
package objstore

import (
	"context"
	"math"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/log"
	"github.com/dindinbro/discreen/pkg/relevance"
)

var logger = log.ForService("objstore")

const (
	listingTTL       = 5 * time.Minute
	batchConcurrency = 10
	minFileBudget    = 10
	scanTimeout      = 60 * time.Second
)

// allowedExtensions are the text-like object suffixes worth streaming.
// Gzip-compressed variants of each are accepted too.
var allowedExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".log":  true,
	".json": true,
	".tsv":  true,
	".sql":  true,
	".dat":  true,
}

// objectGetter is the slice of the S3 API the searcher needs. The real
// client satisfies it; tests substitute their own.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures a Searcher.
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string

	// Denylist holds source names whose objects are skipped, matched by
	// filename with or without extension.
	Denylist []string
}

// Searcher streams bucket objects for substring matches.
type Searcher struct {
	client objectGetter
	bucket string
	prefix string
	parser *lineparse.Parser
	denied map[string]bool

	listMu     sync.Mutex
	listedAt   time.Time
	listedKeys []string
}

// NewSearcher builds the S3 client and the searcher around it.
func NewSearcher(ctx context.Context, opts Options, parser *lineparse.Parser) (*Searcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})

	return newSearcher(client, opts, parser), nil
}

func newSearcher(client objectGetter, opts Options, parser *lineparse.Parser) *Searcher {
	denied := make(map[string]bool, len(opts.Denylist))
	for _, name := range opts.Denylist {
		denied[strings.ToLower(name)] = true
	}
	return &Searcher{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		parser: parser,
		denied: denied,
	}
}

// listKeys returns the cached candidate keys, refreshing when the TTL has
// expired. Concurrent refreshes duplicate work but cannot corrupt the cache.
func (s *Searcher) listKeys(ctx context.Context) ([]string, error) {
	s.listMu.Lock()
	if time.Since(s.listedAt) < listingTTL && s.listedKeys != nil {
		keys := s.listedKeys
		s.listMu.Unlock()
		return keys, nil
	}
	s.listMu.Unlock()

	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if s.eligible(*obj.Key) {
				keys = append(keys, *obj.Key)
			}
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	s.listMu.Lock()
	s.listedKeys = keys
	s.listedAt = time.Now()
	s.listMu.Unlock()

	logger.Debugf("listed %d candidate objects under %s", len(keys), s.prefix)
	return keys, nil
}

// eligible applies the extension allow-list and the source denylist.
func (s *Searcher) eligible(key string) bool {
	name := path.Base(key)
	lower := strings.ToLower(name)

	stem := lower
	if strings.HasSuffix(stem, ".gz") {
		stem = strings.TrimSuffix(stem, ".gz")
	}
	if !allowedExtensions[path.Ext(stem)] {
		return false
	}

	if s.denied[lower] {
		return false
	}
	noExt := strings.TrimSuffix(stem, path.Ext(stem))
	return !s.denied[noExt]
}

// Search streams candidate objects in bounded batches until enough hits
// accumulate, the listing is exhausted, or the scan timer fires. The result
// is marked partial when the timer cut the scan short.
func (s *Searcher) Search(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result {
	values := core.CriteriaValues(criteria)
	if len(values) == 0 || limit <= 0 {
		return core.EmptyResult()
	}
	needles := make([]string, len(values))
	for i, v := range values {
		needles[i] = strings.ToLower(v)
	}

	keys, err := s.listKeys(ctx)
	if err != nil {
		logger.Warnf("listing bucket %s failed: %v", s.bucket, err)
		return core.EmptyResult()
	}

	needed := limit + offset
	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	var records []*core.Record
	partial := false

	for start := 0; start < len(keys) && len(records) < needed; start += batchConcurrency {
		if scanCtx.Err() != nil {
			partial = true
			break
		}

		end := start + batchConcurrency
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		remaining := needed - len(records)
		budget := int(math.Ceil(float64(remaining) / float64(batchConcurrency)))
		if budget < minFileBudget {
			budget = minFileBudget
		}

		hits := s.scanBatch(scanCtx, batch, needles, budget)

		batchRecords := make([]*core.Record, 0, len(hits))
		for _, hit := range hits {
			if rec, ok := s.parser.Parse(hit.line, hit.source); ok {
				batchRecords = append(batchRecords, rec)
			}
		}
		batchRecords = relevance.FilterByCriteria(batchRecords, criteria)
		batchRecords = relevance.DropEmpty(batchRecords)
		records = append(records, batchRecords...)
	}

	if scanCtx.Err() != nil {
		partial = true
	}

	if offset >= len(records) {
		records = nil
	} else {
		records = records[offset:]
	}
	if len(records) > limit {
		records = records[:limit]
	}

	return &core.Result{Records: records, Partial: partial}
}

type rawHit struct {
	source string
	line   string
}

// scanBatch streams one batch of objects concurrently. Per-object errors are
// logged and skipped so sibling streams keep going.
func (s *Searcher) scanBatch(ctx context.Context, keys, needles []string, budget int) []rawHit {
	var mu sync.Mutex
	var hits []rawHit

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			fileHits, err := s.scanObject(gctx, key, needles, budget)
			if err != nil {
				if gctx.Err() == nil {
					logger.Warnf("scanning %s failed: %v", key, err)
				}
				return nil
			}
			mu.Lock()
			hits = append(hits, fileHits...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return hits
}

// sourceLabel derives the source name shown on records from an object key.
func sourceLabel(key string) string {
	name := path.Base(key)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, path.Ext(name))
}
