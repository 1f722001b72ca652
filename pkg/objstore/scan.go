package objstore

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// maxLineBytes bounds one scanned line. Dump files occasionally contain
// multi-megabyte junk lines; anything beyond this is noise.
const maxLineBytes = 1 << 20

// scanObject opens one object and scans it for matching lines, transparently
// decompressing .gz keys.
func (s *Searcher) scanObject(ctx context.Context, key string, needles []string, budget int) ([]rawHit, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()

	var reader io.Reader = out.Body
	if strings.HasSuffix(strings.ToLower(key), ".gz") {
		gz, err := gzip.NewReader(out.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	return scanReader(ctx, reader, sourceLabel(key), needles, budget)
}

// scanReader collects up to budget lines containing any needle. The match is
// a lower-cased substring check: a cheap pre-filter, with real AND semantics
// applied downstream. The context is checked between lines so a fired scan
// timer aborts mid-file.
func scanReader(ctx context.Context, r io.Reader, source string, needles []string, budget int) ([]rawHit, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var hits []rawHit
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return hits, err
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				hits = append(hits, rawHit{source: source, line: line})
				break
			}
		}
		if len(hits) >= budget {
			return hits, nil
		}
	}
	return hits, scanner.Err()
}
