// Package search federates queries across the local store registry, the
// remote bridge and object storage. It exposes one synchronous Search call
// whose fan-out runs under a single global deadline; participants that fail
// or time out contribute nothing instead of failing the call.
package search

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dindinbro/discreen/pkg/bridge"
	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/log"
	"github.com/dindinbro/discreen/pkg/objstore"
	"github.com/dindinbro/discreen/pkg/relevance"
	"github.com/dindinbro/discreen/pkg/storage"
)

var logger = log.ForService("search")

// ErrTimeout reports that the global deadline expired before every
// participant finished. The accumulated partial result accompanies it.
var ErrTimeout = errors.New("search deadline exceeded")

// ErrBadCriteria reports a malformed criteria list, the only input condition
// treated as a hard error.
var ErrBadCriteria = errors.New("malformed search criteria")

const (
	// Limit bounds per request.
	MinLimit = 1
	MaxLimit = 50

	defaultDeadline = 90 * time.Second
)

// localSearcher is the slice of the registry the orchestrator uses.
type localSearcher interface {
	SearchAll(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result
	Count() int
}

// bridgeClient is the slice of the bridge client the orchestrator uses.
type bridgeClient interface {
	Health(ctx context.Context) (*bridge.HealthInfo, error)
	Search(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result
}

// objectSearcher is the slice of the object-storage searcher the
// orchestrator uses.
type objectSearcher interface {
	Search(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result
}

// Orchestrator coordinates all configured participants.
type Orchestrator struct {
	local    localSearcher
	bridge   bridgeClient
	objects  objectSearcher
	deadline time.Duration

	bridgeHealthy bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocal attaches the local store registry.
func WithLocal(registry *storage.Registry) Option {
	return func(o *Orchestrator) { o.local = registry }
}

// WithBridge attaches a bridge client. Its health is probed once at
// construction; an unhealthy bridge sits out the whole session.
func WithBridge(client *bridge.Client) Option {
	return func(o *Orchestrator) { o.bridge = client }
}

// WithObjectStore attaches the object-storage fallback.
func WithObjectStore(searcher *objstore.Searcher) Option {
	return func(o *Orchestrator) { o.objects = searcher }
}

// WithDeadline overrides the default 90s global deadline.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// NewOrchestrator builds an orchestrator and probes the bridge once.
func NewOrchestrator(ctx context.Context, opts ...Option) *Orchestrator {
	o := &Orchestrator{deadline: defaultDeadline}
	for _, opt := range opts {
		opt(o)
	}

	if o.bridge != nil {
		info, err := o.bridge.Health(ctx)
		if err != nil {
			logger.Warnf("bridge unavailable, excluded from searches: %v", err)
		} else {
			o.bridgeHealthy = true
			logger.Infof("bridge healthy: %d databases", info.Databases)
		}
	}
	return o
}

// BridgeHealthy reports whether the bridge passed its startup probe.
func (o *Orchestrator) BridgeHealthy() bool { return o.bridgeHealthy }

// ClampLimit forces a requested limit into the supported range.
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search runs one federated query. The returned error is ErrTimeout when the
// global deadline fired; the result then carries whatever accumulated. A nil
// criteria element or an invalid type yields ErrBadCriteria.
func (o *Orchestrator) Search(ctx context.Context, criteria []core.Criterion, limit, offset int) (*core.Result, error) {
	for _, c := range criteria {
		if !c.Type.Valid() {
			return nil, ErrBadCriteria
		}
	}

	criteria = core.FilterFilled(criteria)
	if len(criteria) == 0 {
		return core.EmptyResult(), nil
	}
	limit = ClampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	queryID := uuid.NewString()
	start := time.Now()
	logger.Debugf("query %s: %d criteria limit=%d offset=%d", queryID, len(criteria), limit, offset)

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	result := o.fanout(ctx, criteria, limit, offset)

	result.Records = relevance.FilterByCriteria(result.Records, criteria)
	result.Records = relevance.DropEmpty(result.Records)
	relevance.SortByRelevance(result.Records, criteria)

	if ctx.Err() != nil {
		result.Partial = true
		logger.Warnf("query %s timed out after %s with %d records", queryID, time.Since(start), len(result.Records))
		return result, ErrTimeout
	}

	logger.Debugf("query %s: %d records in %s", queryID, len(result.Records), time.Since(start))
	return result, nil
}

// fanout picks participants and merges their results per the interleaving
// contract.
func (o *Orchestrator) fanout(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result {
	hasLocal := o.local != nil && o.local.Count() > 0
	hasBridge := o.bridge != nil && o.bridgeHealthy

	switch {
	case hasLocal && hasBridge:
		return o.searchBoth(ctx, criteria, limit, offset)
	case hasLocal:
		res := o.local.SearchAll(ctx, criteria, limit, offset)
		truncate(res, limit)
		return res
	case hasBridge:
		res := o.bridge.Search(ctx, criteria, limit, offset)
		truncate(res, limit)
		return res
	case o.objects != nil:
		return o.objects.Search(ctx, criteria, limit, offset)
	default:
		return core.EmptyResult()
	}
}

// searchBoth queries local stores and the bridge concurrently, asking each
// side for twice the limit, then interleaves: the first ceil(limit/2) slots
// go to local records, the next to bridge records, and overflow comes from
// whichever side still has more.
func (o *Orchestrator) searchBoth(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result {
	sideLimit := limit * 2

	localCh := make(chan *core.Result, 1)
	bridgeCh := make(chan *core.Result, 1)

	go func() {
		localCh <- o.local.SearchAll(ctx, criteria, sideLimit, offset)
	}()
	go func() {
		bridgeCh <- o.bridge.Search(ctx, criteria, sideLimit, offset)
	}()

	localRes := <-localCh
	bridgeRes := <-bridgeCh

	merged := interleave(localRes.Records, bridgeRes.Records, limit)

	result := &core.Result{
		Records: merged,
		Partial: localRes.Partial || bridgeRes.Partial,
	}
	if localRes.Total != nil && bridgeRes.Total != nil {
		result.Total = core.KnownTotal(*localRes.Total + *bridgeRes.Total)
	}
	return result
}

// interleave merges two ordered record lists: ceil(limit/2) local records
// first, then bridge records, then overflow from either side, stopping at
// limit.
func interleave(local, remote []*core.Record, limit int) []*core.Record {
	half := int(math.Ceil(float64(limit) / 2))

	out := make([]*core.Record, 0, limit)
	li, ri := 0, 0

	for li < len(local) && li < half && len(out) < limit {
		out = append(out, local[li])
		li++
	}
	for ri < len(remote) && ri < half && len(out) < limit {
		out = append(out, remote[ri])
		ri++
	}
	for li < len(local) && len(out) < limit {
		out = append(out, local[li])
		li++
	}
	for ri < len(remote) && len(out) < limit {
		out = append(out, remote[ri])
		ri++
	}
	return out
}

func truncate(res *core.Result, limit int) {
	if len(res.Records) > limit {
		res.Records = res.Records[:limit]
	}
}
