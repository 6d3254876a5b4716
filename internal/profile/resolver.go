package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// Step names the cascade step that produced a result.
type Step string

const (
	StepUserSignature   Step = "user_signature"
	StepSystemSignature Step = "system_signature"
	StepUserMapped      Step = "user_mapped"
	StepSystemMapped    Step = "system_mapped"
	StepUnmapped        Step = "unmapped"
)

// Recorder observes resolution outcomes.
type Recorder interface {
	RecordResolution(step string)
}

// Result is the outcome of one resolution.
type Result struct {
	Profile    *domain.Profile
	Step       Step
	Signature  domain.ClientSignature
	MappedName string // empty unless the mapper was consulted and answered
}

// Unmapped reports whether no profile could be determined for the client.
func (r Result) Unmapped() bool {
	return r.Profile == nil
}

// errSkip marks a step that does not apply to this query.
var errSkip = errors.New("step skipped")

type lookup struct {
	step Step
	find func(ctx context.Context, q *query) (*domain.Profile, error)
}

// cascade is evaluated in order; the first lookup that returns a profile wins.
var cascade = []lookup{
	{StepUserSignature, func(ctx context.Context, q *query) (*domain.Profile, error) {
		return q.store.GetUserProfile(ctx, q.identity, q.signature)
	}},
	{StepSystemSignature, func(ctx context.Context, q *query) (*domain.Profile, error) {
		return q.store.GetSystemProfile(ctx, q.signature)
	}},
	{StepUserMapped, func(ctx context.Context, q *query) (*domain.Profile, error) {
		name := q.mappedName(ctx)
		if name == "" {
			return nil, errSkip
		}
		return q.store.GetUserProfileByName(ctx, q.identity, name)
	}},
	{StepSystemMapped, func(ctx context.Context, q *query) (*domain.Profile, error) {
		name := q.mappedName(ctx)
		if name == "" {
			return nil, errSkip
		}
		return q.store.GetSystemProfileByName(ctx, name)
	}},
}

// query carries the inputs of one resolution. The mapper is consulted at most once.
type query struct {
	store     domain.ProfileStore
	mapper    domain.ProfileMapper
	identity  domain.Identity
	req       domain.RequestContext
	signature domain.ClientSignature

	mapped     bool
	mappedFrom string
}

func (q *query) mappedName(ctx context.Context) string {
	if !q.mapped {
		q.mapped = true
		if q.mapper != nil {
			q.mappedFrom = q.mapper.MapProfileName(ctx, q.identity, q.req)
		}
	}
	return q.mappedFrom
}

// Resolver runs the profile cascade. It holds no mutable state and is safe for
// concurrent use.
type Resolver struct {
	store    domain.ProfileStore
	mapper   domain.ProfileMapper
	recorder Recorder
}

type Option func(*Resolver)

// WithRecorder reports every resolution outcome to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

func NewResolver(store domain.ProfileStore, mapper domain.ProfileMapper, opts ...Option) *Resolver {
	r := &Resolver{store: store, mapper: mapper}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the profile for identity and the request's client signature.
// The raw user agent is normalized before any lookup. An unmapped client yields a
// Result without Profile and a nil error; only store failures other than a miss
// are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, identity domain.Identity, req domain.RequestContext) (Result, error) {
	q := &query{
		store:     r.store,
		mapper:    r.mapper,
		identity:  identity,
		req:       req,
		signature: domain.NormalizeClientSignature(req.UserAgent),
	}

	for _, l := range cascade {
		p, err := l.find(ctx, q)
		switch {
		case errors.Is(err, errSkip), errors.Is(err, domain.ErrProfileNotFound):
			continue
		case err != nil:
			return Result{}, fmt.Errorf("profile lookup %s failed: %w", l.step, err)
		case p == nil:
			continue
		}

		r.record(l.step)
		slog.DebugContext(ctx, "Profile resolved", "user_id", identity.UserID, "profile", p.Name, "system", p.System, "step", string(l.step))
		return Result{Profile: p, Step: l.step, Signature: q.signature, MappedName: q.mappedFrom}, nil
	}

	r.record(StepUnmapped)
	slog.DebugContext(ctx, "Unable to find a profile", "user_id", identity.UserID, "user_agent", string(q.signature), "mapped_name", q.mappedFrom)
	return Result{Step: StepUnmapped, Signature: q.signature, MappedName: q.mappedFrom}, nil
}

func (r *Resolver) record(step Step) {
	if r.recorder != nil {
		r.recorder.RecordResolution(string(step))
	}
}
