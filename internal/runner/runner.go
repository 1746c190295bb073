// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package runner drives one platform invocation end to end: validation,
// client construction, execution, publishing and bookkeeping.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"ccos/internal/apierr"
	"ccos/internal/history"
	"ccos/internal/jobs"
	"ccos/internal/memory"
	"ccos/internal/params"
	"ccos/internal/platform"
	"ccos/internal/publish"
	"ccos/internal/ssh"
	"ccos/internal/tracing"
)

// Invocation names one action call.
type Invocation struct {
	Platform string        `yaml:"platform" json:"platform"`
	Action   string        `yaml:"action" json:"action"`
	Params   params.Params `yaml:"params" json:"params,omitempty"`
	// Publish is the name of a publish target for produced artifacts.
	Publish    string `yaml:"publish" json:"publish,omitempty"`
	SkipMemory bool   `yaml:"skip_memory" json:"skip_memory,omitempty"`
}

func (inv Invocation) String() string {
	return inv.Platform + " " + inv.Action
}

// Outcome is the result of one invocation in a batch.
type Outcome struct {
	Invocation Invocation
	ID         string
	Result     *platform.Result
	Err        error
	Duration   time.Duration
}

// Resolver finds the publisher for a target name.
type Resolver func(ctx context.Context, name string) (publish.Publisher, error)

// Runner holds the long-lived collaborators of an invocation. Memory and
// History are optional.
type Runner struct {
	Registry   *platform.Registry
	Env        *platform.Env
	Memory     *memory.Store
	History    *history.Store
	Publishers Resolver
	NewID      func() string

	sshManager *ssh.Manager
}

// New builds a runner whose publishers come from the env's config.
func New(reg *platform.Registry, env *platform.Env) *Runner {
	r := &Runner{
		Registry:   reg,
		Env:        env,
		NewID:      func() string { return uuid.NewString() },
		sshManager: ssh.NewManager(),
	}
	r.Publishers = func(ctx context.Context, name string) (publish.Publisher, error) {
		return publish.FromConfig(ctx, r.Env.Config, name, r.sshManager)
	}
	return r
}

// Close releases pooled SSH connections and the history database.
func (r *Runner) Close() error {
	if r.sshManager != nil {
		r.sshManager.CloseAll()
	}
	if r.History != nil {
		return r.History.Close()
	}
	return nil
}

// Run executes inv and records it.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*platform.Result, error) {
	_, res, err := r.run(ctx, inv, nil)
	return res, err
}

// Stream runs inv in the background, forwarding job progress on the first
// channel. Both channels are closed when the run finishes; the outcome
// channel receives exactly one value.
func (r *Runner) Stream(ctx context.Context, inv Invocation) (<-chan jobs.Event, <-chan Outcome) {
	events := make(chan jobs.Event, 16)
	done := make(chan Outcome, 1)

	go func() {
		defer close(done)
		defer close(events)

		start := time.Now()
		observer := func(ev jobs.Event) {
			select {
			case events <- ev:
			default:
				// A slow reader only misses intermediate progress.
			}
		}
		id, res, err := r.run(ctx, inv, observer)
		done <- Outcome{Invocation: inv, ID: id, Result: res, Err: err, Duration: time.Since(start)}
	}()

	return events, done
}

// RunBatch executes every invocation with at most parallel in flight.
// Failures do not stop the batch; outcomes keep the input order.
func (r *Runner) RunBatch(ctx context.Context, invs []Invocation, parallel int) []Outcome {
	if parallel < 1 {
		parallel = 1
	}
	outcomes := make([]Outcome, len(invs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, inv := range invs {
		eg.Go(func() error {
			start := time.Now()
			id, res, err := r.run(egCtx, inv, nil)
			outcomes[i] = Outcome{Invocation: inv, ID: id, Result: res, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func (r *Runner) run(ctx context.Context, inv Invocation, observer func(jobs.Event)) (string, *platform.Result, error) {
	if inv.Params == nil {
		inv.Params = params.Params{}
	}

	def, info, err := r.Registry.Prepare(inv.Platform, inv.Action, inv.Params, r.Env.Creds)
	if err != nil {
		// Unknown names are not recorded: they would become memory paths.
		if info == nil {
			return "", nil, err
		}
		id := r.NewID()
		r.Env.Logger.Warn("Invocation rejected", "platform", inv.Platform, "action", inv.Action, "run", id, "code", apierr.Code(err))
		r.record(ctx, id, inv, r.Env.Now(), 0, nil, err)
		return id, nil, err
	}

	id := r.NewID()
	started := r.Env.Now()
	log := r.Env.Logger.With("platform", inv.Platform, "action", inv.Action, "run", id)

	ctx, span := tracing.Start(ctx, "run "+inv.Platform+"."+inv.Action)
	span.SetAttributes(
		attribute.String(tracing.AttrPlatform, inv.Platform),
		attribute.String(tracing.AttrAction, inv.Action),
	)

	res, err := r.execute(ctx, def, inv, observer)
	if err == nil && inv.Publish != "" {
		err = r.publish(ctx, inv.Publish, res)
	}
	tracing.End(span, err)

	duration := r.Env.Now().Sub(started)
	if err != nil {
		log.Warn("Invocation failed", "code", apierr.Code(err), "error", err)
	} else {
		log.Info("Invocation succeeded", "duration", duration.String())
	}
	r.record(ctx, id, inv, started, duration, res, err)
	return id, res, err
}

func (r *Runner) execute(ctx context.Context, def *platform.Definition, inv Invocation, observer func(jobs.Event)) (*platform.Result, error) {
	env := *r.Env
	if observer != nil {
		env.Jobs.Observer = observer
	}
	client, err := def.Open(&env)
	if err != nil {
		return nil, err
	}
	res, err := client.Execute(ctx, inv.Action, inv.Params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = platform.NewResult(inv.Platform, inv.Action, nil)
	}
	return res, nil
}

func (r *Runner) publish(ctx context.Context, target string, res *platform.Result) error {
	if len(res.Artifacts) == 0 {
		return nil
	}
	pub, err := r.Publishers(ctx, target)
	if err != nil {
		return err
	}
	for i := range res.Artifacts {
		loc, err := pub.Publish(ctx, res.Artifacts[i].Path)
		if err != nil {
			return err
		}
		res.Artifacts[i].Published = append(res.Artifacts[i].Published, loc)
	}
	return nil
}

// record writes the memory record and history row. Bookkeeping failures are
// logged, never returned: the action itself already happened.
func (r *Runner) record(ctx context.Context, id string, inv Invocation, started time.Time, duration time.Duration, res *platform.Result, runErr error) {
	status := memory.StatusSucceeded
	if runErr != nil {
		status = memory.StatusFailed
	}

	var artifactPaths []string
	if res != nil {
		for _, a := range res.Artifacts {
			artifactPaths = append(artifactPaths, a.Path)
		}
	}

	if r.Memory != nil && !inv.SkipMemory {
		rec := memory.Record{
			ID:         id,
			Platform:   inv.Platform,
			Action:     inv.Action,
			Params:     params.Redacted(inv.Params),
			StartedAt:  started,
			DurationMS: duration.Milliseconds(),
			Status:     status,
			ErrorCode:  apierr.Code(runErr),
		}
		if runErr != nil {
			rec.Error = runErr.Error()
		}
		if res != nil {
			rec.Data = res.Data
			rec.Text = res.Text
			rec.Artifacts = res.Artifacts
		}
		if _, err := r.Memory.Write(rec); err != nil {
			r.Env.Logger.Warn("Could not write memory record", "run", id, "error", err)
		}
	}

	if r.History != nil {
		run := history.Run{
			ID:         id,
			Platform:   inv.Platform,
			Action:     inv.Action,
			Status:     status,
			ErrorCode:  apierr.Code(runErr),
			StartedAt:  started,
			DurationMS: duration.Milliseconds(),
			Artifacts:  artifactPaths,
		}
		if err := r.History.Record(context.WithoutCancel(ctx), run); err != nil {
			r.Env.Logger.Warn("Could not record run history", "run", id, "error", err)
		}
	}
}

// Summary renders a one-line description of an outcome for batch output.
func (o Outcome) Summary() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: failed (%s): %v", o.Invocation, apierr.Code(o.Err), o.Err)
	}
	n := 0
	if o.Result != nil {
		n = len(o.Result.Artifacts)
	}
	return fmt.Sprintf("%s: ok in %s, %d artifact(s)", o.Invocation, o.Duration.Round(time.Millisecond), n)
}
