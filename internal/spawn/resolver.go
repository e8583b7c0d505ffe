// Package spawn picks safe spawn points for players and keeps each player's
// last safe point stable across respawns.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"safespawn.ai/internal/spawn/config"
	"safespawn.ai/internal/spawn/model"
	"safespawn.ai/internal/spawn/record"
	"safespawn.ai/internal/spawn/search"
)

type Deps struct {
	World    World
	Players  Players
	Store    record.Store
	Hazards  search.Hazards
	Rules    *config.Rules
	Rand     search.Sampler
	Notifier Notifier // optional
	Grace    Grace    // optional
	Audit    Auditor  // optional
	Logger   *log.Logger
	Debug    bool
}

// Resolver runs the spawn tiers for join, death and respawn events. It holds
// no per-player state; callers serialize events for one player.
type Resolver struct {
	world    World
	players  Players
	store    record.Store
	hazards  search.Hazards
	rules    *config.Rules
	rng      search.Sampler
	notifier Notifier
	grace    Grace
	audit    Auditor
	log      *log.Logger
	debug    bool
}

func New(d Deps) *Resolver {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[spawn] ", log.LstdFlags)
	}
	return &Resolver{
		world:    d.World,
		players:  d.Players,
		store:    d.Store,
		hazards:  d.Hazards,
		rules:    d.Rules,
		rng:      d.Rand,
		notifier: d.Notifier,
		grace:    d.Grace,
		audit:    d.Audit,
		log:      logger,
		debug:    d.Debug,
	}
}

func (r *Resolver) debugf(format string, args ...any) {
	if r.debug {
		r.log.Printf("debug: "+format, args...)
	}
}

// OnJoin assigns a first spawn to new players and makes sure returning
// players have a stored baseline.
func (r *Resolver) OnJoin(ctx context.Context, ev JoinEvent) (Outcome, error) {
	out := Outcome{Event: EventJoin, Player: ev.Player, Location: ev.Location}
	world := ev.Location.World

	if r.players.HasBypass(ev.Player) {
		return r.suppress(out, "bypass"), nil
	}
	if r.rules.SkipJoinDimension(r.world.Dimension(world)) {
		return r.suppress(out, "dimension"), nil
	}
	if r.rules.Blacklisted(world) {
		return r.suppress(out, "blacklisted world"), nil
	}

	if r.players.IsFirstSession(ev.Player) {
		if !r.rules.OnFirstJoin(world) {
			return r.suppress(out, "on_first_join disabled"), nil
		}
		loc, err := r.random(world)
		if err != nil {
			return r.unresolved(out, err), err
		}
		return r.finish(ctx, out, TierFirstAssignment, 0, loc), nil
	}

	if _, ok := r.load(ctx, ev.Player); ok {
		return r.suppress(out, "record present"), nil
	}

	// Returning player from before records existed: keep where they are and
	// remember it so the next respawn has something to search from.
	out.Tier = TierSilent
	out.Reason = "baseline"
	out.Persisted = r.persist(ctx, ev.Player, ev.Location)
	r.debugf("synthesized baseline for %s at %s", ev.Player, ev.Location)
	r.record(out)
	return out, nil
}

// OnDeath sends the death-location notice and returns the context the
// following respawn needs.
func (r *Resolver) OnDeath(ctx context.Context, ev DeathEvent) DeathContext {
	r.debugf("player %s died at %s", ev.Player, ev.Location)
	if r.notifier != nil && r.players.HasNotify(ev.Player) {
		n := Notice{Player: ev.Player, Tier: TierDeath, Location: ev.Location}
		if err := r.notifier.Notify(ctx, n); err != nil {
			r.log.Printf("warn: death notice for %s: %v", ev.Player, err)
		}
	}
	return DeathContext{Player: ev.Player, World: ev.Location.World, Location: ev.Location}
}

// OnRespawn returns where the player should respawn. A Suppressed outcome
// means the host's own respawn location stands.
func (r *Resolver) OnRespawn(ctx context.Context, ev RespawnEvent) (Outcome, error) {
	out := Outcome{Event: EventRespawn, Player: ev.Player, Location: ev.Default}
	world := ev.Default.World

	if r.players.HasBypass(ev.Player) {
		return r.suppress(out, "bypass"), nil
	}
	if r.rules.Blacklisted(world) {
		return r.suppress(out, "blacklisted world"), nil
	}
	if ev.BedOrAnchor && r.rules.BedRespawnEnabled(world) {
		return r.suppress(out, "bed or anchor"), nil
	}

	if rec, ok := r.load(ctx, ev.Player); ok {
		return r.fromRecord(ctx, out, rec)
	}

	if ev.DeathWorld != "" {
		if target, ok := r.rules.RespawnWorld(ev.DeathWorld); ok {
			world = target
		}
	}
	if r.rules.Blacklisted(world) {
		return r.suppress(out, "blacklisted world"), nil
	}
	if !r.rules.OnDeath(world) {
		return r.suppress(out, "on_death disabled"), nil
	}
	loc, err := r.random(world)
	if err != nil {
		return r.unresolved(out, err), err
	}
	return r.finish(ctx, out, TierRelocatedRandom, 0, loc), nil
}

func (r *Resolver) fromRecord(ctx context.Context, out Outcome, rec model.Coordinate) (Outcome, error) {
	if loc, ok := search.Vertical(r.world, r.hazards, rec); ok {
		r.debugf("vertical search ok for %s at %s", out.Player, loc)
		return r.finish(ctx, out, TierSilent, 0, loc), nil
	}
	for _, radius := range r.rules.Radii() {
		if loc, ok := search.Nearby(r.world, r.hazards, r.rng, rec, radius); ok {
			r.debugf("nearby search ok for %s at radius %d", out.Player, radius)
			return r.finish(ctx, out, TierRelocatedNearby, radius, loc), nil
		}
	}
	loc, err := r.random(rec.World)
	if err != nil {
		return r.unresolved(out, err), err
	}
	return r.finish(ctx, out, TierRelocatedRandom, 0, loc), nil
}

// load returns the player's record if it exists and points at a usable world.
func (r *Resolver) load(ctx context.Context, player uuid.UUID) (model.Coordinate, bool) {
	rec, ok, err := r.store.Get(ctx, player)
	switch {
	case errors.Is(err, record.ErrMalformed):
		r.debugf("ignoring record for %s: %v", player, err)
		return model.Coordinate{}, false
	case err != nil:
		r.log.Printf("warn: read record for %s: %v", player, err)
		return model.Coordinate{}, false
	case !ok:
		return model.Coordinate{}, false
	}
	if !r.world.KnownWorld(rec.World) || r.rules.Blacklisted(rec.World) {
		r.debugf("record for %s points at unusable world %q", player, rec.World)
		return model.Coordinate{}, false
	}
	return rec, true
}

func (r *Resolver) persist(ctx context.Context, player uuid.UUID, c model.Coordinate) bool {
	if err := r.store.Put(ctx, player, c); err != nil {
		r.log.Printf("warn: save record for %s: %v", player, err)
		return false
	}
	r.debugf("saved record for %s at %s", player, c)
	return true
}

func (r *Resolver) random(world string) (model.Coordinate, error) {
	loc, err := r.world.RandomSpawnLocation(world)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: world %s: %w", ErrNoRandomCandidate, world, err)
	}
	return loc, nil
}

// finish applies a moving outcome: persistence for the relocating tiers,
// grace, notification and audit.
func (r *Resolver) finish(ctx context.Context, out Outcome, tier Tier, radius int, loc model.Coordinate) Outcome {
	out.Tier = tier
	out.Radius = radius
	out.Location = loc
	out.Teleport = true
	if tier != TierSilent {
		out.Persisted = r.persist(ctx, out.Player, loc)
	}
	if r.grace != nil {
		r.grace.Grant(out.Player, loc.World)
	}
	if tier != TierSilent && r.notifier != nil {
		n := Notice{Player: out.Player, Tier: tier, Radius: radius, Location: loc}
		if err := r.notifier.Notify(ctx, n); err != nil {
			r.log.Printf("warn: notify %s: %v", out.Player, err)
		}
	}
	r.record(out)
	return out
}

func (r *Resolver) suppress(out Outcome, reason string) Outcome {
	out.Tier = TierSuppressed
	out.Reason = reason
	r.debugf("%s for %s suppressed: %s", out.Event, out.Player, reason)
	r.record(out)
	return out
}

func (r *Resolver) unresolved(out Outcome, err error) Outcome {
	out.Tier = TierSuppressed
	out.Reason = err.Error()
	r.log.Printf("warn: %s for %s left unresolved: %v", out.Event, out.Player, err)
	r.record(out)
	return out
}

func (r *Resolver) record(out Outcome) {
	if r.audit == nil {
		return
	}
	if err := r.audit.WriteOutcome(out); err != nil {
		r.log.Printf("warn: audit: %v", err)
	}
}
