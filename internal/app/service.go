// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rehearsal/internal/adapters/cache"
	eventqueue "github.com/okian/rehearsal/internal/adapters/mq/queue"
	workerpool "github.com/okian/rehearsal/internal/adapters/mq/worker"
	"github.com/okian/rehearsal/internal/adapters/notify"
	"github.com/okian/rehearsal/internal/adapters/repository"
	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/internal/domain/dedupe"
	"github.com/okian/rehearsal/internal/domain/model"
	"github.com/okian/rehearsal/internal/domain/ranking"
	"github.com/okian/rehearsal/internal/domain/types"
	"github.com/okian/rehearsal/pkg/logger"
	"github.com/okian/rehearsal/pkg/metrics"
)

// Refresh reasons.
const (
	ReasonAvailabilityChanged = "availability_changed"
	ReasonMemberJoined        = "member_joined"
	ReasonManual              = "manual"
)

// Service implements the API dependencies for the rehearsal planner.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	cache     cache.Cache
	publisher notify.Publisher
	planner   *ranking.Planner
	deduper   dedupe.Deduper
	queue     eventqueue.Queue
	pool      *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	strict      bool
	now         func() time.Time

	// State
	started bool
	tracked sync.Map // group id -> struct{}, groups ranked since start

	// cacheMu orders cache writes against invalidations. A result is cached
	// only if its group's generation did not move while it was computed.
	cacheMu     sync.Mutex
	generations sync.Map // group id -> *atomic.Uint64

	logger logger.Logger
}

// New constructs a new Service with default configuration: an in-memory
// store, no cache and no notifications.
func New(opts ...Option) *Service {
	s := &Service{
		store:       repository.NewMemoryStore(),
		cache:       cache.NopCache{},
		publisher:   notify.NopPublisher{},
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.planner = ranking.NewPlanner(ranking.WithStrictIntervals(s.strict))
	return s
}

// Start creates the refresh queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting rehearsal planner service...")

	// A pending key can sit in the buffer, in a dequeue hand-off or with a
	// worker that has not released it yet.
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.queueSize + 2*s.workerCount))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithReleaser(s.deduper))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rehearsal planner service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("strictIntervals", s.strict),
	)

	return nil
}

// Stop drains the worker pool and releases adapters.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rehearsal planner service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "publisher close", logger.Error(err))
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "store close", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "rehearsal planner service stopped")
}

// OptimalTimes returns a group's ranked weekly windows. The requester must be
// a member of the group.
func (s *Service) OptimalTimes(ctx context.Context, requesterID, groupID string) (types.OptimalTimes, error) {
	requesterID, groupID = repository.CanonicalID(requesterID), repository.CanonicalID(groupID)
	gen := s.generation(groupID)
	members, err := s.store.Members(ctx, groupID)
	if err != nil {
		return types.OptimalTimes{}, err
	}
	if !slices.Contains(members, requesterID) {
		metrics.RecordErrorByComponent("service", "forbidden")
		return types.OptimalTimes{}, fmt.Errorf("%w: %s is not a member of %s", ErrForbidden, requesterID, groupID)
	}

	cached, err := s.cache.Get(ctx, groupID)
	switch {
	case err == nil:
		metrics.RecordComputation(metrics.SourceCache)
		return cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.log().Warn(ctx, "cache read failed, computing", logger.String("groupID", groupID), logger.Error(err))
	}

	out, _, err := s.compute(ctx, groupID, members)
	if err != nil {
		return types.OptimalTimes{}, err
	}
	s.cacheResult(ctx, groupID, gen, out)
	return out, nil
}

// Refresh recomputes a group's ranking, caches it and announces it. Workers
// call it for every queued job.
func (s *Service) Refresh(ctx context.Context, groupID string) error {
	groupID = repository.CanonicalID(groupID)
	gen := s.generation(groupID)
	members, err := s.store.Members(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Nobody left to rank; drop any stale answer.
			if err := s.cache.Delete(ctx, groupID); err != nil {
				s.log().Warn(ctx, "cache invalidation failed", logger.String("groupID", groupID), logger.Error(err))
			}
			return nil
		}
		return err
	}

	out, days, err := s.compute(ctx, groupID, members)
	if err != nil {
		return err
	}
	s.cacheResult(ctx, groupID, gen, out)

	update := model.RankingUpdated{
		GroupID:      groupID,
		TotalMembers: out.TotalMembers,
		ComputedAt:   s.now(),
		Best:         bestSlots(days),
	}
	if err := s.publisher.Publish(ctx, update); err != nil {
		return fmt.Errorf("publish ranking for %s: %w", groupID, err)
	}
	return nil
}

// SetAvailability replaces a user's recurring weekly availability. Users may
// only edit their own week.
func (s *Service) SetAvailability(ctx context.Context, requesterID, userID string, records []availability.Record) error {
	requesterID, userID = repository.CanonicalID(requesterID), repository.CanonicalID(userID)
	if requesterID != userID {
		metrics.RecordErrorByComponent("service", "forbidden")
		return fmt.Errorf("%w: %s cannot edit availability of %s", ErrForbidden, requesterID, userID)
	}

	owned := make([]availability.Record, len(records))
	for i, r := range records {
		r.UserID = userID
		owned[i] = r
	}
	if err := availability.ValidateAll(owned, s.strict); err != nil {
		metrics.RecordInvalidInterval()
		return err
	}

	if err := s.store.ReplaceAvailability(ctx, userID, owned); err != nil {
		return err
	}
	metrics.RecordAvailabilityWrite()

	groups, err := s.store.GroupsOf(ctx, userID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, groups, ReasonAvailabilityChanged)
	return nil
}

// JoinGroup adds userID to groupID. A user may add themselves; adding
// someone else requires the requester to be a member already.
func (s *Service) JoinGroup(ctx context.Context, requesterID, groupID, userID string) error {
	requesterID, userID = repository.CanonicalID(requesterID), repository.CanonicalID(userID)
	groupID = repository.CanonicalID(groupID)
	if requesterID != userID {
		ok, err := s.store.IsMember(ctx, groupID, requesterID)
		if err != nil {
			return err
		}
		if !ok {
			metrics.RecordErrorByComponent("service", "forbidden")
			return fmt.Errorf("%w: %s is not a member of %s", ErrForbidden, requesterID, groupID)
		}
	}

	if err := s.store.AddMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, []string{groupID}, ReasonMemberJoined)
	return nil
}

// RequestRefresh queues a recompute of a group on behalf of one of its members.
func (s *Service) RequestRefresh(ctx context.Context, requesterID, groupID string) error {
	requesterID, groupID = repository.CanonicalID(requesterID), repository.CanonicalID(groupID)
	ok, err := s.store.IsMember(ctx, groupID, requesterID)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.store.Members(ctx, groupID); err != nil {
			return err
		}
		metrics.RecordErrorByComponent("service", "forbidden")
		return fmt.Errorf("%w: %s is not a member of %s", ErrForbidden, requesterID, groupID)
	}
	return s.enqueue(ctx, groupID, ReasonManual)
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"strictIntervals": s.strict,
		"groupsTracked":   s.trackedCount(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["pendingRefreshes"] = s.deduper.Size()
	}

	return stats
}

// compute runs the planner over a group's current availability.
func (s *Service) compute(ctx context.Context, groupID string, members []string) (types.OptimalTimes, []ranking.DayResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordComputeLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	records, err := s.store.Availability(ctx, members)
	if err != nil {
		return types.OptimalTimes{}, nil, err
	}

	days, err := s.planner.Plan(records, members)
	if err != nil {
		metrics.RecordInvalidInterval()
		return types.OptimalTimes{}, nil, fmt.Errorf("rank group %s: %w", groupID, err)
	}

	slots := 0
	for _, d := range days {
		slots += len(d.Slots)
	}
	metrics.RecordSlotsEmitted(slots)
	metrics.RecordComputation(metrics.SourceCompute)

	s.tracked.Store(groupID, struct{}{})
	metrics.UpdateGroupsTracked(s.trackedCount())

	return types.OptimalTimes{
		GroupID:      groupID,
		TotalMembers: distinct(members),
		Days:         types.FromRanking(days),
	}, days, nil
}

// generation returns the group's invalidation counter.
func (s *Service) generation(groupID string) uint64 {
	return s.counter(groupID).Load()
}

func (s *Service) counter(groupID string) *atomic.Uint64 {
	if c, ok := s.generations.Load(groupID); ok {
		return c.(*atomic.Uint64)
	}
	c, _ := s.generations.LoadOrStore(groupID, new(atomic.Uint64))
	return c.(*atomic.Uint64)
}

// cacheResult writes an answer computed at generation gen. An answer that
// raced with an invalidation is dropped; failures only cost a recompute.
func (s *Service) cacheResult(ctx context.Context, groupID string, gen uint64, out types.OptimalTimes) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.generation(groupID) != gen {
		metrics.RecordErrorByComponent("service", "stale_result")
		return
	}
	if err := s.cache.Set(ctx, groupID, out); err != nil {
		s.log().Warn(ctx, "cache write failed", logger.String("groupID", groupID), logger.Error(err))
	}
}

// invalidate drops cached answers for groups and queues their recompute.
// The write that triggered it has already succeeded, so queue pressure is
// logged rather than returned; readers recompute on the next miss.
func (s *Service) invalidate(ctx context.Context, groups []string, reason string) {
	if len(groups) == 0 {
		return
	}

	s.cacheMu.Lock()
	for _, g := range groups {
		s.counter(g).Add(1)
	}
	if err := s.cache.Delete(ctx, groups...); err != nil {
		s.log().Warn(ctx, "cache invalidation failed", logger.Any("groups", groups), logger.Error(err))
	}
	s.cacheMu.Unlock()

	for _, g := range groups {
		if err := s.enqueue(ctx, g, reason); err != nil {
			s.log().Warn(ctx, "refresh not queued",
				logger.String("groupID", g),
				logger.String("reason", reason),
				logger.Error(err),
			)
		}
	}
}

// enqueue queues a refresh unless one is already pending for the group.
func (s *Service) enqueue(ctx context.Context, groupID, reason string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, groupID) {
		metrics.RecordRefreshCoalesced()
		return nil
	}

	err := s.queue.Enqueue(ctx, model.RefreshJob{GroupID: groupID, Reason: reason, RequestedAt: s.now()})
	if err == nil {
		return nil
	}
	s.deduper.Unrecord(ctx, groupID)
	if errors.Is(err, eventqueue.ErrFull) {
		return fmt.Errorf("%w: %s", ErrBackpressure, groupID)
	}
	return err
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get().Named("service")
	}
	return s.logger
}

func (s *Service) trackedCount() int {
	n := 0
	s.tracked.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func bestSlots(days []ranking.DayResult) []model.BestSlot {
	best := make([]model.BestSlot, 0, len(days))
	for _, d := range days {
		top, ok := d.Best()
		if !ok {
			continue
		}
		best = append(best, model.BestSlot{
			Day:              int(d.Day),
			DayName:          d.DayName,
			Start:            top.Start.String(),
			End:              top.End.String(),
			MemberCount:      top.MemberCount,
			MemberPercentage: top.MemberPercentage,
		})
	}
	return best
}

func distinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
