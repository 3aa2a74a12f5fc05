package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/lock"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

var seedLockOptions = lock.Options{
	TTL:        time.Minute,
	MaxRetries: 100,
	RetryDelay: 100 * time.Millisecond,
}

// ruleSnapshot is an immutable, id-ordered view of the rule table.
type ruleSnapshot struct {
	rules  []domain.Rule
	byCrop map[string][]domain.Rule
	crops  []string
}

func cropKey(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

func newRuleSnapshot(rules []*domain.Rule) *ruleSnapshot {
	ordered := make([]domain.Rule, 0, len(rules))
	for _, r := range rules {
		ordered = append(ordered, *r)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	snap := &ruleSnapshot{
		rules:  ordered,
		byCrop: make(map[string][]domain.Rule),
	}
	for _, r := range ordered {
		key := cropKey(r.Crop)
		if _, seen := snap.byCrop[key]; !seen {
			snap.crops = append(snap.crops, strings.TrimSpace(r.Crop))
		}
		snap.byCrop[key] = append(snap.byCrop[key], r)
	}
	return snap
}

// RecommendationService answers crop and nutrient lookups against the rule table.
// Lookups read an in-memory snapshot; Load replaces it atomically.
type RecommendationService struct {
	ruleRepo repository.RuleRepository
	locker   lock.Locker
	recorder OutcomeRecorder
	logger   zerolog.Logger

	snapshot atomic.Pointer[ruleSnapshot]
}

// NewRecommendationService creates a new RecommendationService. recorder may be nil.
func NewRecommendationService(
	ruleRepo repository.RuleRepository,
	locker lock.Locker,
	recorder OutcomeRecorder,
	logger zerolog.Logger,
) *RecommendationService {
	s := &RecommendationService{
		ruleRepo: ruleRepo,
		locker:   locker,
		recorder: recorderOrNop(recorder),
		logger:   logger.With().Str("service", "recommendation").Logger(),
	}
	s.snapshot.Store(newRuleSnapshot(nil))
	return s
}

// Seed inserts the default rules when the table is empty and returns how many were added.
// Instances starting together seed at most once.
func (s *RecommendationService) Seed(ctx context.Context) (int, error) {
	var inserted int

	err := lock.WithLock(ctx, s.locker, lock.Keys.RuleSeed(), seedLockOptions, func(ctx context.Context) error {
		count, err := s.ruleRepo.Count(ctx)
		if err != nil {
			return storageError(err)
		}
		if count > 0 {
			s.logger.Debug().Int64("rules", count).Msg("rule table already seeded")
			return nil
		}

		defaults := domain.DefaultRules()
		rules := make([]*domain.Rule, len(defaults))
		for i := range defaults {
			rules[i] = &defaults[i]
		}

		if err := s.ruleRepo.CreateBatch(ctx, rules); err != nil {
			if errors.Is(err, domain.ErrInvalidRule) {
				return err
			}
			return storageError(err)
		}
		inserted = len(rules)
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return 0, fmt.Errorf("%w: rule seeding", ErrLockTimeout)
		}
		return 0, err
	}

	if inserted > 0 {
		s.logger.Info().Int("rules", inserted).Msg("seeded default rules")
	}
	return inserted, nil
}

// Load reads every rule from storage and replaces the in-memory snapshot.
func (s *RecommendationService) Load(ctx context.Context) (int, error) {
	rules, err := s.ruleRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load rules")
		return 0, storageError(err)
	}

	snap := newRuleSnapshot(rules)
	s.snapshot.Store(snap)

	s.logger.Info().
		Int("rules", len(snap.rules)).
		Int("crops", len(snap.crops)).
		Msg("rule snapshot loaded")

	return len(snap.rules), nil
}

// Lookup returns the lowest-id rule for crop whose thresholds the reading meets.
// No match is a normal result carrying domain.NoRecommendationMessage.
func (s *RecommendationService) Lookup(crop string, reading domain.NutrientReading) domain.Recommendation {
	snap := s.snapshot.Load()

	for _, rule := range snap.byCrop[cropKey(crop)] {
		if rule.Matches(crop, reading) {
			s.recorder.RecordRecommendation(string(domain.SourceRules), metrics.OutcomeMatched)
			return domain.RecommendationFromRule(rule)
		}
	}

	s.recorder.RecordRecommendation(string(domain.SourceRules), metrics.OutcomeNoMatch)
	return domain.NoRecommendation(domain.SourceRules)
}

// Crops returns the crop names in the snapshot, in first-rule order.
func (s *RecommendationService) Crops() []string {
	snap := s.snapshot.Load()
	out := make([]string, len(snap.crops))
	copy(out, snap.crops)
	return out
}

// RuleCount returns the number of rules in the snapshot.
func (s *RecommendationService) RuleCount() int {
	return len(s.snapshot.Load().rules)
}

// RulesForCrop reads the stored rules for crop in lookup order.
func (s *RecommendationService) RulesForCrop(ctx context.Context, crop string) ([]*domain.Rule, error) {
	rules, err := s.ruleRepo.ListByCrop(ctx, crop)
	if err != nil {
		s.logger.Error().Err(err).Str("crop", crop).Msg("failed to list rules")
		return nil, storageError(err)
	}
	return rules, nil
}
