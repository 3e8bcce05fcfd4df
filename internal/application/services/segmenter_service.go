package services

import (
	"sync"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/session"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/security"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// SegmenterService decides when a burst of activity becomes a new visit.
// It is the only component allowed to mutate the guest record and the open
// session; everything else reads them through it.
//
// Two triggers open a new visit: an explicit page-load signal, and an
// interaction arriving after the idle-gap threshold. Both share a single
// debounce window so a reload signal and an interaction landing in the same
// tick can never double-increment the visit count.
type SegmenterService struct {
	identity *IdentityService
	env      identity.EnvironmentSnapshot
	logger   *logging.ChanneledLogger
	now      func() time.Time

	mu                 sync.Mutex
	current            *session.Session
	lastVisitIncrement time.Time
	notifyVisit        func(*collectorapi.VisitPayload)
}

// NewSegmenterService creates a segmenter bound to one device environment.
func NewSegmenterService(identitySvc *IdentityService, env identity.EnvironmentSnapshot, logger *logging.ChanneledLogger) *SegmenterService {
	return &SegmenterService{
		identity: identitySvc,
		env:      env,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *SegmenterService) WithClock(now func() time.Time) *SegmenterService {
	s.now = now
	return s
}

// SetVisitNotifier registers the hook invoked with opened/closed visit
// summaries, used by the tracker to feed the delivery pipeline.
func (s *SegmenterService) SetVisitNotifier(fn func(*collectorapi.VisitPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyVisit = fn
}

// RecordActivity applies the visit segmentation rules, in priority order:
//
//  1. An explicit page-load signal rolls the visit if the debounce window
//     has elapsed since the last visit increment.
//  2. An interaction rolls the visit if the idle gap since the guest's last
//     interaction exceeds the threshold and the debounce has also elapsed.
//  3. Otherwise the current visit is extended with the page.
//
// The guest's lastInteraction timestamp is updated whenever the activity
// was an interaction or a load signal.
func (s *SegmenterService) RecordActivity(page string, isInteraction, forceNewVisit bool) (*identity.GuestIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	guest, err := s.identity.GetOrCreateGuestIdentity(s.env)
	if err != nil {
		return nil, err
	}

	if s.current == nil {
		// Fresh process: resume the guest's open visit. Duplicate load
		// signals across a quick reload collapse against the stored
		// lastInteraction timestamp.
		s.lastVisitIncrement = guest.LastInteraction
		s.current = session.NewSession(security.GenerateULID(), guest.VisitCount, now)
		s.current.AddPage(page)
		s.emitVisit(collectorapi.VisitOpened, guest, s.current, 0)
		s.logger.Session().Debug("Session opened", "sessionId", s.current.ID, "visitNumber", s.current.VisitNumber, "guestId", guest.GuestID)
	}

	debounceElapsed := now.Sub(s.lastVisitIncrement) >= config.VisitDebounce
	gapExceeded := isInteraction && now.Sub(guest.LastInteraction) > config.VisitGapThreshold

	switch {
	case forceNewVisit && debounceElapsed:
		s.rollVisit(guest, page, now, "pageload")
	case gapExceeded && debounceElapsed:
		s.rollVisit(guest, page, now, "idle-gap")
	default:
		s.current.AddPage(page)
	}

	if isInteraction || forceNewVisit {
		guest.LastInteraction = now
		if err := s.identity.SaveGuest(guest); err != nil {
			s.logger.Session().Warn("Failed to persist guest record", "error", err.Error(), "guestId", guest.GuestID)
		}
	}

	return guest, nil
}

// AppendInteraction records an event in the open session, in arrival order.
// Events arriving before any activity has opened a session are dropped.
func (s *SegmenterService) AppendInteraction(ev session.InteractionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.logger.Session().Debug("Interaction dropped, no open session", "type", string(ev.Type))
		return
	}
	s.current.Append(ev)
	s.current.AddPage(ev.Page)
}

// CurrentSession returns the open session, or nil before any activity.
func (s *SegmenterService) CurrentSession() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// rollVisit closes the current session, folds it into the guest record, and
// opens the next one. Caller holds the mutex.
func (s *SegmenterService) rollVisit(guest *identity.GuestIdentity, page string, now time.Time, trigger string) {
	closed := s.current
	duration := closed.Close(now)

	guest.ReturnVisits = append(guest.ReturnVisits, identity.VisitSummary{
		VisitNumber:       closed.VisitNumber,
		StartedAt:         closed.StartedAt,
		EndedAt:           now,
		DurationMs:        duration.Milliseconds(),
		TotalInteractions: closed.TotalInteractions(),
		PagesVisited:      closed.PagesVisited,
	})
	guest.TotalTimeSpentMs += duration.Milliseconds()
	guest.VisitCount++

	s.emitVisit(collectorapi.VisitClosed, guest, closed, duration.Milliseconds())

	s.current = session.NewSession(security.GenerateULID(), guest.VisitCount, now)
	s.current.AddPage(page)
	s.lastVisitIncrement = now

	s.emitVisit(collectorapi.VisitOpened, guest, s.current, 0)

	s.logger.Session().Info("Visit rolled",
		"trigger", trigger,
		"closedSessionId", closed.ID,
		"newSessionId", s.current.ID,
		"visitCount", guest.VisitCount,
		"durationMs", duration.Milliseconds(),
		"guestId", guest.GuestID,
	)
}

// emitVisit hands a visit summary to the registered notifier. Caller holds
// the mutex; the notifier must not call back into the segmenter.
func (s *SegmenterService) emitVisit(reason collectorapi.VisitReason, guest *identity.GuestIdentity, sess *session.Session, durationMs int64) {
	if s.notifyVisit == nil {
		return
	}
	snapshot := *guest
	s.notifyVisit(&collectorapi.VisitPayload{
		Reason:            reason,
		SessionID:         sess.ID,
		VisitNumber:       sess.VisitNumber,
		StartedAt:         sess.StartedAt,
		EndedAt:           sess.EndedAt,
		DurationMs:        durationMs,
		ClickCount:        sess.ClickCount,
		MoveCount:         sess.MoveCount,
		ScrollCount:       sess.ScrollCount,
		TotalInteractions: sess.TotalInteractions(),
		PagesVisited:      sess.PagesVisited,
		Guest:             &snapshot,
	})
}
