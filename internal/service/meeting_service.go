package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/notify"
)

// Room events reported by the meeting provider.
const (
	EventRoomUserJoin  = "RoomUserJoin"
	EventRoomUserLeave = "RoomUserLeave"
)

// MeetingEvent is one provider callback.
type MeetingEvent struct {
	Event     string
	RoomID    string
	UserID    string
	EventTime time.Time
}

// MeetingResult reports whether the event changed the lesson.
type MeetingResult struct {
	LessonID uint64 `json:"lesson_id"`
	Event    string `json:"event"`
	Applied  bool   `json:"applied"`
}

// MeetingService tracks live sessions from provider callbacks.
type MeetingService struct {
	lessons  LessonStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewMeetingService(lessons LessonStore, notifier Notifier, logger *zap.Logger) *MeetingService {
	return &MeetingService{lessons: lessons, notifier: notifier, logger: logger, now: time.Now}
}

// HandleEvent applies a join or leave event. Only the first join starts the
// session and only the first leave ends it; repeats change nothing.
func (s *MeetingService) HandleEvent(ctx context.Context, ev MeetingEvent) (MeetingResult, error) {
	ev.RoomID = strings.TrimSpace(ev.RoomID)
	if ev.RoomID == "" {
		return MeetingResult{}, errValidation("room_id is required")
	}
	l, err := s.lessons.GetByRoomID(ctx, ev.RoomID)
	if err != nil {
		return MeetingResult{}, storeErr("meeting room", err)
	}
	res := MeetingResult{LessonID: l.ID, Event: ev.Event}
	at := ev.EventTime
	if at.IsZero() {
		at = s.now()
	}

	var build func(model.Lesson, uint64) model.NotificationMessage
	switch ev.Event {
	case EventRoomUserJoin:
		res.Applied, err = s.lessons.StartMeeting(ctx, l.ID, at)
		build = notify.LessonStarted
	case EventRoomUserLeave:
		res.Applied, err = s.lessons.EndMeeting(ctx, l.ID, at)
		build = notify.LessonEnded
	default:
		s.logger.Info("unhandled meeting event", zap.String("event", ev.Event), zap.String("room_id", ev.RoomID))
		return res, nil
	}
	if err != nil {
		return res, errInternal("update meeting", err)
	}
	if !res.Applied {
		return res, nil
	}

	s.logger.Info("meeting event applied", zap.Uint64("lesson_id", l.ID), zap.String("event", ev.Event),
		zap.String("user_id", ev.UserID), zap.Time("at", at))
	sendNotification(ctx, s.notifier, s.logger, build(l, l.StudentID))
	if l.AcceptedTeacherID != nil {
		sendNotification(ctx, s.notifier, s.logger, build(l, *l.AcceptedTeacherID))
	}
	return res, nil
}
