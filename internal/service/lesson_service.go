package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/meeting/zego"
	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/notify"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	ID   uint64
	Role string
}

// CreateLessonInput is a student's lesson request.
type CreateLessonInput struct {
	TargetTeacherID *uint64
	Subject         string
	Title           string
	Description     string
	Price           float64
	RequestedDate   time.Time
	DurationMinutes int
}

// LessonRequestResult is the created lesson and the teachers it was sent to.
type LessonRequestResult struct {
	Lesson           model.Lesson `json:"lesson"`
	NotifiedTeachers []uint64     `json:"notified_teachers"`
}

// SelectionResult is what the student gets back after choosing a teacher.
// Only the student's own join token is included.
type SelectionResult struct {
	Lesson       model.Lesson `json:"lesson"`
	RoomID       string       `json:"room_id"`
	StudentToken string       `json:"join_token"`
}

// MeetingAccess is a participant's view of the meeting room.
type MeetingAccess struct {
	LessonID uint64 `json:"lesson_id"`
	RoomID   string `json:"room_id"`
	Token    string `json:"join_token"`
	Role     string `json:"role"`
}

// CompletionResult reports what completing a lesson triggered.
type CompletionResult struct {
	Lesson        model.Lesson `json:"lesson"`
	PointsAwarded int          `json:"points_awarded"`
	Released      bool         `json:"payment_released"`
}

// LessonQuery is the listing input. Expand names related records to load.
type LessonQuery struct {
	Page    int
	Limit   int
	Sort    string
	Status  string
	Subject string
	Expand  []string
}

// LessonPage is one page of listed lessons.
type LessonPage struct {
	Items []model.LessonDetails `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// Expandable relations.
const (
	ExpandStudent            = "student"
	ExpandAcceptedTeacher    = "acceptedTeacher"
	ExpandInterestedTeachers = "interestedTeachers"
)

var validSorts = map[string]bool{
	"created_at": true, "-created_at": true,
	"price": true, "-price": true,
	"requested_date": true, "-requested_date": true,
}

var validStatuses = map[string]bool{
	model.LessonPending: true, model.LessonApproved: true,
	model.LessonCompleted: true, model.LessonCanceled: true,
}

// LessonService runs the lesson lifecycle.
type LessonService struct {
	lessons  LessonStore
	users    UserStore
	points   *PointsService
	payments *PaymentService
	notifier Notifier
	meetings MeetingProvider
	logger   *zap.Logger
	now      func() time.Time
}

func NewLessonService(lessons LessonStore, users UserStore, points *PointsService, payments *PaymentService,
	notifier Notifier, meetings MeetingProvider, logger *zap.Logger) *LessonService {
	return &LessonService{
		lessons:  lessons,
		users:    users,
		points:   points,
		payments: payments,
		notifier: notifier,
		meetings: meetings,
		logger:   logger,
		now:      time.Now,
	}
}

// priceMatches reports whether a teacher's hourly rate, prorated to the
// lesson duration, lies within 20% of the requested price.
func priceMatches(hourly float64, minutes int, price float64) bool {
	const eps = 1e-9
	cost := hourly / 60 * float64(minutes)
	return cost >= 0.8*price-eps && cost <= 1.2*price+eps
}

// CreateLessonRequest stores a pending lesson and notifies either the
// targeted teacher or every teacher whose subject and rate match.
func (s *LessonService) CreateLessonRequest(ctx context.Context, studentID uint64, in CreateLessonInput) (LessonRequestResult, error) {
	var res LessonRequestResult
	in.Title = strings.TrimSpace(in.Title)
	in.Subject = strings.TrimSpace(in.Subject)
	switch {
	case in.Title == "":
		return res, errValidation("title is required")
	case in.Subject == "":
		return res, errValidation("subject is required")
	case in.Price <= 0:
		return res, errValidation("price must be greater than zero")
	case in.RequestedDate.IsZero():
		return res, errValidation("requested date is required")
	case in.DurationMinutes <= 0:
		return res, errValidation("duration must be greater than zero")
	}

	l := model.Lesson{
		StudentID:       studentID,
		Subject:         in.Subject,
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		Price:           in.Price,
		RequestedDate:   in.RequestedDate,
		DurationMinutes: in.DurationMinutes,
		RequestType:     model.RequestOpen,
	}
	if in.TargetTeacherID != nil {
		t, err := s.users.GetByID(ctx, *in.TargetTeacherID)
		if err != nil {
			return res, storeErr("teacher", err)
		}
		if t.Role != model.RoleTeacher || !t.IsActive {
			return res, errNotFound("teacher not found")
		}
		l.RequestType = model.RequestDirect
		l.TargetTeacherID = in.TargetTeacherID
	}

	if err := s.lessons.Create(ctx, &l); err != nil {
		return res, errInternal("create lesson", err)
	}
	res.Lesson = l
	res.NotifiedTeachers = []uint64{}

	studentName := s.displayName(ctx, studentID)
	if l.RequestType == model.RequestDirect {
		s.notify(ctx, notify.LessonRequest(l, *l.TargetTeacherID, studentName))
		res.NotifiedTeachers = append(res.NotifiedTeachers, *l.TargetTeacherID)
		return res, nil
	}

	candidates, err := s.users.TeachersBySubject(ctx, l.Subject)
	if err != nil {
		s.logger.Warn("teacher matching failed", zap.Uint64("lesson_id", l.ID), zap.Error(err))
		return res, nil
	}
	for _, c := range candidates {
		if !priceMatches(c.HourlyPrice, l.DurationMinutes, l.Price) {
			continue
		}
		s.notify(ctx, notify.LessonRequest(l, c.ID, studentName))
		res.NotifiedTeachers = append(res.NotifiedTeachers, c.ID)
	}
	s.logger.Info("lesson requested", zap.Uint64("lesson_id", l.ID), zap.String("subject", l.Subject),
		zap.Int("matched_teachers", len(res.NotifiedTeachers)))
	return res, nil
}

// ListRequestsForTeacher lists the pending requests a teacher can respond to.
func (s *LessonService) ListRequestsForTeacher(ctx context.Context, teacherID uint64, page, limit int) ([]model.Lesson, error) {
	limit, offset := pageBounds(page, limit)
	out, err := s.lessons.ListRequestsForTeacher(ctx, teacherID, limit, offset)
	if err != nil {
		return nil, errInternal("list requests", err)
	}
	return out, nil
}

// RespondToLessonRequest records a teacher's answer. Accepting adds the
// teacher to the interest set; doing so twice is a no-op.
func (s *LessonService) RespondToLessonRequest(ctx context.Context, teacherID, lessonID uint64, response string) (model.Lesson, error) {
	response = strings.ToLower(strings.TrimSpace(response))
	if response != "accept" && response != "reject" {
		return model.Lesson{}, errValidation("response must be accept or reject")
	}
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return l, storeErr("lesson", err)
	}
	if l.RequestType == model.RequestDirect && (l.TargetTeacherID == nil || *l.TargetTeacherID != teacherID) {
		return l, errForbidden("this request is addressed to another teacher")
	}
	if response == "reject" {
		return l, nil
	}

	added, err := s.lessons.AddInterest(ctx, lessonID, teacherID)
	if err != nil {
		return l, errInternal("add interest", err)
	}
	if !added {
		if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
			return l, storeErr("lesson", err)
		}
		if l.Status != model.LessonPending {
			return l, errConflict("lesson is no longer pending")
		}
		return l, nil
	}

	s.notify(ctx, notify.TeacherInterest(l, teacherID, s.displayName(ctx, teacherID)))
	return l, nil
}

// CounterOffer records or replaces the teacher's proposed price.
func (s *LessonService) CounterOffer(ctx context.Context, teacherID, lessonID uint64, price float64, message string) (model.Offer, error) {
	if price <= 0 {
		return model.Offer{}, errValidation("proposed price must be greater than zero")
	}
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return model.Offer{}, storeErr("lesson", err)
	}
	if l.Status != model.LessonPending {
		return model.Offer{}, errConflict("lesson is no longer pending")
	}
	interested, err := s.lessons.IsInterested(ctx, lessonID, teacherID)
	if err != nil {
		return model.Offer{}, errInternal("check interest", err)
	}
	if !interested {
		return model.Offer{}, errForbidden("express interest in the lesson before making an offer")
	}

	ok, err := s.lessons.UpsertOffer(ctx, model.Offer{
		LessonID: lessonID, TeacherID: teacherID, ProposedPrice: price, Message: strings.TrimSpace(message),
	})
	if err != nil {
		return model.Offer{}, errInternal("save offer", err)
	}
	if !ok {
		return model.Offer{}, errConflict("lesson is no longer pending")
	}
	o, err := s.lessons.OfferFor(ctx, lessonID, teacherID)
	if err != nil || o == nil {
		return model.Offer{}, errInternal("load offer", err)
	}

	s.notify(ctx, notify.CounterOffer(l, teacherID, s.displayName(ctx, teacherID), price))
	return *o, nil
}

// ChooseTeacher accepts an interested teacher. The room and both join
// tokens are prepared first and written together with the status change in
// one conditional update, so of two concurrent selections only one wins.
func (s *LessonService) ChooseTeacher(ctx context.Context, studentID, lessonID, teacherID uint64, finalPrice *float64) (SelectionResult, error) {
	var res SelectionResult
	l, err := s.ownedLesson(ctx, studentID, lessonID)
	if err != nil {
		return res, err
	}
	if err := selectionConflict(l); err != nil {
		return res, err
	}
	interested, err := s.lessons.IsInterested(ctx, lessonID, teacherID)
	if err != nil {
		return res, errInternal("check interest", err)
	}
	if !interested {
		return res, errConflict("teacher has not expressed interest in this lesson")
	}

	price := l.Price
	switch {
	case finalPrice != nil:
		if *finalPrice <= 0 {
			return res, errValidation("final price must be greater than zero")
		}
		price = *finalPrice
	default:
		o, err := s.lessons.OfferFor(ctx, lessonID, teacherID)
		if err != nil {
			return res, errInternal("load offer", err)
		}
		if o != nil {
			price = o.ProposedPrice
		}
	}
	if err := priceLocked(l, price); err != nil {
		return res, err
	}

	room := s.meetings.NewRoom()
	studentToken, err := s.meetings.JoinToken(room, studentID, zego.RoleAudience)
	if err != nil {
		return res, errUpstream("meeting token", err)
	}
	teacherToken, err := s.meetings.JoinToken(room, teacherID, zego.RoleHost)
	if err != nil {
		return res, errUpstream("meeting token", err)
	}

	ok, err := s.lessons.AcceptTeacher(ctx, model.Acceptance{
		LessonID:     lessonID,
		StudentID:    studentID,
		TeacherID:    teacherID,
		FinalPrice:   price,
		RoomID:       room,
		StudentToken: studentToken,
		TeacherToken: teacherToken,
	})
	if err != nil {
		return res, errInternal("accept teacher", err)
	}
	if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
		return res, storeErr("lesson", err)
	}
	if !ok {
		if err := selectionConflict(l); err != nil {
			return res, err
		}
		if err := priceLocked(l, price); err != nil {
			return res, err
		}
		return res, errConflict("teacher has not expressed interest in this lesson")
	}

	s.logger.Info("teacher selected", zap.Uint64("lesson_id", lessonID), zap.Uint64("teacher_id", teacherID),
		zap.Float64("price", price))
	s.notify(ctx, notify.LessonApproved(l, teacherID, s.displayName(ctx, studentID)))

	return SelectionResult{Lesson: l, RoomID: room, StudentToken: studentToken}, nil
}

// priceLocked rejects a final price that differs from the price a payment
// order was already created for.
func priceLocked(l model.Lesson, price float64) error {
	if l.PaymentStatus == model.PaymentUnpaid || toCents(price) == toCents(l.Price) {
		return nil
	}
	return errConflict(fmt.Sprintf("price is fixed at %.2f once payment has started", l.Price))
}

func selectionConflict(l model.Lesson) error {
	if l.AcceptedTeacherID != nil {
		return errConflict("a teacher has already been selected for this lesson")
	}
	if l.Status != model.LessonPending {
		return errConflict(fmt.Sprintf("lesson is %s", l.Status))
	}
	return nil
}

// MeetingToken hands a participant their own join token.
func (s *LessonService) MeetingToken(ctx context.Context, userID, lessonID uint64) (MeetingAccess, error) {
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return MeetingAccess{}, storeErr("lesson", err)
	}
	access := MeetingAccess{LessonID: l.ID}
	var tok *string
	switch {
	case l.StudentID == userID:
		tok, access.Role = l.StudentJoinToken, zego.RoleAudience
	case l.HasAcceptedTeacher(userID):
		tok, access.Role = l.TeacherJoinToken, zego.RoleHost
	default:
		return MeetingAccess{}, errForbidden("only lesson participants can join the meeting")
	}
	if l.MeetingRoomID == nil || tok == nil {
		return MeetingAccess{}, errConflict("no meeting has been scheduled for this lesson")
	}
	if l.Status == model.LessonCanceled || l.MeetingStatus == model.MeetingCanceled {
		return MeetingAccess{}, errConflict("lesson has been canceled")
	}
	access.RoomID, access.Token = *l.MeetingRoomID, *tok
	if !s.meetings.TokenValid(access.Token, access.RoomID, userID) {
		fresh, err := s.meetings.JoinToken(access.RoomID, userID, access.Role)
		if err != nil {
			return MeetingAccess{}, errUpstream("meeting token", err)
		}
		s.logger.Info("join token reissued", zap.Uint64("lesson_id", l.ID), zap.Uint64("user_id", userID))
		access.Token = fresh
	}
	return access, nil
}

// GetInterestedTeachers lists the interest set in join order.
func (s *LessonService) GetInterestedTeachers(ctx context.Context, studentID, lessonID uint64) ([]model.UserSummary, error) {
	if _, err := s.ownedLesson(ctx, studentID, lessonID); err != nil {
		return nil, err
	}
	ids, err := s.lessons.InterestedTeacherIDs(ctx, lessonID)
	if err != nil {
		return nil, errInternal("list interest", err)
	}
	byID, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// GetOffers lists the current offers for the student's lesson.
func (s *LessonService) GetOffers(ctx context.Context, studentID, lessonID uint64) ([]model.Offer, error) {
	if _, err := s.ownedLesson(ctx, studentID, lessonID); err != nil {
		return nil, err
	}
	out, err := s.lessons.Offers(ctx, lessonID)
	if err != nil {
		return nil, errInternal("list offers", err)
	}
	return out, nil
}

// UpdateLessonPrice changes the price while no teacher has been accepted.
func (s *LessonService) UpdateLessonPrice(ctx context.Context, studentID, lessonID uint64, price float64) (model.Lesson, error) {
	if price <= 0 {
		return model.Lesson{}, errValidation("price must be greater than zero")
	}
	if _, err := s.ownedLesson(ctx, studentID, lessonID); err != nil {
		return model.Lesson{}, err
	}
	ok, err := s.lessons.UpdatePrice(ctx, lessonID, studentID, price)
	if err != nil {
		return model.Lesson{}, errInternal("update price", err)
	}
	if !ok {
		return model.Lesson{}, errConflict("price can only change before a teacher is selected or payment starts")
	}
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return l, storeErr("lesson", err)
	}
	return l, nil
}

// CompleteLesson closes an approved lesson, rewards the student and, when
// the lesson is paid and the teacher can receive money, releases the
// payment. A failed release is returned while the lesson stays completed.
func (s *LessonService) CompleteLesson(ctx context.Context, teacherID, lessonID uint64) (CompletionResult, error) {
	var res CompletionResult
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return res, storeErr("lesson", err)
	}
	if !l.HasAcceptedTeacher(teacherID) {
		return res, errForbidden("only the accepted teacher can complete this lesson")
	}
	ok, err := s.lessons.Complete(ctx, lessonID, teacherID, s.now())
	if err != nil {
		return res, errInternal("complete lesson", err)
	}
	if !ok {
		if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
			return res, storeErr("lesson", err)
		}
		return res, errConflict(fmt.Sprintf("lesson is %s, only approved lessons can be completed", l.Status))
	}

	bonus := s.points.Rewards().Complete
	s.points.award(ctx, l.StudentID, bonus, "lesson completed")
	res.PointsAwarded = bonus
	s.notify(ctx, notify.LessonCompleted(l, teacherID, bonus))

	if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
		return res, storeErr("lesson", err)
	}
	res.Lesson = l
	if l.PaymentStatus != model.PaymentPaid || s.payments == nil {
		return res, nil
	}
	profile, err := s.users.TeacherProfile(ctx, teacherID)
	if err != nil || !profile.HasPayoutRecipient() {
		s.logger.Info("payment kept until teacher registers a payout account", zap.Uint64("lesson_id", lessonID))
		return res, nil
	}
	released, err := s.payments.Release(ctx, lessonID)
	if err != nil {
		return res, err
	}
	res.Lesson, res.Released = released, true
	return res, nil
}

// CancelLessonRequest cancels the student's lesson. Approved lessons can be
// canceled only until money is captured.
func (s *LessonService) CancelLessonRequest(ctx context.Context, studentID, lessonID uint64) (model.Lesson, error) {
	l, err := s.ownedLesson(ctx, studentID, lessonID)
	if err != nil {
		return l, err
	}
	ok, err := s.lessons.Cancel(ctx, lessonID, studentID)
	if err != nil {
		return l, errInternal("cancel lesson", err)
	}
	if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
		return l, storeErr("lesson", err)
	}
	if !ok {
		switch l.Status {
		case model.LessonCanceled, model.LessonCompleted:
			return l, errConflict(fmt.Sprintf("lesson is already %s", l.Status))
		default:
			return l, errConflict("a paid lesson cannot be canceled")
		}
	}

	s.points.award(ctx, studentID, -s.points.Rewards().Cancel, "lesson canceled")
	if l.AcceptedTeacherID != nil {
		s.notify(ctx, notify.LessonCanceled(l, *l.AcceptedTeacherID))
	}
	return l, nil
}

// GetLessons lists lessons visible to the caller.
func (s *LessonService) GetLessons(ctx context.Context, caller Caller, q LessonQuery) (LessonPage, error) {
	var f model.LessonFilter
	switch caller.Role {
	case model.RoleStudent:
		f.StudentID = &caller.ID
	case model.RoleTeacher:
		f.TeacherID = &caller.ID
	case model.RoleAdmin:
	default:
		return LessonPage{}, errForbidden("role cannot list lessons")
	}
	if q.Sort != "" && !validSorts[q.Sort] {
		return LessonPage{}, errValidation("invalid sort field")
	}
	if q.Status != "" && !validStatuses[q.Status] {
		return LessonPage{}, errValidation("invalid status")
	}
	expand := map[string]bool{}
	for _, e := range q.Expand {
		e = strings.TrimSpace(e)
		switch e {
		case "":
		case ExpandStudent, ExpandAcceptedTeacher, ExpandInterestedTeachers:
			expand[e] = true
		default:
			return LessonPage{}, errValidation("unknown expand: " + e)
		}
	}

	if q.Page <= 0 {
		q.Page = 1
	}
	f.Limit, f.Offset = pageBounds(q.Page, q.Limit)
	f.Status, f.Subject, f.Sort = q.Status, strings.TrimSpace(q.Subject), q.Sort

	lessons, total, err := s.lessons.List(ctx, f)
	if err != nil {
		return LessonPage{}, errInternal("list lessons", err)
	}
	items, err := s.expand(ctx, lessons, expand)
	if err != nil {
		return LessonPage{}, err
	}
	return LessonPage{Items: items, Total: total, Page: q.Page, Limit: f.Limit}, nil
}

// expand hydrates the requested relations with one user lookup per page.
func (s *LessonService) expand(ctx context.Context, lessons []model.Lesson, expand map[string]bool) ([]model.LessonDetails, error) {
	items := make([]model.LessonDetails, len(lessons))
	interest := make(map[uint64][]uint64)
	var ids []uint64
	for i, l := range lessons {
		items[i] = model.LessonDetails{Lesson: l, PaymentInfo: l.Payment()}
		if expand[ExpandStudent] {
			ids = append(ids, l.StudentID)
		}
		if expand[ExpandAcceptedTeacher] && l.AcceptedTeacherID != nil {
			ids = append(ids, *l.AcceptedTeacherID)
		}
		if expand[ExpandInterestedTeachers] {
			tids, err := s.lessons.InterestedTeacherIDs(ctx, l.ID)
			if err != nil {
				return nil, errInternal("list interest", err)
			}
			interest[l.ID] = tids
			ids = append(ids, tids...)
		}
	}
	if len(ids) == 0 {
		return items, nil
	}

	byID, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		l := items[i].Lesson
		if expand[ExpandStudent] {
			if u, ok := byID[l.StudentID]; ok {
				items[i].Student = &u
			}
		}
		if expand[ExpandAcceptedTeacher] && l.AcceptedTeacherID != nil {
			if u, ok := byID[*l.AcceptedTeacherID]; ok {
				items[i].AcceptedTeacher = &u
			}
		}
		if expand[ExpandInterestedTeachers] {
			items[i].InterestedTeachers = []model.UserSummary{}
			for _, id := range interest[l.ID] {
				if u, ok := byID[id]; ok {
					items[i].InterestedTeachers = append(items[i].InterestedTeachers, u)
				}
			}
		}
	}
	return items, nil
}

func (s *LessonService) summaries(ctx context.Context, ids []uint64) (map[uint64]model.UserSummary, error) {
	seen := make(map[uint64]bool, len(ids))
	uniq := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	list, err := s.users.Summaries(ctx, uniq)
	if err != nil {
		return nil, errInternal("load users", err)
	}
	out := make(map[uint64]model.UserSummary, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (s *LessonService) ownedLesson(ctx context.Context, studentID, lessonID uint64) (model.Lesson, error) {
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return l, storeErr("lesson", err)
	}
	if l.StudentID != studentID {
		return l, errForbidden("you do not own this lesson")
	}
	return l, nil
}

func (s *LessonService) displayName(ctx context.Context, userID uint64) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.FullName()
}

func (s *LessonService) notify(ctx context.Context, msg model.NotificationMessage) {
	sendNotification(ctx, s.notifier, s.logger, msg)
}

// sendNotification delivers msg best effort.
func sendNotification(ctx context.Context, n Notifier, logger *zap.Logger, msg model.NotificationMessage) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Warn("notification failed", zap.Uint64("recipient_id", msg.RecipientID),
			zap.String("type", msg.Type), zap.Uint64("lesson_id", msg.LessonID), zap.Error(err))
	}
}

// toCents converts an amount to minor currency units.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
