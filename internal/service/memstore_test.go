package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/repository"
)

// memUsers is an in-memory UserStore and PointsStore.
type memUsers struct {
	mu       sync.Mutex
	users    map[uint64]*model.User
	profiles map[uint64]*model.TeacherProfile
	nextID   uint64
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uint64]*model.User{}, profiles: map[uint64]*model.TeacherProfile{}}
}

func (m *memUsers) addUser(role, first string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.users[id] = &model.User{
		ID: id, Email: strings.ToLower(first) + "@example.com", Role: role, FirstName: first,
		IsActive: true, Language: "en", Level: model.LevelBronze,
	}
	return id
}

func (m *memUsers) addTeacher(first string, hourly float64, subjects ...string) uint64 {
	id := m.addUser(model.RoleTeacher, first)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = &model.TeacherProfile{UserID: id, HourlyPrice: hourly, PayoutStatus: model.PayoutNone, Subjects: subjects}
	return id
}

func (m *memUsers) setPoints(id uint64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].Points = n
	m.users[id].Level = model.LevelFor(n)
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (m *memUsers) Summaries(_ context.Context, ids []uint64) ([]model.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.UserSummary{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, model.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Role: u.Role})
		}
	}
	return out, nil
}

func (m *memUsers) TeachersBySubject(_ context.Context, subject string) ([]model.TeacherCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TeacherCandidate{}
	for id, p := range m.profiles {
		if !m.users[id].IsActive {
			continue
		}
		for _, s := range p.Subjects {
			if s == subject {
				out = append(out, model.TeacherCandidate{ID: id, HourlyPrice: p.HourlyPrice})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) teaches(teacherID uint64, subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[teacherID]
	if !ok {
		return false
	}
	for _, s := range p.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

func (m *memUsers) TeacherProfile(_ context.Context, id uint64) (model.TeacherProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.TeacherProfile{}, repository.ErrNotFound
	}
	return *p, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m *memUsers) SavePaymentInfo(_ context.Context, id uint64, info model.PaymentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PayoutMethod = strPtr(info.Method)
	for dst, v := range map[**string]string{
		&p.AccountName: info.AccountName, &p.AccountNumber: info.AccountNumber, &p.BankName: info.BankName,
		&p.WalletProvider: info.WalletProvider, &p.PhoneNumber: info.PhoneNumber,
	} {
		if v != "" {
			*dst = strPtr(v)
		}
	}
	if !p.HasPayoutRecipient() {
		p.PayoutStatus = model.PayoutRegistering
	}
	p.PayoutError = nil
	return nil
}

func (m *memUsers) SetPayoutRecipient(_ context.Context, id uint64, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[id]
	p.PayoutRecipientID = strPtr(recipientID)
	p.PayoutStatus = model.PayoutRegistered
	p.PayoutError = nil
	return nil
}

func (m *memUsers) MarkPayoutFailed(_ context.Context, id uint64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[id]
	if p.HasPayoutRecipient() {
		return nil
	}
	p.PayoutStatus = model.PayoutFailed
	p.PayoutError = strPtr(reason)
	return nil
}

func (m *memUsers) SetDevice(_ context.Context, id uint64, token *string, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PushToken, u.Language = token, lang
	}
	return nil
}

func (m *memUsers) AdjustPoints(_ context.Context, id uint64, delta int) (model.PointsBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.PointsBalance{}, repository.ErrNotFound
	}
	u.Points += delta
	if u.Points < 0 {
		u.Points = 0
	}
	u.Level = model.LevelFor(u.Points)
	return balanceOf(u), nil
}

func balanceOf(u *model.User) model.PointsBalance {
	return model.PointsBalance{UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Points: u.Points, Level: u.Level}
}

func (m *memUsers) Points(_ context.Context, id uint64) (model.PointsBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.PointsBalance{}, repository.ErrNotFound
	}
	return balanceOf(u), nil
}

func (m *memUsers) LevelCounts(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, l := range model.Levels {
		out[l] = 0
	}
	for _, u := range m.users {
		out[u.Level]++
	}
	return out, nil
}

func (m *memUsers) ListByPoints(_ context.Context, limit, offset int) ([]model.PointsBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []model.PointsBalance{}
	for _, u := range m.users {
		all = append(all, balanceOf(u))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	return window(all, limit, offset), nil
}

func window[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// memLessons is an in-memory LessonStore with the same conditional
// semantics as the SQL repository. Each method holds the lock for its whole
// check-and-set, mirroring a single UPDATE statement.
type memLessons struct {
	mu        sync.Mutex
	users     *memUsers
	lessons   map[uint64]*model.Lesson
	interests map[uint64][]uint64
	offers    map[uint64]map[uint64]*model.Offer
	nextID    uint64
	clock     time.Time
}

func newMemLessons(users *memUsers) *memLessons {
	return &memLessons{
		users:     users,
		lessons:   map[uint64]*model.Lesson{},
		interests: map[uint64][]uint64{},
		offers:    map[uint64]map[uint64]*model.Offer{},
		clock:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memLessons) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memLessons) Create(_ context.Context, l *model.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	l.Status = model.LessonPending
	l.MeetingStatus = model.MeetingUpcoming
	l.PaymentStatus = model.PaymentUnpaid
	l.CreatedAt = m.tick()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.lessons[l.ID] = &cp
	return nil
}

func (m *memLessons) GetByID(_ context.Context, id uint64) (model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return model.Lesson{}, repository.ErrNotFound
	}
	return *l, nil
}

func (m *memLessons) GetByRoomID(_ context.Context, room string) (model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lessons {
		if l.MeetingRoomID != nil && *l.MeetingRoomID == room {
			return *l, nil
		}
	}
	return model.Lesson{}, repository.ErrNotFound
}

func (m *memLessons) interested(lessonID, teacherID uint64) bool {
	for _, id := range m.interests[lessonID] {
		if id == teacherID {
			return true
		}
	}
	return false
}

func (m *memLessons) List(_ context.Context, f model.LessonFilter) ([]model.Lesson, int64, error) {
	m.mu.Lock()
	all := []model.Lesson{}
	for _, l := range m.lessons {
		switch {
		case f.StudentID != nil && l.StudentID != *f.StudentID:
			continue
		case f.TeacherID != nil && !(m.interested(l.ID, *f.TeacherID) || l.HasAcceptedTeacher(*f.TeacherID) ||
			m.users.teaches(*f.TeacherID, l.Subject)):
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Subject != "" && l.Subject != f.Subject {
			continue
		}
		all = append(all, *l)
	}
	m.mu.Unlock()

	desc := strings.HasPrefix(f.Sort, "-")
	key := strings.TrimPrefix(f.Sort, "-")
	if key == "" {
		key, desc = "created_at", true
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		var less bool
		switch key {
		case "price":
			less = a.Price < b.Price
		case "requested_date":
			less = a.RequestedDate.Before(b.RequestedDate)
		default:
			less = a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
	return window(all, f.Limit, f.Offset), int64(len(all)), nil
}

func (m *memLessons) ListRequestsForTeacher(_ context.Context, teacherID uint64, limit, offset int) ([]model.Lesson, error) {
	m.mu.Lock()
	candidates := []model.Lesson{}
	for _, l := range m.lessons {
		if l.Status == model.LessonPending && l.AcceptedTeacherID == nil {
			candidates = append(candidates, *l)
		}
	}
	m.mu.Unlock()

	out := []model.Lesson{}
	for _, l := range candidates {
		direct := l.TargetTeacherID != nil && *l.TargetTeacherID == teacherID
		open := l.RequestType == model.RequestOpen && m.users.teaches(teacherID, l.Subject)
		if direct || open {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, limit, offset), nil
}

func (m *memLessons) AddInterest(_ context.Context, lessonID, teacherID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[lessonID]
	if !ok || l.Status != model.LessonPending || m.interested(lessonID, teacherID) {
		return false, nil
	}
	m.interests[lessonID] = append(m.interests[lessonID], teacherID)
	return true, nil
}

func (m *memLessons) IsInterested(_ context.Context, lessonID, teacherID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interested(lessonID, teacherID), nil
}

func (m *memLessons) InterestedTeacherIDs(_ context.Context, lessonID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64{}, m.interests[lessonID]...), nil
}

func (m *memLessons) UpsertOffer(_ context.Context, o model.Offer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[o.LessonID]
	if !ok || l.Status != model.LessonPending || !m.interested(o.LessonID, o.TeacherID) {
		return false, nil
	}
	if m.offers[o.LessonID] == nil {
		m.offers[o.LessonID] = map[uint64]*model.Offer{}
	}
	now := m.tick()
	if cur, ok := m.offers[o.LessonID][o.TeacherID]; ok {
		cur.ProposedPrice, cur.Message, cur.UpdatedAt = o.ProposedPrice, o.Message, now
		return true, nil
	}
	o.CreatedAt, o.UpdatedAt = now, now
	m.offers[o.LessonID][o.TeacherID] = &o
	return true, nil
}

func (m *memLessons) Offers(_ context.Context, lessonID uint64) ([]model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Offer{}
	for _, o := range m.offers[lessonID] {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memLessons) OfferFor(_ context.Context, lessonID, teacherID uint64) (*model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.offers[lessonID][teacherID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

// update applies fn to the lesson when cond holds.
func (m *memLessons) update(id uint64, cond func(*model.Lesson) bool, fn func(*model.Lesson)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok || !cond(l) {
		return false, nil
	}
	fn(l)
	l.UpdatedAt = m.tick()
	return true, nil
}

func (m *memLessons) UpdatePrice(_ context.Context, lessonID, studentID uint64, price float64) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.StudentID == studentID && l.Status == model.LessonPending && l.AcceptedTeacherID == nil &&
			l.PaymentStatus == model.PaymentUnpaid
	}, func(l *model.Lesson) { l.Price = price })
}

func (m *memLessons) AcceptTeacher(_ context.Context, a model.Acceptance) (bool, error) {
	return m.update(a.LessonID, func(l *model.Lesson) bool {
		return l.StudentID == a.StudentID && l.Status == model.LessonPending && l.AcceptedTeacherID == nil &&
			(l.PaymentStatus == model.PaymentUnpaid || l.Price == a.FinalPrice) &&
			m.interested(a.LessonID, a.TeacherID)
	}, func(l *model.Lesson) {
		tid, room, st, tt := a.TeacherID, a.RoomID, a.StudentToken, a.TeacherToken
		l.AcceptedTeacherID, l.Status, l.Price = &tid, model.LessonApproved, a.FinalPrice
		l.MeetingRoomID, l.MeetingStatus = &room, model.MeetingUpcoming
		l.StudentJoinToken, l.TeacherJoinToken = &st, &tt
	})
}

func (m *memLessons) Complete(_ context.Context, lessonID, teacherID uint64, at time.Time) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.HasAcceptedTeacher(teacherID) && l.Status == model.LessonApproved
	}, func(l *model.Lesson) {
		l.Status, l.MeetingStatus = model.LessonCompleted, model.MeetingFinished
		if l.MeetingEndTime == nil {
			l.MeetingEndTime = &at
		}
	})
}

func (m *memLessons) Cancel(_ context.Context, lessonID, studentID uint64) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.StudentID == studentID && !paymentSettled(l.PaymentStatus) &&
			(l.Status == model.LessonPending || l.Status == model.LessonApproved)
	}, func(l *model.Lesson) {
		l.Status = model.LessonCanceled
		if l.MeetingRoomID != nil {
			l.MeetingStatus = model.MeetingCanceled
		}
	})
}

func (m *memLessons) MarkPaymentPending(_ context.Context, lessonID, studentID uint64, p model.PaymentIntent) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.StudentID == studentID && l.Status != model.LessonCanceled &&
			(l.PaymentStatus == model.PaymentUnpaid || l.PaymentStatus == model.PaymentPending)
	}, func(l *model.Lesson) {
		oid, moid := p.OrderID, p.MerchantOrderID
		l.PaymentStatus, l.PaymentState = model.PaymentPending, model.ChargePending
		l.PaymentOrderID, l.MerchantOrderID, l.PaymentAmount = &oid, &moid, p.Amount
	})
}

func (m *memLessons) MarkPaid(_ context.Context, lessonID uint64, txID string, amount float64) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.PaymentStatus == model.PaymentUnpaid || l.PaymentStatus == model.PaymentPending
	}, func(l *model.Lesson) {
		l.PaymentStatus, l.PaymentState = model.PaymentPaid, model.ChargePaid
		l.PaymentTransactionID, l.AmountPaid = &txID, amount
		if l.Status == model.LessonPending && l.AcceptedTeacherID != nil {
			l.Status = model.LessonApproved
		}
	})
}

func (m *memLessons) MarkPaymentFailed(_ context.Context, lessonID uint64, merchantOrderID, txID string) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.PaymentStatus == model.PaymentPending && l.MerchantOrderID != nil && *l.MerchantOrderID == merchantOrderID
	}, func(l *model.Lesson) {
		l.PaymentStatus, l.PaymentState, l.PaymentTransactionID = model.PaymentUnpaid, model.ChargeFailed, &txID
	})
}

func (m *memLessons) ClaimRelease(_ context.Context, lessonID uint64) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.Status == model.LessonCompleted && l.PaymentStatus == model.PaymentPaid
	}, func(l *model.Lesson) { l.PaymentStatus = model.PaymentHeld })
}

func (m *memLessons) FinishRelease(_ context.Context, lessonID uint64, payoutID string) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool { return l.PaymentStatus == model.PaymentHeld },
		func(l *model.Lesson) {
			l.PaymentStatus, l.PaymentState, l.TeacherPayoutID = model.PaymentReleased, model.ChargeReleased, &payoutID
		})
}

func (m *memLessons) AbortRelease(_ context.Context, lessonID uint64) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool { return l.PaymentStatus == model.PaymentHeld },
		func(l *model.Lesson) { l.PaymentStatus = model.PaymentPaid })
}

func (m *memLessons) PayoutHistory(_ context.Context, teacherID uint64) ([]model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Lesson{}
	for _, l := range m.lessons {
		if l.HasAcceptedTeacher(teacherID) && paymentSettled(l.PaymentStatus) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memLessons) StartMeeting(_ context.Context, lessonID uint64, at time.Time) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.Status == model.LessonApproved && l.MeetingStatus == model.MeetingUpcoming
	}, func(l *model.Lesson) { l.MeetingStatus, l.MeetingStartTime = model.MeetingOngoing, &at })
}

func (m *memLessons) EndMeeting(_ context.Context, lessonID uint64, at time.Time) (bool, error) {
	return m.update(lessonID, func(l *model.Lesson) bool {
		return l.MeetingEndTime == nil &&
			(l.MeetingStatus == model.MeetingUpcoming || l.MeetingStatus == model.MeetingOngoing)
	}, func(l *model.Lesson) { l.MeetingStatus, l.MeetingEndTime = model.MeetingFinished, &at })
}

// memReviews is an in-memory ReviewStore.
type memReviews struct {
	mu   sync.Mutex
	rows map[uint64]model.Review
}

func (m *memReviews) Create(_ context.Context, r *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uint64]model.Review{}
	}
	if _, ok := m.rows[r.LessonID]; ok {
		return repository.ErrDuplicate
	}
	r.ID = uint64(len(m.rows) + 1)
	m.rows[r.LessonID] = *r
	return nil
}

// memNotifications records every message and can serve as NotificationStore.
type memNotifications struct {
	mu   sync.Mutex
	sent []model.NotificationMessage
	err  error
}

func (m *memNotifications) Notify(_ context.Context, msg model.NotificationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *memNotifications) to(recipient uint64, typ string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.RecipientID == recipient && s.Type == typ {
			n++
		}
	}
	return n
}

func (m *memNotifications) ofType(typ string) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []uint64{}
	for _, s := range m.sent {
		if s.Type == typ {
			out = append(out, s.RecipientID)
		}
	}
	return out
}

func (m *memNotifications) ListForRecipient(_ context.Context, recipient uint64, limit, offset int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Notification{}
	for i := len(m.sent) - 1; i >= 0; i-- {
		s := m.sent[i]
		if s.RecipientID == recipient {
			out = append(out, model.Notification{ID: uint64(i + 1), RecipientID: recipient, Type: s.Type, Title: s.Title.En, Message: s.Body.En})
		}
	}
	return window(out, limit, offset), nil
}

// fakeGateway records gateway calls. Signatures are checked with the real
// HMAC implementation.
type fakeGateway struct {
	mu          sync.Mutex
	secret      string
	orders      []paymob.OrderRequest
	payouts     []paymob.PayoutRequest
	recipients  []paymob.RecipientRequest
	linkErr     error
	payoutErr   error
	registerErr error
	seq         int
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, req paymob.OrderRequest) (paymob.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.linkErr != nil {
		return paymob.PaymentLink{}, g.linkErr
	}
	g.seq++
	g.orders = append(g.orders, req)
	id := fmt.Sprintf("order-%d", g.seq)
	return paymob.PaymentLink{OrderID: id, PaymentToken: "pt", URL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) VerifyCallback(obj map[string]any, signature string) bool {
	return paymob.Verify(g.secret, obj, signature)
}

func (g *fakeGateway) Payout(_ context.Context, req paymob.PayoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payoutErr != nil {
		return "", g.payoutErr
	}
	g.payouts = append(g.payouts, req)
	return "payout-1", nil
}

func (g *fakeGateway) RegisterRecipient(_ context.Context, req paymob.RecipientRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.registerErr != nil {
		return "", g.registerErr
	}
	g.recipients = append(g.recipients, req)
	return "rcp-1", nil
}

// fakeMeetings issues predictable rooms and distinct tokens. Tokens passed
// to expire stop validating.
type fakeMeetings struct {
	mu    sync.Mutex
	seq   int
	stale map[string]bool
}

func (f *fakeMeetings) NewRoom() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("room-%d", f.seq)
}

func (f *fakeMeetings) JoinToken(room string, userID uint64, role string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s:%s:%d:%d", room, role, userID, f.seq), nil
}

func (f *fakeMeetings) TokenValid(raw, room string, userID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(raw, ":")
	return !f.stale[raw] && len(parts) == 4 && parts[0] == room && parts[2] == fmt.Sprintf("%d", userID)
}

func (f *fakeMeetings) expire(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stale == nil {
		f.stale = map[string]bool{}
	}
	f.stale[raw] = true
}

// memGuard is an in-memory ReplayGuard.
type memGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memGuard) Seen(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys[key]
}

func (g *memGuard) Mark(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	g.keys[key] = true
}
