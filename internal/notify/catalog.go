package notify

import (
	"fmt"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

func sender(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}

func lessonDate(l model.Lesson) string {
	return l.RequestedDate.UTC().Format("Mon 2 Jan 15:04")
}

// LessonRequest tells a teacher about a new request they may take.
func LessonRequest(l model.Lesson, teacherID uint64, studentName string) model.NotificationMessage {
	if studentName == "" {
		studentName = "A student"
	}
	return model.NotificationMessage{
		SenderID:    sender(l.StudentID),
		RecipientID: teacherID,
		Type:        model.NotifyLessonRequest,
		LessonID:    l.ID,
		Title:       model.Localized{En: "New Lesson Request!", Ar: "طلب درس جديد!"},
		Body: model.Localized{
			En: fmt.Sprintf("Subject: %s\nPrice: %.2f\nDate: %s\nFrom: %s\n\nTap to view details.",
				l.Subject, l.Price, lessonDate(l), studentName),
			Ar: fmt.Sprintf("المادة: %s\nالسعر: %.2f\nالتاريخ: %s\nمن: %s\n\nاضغط لعرض التفاصيل.",
				l.Subject, l.Price, lessonDate(l), studentName),
		},
	}
}

// TeacherInterest tells the student a teacher wants the lesson.
func TeacherInterest(l model.Lesson, teacherID uint64, teacherName string) model.NotificationMessage {
	return model.NotificationMessage{
		SenderID:    sender(teacherID),
		RecipientID: l.StudentID,
		Type:        model.NotifyTeacherInterest,
		LessonID:    l.ID,
		Title: model.Localized{
			En: "A teacher is interested in your lesson request!",
			Ar: "مدرس أبدى اهتمامه بطلب الحصة الخاص بك!",
		},
		Body: model.Localized{
			En: fmt.Sprintf("%s is interested in teaching %s.", teacherName, l.Subject),
			Ar: fmt.Sprintf("%s وافق على تدريس مادة %s.", teacherName, l.Subject),
		},
		Data: map[string]string{"teacherId": fmt.Sprint(teacherID)},
	}
}

// CounterOffer tells the student a teacher proposed another price.
func CounterOffer(l model.Lesson, teacherID uint64, teacherName string, price float64) model.NotificationMessage {
	return model.NotificationMessage{
		SenderID:    sender(teacherID),
		RecipientID: l.StudentID,
		Type:        model.NotifyCounterOffer,
		LessonID:    l.ID,
		Title:       model.Localized{En: "New price offer", Ar: "عرض سعر جديد"},
		Body: model.Localized{
			En: fmt.Sprintf("%s offered to teach %s for %.2f.", teacherName, l.Subject, price),
			Ar: fmt.Sprintf("%s عرض تدريس مادة %s مقابل %.2f.", teacherName, l.Subject, price),
		},
		Data: map[string]string{"teacherId": fmt.Sprint(teacherID), "proposedPrice": fmt.Sprintf("%.2f", price)},
	}
}

// LessonApproved tells the teacher they were selected.
func LessonApproved(l model.Lesson, teacherID uint64, studentName string) model.NotificationMessage {
	return model.NotificationMessage{
		SenderID:    sender(l.StudentID),
		RecipientID: teacherID,
		Type:        model.NotifyLessonApproved,
		LessonID:    l.ID,
		Title: model.Localized{
			En: "Congratulations! You've been selected to teach the lesson",
			Ar: "تهانينا! تم اختيارك لتدريس الحصة",
		},
		Body: model.Localized{
			En: fmt.Sprintf("The student %s has selected you to teach %s. Get ready to coordinate lesson details soon.",
				studentName, l.Subject),
			Ar: fmt.Sprintf("الطالب %s اختارك لتدريس مادة %s. استعد للتنسيق معه لإتمام تفاصيل الحصة.",
				studentName, l.Subject),
		},
	}
}

// PaymentReceived confirms a captured payment to one participant.
func PaymentReceived(l model.Lesson, recipientID uint64, amount float64) model.NotificationMessage {
	return model.NotificationMessage{
		RecipientID: recipientID,
		Type:        model.NotifyPaymentReceived,
		LessonID:    l.ID,
		Title:       model.Localized{En: "Payment confirmed", Ar: "تم تأكيد الدفع"},
		Body: model.Localized{
			En: fmt.Sprintf("Payment of %.2f for the %s lesson was received.", amount, l.Subject),
			Ar: fmt.Sprintf("تم استلام مبلغ %.2f لحصة %s.", amount, l.Subject),
		},
	}
}

// LessonStarted announces a live meeting.
func LessonStarted(l model.Lesson, recipientID uint64) model.NotificationMessage {
	return model.NotificationMessage{
		RecipientID: recipientID,
		Type:        model.NotifyLessonStarted,
		LessonID:    l.ID,
		Title:       model.Localized{En: "The lesson has started!", Ar: "بدأت الحصة!"},
		Body: model.Localized{
			En: "The online lesson is now live. Please join the room.",
			Ar: "بدأت الحصة الآن! يمكنك الانضمام إلى الغرفة.",
		},
	}
}

// LessonEnded announces a finished meeting.
func LessonEnded(l model.Lesson, recipientID uint64) model.NotificationMessage {
	return model.NotificationMessage{
		RecipientID: recipientID,
		Type:        model.NotifyLessonEnded,
		LessonID:    l.ID,
		Title:       model.Localized{En: "The lesson has ended", Ar: "انتهت الحصة"},
		Body: model.Localized{
			En: "The online lesson has finished successfully.",
			Ar: "انتهت الحصة بنجاح.",
		},
	}
}

// LessonCanceled tells the accepted teacher the student canceled.
func LessonCanceled(l model.Lesson, teacherID uint64) model.NotificationMessage {
	return model.NotificationMessage{
		SenderID:    sender(l.StudentID),
		RecipientID: teacherID,
		Type:        model.NotifyLessonCanceled,
		LessonID:    l.ID,
		Title:       model.Localized{En: "Lesson canceled", Ar: "تم إلغاء الحصة"},
		Body: model.Localized{
			En: fmt.Sprintf("The student canceled the %s lesson scheduled for %s.", l.Subject, lessonDate(l)),
			Ar: fmt.Sprintf("قام الطالب بإلغاء حصة %s المقررة في %s.", l.Subject, lessonDate(l)),
		},
	}
}

// LessonCompleted tells the student the teacher closed the lesson.
func LessonCompleted(l model.Lesson, teacherID uint64, points int) model.NotificationMessage {
	return model.NotificationMessage{
		SenderID:    sender(teacherID),
		RecipientID: l.StudentID,
		Type:        model.NotifyLessonCompleted,
		LessonID:    l.ID,
		Title:       model.Localized{En: "Lesson completed", Ar: "اكتملت الحصة"},
		Body: model.Localized{
			En: fmt.Sprintf("Your %s lesson is complete. You earned %d points.", l.Subject, points),
			Ar: fmt.Sprintf("اكتملت حصة %s. لقد ربحت %d نقطة.", l.Subject, points),
		},
	}
}
