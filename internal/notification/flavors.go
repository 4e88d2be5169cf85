package notification

import (
	"context"
	"fmt"
	"strings"
)

// このファイルはドメインイベントごとの通知コンストラクタ（フレーバー）を定義する。
// プロデューサーが生のフィールドを組み立てる代わりに型付きの引数で呼び出せるよう、
// タイトル・本文のテンプレートと優先度をここに集約する。
// Dataペイロードはタイプごとの構造体としてシリアライズされる。

// NurseApprovedData はnurse_approved通知のペイロード。
type NurseApprovedData struct {
	// Approved は承認済みであることを表す。
	Approved bool `json:"approved"`
}

// NotifyNurseApproved は看護師の登録申請が承認されたことを本人に通知する。
func (s *Service) NotifyNurseApproved(ctx context.Context, nurseID string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:    nurseID,
		Type:      TypeNurseApproved,
		Title:     "🎉 Application Approved!",
		Message:   "Congratulations! Your nurse application has been approved. You can now start accepting patient requests.",
		Priority:  PriorityHigh,
		ActionURL: "/dashboard",
		Data:      NurseApprovedData{Approved: true},
	})
}

// NurseRejectedData はnurse_rejected通知のペイロード。
type NurseRejectedData struct {
	// Rejected は却下済みであることを表す。
	Rejected bool `json:"rejected"`
	// Reason は却下理由（任意）。
	Reason string `json:"reason,omitempty"`
}

// NotifyNurseRejected は看護師の登録申請が却下されたことを本人に通知する。
// reasonが空の場合は汎用メッセージになる。
func (s *Service) NotifyNurseRejected(ctx context.Context, nurseID, reason string) (*Notification, error) {
	message := "Unfortunately, your nurse application has been rejected. Please contact support for more information."
	if reason != "" {
		message = fmt.Sprintf("Unfortunately, your nurse application has been rejected. Reason: %s", reason)
	}

	return s.Create(ctx, CreateParams{
		UserID:    nurseID,
		Type:      TypeNurseRejected,
		Title:     "❌ Application Rejected",
		Message:   message,
		Priority:  PriorityHigh,
		ActionURL: "/profile",
		Data:      NurseRejectedData{Rejected: true, Reason: reason},
	})
}

// RequestApplicationData はrequest_application通知のペイロード。
type RequestApplicationData struct {
	// NurseID は応募した看護師のID。
	NurseID string `json:"nurse_id"`
	// NurseName は応募した看護師の表示名。
	NurseName string `json:"nurse_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
}

// NotifyRequestApplication は看護師がケア依頼に応募したことを患者に通知する。
func (s *Service) NotifyRequestApplication(ctx context.Context, patientID, nurseID, nurseName, requestID, requestTitle string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            patientID,
		Type:              TypeRequestApplication,
		Title:             "👩‍⚕️ New Application Received",
		Message:           fmt.Sprintf("%s has applied to your request %q. Review their application now.", nurseName, requestTitle),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data:              RequestApplicationData{NurseID: nurseID, NurseName: nurseName, RequestTitle: requestTitle},
	})
}

// NurseOfferData は価格・見積もり時間付きオファーのペイロード。
type NurseOfferData struct {
	// NurseID はオファーを提出した看護師のID。
	NurseID string `json:"nurse_id"`
	// NurseName は看護師の表示名。
	NurseName string `json:"nurse_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// Price はオファー価格（ドル）。
	Price float64 `json:"price"`
	// EstimatedTime は見積もり時間（時間単位）。
	EstimatedTime float64 `json:"estimated_time"`
	// OfferType はオファー種別の識別子。
	OfferType string `json:"offer_type"`
}

// NotifyNurseOffer は看護師が価格付きオファーを提出したことを患者に通知する。
func (s *Service) NotifyNurseOffer(ctx context.Context, patientID, nurseID, nurseName, requestID, requestTitle string, price, estimatedTime float64) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            patientID,
		Type:              TypeRequestApplication,
		Title:             "💰 New Offer Received",
		Message:           fmt.Sprintf("%s has submitted an offer for %q - Price: $%v, Estimated time: %v hours. Review and manage your request now.", nurseName, requestTitle, price, estimatedTime),
		Priority:          PriorityHigh,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data: NurseOfferData{
			NurseID:       nurseID,
			NurseName:     nurseName,
			RequestTitle:  requestTitle,
			Price:         price,
			EstimatedTime: estimatedTime,
			OfferType:     "nurse_offer",
		},
	})
}

// OfferUpdatedData はオファー更新通知のペイロード。
type OfferUpdatedData struct {
	// NurseName は看護師の表示名。
	NurseName string `json:"nurse_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// NewPrice は更新後の価格（ドル）。
	NewPrice float64 `json:"new_price"`
	// NewEstimatedTime は更新後の見積もり時間（時間単位）。
	NewEstimatedTime float64 `json:"new_estimated_time"`
	// OfferType はオファー種別の識別子。
	OfferType string `json:"offer_type"`
}

// NotifyOfferUpdated は看護師がオファーを更新したことを患者に通知する。
func (s *Service) NotifyOfferUpdated(ctx context.Context, patientID, nurseName, requestID, requestTitle string, newPrice, newEstimatedTime float64) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            patientID,
		Type:              TypeRequestApplication,
		Title:             "🔄 Offer Updated",
		Message:           fmt.Sprintf("%s has updated their offer for %q - New Price: $%v, New Estimated time: %v hours. Review the updated offer now.", nurseName, requestTitle, newPrice, newEstimatedTime),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data: OfferUpdatedData{
			NurseName:        nurseName,
			RequestTitle:     requestTitle,
			NewPrice:         newPrice,
			NewEstimatedTime: newEstimatedTime,
			OfferType:        "offer_updated",
		},
	})
}

// OfferCancelledData はオファー取り消し通知のペイロード。
type OfferCancelledData struct {
	// NurseName は看護師の表示名。
	NurseName string `json:"nurse_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// OfferType はオファー種別の識別子。
	OfferType string `json:"offer_type"`
}

// NotifyOfferCancelled は看護師がオファーを取り消したことを患者に通知する。
func (s *Service) NotifyOfferCancelled(ctx context.Context, patientID, nurseName, requestID, requestTitle string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            patientID,
		Type:              TypeRequestApplication,
		Title:             "🗑️ Offer Cancelled",
		Message:           fmt.Sprintf("%s has cancelled their offer for %q. You can still review other offers or wait for new ones.", nurseName, requestTitle),
		Priority:          PriorityLow,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data: OfferCancelledData{
			NurseName:    nurseName,
			RequestTitle: requestTitle,
			OfferType:    "offer_cancelled",
		},
	})
}

// OfferAcceptedData はオファー承諾通知のペイロード。
type OfferAcceptedData struct {
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// AcceptedPrice は承諾された価格（ドル）。
	AcceptedPrice float64 `json:"accepted_price"`
	// OfferAccepted は承諾済みであることを表す。
	OfferAccepted bool `json:"offer_accepted"`
}

// NotifyOfferAccepted は患者がオファーを承諾したことを看護師に通知する。
func (s *Service) NotifyOfferAccepted(ctx context.Context, nurseID, patientName, requestID, requestTitle string, acceptedPrice float64) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypeRequestAccepted,
		Title:             "🎉 Offer Accepted!",
		Message:           fmt.Sprintf("Congratulations! %s has accepted your offer for %q at $%v. You can now start providing the service.", patientName, requestTitle, acceptedPrice),
		Priority:          PriorityHigh,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data: OfferAcceptedData{
			PatientName:   patientName,
			RequestTitle:  requestTitle,
			AcceptedPrice: acceptedPrice,
			OfferAccepted: true,
		},
	})
}

// RequestAcceptedData はrequest_accepted通知のペイロード。
type RequestAcceptedData struct {
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
}

// NotifyRequestAccepted は患者が応募を承諾したことを看護師に通知する。
func (s *Service) NotifyRequestAccepted(ctx context.Context, nurseID, patientName, requestID, requestTitle string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypeRequestAccepted,
		Title:             "✅ Request Accepted",
		Message:           fmt.Sprintf("Great news! %s has accepted your application for %q.", patientName, requestTitle),
		Priority:          PriorityHigh,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data:              RequestAcceptedData{PatientName: patientName, RequestTitle: requestTitle},
	})
}

// RequestRejectedData はrequest_rejected通知のペイロード。
type RequestRejectedData struct {
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
}

// NotifyRequestRejected は患者が応募を辞退したことを看護師に通知する。
func (s *Service) NotifyRequestRejected(ctx context.Context, nurseID, patientName, requestID, requestTitle string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypeRequestRejected,
		Title:             "❌ Application Declined",
		Message:           fmt.Sprintf("%s has declined your application for %q.", patientName, requestTitle),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         "/requests",
		Data:              RequestRejectedData{PatientName: patientName, RequestTitle: requestTitle},
	})
}

// RequestCompletedData はrequest_completed通知のペイロード。
type RequestCompletedData struct {
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// Role は受信者のロール（patient / nurse）。
	Role string `json:"role"`
}

// NotifyRequestCompleted はケア依頼が完了したことを当事者（患者または看護師）に通知する。
// isPatientは受信者が患者側であるかを表し、レビュー誘導文の宛先を切り替える。
func (s *Service) NotifyRequestCompleted(ctx context.Context, userID, requestID, requestTitle string, isPatient bool) (*Notification, error) {
	role, otherRole := "nurse", "patient"
	if isPatient {
		role, otherRole = "patient", "nurse"
	}

	return s.Create(ctx, CreateParams{
		UserID:            userID,
		Type:              TypeRequestCompleted,
		Title:             "🎯 Request Completed",
		Message:           fmt.Sprintf("The request %q has been marked as completed. You can now leave a review for the %s.", requestTitle, otherRole),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s/reviews", requestID),
		Data:              RequestCompletedData{RequestTitle: requestTitle, Role: role},
	})
}

// RequestMarkedCompletedData は患者による完了マーク通知のペイロード。
type RequestMarkedCompletedData struct {
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// CompletedByPatient は患者側の操作で完了したことを表す。
	CompletedByPatient bool `json:"completed_by_patient"`
}

// NotifyRequestMarkedCompleted は患者が依頼を完了にしたことを看護師に通知する。
func (s *Service) NotifyRequestMarkedCompleted(ctx context.Context, nurseID, patientName, requestID, requestTitle string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypeRequestCompleted,
		Title:             "✅ Request Completed",
		Message:           fmt.Sprintf("%s has marked the request %q as completed. Thank you for your excellent service!", patientName, requestTitle),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data: RequestMarkedCompletedData{
			PatientName:        patientName,
			RequestTitle:       requestTitle,
			CompletedByPatient: true,
		},
	})
}

// RequestCancelledData はrequest_cancelled通知のペイロード。
type RequestCancelledData struct {
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// CancellationReason はキャンセル理由（任意）。
	CancellationReason string `json:"cancellation_reason,omitempty"`
	// CancelledByPatient は患者側の操作でキャンセルされたことを表す。
	CancelledByPatient bool `json:"cancelled_by_patient"`
}

// NotifyRequestCancelled は患者が依頼をキャンセルしたことを看護師に通知する。
func (s *Service) NotifyRequestCancelled(ctx context.Context, nurseID, patientName, requestID, requestTitle, reason string) (*Notification, error) {
	reasonText := ""
	if reason != "" {
		reasonText = fmt.Sprintf(" Reason: %s.", reason)
	}

	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypeRequestCancelled,
		Title:             "❌ Request Cancelled",
		Message:           fmt.Sprintf("%s has cancelled the request %q.%s We apologize for any inconvenience.", patientName, requestTitle, reasonText),
		Priority:          PriorityHigh,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         "/requests",
		Data: RequestCancelledData{
			PatientName:        patientName,
			RequestTitle:       requestTitle,
			CancellationReason: reason,
			CancelledByPatient: true,
		},
	})
}

// ReviewReceivedData はreview_received通知のペイロード。
type ReviewReceivedData struct {
	// ReviewerName はレビューを書いたユーザーの表示名。
	ReviewerName string `json:"reviewer_name"`
	// Rating は星の数（1〜5）。
	Rating int `json:"rating"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
}

// NotifyReviewReceived はレビューを受け取ったことを本人に通知する。
func (s *Service) NotifyReviewReceived(ctx context.Context, userID, reviewerName string, rating int, requestTitle string) (*Notification, error) {
	stars := strings.Repeat("⭐", rating)

	return s.Create(ctx, CreateParams{
		UserID:    userID,
		Type:      TypeReviewReceived,
		Title:     "⭐ New Review Received",
		Message:   fmt.Sprintf("%s left you a %d-star review %s for %q.", reviewerName, rating, stars, requestTitle),
		Priority:  PriorityLow,
		ActionURL: "/profile",
		Data:      ReviewReceivedData{ReviewerName: reviewerName, Rating: rating, RequestTitle: requestTitle},
	})
}

// SystemAnnouncementData はsystem_announcement通知のペイロード。
type SystemAnnouncementData struct {
	// IsSystemAnnouncement はシステムアナウンスであることを表す。
	IsSystemAnnouncement bool `json:"is_system_announcement"`
}

// NotifySystemAnnouncement は複数ユーザーにシステムアナウンスを一括送信する。
// 挿入に成功した通知のみ返す（トランザクショナルではない）。
func (s *Service) NotifySystemAnnouncement(ctx context.Context, userIDs []string, title, message, actionURL string) ([]Notification, error) {
	paramsList := make([]CreateParams, 0, len(userIDs))
	for _, userID := range userIDs {
		paramsList = append(paramsList, CreateParams{
			UserID:    userID,
			Type:      TypeSystemAnnouncement,
			Title:     title,
			Message:   message,
			Priority:  PriorityMedium,
			ActionURL: actionURL,
			Data:      SystemAnnouncementData{IsSystemAnnouncement: true},
		})
	}
	return s.CreateMany(ctx, paramsList)
}

// PaymentReceivedData はpayment_received通知のペイロード。
type PaymentReceivedData struct {
	// Amount は受領金額（ドル）。
	Amount float64 `json:"amount"`
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
}

// NotifyPaymentReceived はケア依頼の支払いが完了したことを看護師に通知する。
func (s *Service) NotifyPaymentReceived(ctx context.Context, nurseID, requestID, requestTitle string, amount float64) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            nurseID,
		Type:              TypePaymentReceived,
		Title:             "💵 Payment Received",
		Message:           fmt.Sprintf("You have received a payment of $%v for %q.", amount, requestTitle),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         "/earnings",
		Data:              PaymentReceivedData{Amount: amount, RequestTitle: requestTitle},
	})
}

// ReminderData はreminder通知のペイロード。
type ReminderData struct {
	// RequestTitle はケア依頼のタイトル。
	RequestTitle string `json:"request_title"`
	// ScheduledAt は予定日時（RFC 3339形式）。
	ScheduledAt string `json:"scheduled_at"`
}

// NotifyUpcomingRequest はケア依頼の予定が近いことを当事者にリマインドする。
func (s *Service) NotifyUpcomingRequest(ctx context.Context, userID, requestID, requestTitle, scheduledAt string) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		UserID:            userID,
		Type:              TypeReminder,
		Title:             "⏰ Upcoming Request",
		Message:           fmt.Sprintf("Reminder: the request %q is scheduled for %s.", requestTitle, scheduledAt),
		Priority:          PriorityMedium,
		RelatedEntityID:   requestID,
		RelatedEntityType: "request",
		ActionURL:         fmt.Sprintf("/requests/%s", requestID),
		Data:              ReminderData{RequestTitle: requestTitle, ScheduledAt: scheduledAt},
	})
}

// AdminNewPatientData は新規患者登録の管理者通知のペイロード。
type AdminNewPatientData struct {
	// PatientID は登録した患者のID。
	PatientID string `json:"patient_id"`
	// PatientName は患者の表示名。
	PatientName string `json:"patient_name"`
	// PatientEmail は患者のメールアドレス。
	PatientEmail string `json:"patient_email"`
	// UserType はユーザー種別の識別子。
	UserType string `json:"user_type"`
	// RegistrationType は登録イベント種別の識別子。
	RegistrationType string `json:"registration_type"`
}

// NotifyAdminNewPatient は新規患者が登録したことを管理者全員に通知する。
func (s *Service) NotifyAdminNewPatient(ctx context.Context, adminIDs []string, patientID, patientName, patientEmail string) ([]Notification, error) {
	paramsList := make([]CreateParams, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		paramsList = append(paramsList, CreateParams{
			UserID:            adminID,
			Type:              TypeSystemAnnouncement,
			Title:             "👤 New Patient Registered",
			Message:           fmt.Sprintf("A new patient %q (%s) has registered on the platform. Review their profile and welcome them to the community.", patientName, patientEmail),
			Priority:          PriorityMedium,
			RelatedEntityID:   patientID,
			RelatedEntityType: "user",
			ActionURL:         fmt.Sprintf("/admin/users/%s", patientID),
			Data: AdminNewPatientData{
				PatientID:        patientID,
				PatientName:      patientName,
				PatientEmail:     patientEmail,
				UserType:         "patient",
				RegistrationType: "new_patient",
			},
		})
	}
	return s.CreateMany(ctx, paramsList)
}

// AdminNewNurseData は新規看護師申請の管理者通知のペイロード。
type AdminNewNurseData struct {
	// NurseID は申請した看護師のID。
	NurseID string `json:"nurse_id"`
	// NurseName は看護師の表示名。
	NurseName string `json:"nurse_name"`
	// NurseEmail は看護師のメールアドレス。
	NurseEmail string `json:"nurse_email"`
	// LicenseNumber は看護師免許番号（任意）。
	LicenseNumber string `json:"license_number,omitempty"`
	// UserType はユーザー種別の識別子。
	UserType string `json:"user_type"`
	// RegistrationType は登録イベント種別の識別子。
	RegistrationType string `json:"registration_type"`
	// RequiresApproval は管理者の承認が必要であることを表す。
	RequiresApproval bool `json:"requires_approval"`
}

// NotifyAdminNewNurse は新規看護師が申請したことを管理者全員に通知する。
func (s *Service) NotifyAdminNewNurse(ctx context.Context, adminIDs []string, nurseID, nurseName, nurseEmail, licenseNumber string) ([]Notification, error) {
	licenseText := ""
	if licenseNumber != "" {
		licenseText = fmt.Sprintf(" with license %s", licenseNumber)
	}

	paramsList := make([]CreateParams, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		paramsList = append(paramsList, CreateParams{
			UserID:            adminID,
			Type:              TypeSystemAnnouncement,
			Title:             "👩‍⚕️ New Nurse Application",
			Message:           fmt.Sprintf("A new nurse %q (%s) has applied to join the platform%s. Please review and approve their application.", nurseName, nurseEmail, licenseText),
			Priority:          PriorityHigh,
			RelatedEntityID:   nurseID,
			RelatedEntityType: "user",
			ActionURL:         fmt.Sprintf("/admin/nurses/%s", nurseID),
			Data: AdminNewNurseData{
				NurseID:          nurseID,
				NurseName:        nurseName,
				NurseEmail:       nurseEmail,
				LicenseNumber:    licenseNumber,
				UserType:         "nurse",
				RegistrationType: "new_nurse_application",
				RequiresApproval: true,
			},
		})
	}
	return s.CreateMany(ctx, paramsList)
}
