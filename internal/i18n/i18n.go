// Package i18n holds the user-facing message catalog. Keys are the English
// format strings; other locales register translations against them.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	MsgRequired       = "This field is required"
	MsgTerms          = "You must accept the terms to continue"
	MsgMinLength      = "Must be at least %d characters"
	MsgMaxLength      = "Must be at most %d characters"
	MsgMin            = "Must be at least %v"
	MsgMax            = "Must be at most %v"
	MsgNumber         = "Must be a number"
	MsgPattern        = "Invalid format"
	MsgFormat         = "Must be a valid %s"
	MsgOption         = "Select one of the available options"
	MsgBoolean        = "Must be yes or no"
	MsgText           = "Must be text"
	MsgMinFiles       = "Attach at least %d file(s)"
	MsgMaxFiles       = "Attach at most %d file(s)"
	MsgMaxTotal       = "Attachments must not exceed %s in total"
	MsgFileType       = "%s: file type is not allowed"
	MsgFileSize       = "%s exceeds the maximum size of %s"
	MsgFileCount      = "%s was not added: at most %d files are allowed"
	MsgFileTotal      = "%s was not added: attachments would exceed %s"
	MsgFileUnreadable = "%s could not be read"
	MsgFileEmpty      = "%s is empty"

	MsgSubmitted          = "Submitted successfully"
	MsgAuthRequired       = "Please sign in to continue"
	MsgAuthExpired        = "Your session has expired, please sign in again"
	MsgForbidden          = "Your account type is not allowed to perform this action"
	MsgRateLimited        = "Too many requests, please try again later"
	MsgNetwork            = "Network error, please check your connection and try again"
	MsgServerError        = "Something went wrong, please try again"
	MsgValidationRejected = "Please correct the highlighted fields"
	MsgUnmatchedFields    = "Some information was not accepted: %s"
	MsgUnknownSelection   = "Unknown selection %q, showing the default form"
)

var arabic = map[string]string{
	MsgRequired:       "هذا الحقل مطلوب",
	MsgTerms:          "يجب الموافقة على الشروط والأحكام للمتابعة",
	MsgMinLength:      "يجب ألا يقل عن %d أحرف",
	MsgMaxLength:      "يجب ألا يزيد عن %d أحرف",
	MsgMin:            "يجب ألا تقل القيمة عن %v",
	MsgMax:            "يجب ألا تزيد القيمة عن %v",
	MsgNumber:         "يجب إدخال رقم",
	MsgPattern:        "صيغة غير صحيحة",
	MsgFormat:         "يجب إدخال %s صحيح",
	MsgOption:         "اختر أحد الخيارات المتاحة",
	MsgBoolean:        "يجب اختيار نعم أو لا",
	MsgText:           "يجب إدخال نص",
	MsgMinFiles:       "أرفق %d ملف على الأقل",
	MsgMaxFiles:       "أرفق %d ملف كحد أقصى",
	MsgMaxTotal:       "يجب ألا يتجاوز حجم المرفقات %s",
	MsgFileType:       "%s: نوع الملف غير مسموح",
	MsgFileSize:       "%s يتجاوز الحجم الأقصى %s",
	MsgFileCount:      "لم تتم إضافة %s: الحد الأقصى %d ملفات",
	MsgFileTotal:      "لم تتم إضافة %s: سيتجاوز حجم المرفقات %s",
	MsgFileUnreadable: "تعذرت قراءة %s",
	MsgFileEmpty:      "%s فارغ",

	MsgSubmitted:          "تم الإرسال بنجاح",
	MsgAuthRequired:       "يرجى تسجيل الدخول للمتابعة",
	MsgAuthExpired:        "انتهت صلاحية الجلسة، يرجى تسجيل الدخول مجددا",
	MsgForbidden:          "نوع حسابك غير مسموح له بهذا الإجراء",
	MsgRateLimited:        "طلبات كثيرة، يرجى المحاولة لاحقا",
	MsgNetwork:            "خطأ في الشبكة، تحقق من اتصالك وحاول مجددا",
	MsgServerError:        "حدث خطأ ما، يرجى المحاولة مجددا",
	MsgValidationRejected: "يرجى تصحيح الحقول المحددة",
	MsgUnmatchedFields:    "لم يتم قبول بعض المعلومات: %s",
	MsgUnknownSelection:   "اختيار غير معروف %q، تم عرض النموذج الافتراضي",
}

// Supported lists the locales with a registered catalog.
var Supported = []language.Tag{language.English, language.Arabic}

var (
	builder = newBuilder()
	matcher = language.NewMatcher(Supported)
)

func newBuilder() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range arabic {
		if err := b.SetString(language.Arabic, key, msg); err != nil {
			panic(err)
		}
	}
	return b
}

// Printer formats catalog messages for one locale.
type Printer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Printer for locale (BCP 47, e.g. "ar-SA"). Unknown or empty
// locales fall back to English.
func New(locale string) *Printer {
	tag := language.English
	if trimmed := strings.TrimSpace(locale); trimmed != "" {
		if parsed, err := language.Parse(trimmed); err == nil {
			_, idx, _ := matcher.Match(parsed)
			tag = Supported[idx]
		}
	}
	return &Printer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(builder))}
}

// Tag returns the matched locale.
func (p *Printer) Tag() language.Tag {
	if p == nil {
		return language.English
	}
	return p.tag
}

// Sprintf formats the message registered under key.
func (p *Printer) Sprintf(key string, args ...any) string {
	if p == nil {
		p = New("")
	}
	return p.printer.Sprintf(key, args...)
}
