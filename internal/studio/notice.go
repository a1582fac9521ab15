package studio

import (
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"veostudio/internal/domain"
)

// MessageCredentialRequired is shown when a batch is refused for lack of a
// credential. It is not a notice; the HTTP layer returns it with the error.
const MessageCredentialRequired = "credential_required"

// SupportedLocales lists the languages notices are translated into. The
// first entry is the fallback.
var SupportedLocales = []language.Tag{language.English, language.Vietnamese}

var (
	localeMatcher = language.NewMatcher(SupportedLocales)
	messages      = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(key, en, vi string) {
		_ = b.SetString(language.English, key, en)
		_ = b.SetString(language.Vietnamese, key, vi)
	}
	set(domain.NoticeCredentialInvalidated,
		"The API key is invalid or has expired. Please select it again.",
		"API Key không hợp lệ hoặc đã hết hạn. Vui lòng chọn lại.")
	set(domain.NoticeSelectorFailed,
		"Could not open the API key selector.",
		"Không thể mở hộp thoại chọn API Key.")
	set(MessageCredentialRequired,
		"An API key is required to generate videos.",
		"Yêu cầu API Key để tạo video.")
	return b
}

// MatchLocale picks the supported language closest to locale, which may be a
// single tag or an Accept-Language value.
func MatchLocale(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return SupportedLocales[0]
	}
	_, idx, _ := localeMatcher.Match(tags...)
	return SupportedLocales[idx]
}

// Localize renders a notice or message code in the requested locale. Unknown
// codes are returned as is.
func Localize(code, locale string) string {
	p := message.NewPrinter(MatchLocale(locale), message.Catalog(messages))
	return p.Sprintf(code)
}

// Notice is the single session-level message slot.
type Notice struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// NoticeBoard holds at most one notice; the last raise wins.
type NoticeBoard struct {
	now func() time.Time

	mu      sync.RWMutex
	code    string
	raiseAt time.Time
}

func NewNoticeBoard() *NoticeBoard {
	return &NoticeBoard{now: func() time.Time { return time.Now().UTC() }}
}

func (b *NoticeBoard) Raise(code string) {
	b.mu.Lock()
	b.code = code
	b.raiseAt = b.now()
	b.mu.Unlock()
}

func (b *NoticeBoard) Clear() {
	b.mu.Lock()
	b.code = ""
	b.raiseAt = time.Time{}
	b.mu.Unlock()
}

// Current returns the active notice rendered for locale.
func (b *NoticeBoard) Current(locale string) (Notice, bool) {
	b.mu.RLock()
	code, at := b.code, b.raiseAt
	b.mu.RUnlock()
	if code == "" {
		return Notice{}, false
	}
	return Notice{Code: code, Message: Localize(code, locale), RaisedAt: at}, true
}
